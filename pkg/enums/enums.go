// Package enums holds the closed string sets stored in Postgres enum columns.
// Parsing is exact; callers normalize case before parsing if they need to.
package enums

import (
	"fmt"
	"slices"
)

type closedSet[T ~string] struct {
	kind   string
	values []T
}

func newClosedSet[T ~string](kind string, values ...T) closedSet[T] {
	return closedSet[T]{kind: kind, values: values}
}

func (s closedSet[T]) has(v T) bool {
	return slices.Contains(s.values, v)
}

func (s closedSet[T]) parse(raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", s.kind, raw)
}
