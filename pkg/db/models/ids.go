package models

import "github.com/google/uuid"

// assignID fills a zero primary key before insert so rows carry an id on every
// driver, including those without gen_random_uuid().
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}
