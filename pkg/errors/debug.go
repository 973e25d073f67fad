package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stripe/stripe-go/v83"
)

// ErrorDump flattens an error chain into loggable fields, including driver
// and payment provider details when present.
type ErrorDump struct {
	TopMessage string   `json:"top_message"`
	Code       Code     `json:"code,omitempty"`
	Chain      []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`

	ProviderRequestID   string `json:"provider_request_id,omitempty"`
	ProviderCode        string `json:"provider_code,omitempty"`
	ProviderDeclineCode string `json:"provider_decline_code,omitempty"`
	ProviderStatus      int    `json:"provider_status,omitempty"`
}

// Dump walks err's chain once and lifts out whatever the database driver or
// payment provider attached.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}
	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	d.fillPostgres(err)
	d.fillProvider(err)
	return d
}

func (d *ErrorDump) fillPostgres(err error) {
	if pgxErr := (*pgconn.PgError)(nil); errors.As(err, &pgxErr) {
		d.PGCode, d.PGMessage, d.PGDetail = pgxErr.Code, pgxErr.Message, pgxErr.Detail
		d.PGTable, d.PGColumn, d.PGConstraint = pgxErr.TableName, pgxErr.ColumnName, pgxErr.ConstraintName
		return
	}
	if pqErr := (*pq.Error)(nil); errors.As(err, &pqErr) {
		d.PGCode, d.PGMessage, d.PGDetail = string(pqErr.Code), pqErr.Message, pqErr.Detail
		d.PGTable, d.PGColumn, d.PGConstraint = pqErr.Table, pqErr.Column, pqErr.Constraint
	}
}

func (d *ErrorDump) fillProvider(err error) {
	stripeErr := (*stripe.Error)(nil)
	if !errors.As(err, &stripeErr) {
		return
	}
	d.ProviderRequestID = stripeErr.RequestID
	d.ProviderStatus = stripeErr.HTTPStatusCode
	d.ProviderCode = string(stripeErr.Code)
	d.ProviderDeclineCode = string(stripeErr.DeclineCode)
}
