package enums

// LedgerEventType maps to the ledger_event_type enum in Postgres.
type LedgerEventType string

const (
	LedgerEventTypeSellerCredit LedgerEventType = "seller_credit"
	LedgerEventTypeRefundDebit  LedgerEventType = "refund_debit"
)

var ledgerEventTypes = newClosedSet("ledger event type",
	LedgerEventTypeSellerCredit,
	LedgerEventTypeRefundDebit,
)

func (l LedgerEventType) IsValid() bool { return ledgerEventTypes.has(l) }

func ParseLedgerEventType(value string) (LedgerEventType, error) {
	return ledgerEventTypes.parse(value)
}
