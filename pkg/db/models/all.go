package models

// All lists every persisted model, in dependency order, for schema bootstrap
// in tests and local tooling.
func All() []any {
	return []any{
		&User{},
		&Product{},
		&CartRecord{},
		&CartItem{},
		&Offer{},
		&Order{},
		&OrderItem{},
		&Payment{},
		&RefundRequest{},
		&LedgerEvent{},
		&OutboxEvent{},
	}
}
