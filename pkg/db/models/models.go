package models

// All lists every persisted model, in dependency order, for sqlite automigration.
func All() []any {
	return []any{
		&Order{},
		&PendingCheckout{},
		&OutboxEvent{},
	}
}
