package models

// All lists every persisted model, in dependency order. Dev SQLite runs use it
// with AutoMigrate; Postgres schemas come from goose migrations.
func All() []any {
	return []any{
		&Crop{},
		&PurchaseRequest{},
		&Payment{},
		&OutboxEvent{},
		&OutboxDLQ{},
		&Notification{},
	}
}
