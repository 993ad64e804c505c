package models

// All lists every model owned by the service, in dependency order. Used for
// SQLite schemas in tests and local development; Postgres is migrated by goose.
func All() []any {
	return []any{
		&GroupMembership{},
		&Document{},
		&DocumentVersion{},
		&Signature{},
		&Certificate{},
		&Notification{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
