package domain

// Models lists every persisted entity in migration order.
func Models() []any {
	return []any{
		&StudioConfig{},
		&Client{},
		&Staff{},
		&Account{},
		&Booking{},
		&Transaction{},
	}
}
