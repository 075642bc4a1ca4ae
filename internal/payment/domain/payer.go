package domain

import "strings"

// Payer is the resolved account behind a payment, used for gateway prefill.
type Payer struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Validate requires a display name and at least one contact channel.
func (p Payer) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidPayer
	}
	if strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Phone) == "" {
		return ErrInvalidPayer
	}
	return nil
}
