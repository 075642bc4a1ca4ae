package application

import "context"

// Lister finds completed payments that carry no settlement yet.
type Lister interface {
	ListUnsettled(ctx context.Context, limit int) ([]string, error)
}

type Settler interface {
	ProcessCommission(ctx context.Context, paymentID string) (bool, error)
}
