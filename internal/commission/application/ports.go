package application

import "context"

// StatsReader sums the settled amounts of a recipient's completed payments.
type StatsReader interface {
	CommissionTotals(ctx context.Context, recipientID string) (sales, commission, earned int64, err error)
}
