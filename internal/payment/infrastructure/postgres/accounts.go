package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/jackc/pgx/v5"
)

// Resolve implements the payer directory over the accounts table.
func (r *Repository) Resolve(ctx context.Context, payerID string) (domain.Payer, error) {
	var p domain.Payer
	err := r.pool.QueryRow(ctx, `SELECT id, display_name, COALESCE(email,''), COALESCE(phone,'') FROM accounts WHERE id=$1`, payerID).
		Scan(&p.ID, &p.Name, &p.Email, &p.Phone)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payer{}, fmt.Errorf("account %s: %w", payerID, domain.ErrNotFound)
	}
	return p, err
}

func (r *Repository) WalletBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT wallet_balance_minor FROM accounts WHERE id=$1`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return balance, err
}

// UpsertAccount mirrors an account from the owning directory service. The
// wallet balance is left untouched.
func (r *Repository) UpsertAccount(ctx context.Context, p domain.Payer) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO accounts (id, display_name, email, phone) VALUES ($1,$2,NULLIF($3,''),NULLIF($4,''))
		ON CONFLICT (id) DO UPDATE SET display_name=$2, email=NULLIF($3,''), phone=NULLIF($4,''), updated_at=now()`,
		p.ID, p.Name, p.Email, p.Phone)
	return err
}
