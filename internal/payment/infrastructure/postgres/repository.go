package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
	"github.com/dmehra2102/payment-engine/pkg/tracing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentColumns = `id, order_id, payer_id, recipient_id, amount_minor, currency, purpose, metadata, status,
	failure_reason, signature, commission_minor, net_minor, refunded_minor, refund_status,
	created_at, updated_at, paid_at, refunded_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Create(ctx context.Context, p domain.Payment) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	metadata, err := json.Marshal(p.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO payments (id, payer_id, recipient_id, amount_minor, currency, purpose, metadata, status, created_at, updated_at)
		VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.PayerID, p.RecipientID, p.AmountMinor, p.Currency, p.Purpose, metadata, string(p.Status), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `INSERT INTO payment_status_history (payment_id, from_status, to_status, created_at) VALUES ($1, NULL, $2, $3)`,
		p.ID, string(p.Status), p.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) AttachOrder(ctx context.Context, paymentID, orderID string) error {
	ct, err := r.pool.Exec(ctx, `UPDATE payments SET order_id=$2, updated_at=now() WHERE id=$1 AND order_id IS NULL`, paymentID, orderID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.Get(ctx, paymentID); err != nil {
			return err
		}
		return fmt.Errorf("payment %s already has an order", paymentID)
	}
	return nil
}

// OrderRefundState returns the captured amount and the amount already refunded
// for a gateway order.
func (r *Repository) OrderRefundState(ctx context.Context, orderID string) (int64, int64, error) {
	var amount, refunded int64
	err := r.pool.QueryRow(ctx, `SELECT amount_minor, refunded_minor FROM payments WHERE order_id=$1`, orderID).
		Scan(&amount, &refunded)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, fmt.Errorf("%w: order %s", domain.ErrNotFound, orderID)
	}
	if err != nil {
		return 0, 0, err
	}
	return amount, refunded, nil
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Payment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1`, id)
	return scanPayment(row, id)
}

func (r *Repository) ListByPayer(ctx context.Context, payerID string, limit int) ([]domain.Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments WHERE payer_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2`, payerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows, "")
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) CommissionTotals(ctx context.Context, recipientID string) (sales, commission, earned int64, err error) {
	err = r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(amount_minor),0), COALESCE(SUM(commission_minor),0), COALESCE(SUM(net_minor),0)
		FROM payments WHERE recipient_id=$1 AND status='completed'`, recipientID).Scan(&sales, &commission, &earned)
	return sales, commission, earned, err
}

func (r *Repository) ListUnsettled(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM payments WHERE status='completed' AND commission_minor IS NULL ORDER BY paid_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(ctx, &ledgerTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type ledgerTx struct {
	tx pgx.Tx
}

func (t *ledgerTx) LockPayment(ctx context.Context, id string) (domain.Payment, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id=$1 FOR UPDATE`, id)
	return scanPayment(row, id)
}

func (t *ledgerTx) SavePayment(ctx context.Context, p domain.Payment) error {
	ct, err := t.tx.Exec(ctx, `UPDATE payments SET
			status=$2, failure_reason=NULLIF($3,''), signature=NULLIF($4,''),
			commission_minor=$5, net_minor=$6, refunded_minor=$7, refund_status=$8,
			updated_at=$9, paid_at=$10, refunded_at=$11
		WHERE id=$1`,
		p.ID, string(p.Status), p.FailureReason, p.Signature,
		p.CommissionMinor, p.NetMinor, p.RefundedMinor, string(p.RefundStatus),
		p.UpdatedAt, p.PaidAt, p.RefundedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) AppendHistory(ctx context.Context, c domain.StatusChange) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payment_status_history (payment_id, from_status, to_status, reason, created_at)
		VALUES ($1, NULLIF($2,''), $3, NULLIF($4,''), $5)`, c.PaymentID, string(c.From), string(c.To), c.Reason, c.At)
	return err
}

func (t *ledgerTx) AppendRefund(ctx context.Context, rf domain.Refund) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO payment_refunds (id, payment_id, amount_minor, reference, created_at) VALUES ($1,$2,$3,$4,$5)`,
		rf.ID, rf.PaymentID, rf.AmountMinor, rf.Reference, rf.CreatedAt)
	return err
}

// CreditWallet is a single in-place increment; the balance is never read back
// and rewritten.
func (t *ledgerTx) CreditWallet(ctx context.Context, accountID string, amountMinor int64) error {
	ct, err := t.tx.Exec(ctx, `UPDATE accounts SET wallet_balance_minor = wallet_balance_minor + $2, updated_at=now() WHERE id=$1`,
		accountID, amountMinor)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	return nil
}

func (t *ledgerTx) Enqueue(ctx context.Context, ev domain.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	headers := map[string]string{"source": "payment-engine"}
	_, err = t.tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, headers, traceparent, status) VALUES ($1,$2,$3,$4,$5,$6,'pending')`,
		"payment", ev.AggregateID(), ev.EventType(), payload, headers, tracing.Traceparent(ctx))
	return err
}

func scanPayment(row pgx.Row, id string) (domain.Payment, error) {
	var (
		p                    domain.Payment
		orderID, recipientID *string
		failureReason, sig   *string
		metadata             map[string]string
		paidAt, refundedAt   *time.Time
		status, refundStatus string
	)
	err := row.Scan(&p.ID, &orderID, &p.PayerID, &recipientID, &p.AmountMinor, &p.Currency, &p.Purpose, &metadata, &status,
		&failureReason, &sig, &p.CommissionMinor, &p.NetMinor, &p.RefundedMinor, &refundStatus,
		&p.CreatedAt, &p.UpdatedAt, &paidAt, &refundedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Payment{}, err
	}
	p.OrderID = deref(orderID)
	p.RecipientID = deref(recipientID)
	p.FailureReason = deref(failureReason)
	p.Signature = deref(sig)
	p.Status = domain.Status(status)
	p.RefundStatus = domain.RefundStatus(refundStatus)
	p.Metadata = metadata
	if p.Metadata == nil {
		p.Metadata = map[string]string{}
	}
	p.PaidAt = paidAt
	p.RefundedAt = refundedAt
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
