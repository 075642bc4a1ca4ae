// Package memory is an in-process ledger with the same transactional
// semantics as the postgres store: transactions are serialized and roll back
// completely on error.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmehra2102/payment-engine/internal/payment/application"
	"github.com/dmehra2102/payment-engine/internal/payment/domain"
)

type Account struct {
	Payer       domain.Payer
	WalletMinor int64
}

type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex

	payments map[string]domain.Payment
	accounts map[string]Account
	history  []domain.StatusChange
	refunds  []domain.Refund
	events   []domain.Event

	creditErr error
}

func NewStore() *Store {
	return &Store{
		payments: map[string]domain.Payment{},
		accounts: map[string]Account{},
	}
}

func (s *Store) PutAccount(a Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[a.Payer.ID] = a
}

// FailWalletCredits makes every CreditWallet call return err until reset with nil.
func (s *Store) FailWalletCredits(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creditErr = err
}

func (s *Store) WalletBalance(accountID string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[accountID].WalletMinor
}

func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

func (s *Store) History(paymentID string) []domain.StatusChange {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.StatusChange
	for _, h := range s.history {
		if h.PaymentID == paymentID {
			out = append(out, h)
		}
	}
	return out
}

func (s *Store) Refunds(paymentID string) []domain.Refund {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Refund
	for _, r := range s.refunds {
		if r.PaymentID == paymentID {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Resolve(_ context.Context, payerID string) (domain.Payer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[payerID]
	if !ok {
		return domain.Payer{}, fmt.Errorf("account %s: %w", payerID, domain.ErrNotFound)
	}
	return a.Payer, nil
}

func (s *Store) Create(_ context.Context, p domain.Payment) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.payments[p.ID]; ok {
		return fmt.Errorf("payment %s already exists", p.ID)
	}
	s.payments[p.ID] = clonePayment(p)
	s.history = append(s.history, domain.StatusChange{PaymentID: p.ID, To: p.Status, At: p.CreatedAt})
	return nil
}

func (s *Store) AttachOrder(_ context.Context, paymentID, orderID string) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return fmt.Errorf("payment %s: %w", paymentID, domain.ErrNotFound)
	}
	for id, other := range s.payments {
		if id != paymentID && other.OrderID == orderID {
			return fmt.Errorf("order %s already attached to payment %s", orderID, id)
		}
	}
	p.OrderID = orderID
	s.payments[paymentID] = p
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	if !ok {
		return domain.Payment{}, fmt.Errorf("payment %s: %w", id, domain.ErrNotFound)
	}
	return clonePayment(p), nil
}

func (s *Store) ListByPayer(_ context.Context, payerID string, limit int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.payments {
		if p.PayerID == payerID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CommissionTotals(_ context.Context, recipientID string) (int64, int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sales, commission, earned int64
	for _, p := range s.payments {
		if p.RecipientID != recipientID || p.Status != domain.StatusCompleted {
			continue
		}
		sales += p.AmountMinor
		if p.CommissionMinor != nil {
			commission += *p.CommissionMinor
		}
		if p.NetMinor != nil {
			earned += *p.NetMinor
		}
	}
	return sales, commission, earned, nil
}

func (s *Store) ListUnsettled(_ context.Context, limit int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, p := range s.payments {
		if p.Status == domain.StatusCompleted && p.CommissionMinor == nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context, tx application.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snap := s.snapshot()
	if err := fn(ctx, &txn{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

type snapshot struct {
	payments map[string]domain.Payment
	accounts map[string]Account
	history  int
	refunds  int
	events   int
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		payments: make(map[string]domain.Payment, len(s.payments)),
		accounts: make(map[string]Account, len(s.accounts)),
		history:  len(s.history),
		refunds:  len(s.refunds),
		events:   len(s.events),
	}
	for k, v := range s.payments {
		snap.payments[k] = clonePayment(v)
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = snap.payments
	s.accounts = snap.accounts
	s.history = s.history[:snap.history]
	s.refunds = s.refunds[:snap.refunds]
	s.events = s.events[:snap.events]
}

type txn struct {
	s *Store
}

func (t *txn) LockPayment(ctx context.Context, id string) (domain.Payment, error) {
	return t.s.Get(ctx, id)
}

func (t *txn) SavePayment(_ context.Context, p domain.Payment) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.payments[p.ID]; !ok {
		return fmt.Errorf("payment %s: %w", p.ID, domain.ErrNotFound)
	}
	t.s.payments[p.ID] = clonePayment(p)
	return nil
}

func (t *txn) AppendHistory(_ context.Context, change domain.StatusChange) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.history = append(t.s.history, change)
	return nil
}

func (t *txn) AppendRefund(_ context.Context, r domain.Refund) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.refunds = append(t.s.refunds, r)
	return nil
}

func (t *txn) CreditWallet(_ context.Context, accountID string, amountMinor int64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.s.creditErr != nil {
		return t.s.creditErr
	}
	a, ok := t.s.accounts[accountID]
	if !ok {
		return fmt.Errorf("account %s: %w", accountID, domain.ErrNotFound)
	}
	a.WalletMinor += amountMinor
	t.s.accounts[accountID] = a
	return nil
}

func (t *txn) Enqueue(_ context.Context, ev domain.Event) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.events = append(t.s.events, ev)
	return nil
}

func clonePayment(p domain.Payment) domain.Payment {
	if p.Metadata != nil {
		meta := make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			meta[k] = v
		}
		p.Metadata = meta
	}
	if p.CommissionMinor != nil {
		v := *p.CommissionMinor
		p.CommissionMinor = &v
	}
	if p.NetMinor != nil {
		v := *p.NetMinor
		p.NetMinor = &v
	}
	return p
}
