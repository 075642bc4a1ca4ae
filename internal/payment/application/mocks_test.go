package application_test

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (string, error) {
	args := m.Called(ctx, amountMinor, currency, metadata)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) VerifySignature(ctx context.Context, orderID, paymentReference, signature string) (bool, error) {
	args := m.Called(ctx, orderID, paymentReference, signature)
	return args.Bool(0), args.Error(1)
}

func (m *mockGateway) Refund(ctx context.Context, orderID string, amountMinor int64) (string, error) {
	args := m.Called(ctx, orderID, amountMinor)
	return args.String(0), args.Error(1)
}
