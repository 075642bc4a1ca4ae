//go:build integration

package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/payment-engine/pkg/idempotency"
)

func TestIdempotencyAgainstRedis(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: testEnv.RedisAddr})
	defer rdb.Close()
	require.NoError(t, rdb.Ping(ctx).Err())

	store := idempotency.NewStore(rdb, time.Minute)
	key := store.Key("gateway.callbacks", 1, 99)

	seen, err := store.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = store.Seen(ctx, key)
	require.NoError(t, err)
	assert.True(t, seen)

	calls := 0
	h := store.Middleware(func(*http.Request) string { return "it-user" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"payment_id":"p-it"}`))
	}))
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		req.Header.Set(idempotency.HeaderKey, "it-key")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.JSONEq(t, `{"payment_id":"p-it"}`, rr.Body.String())
	}
	assert.Equal(t, 1, calls)
}
