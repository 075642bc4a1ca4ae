package idempotency

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/redis/go-redis/v9"
)

const HeaderKey = "Idempotency-Key"

const inFlight = "in_flight"

type cachedResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// Middleware replays the stored response for a repeated Idempotency-Key.
// scope namespaces keys per caller (for example the authenticated subject).
// Requests without the header pass through untouched; 5xx responses are not
// stored so the caller can retry.
func (s *Store) Middleware(scope func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			redisKey := "idem:http:" + scope(r) + ":" + r.Method + ":" + r.URL.Path + ":" + key

			claimed, err := s.rdb.SetNX(ctx, redisKey, inFlight, s.ttl).Result()
			if err != nil {
				http.Error(w, `{"error":"idempotency_unavailable","retryable":true}`, http.StatusServiceUnavailable)
				return
			}
			if !claimed {
				raw, err := s.rdb.Get(ctx, redisKey).Result()
				if err != nil && !errors.Is(err, redis.Nil) {
					http.Error(w, `{"error":"idempotency_unavailable","retryable":true}`, http.StatusServiceUnavailable)
					return
				}
				var cached cachedResponse
				if raw == inFlight || json.Unmarshal([]byte(raw), &cached) != nil {
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusConflict)
					_, _ = w.Write([]byte(`{"error":"request_in_progress","retryable":true}`))
					return
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(cached.Status)
				_, _ = w.Write(cached.Body)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				_ = s.rdb.Del(ctx, redisKey).Err()
				return
			}
			payload, _ := json.Marshal(cachedResponse{Status: rec.status, Body: rec.body.Bytes()})
			_ = s.rdb.Set(ctx, redisKey, payload, s.ttl).Err()
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
