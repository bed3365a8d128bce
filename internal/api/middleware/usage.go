package middleware

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/probuild/gateway/internal/core"
	"github.com/probuild/gateway/internal/model"
)

const usageInfoKey contextKey = "usage_info"

// usageInfo is a mutable holder seeded into the context by the recorder
// so the inner auth middleware can report the presented key's digest
// back out, including for rejected requests.
type usageInfo struct {
	mu      sync.Mutex
	keyHash string
}

// SetUsageKeyHash records the presented key's digest for the
// surrounding usage recorder. No-op outside a recorded request.
func SetUsageKeyHash(ctx context.Context, keyHash string) {
	info, _ := ctx.Value(usageInfoKey).(*usageInfo)
	if info == nil {
		return
	}
	info.mu.Lock()
	info.keyHash = keyHash
	info.mu.Unlock()
}

// UsageRecorder is an async usage log writer. Recording is
// fire-and-forget: a full buffer or a failed insert degrades
// accounting, never availability.
type UsageRecorder struct {
	svc    *core.UsageService
	logger zerolog.Logger
	ch     chan model.UsageRecord
}

func NewUsageRecorder(svc *core.UsageService, logger zerolog.Logger) *UsageRecorder {
	ur := &UsageRecorder{
		svc:    svc,
		logger: logger,
		ch:     make(chan model.UsageRecord, 1024),
	}
	go ur.drain()
	return ur
}

func (ur *UsageRecorder) drain() {
	for rec := range ur.ch {
		// use context.Background since this is async
		if err := ur.svc.Record(context.Background(), &rec); err != nil {
			ur.logger.Error().Err(err).Msg("failed to write usage record")
		}
	}
}

// Close drains remaining entries and closes the channel.
func (ur *UsageRecorder) Close() {
	close(ur.ch)
}

// Middleware returns a chi middleware that writes one usage record per
// request once the outcome is known, for accepted and rejected calls
// alike.
func (ur *UsageRecorder) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := &usageInfo{}
		r = r.WithContext(context.WithValue(r.Context(), usageInfoKey, info))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		info.mu.Lock()
		keyHash := info.keyHash
		info.mu.Unlock()

		rec := model.UsageRecord{
			KeyHash:        keyHash,
			Endpoint:       r.URL.Path,
			Method:         r.Method,
			CallerIP:       r.RemoteAddr,
			UserAgent:      r.UserAgent(),
			ResponseStatus: sw.status,
		}

		select {
		case ur.ch <- rec:
		default:
			ur.logger.Warn().Msg("usage record buffer full, dropping entry")
		}
	})
}
