package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"AOWI/internal/domain/models"
	"AOWI/pkg/cache"
	applogger "AOWI/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// HashReader is the part of *redis.Client the snapshot source reads with.
type HashReader interface {
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
}

// RedisSnapshot reads the latest quotes an external collector keeps in Redis
// hashes named <prefix>:<symbol> with fields bid, ask, volume and ts (unix ms).
type RedisSnapshot struct {
	client  HashReader
	prefix  string
	symbols []string
	maxAge  time.Duration
	now     func() time.Time
	log     *applogger.Logger
}

type RedisOption func(*RedisSnapshot)

// WithMaxAge skips quotes older than d. Zero keeps every quote.
func WithMaxAge(d time.Duration) RedisOption {
	return func(r *RedisSnapshot) { r.maxAge = d }
}

func WithSnapshotLogger(l *applogger.Logger) RedisOption {
	return func(r *RedisSnapshot) {
		if l != nil {
			r.log = l
		}
	}
}

func withClock(now func() time.Time) RedisOption {
	return func(r *RedisSnapshot) { r.now = now }
}

func NewRedisSnapshot(client HashReader, prefix string, symbols []string, opts ...RedisOption) *RedisSnapshot {
	r := &RedisSnapshot{
		client:  client,
		prefix:  prefix,
		symbols: symbols,
		now:     time.Now,
		log:     applogger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NextView returns every fresh, valid quote. Missing symbols are left out of the view;
// a Redis error fails the whole view.
func (r *RedisSnapshot) NextView(ctx context.Context) (models.MarketView, error) {
	now := r.now().UTC()
	quotes := make(map[string]models.Quote, len(r.symbols))
	for _, sym := range r.symbols {
		fields, err := r.client.HGetAll(ctx, cache.Key(r.prefix, sym)).Result()
		if err != nil {
			return models.MarketView{}, fmt.Errorf("redis snapshot %s: %w", sym, err)
		}
		if len(fields) == 0 {
			continue
		}
		q, err := parseQuote(fields)
		if err != nil {
			r.log.Warn("skipping malformed quote", applogger.String("symbol", sym), applogger.Error(err))
			continue
		}
		if r.maxAge > 0 && !q.Time.IsZero() && now.Sub(q.Time) > r.maxAge {
			r.log.Debug("skipping stale quote", applogger.String("symbol", sym), applogger.Duration("age_ms", now.Sub(q.Time)))
			continue
		}
		quotes[sym] = q
	}
	return models.NewMarketView(now, quotes), nil
}

func parseQuote(fields map[string]string) (models.Quote, error) {
	var q models.Quote
	var err error
	if q.Bid, err = strconv.ParseFloat(fields["bid"], 64); err != nil {
		return q, fmt.Errorf("bid: %w", err)
	}
	if q.Ask, err = strconv.ParseFloat(fields["ask"], 64); err != nil {
		return q, fmt.Errorf("ask: %w", err)
	}
	if v, ok := fields["volume"]; ok && v != "" {
		if q.Volume, err = strconv.ParseFloat(v, 64); err != nil {
			return q, fmt.Errorf("volume: %w", err)
		}
	}
	if ts, ok := fields["ts"]; ok && ts != "" {
		ms, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return q, fmt.Errorf("ts: %w", err)
		}
		q.Time = time.UnixMilli(ms).UTC()
	}
	if !q.Valid() {
		return q, fmt.Errorf("invalid quote %v/%v", q.Bid, q.Ask)
	}
	return q, nil
}
