// Package ratelimit implements the fixed-window request limiter.  Every
// endpoint class has a minute, hour and day window keyed by client
// identifier; a request is admitted only while all three are below their
// thresholds.  Store failures admit the request.
package ratelimit

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
	"github.com/iliyamo/identity-service/internal/config"
	"github.com/iliyamo/identity-service/internal/metrics"
)

// Class names an endpoint class with its own thresholds.
type Class string

const (
	Global Class = "GLOBAL"
	Auth   Class = "AUTH"
	Upload Class = "UPLOAD"
	API    Class = "API"
)

// ParseClass accepts a class name in any case.
func ParseClass(s string) (Class, bool) {
	switch c := Class(strings.ToUpper(strings.TrimSpace(s))); c {
	case Global, Auth, Upload, API:
		return c, true
	}
	return "", false
}

// Window is one fixed counting window.
type Window struct {
	Name     string
	Duration time.Duration
}

// Windows are evaluated in this order.
var Windows = []Window{
	{Name: "minute", Duration: time.Minute},
	{Name: "hour", Duration: time.Hour},
	{Name: "day", Duration: 24 * time.Hour},
}

// WindowByName looks up a window by its key segment.
func WindowByName(name string) (Window, bool) {
	for _, w := range Windows {
		if w.Name == name {
			return w, true
		}
	}
	return Window{}, false
}

// ExceededError reports a blocked request.  It unwraps to a 429 AppError so
// the HTTP error handler needs no special case.
type ExceededError struct {
	Class  Class
	Window string
	Limits config.ClassLimits
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("Rate limit exceeded for %s. Max %d requests per minute, %d per hour, %d per day",
		e.Class, e.Limits.PerMinute, e.Limits.PerHour, e.Limits.PerDay)
}

func (e *ExceededError) Unwrap() error { return apperror.TooManyRequests(e.Message()) }

// Message is the client-facing text for the blocked class.
func (e *ExceededError) Message() string {
	switch e.Class {
	case Global:
		return "Global rate limit exceeded"
	case Auth:
		return "Authentication rate limit exceeded"
	case Upload:
		return "Upload rate limit exceeded"
	}
	return "API rate limit exceeded"
}

// RetryAfter is an upper bound on when the blocked window resets.
func (e *ExceededError) RetryAfter() time.Duration {
	if w, ok := WindowByName(e.Window); ok {
		return w.Duration
	}
	return time.Minute
}

// Limiter checks and counts requests against the configured classes.
type Limiter struct {
	store CounterStore
	cfg   config.RateLimitConfig
	log   *zap.Logger
}

// New builds a Limiter.  A nil store admits every request, which is how the
// service runs when Redis is unreachable at startup.
func New(store CounterStore, cfg config.RateLimitConfig, log *zap.Logger) *Limiter {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "rate_limit"
	}
	return &Limiter{store: store, cfg: cfg, log: log}
}

// Limits returns the thresholds configured for class.
func (l *Limiter) Limits(class Class) config.ClassLimits {
	switch class {
	case Global:
		return l.cfg.Global
	case Auth:
		return l.cfg.Auth
	case Upload:
		return l.cfg.Upload
	case API:
		return l.cfg.API
	}
	return config.ClassLimits{}
}

// Enabled reports whether class is enforced.
func (l *Limiter) Enabled(class Class) bool { return l.Limits(class).Enabled }

// APIPaths returns the path patterns of the API class.
func (l *Limiter) APIPaths() []string { return l.cfg.APIPaths }

// Key builds "<prefix>:<class>:<window>:<identifier>".
func (l *Limiter) Key(class Class, window, id string) string {
	return l.cfg.Prefix + ":" + string(class) + ":" + window + ":" + id
}

func maxFor(lim config.ClassLimits, window string) int {
	switch window {
	case "minute":
		return lim.PerMinute
	case "hour":
		return lim.PerHour
	}
	return lim.PerDay
}

// CheckAndIncrement admits or rejects one request of id in class.  Windows
// are checked minute, hour, day and the first full window stops the
// evaluation.  Disabled classes and store errors admit the request.
func (l *Limiter) CheckAndIncrement(ctx context.Context, class Class, id string) bool {
	ok, _ := l.check(ctx, class, id)
	return ok
}

// CheckAndThrow is CheckAndIncrement returning *ExceededError on rejection.
func (l *Limiter) CheckAndThrow(ctx context.Context, class Class, id string) error {
	if ok, window := l.check(ctx, class, id); !ok {
		return &ExceededError{Class: class, Window: window, Limits: l.Limits(class)}
	}
	return nil
}

func (l *Limiter) check(ctx context.Context, class Class, id string) (bool, string) {
	lim := l.Limits(class)
	if !lim.Enabled || l.store == nil {
		return true, ""
	}
	label := strings.ToLower(string(class))
	for _, w := range Windows {
		key := l.Key(class, w.Name, id)
		limit := maxFor(lim, w.Name)
		ok, err := l.store.Hit(ctx, key, limit, w.Duration)
		if err != nil {
			l.log.Warn("rate limit store error, admitting request",
				zap.String("key", key), zap.Error(err))
			metrics.RateLimitDecisions.WithLabelValues(label, "fail_open").Inc()
			return true, ""
		}
		if !ok {
			if l.cfg.Debug {
				l.log.Info("rate limit exceeded", zap.String("key", key), zap.Int("max", limit))
			}
			metrics.RateLimitDecisions.WithLabelValues(label, "blocked").Inc()
			return false, w.Name
		}
	}
	metrics.RateLimitDecisions.WithLabelValues(label, "allowed").Inc()
	return true, ""
}

// Remaining returns how many requests id may still make in one window of
// class.  A disabled class reports its configured maximum.
func (l *Limiter) Remaining(ctx context.Context, class Class, window, id string) (int64, error) {
	if _, ok := WindowByName(window); !ok {
		return 0, fmt.Errorf("unknown window %q", window)
	}
	limit := int64(maxFor(l.Limits(class), window))
	if l.store == nil {
		return limit, nil
	}
	n, err := l.store.Count(ctx, l.Key(class, window, id))
	if err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if n >= limit {
		return 0, nil
	}
	return limit - n, nil
}

// Reset clears every window of class for id.
func (l *Limiter) Reset(ctx context.Context, class Class, id string) error {
	if l.store == nil {
		return nil
	}
	keys := make([]string, 0, len(Windows))
	for _, w := range Windows {
		keys = append(keys, l.Key(class, w.Name, id))
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

// ClientIdentifier resolves the caller: first hop of X-Forwarded-For, then
// X-Real-IP, then the peer address.  The literal "unknown" is skipped.
func ClientIdentifier(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" && !strings.EqualFold(xff, "unknown") {
		first := strings.TrimSpace(strings.Split(xff, ",")[0])
		if first != "" && !strings.EqualFold(first, "unknown") {
			return first
		}
	}
	if xr := strings.TrimSpace(r.Header.Get("X-Real-IP")); xr != "" && !strings.EqualFold(xr, "unknown") {
		return xr
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}
