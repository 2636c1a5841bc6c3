package application

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/wms-platform/pharmacy-inventory/pkg/errors"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
)

// Refresh triggers
const (
	TriggerStartup = "startup"
	TriggerPoll    = "poll"
	TriggerPush    = "push"
	TriggerManual  = "manual"
	TriggerAction  = "action"
)

// DefaultFetchTimeout bounds a single controller fetch
const DefaultFetchTimeout = 8 * time.Second

// FetchFunc loads every record of a resource
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// ControllerConfig configures a Controller
type ControllerConfig[T any] struct {
	Name    string
	Fetch   FetchFunc[T]
	Key     func(T) string
	Timeout time.Duration
}

// RefreshError is the user-facing error of the last failed refresh
type RefreshError struct {
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Snapshot is a consistent copy of a controller's state
type Snapshot[T any] struct {
	Records     []T           `json:"-"`
	Loaded      bool          `json:"loaded"`
	RefreshedAt time.Time     `json:"refreshedAt"`
	LastError   *RefreshError `json:"lastError,omitempty"`
}

// Controller holds the last good copy of a remote resource. Each refresh
// takes a token from a monotonic counter and a response is only applied
// when no later request has been applied before it. A failed refresh keeps
// the previous records and is never retried automatically.
type Controller[T any] struct {
	config  ControllerConfig[T]
	logger  *logging.Logger
	metrics *metrics.Metrics
	clock   func() time.Time

	mu           sync.RWMutex
	nextToken    uint64
	appliedToken uint64
	records      []T
	loaded       bool
	refreshedAt  time.Time
	lastError    *RefreshError
	listeners    []func(ctx context.Context, records []T)
}

// NewController creates a new Controller
func NewController[T any](config ControllerConfig[T], logger *logging.Logger, m *metrics.Metrics) *Controller[T] {
	if config.Timeout <= 0 {
		config.Timeout = DefaultFetchTimeout
	}
	return &Controller[T]{
		config:  config,
		logger:  logger.WithComponent(config.Name + "-controller"),
		metrics: m,
		clock:   time.Now,
		records: []T{},
	}
}

// Name returns the controller name
func (c *Controller[T]) Name() string {
	return c.config.Name
}

// OnRefresh registers fn to run after each applied successful refresh.
// Listeners must be registered before the first refresh.
func (c *Controller[T]) OnRefresh(fn func(ctx context.Context, records []T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Refresh fetches the resource and applies the result unless a newer
// request has already been applied. The fetch error is returned even when
// the previous records are kept.
func (c *Controller[T]) Refresh(ctx context.Context, trigger string) error {
	token := c.issueToken()

	fetchCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	records, err := c.config.Fetch(fetchCtx)
	cancel()

	return c.apply(ctx, token, trigger, records, err)
}

func (c *Controller[T]) issueToken() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextToken++
	return c.nextToken
}

func (c *Controller[T]) apply(ctx context.Context, token uint64, trigger string, records []T, fetchErr error) error {
	c.mu.Lock()
	if token <= c.appliedToken {
		c.mu.Unlock()
		c.logger.FetchApplied(ctx, c.config.Name, token, len(records), true)
		if c.metrics != nil {
			c.metrics.RecordStaleResponse(c.config.Name)
		}
		return fetchErr
	}
	c.appliedToken = token

	if fetchErr != nil {
		appErr := errors.FromError(fetchErr)
		c.lastError = &RefreshError{
			Code:       appErr.Code,
			Message:    appErr.Message,
			OccurredAt: c.clock(),
		}
		c.mu.Unlock()

		c.logger.WithError(fetchErr).Warn("Refresh failed, keeping last good data",
			"controller", c.config.Name,
			"trigger", trigger,
			"code", appErr.Code,
		)
		if c.metrics != nil {
			c.metrics.RecordRefresh(c.config.Name, trigger, false)
		}
		return fetchErr
	}

	if c.config.Key != nil {
		records = Dedupe(records, c.config.Key)
	}
	if records == nil {
		records = []T{}
	}
	c.records = records
	c.loaded = true
	c.refreshedAt = c.clock()
	c.lastError = nil
	listeners := c.listeners
	c.mu.Unlock()

	c.logger.FetchApplied(ctx, c.config.Name, token, len(records), false)
	if c.metrics != nil {
		c.metrics.RecordRefresh(c.config.Name, trigger, true)
		c.metrics.SetControllerRecords(c.config.Name, len(records))
	}

	for _, fn := range listeners {
		fn(ctx, cloneSlice(records))
	}
	return nil
}

// Snapshot returns a copy of the current state
func (c *Controller[T]) Snapshot() Snapshot[T] {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot[T]{
		Records:     cloneSlice(c.records),
		Loaded:      c.loaded,
		RefreshedAt: c.refreshedAt,
	}
	if c.lastError != nil {
		lastErr := *c.lastError
		snap.LastError = &lastErr
	}
	return snap
}

// Records returns a copy of the current records
func (c *Controller[T]) Records() []T {
	return c.Snapshot().Records
}

// LastError returns the error of the last applied refresh, if it failed
func (c *Controller[T]) LastError() *RefreshError {
	return c.Snapshot().LastError
}

func cloneSlice[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// Dedupe removes records whose key was already seen, keeping the first
// occurrence and the relative order of the rest.
func Dedupe[T any](items []T, key func(T) string) []T {
	seen := make(map[string]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

// FilterRecords returns the records for which keep is true, in order
func FilterRecords[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

// MatchesSearch reports whether any field contains term, ignoring case.
// An empty term matches everything.
func MatchesSearch(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// InDateRange reports whether t lies within [from, to], comparing calendar
// dates. A nil bound is open. A nil t only matches when both bounds are nil.
func InDateRange(t, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if t == nil {
		return false
	}
	day := civil(*t)
	if from != nil && day.Before(civil(*from)) {
		return false
	}
	if to != nil && day.After(civil(*to)) {
		return false
	}
	return true
}

func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
