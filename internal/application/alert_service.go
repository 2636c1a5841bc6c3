package application

import (
	"context"
	"sync"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
)

// AlertRules holds the default thresholds and per-screen overrides
type AlertRules struct {
	Default domain.AlertThresholds            `json:"default" yaml:"default"`
	Screens map[string]domain.AlertThresholds `json:"screens" yaml:"screens"`
}

// DefaultAlertRules returns the rules used when no rules file is configured
func DefaultAlertRules() AlertRules {
	return AlertRules{
		Default: domain.DefaultAlertThresholds(),
		Screens: map[string]domain.AlertThresholds{},
	}
}

// For returns the thresholds of screen. Zero fields of an override fall
// back to the defaults.
func (r AlertRules) For(screen string) domain.AlertThresholds {
	thresholds := r.Default
	override, ok := r.Screens[screen]
	if !ok {
		return thresholds
	}
	if override.LowStockThreshold > 0 {
		thresholds.LowStockThreshold = override.LowStockThreshold
	}
	if override.ExpiryWarningDays > 0 {
		thresholds.ExpiryWarningDays = override.ExpiryWarningDays
	}
	return thresholds
}

// AlertsView is what a screen receives when it asks for alerts
type AlertsView struct {
	SessionID     string              `json:"sessionId"`
	Screen        string              `json:"screen"`
	TotalCount    int                 `json:"totalCount"`
	Summary       domain.AlertSummary `json:"summary"`
	Notifications []Notification      `json:"notifications"`
	Dismissed     []domain.AlertKey   `json:"dismissed"`
	DataLoaded    bool                `json:"dataLoaded"`
	LastError     *RefreshError       `json:"lastError,omitempty"`
}

// AlertService evaluates product alerts and gates them per session
type AlertService struct {
	products  *Controller[domain.Product]
	sessions  *SessionRegistry
	rules     AlertRules
	publisher EventPublisher
	logger    *logging.Logger
	metrics   *metrics.Metrics
	clock     func() time.Time

	mu           sync.Mutex
	fingerprints map[domain.AlertKey]string
}

// NewAlertService creates a new AlertService and subscribes it to product
// refreshes. publisher and m may be nil.
func NewAlertService(
	products *Controller[domain.Product],
	sessions *SessionRegistry,
	rules AlertRules,
	publisher EventPublisher,
	logger *logging.Logger,
	m *metrics.Metrics,
) *AlertService {
	s := &AlertService{
		products:     products,
		sessions:     sessions,
		rules:        rules,
		publisher:    publisher,
		logger:       logger.WithComponent("alert-service"),
		metrics:      m,
		clock:        time.Now,
		fingerprints: make(map[domain.AlertKey]string),
	}
	products.OnRefresh(s.onProductsRefreshed)
	return s
}

// Rules returns the configured alert rules
func (s *AlertService) Rules() AlertRules {
	return s.rules
}

// Evaluate classifies the current products with the thresholds of screen
func (s *AlertService) Evaluate(screen string) domain.AlertSummary {
	return domain.EvaluateAlerts(s.products.Records(), s.rules.For(screen), s.clock())
}

// AlertsForSession evaluates alerts for screen and passes them through the
// session gate.
func (s *AlertService) AlertsForSession(ctx context.Context, sessionID, screen string) (*AlertsView, error) {
	session, err := s.sessions.Start(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	snapshot := s.products.Snapshot()
	summary := domain.EvaluateAlerts(snapshot.Records, s.rules.For(screen), s.clock())

	view := &AlertsView{
		SessionID:  sessionID,
		Screen:     screen,
		Summary:    summary,
		Dismissed:  []domain.AlertKey{},
		DataLoaded: snapshot.Loaded,
		LastError:  snapshot.LastError,
	}
	view.Notifications = session.Present(screen, summary, func(total int) {
		view.TotalCount = total
	})
	for _, record := range session.Dismissals() {
		view.Dismissed = append(view.Dismissed, record.AlertKey)
	}

	if s.metrics != nil {
		for _, n := range view.Notifications {
			s.metrics.RecordNotificationPresented(screen, string(n.Key))
		}
	}
	return view, nil
}

// Dismiss silences an alert class for the session. The stored details
// describe the class as evaluated for screen.
func (s *AlertService) Dismiss(ctx context.Context, cmd DismissAlertCommand) (*domain.AlertDismissalRecord, error) {
	key, err := domain.ParseAlertKey(cmd.AlertKey)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.Start(ctx, cmd.SessionID)
	if err != nil {
		return nil, err
	}

	class := s.Evaluate(cmd.Screen).Class(key)
	record, err := session.DismissAlert(ctx, key, key.Kind(), class.DetailText(), domain.DismissalMetadata{
		ProductNames: class.ProductNames(),
		Count:        class.Count,
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordAlertDismissed(string(key))
	}
	s.logger.Audit(ctx, "dismiss", "alert", string(key), map[string]any{
		"sessionId": cmd.SessionID,
		"count":     class.Count,
	})
	return record, nil
}

// EndSession discards a session and its dismissals
func (s *AlertService) EndSession(ctx context.Context, sessionID string) error {
	return s.sessions.End(ctx, sessionID)
}

// onProductsRefreshed updates the alert gauges and publishes an event for
// every class whose membership changed since the previous refresh.
func (s *AlertService) onProductsRefreshed(ctx context.Context, products []domain.Product) {
	summary := domain.EvaluateAlerts(products, s.rules.Default, s.clock())

	var changed []domain.AlertClass
	s.mu.Lock()
	for _, class := range summary.Classes {
		fingerprint := class.Fingerprint()
		if s.fingerprints[class.Key] != fingerprint {
			s.fingerprints[class.Key] = fingerprint
			changed = append(changed, class)
		}
	}
	s.mu.Unlock()

	if s.metrics != nil {
		for _, class := range summary.Classes {
			s.metrics.SetAlertProducts(string(class.Key), class.Count)
		}
	}

	if s.publisher == nil {
		return
	}
	for _, class := range changed {
		event := domain.NewAlertMembershipChangedEvent(class, summary.EvaluatedAt)
		if err := s.publisher.PublishAlertChanged(ctx, event); err != nil {
			s.logger.WithError(err).Warn("Failed to publish alert event", "alert", class.Key)
		}
	}
}
