package application

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/logging"
)

// AlertCountListener receives the aggregate alert count of every evaluation
type AlertCountListener func(total int)

// Notification is an alert class surfaced to the user
type Notification struct {
	Key          domain.AlertKey `json:"key"`
	Kind         string          `json:"kind"`
	Count        int             `json:"count"`
	Detail       string          `json:"detail"`
	ProductNames []string        `json:"productNames"`
}

// AlertSession tracks, for one browser session, which alert classes were
// dismissed and which were already shown on each screen.
type AlertSession struct {
	id    string
	repo  domain.DismissalRepository
	clock func() time.Time

	mu        sync.Mutex
	dismissed map[domain.AlertKey]*domain.AlertDismissalRecord
	shown     map[string]map[domain.AlertKey]bool
	lastSeen  time.Time
}

func newAlertSession(id string, repo domain.DismissalRepository, clock func() time.Time) *AlertSession {
	return &AlertSession{
		id:        id,
		repo:      repo,
		clock:     clock,
		dismissed: make(map[domain.AlertKey]*domain.AlertDismissalRecord),
		shown:     make(map[string]map[domain.AlertKey]bool),
		lastSeen:  clock(),
	}
}

// ID returns the session ID
func (s *AlertSession) ID() string {
	return s.id
}

// IsAlertDismissed reports whether key was dismissed in this session
func (s *AlertSession) IsAlertDismissed(key domain.AlertKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.dismissed[key]
	return ok
}

// Dismissals returns the session's dismissal records in alert key order
func (s *AlertSession) Dismissals() []*domain.AlertDismissalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make([]*domain.AlertDismissalRecord, 0, len(s.dismissed))
	for _, key := range domain.AlertKeys {
		if record, ok := s.dismissed[key]; ok {
			copied := *record
			records = append(records, &copied)
		}
	}
	return records
}

// DismissAlert silences key for the rest of the session. Dismissing again
// only replaces the stored details.
func (s *AlertSession) DismissAlert(ctx context.Context, key domain.AlertKey, kind, detail string, metadata domain.DismissalMetadata) (*domain.AlertDismissalRecord, error) {
	record := &domain.AlertDismissalRecord{
		SessionID:   s.id,
		AlertKey:    key,
		Kind:        kind,
		Detail:      detail,
		DismissedAt: s.clock(),
		Metadata:    metadata,
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, record); err != nil {
			return nil, fmt.Errorf("failed to save dismissal: %w", err)
		}
	}

	s.mu.Lock()
	s.dismissed[key] = record
	s.lastSeen = record.DismissedAt
	s.mu.Unlock()
	return record, nil
}

// Present decides which classes of summary to surface on screen. The
// listener always receives the total count, dismissals notwithstanding. A
// non-empty class is returned only if it is not dismissed and was not
// already presented on this screen.
func (s *AlertSession) Present(screen string, summary domain.AlertSummary, listener AlertCountListener) []Notification {
	if listener != nil {
		listener(summary.TotalCount())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = s.clock()

	shown := s.shown[screen]
	if shown == nil {
		shown = make(map[domain.AlertKey]bool)
		s.shown[screen] = shown
	}

	notifications := []Notification{}
	for _, class := range summary.Classes {
		if class.Count == 0 || shown[class.Key] {
			continue
		}
		if _, dismissed := s.dismissed[class.Key]; dismissed {
			continue
		}
		shown[class.Key] = true
		notifications = append(notifications, Notification{
			Key:          class.Key,
			Kind:         class.Kind,
			Count:        class.Count,
			Detail:       class.DetailText(),
			ProductNames: class.ProductNames(),
		})
	}
	return notifications
}

// Reset forgets dismissals and presented screens
func (s *AlertSession) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dismissed = make(map[domain.AlertKey]*domain.AlertDismissalRecord)
	s.shown = make(map[string]map[domain.AlertKey]bool)
}

func (s *AlertSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// SessionRegistry owns the live alert sessions
type SessionRegistry struct {
	repo   domain.DismissalRepository
	logger *logging.Logger
	clock  func() time.Time

	mu       sync.Mutex
	sessions map[string]*AlertSession
}

// NewSessionRegistry creates a new SessionRegistry
func NewSessionRegistry(repo domain.DismissalRepository, logger *logging.Logger) *SessionRegistry {
	return &SessionRegistry{
		repo:     repo,
		logger:   logger.WithComponent("session-registry"),
		clock:    time.Now,
		sessions: make(map[string]*AlertSession),
	}
}

// Start returns the session with the given ID, creating it when needed. A
// new session is seeded with the dismissals persisted for its ID. The store
// is read outside the registry lock.
func (r *SessionRegistry) Start(ctx context.Context, sessionID string) (*AlertSession, error) {
	if sessionID == "" {
		return nil, domain.ErrSessionRequired
	}

	if session, ok := r.Get(sessionID); ok {
		return session, nil
	}

	session := newAlertSession(sessionID, r.repo, r.clock)
	if r.repo != nil {
		records, err := r.repo.FindBySession(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dismissals: %w", err)
		}
		for _, record := range records {
			session.dismissed[record.AlertKey] = record
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.sessions[sessionID]; ok {
		return existing, nil
	}
	r.sessions[sessionID] = session
	r.logger.Debug("Alert session started", "sessionId", sessionID, "dismissals", len(session.dismissed))
	return session, nil
}

// Get returns a live session
func (r *SessionRegistry) Get(sessionID string) (*AlertSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// End discards the session and its persisted dismissals
func (r *SessionRegistry) End(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.ErrSessionRequired
	}

	r.mu.Lock()
	session, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	if ok {
		session.Reset()
	}
	if r.repo != nil {
		if err := r.repo.DeleteBySession(ctx, sessionID); err != nil {
			return fmt.Errorf("failed to delete dismissals: %w", err)
		}
	}
	r.logger.Debug("Alert session ended", "sessionId", sessionID)
	return nil
}

// EvictIdle drops sessions not used for maxIdle. Their persisted dismissals
// are deleted too, unless the store expires records by itself.
func (r *SessionRegistry) EvictIdle(ctx context.Context, maxIdle time.Duration) int {
	cutoff := r.clock().Add(-maxIdle)

	r.mu.Lock()
	var evicted []string
	for id, session := range r.sessions {
		if session.idleSince().Before(cutoff) {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	r.mu.Unlock()

	if len(evicted) == 0 {
		return 0
	}

	if r.repo != nil && !expiresRecords(r.repo) {
		for _, id := range evicted {
			if err := r.repo.DeleteBySession(ctx, id); err != nil {
				r.logger.WithError(err).Warn("Failed to delete dismissals of evicted session", "sessionId", id)
			}
		}
	}
	r.logger.Info("Evicted idle alert sessions", "count", len(evicted))
	return len(evicted)
}

func expiresRecords(repo domain.DismissalRepository) bool {
	expiring, ok := repo.(domain.ExpiringDismissalRepository)
	return ok && expiring.ExpiresRecords()
}

// Count returns the number of live sessions
func (r *SessionRegistry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
