package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
)

// DismissalRepository keeps dismissal records in process memory. Records
// live until their session ends or is evicted as idle.
type DismissalRepository struct {
	mu       sync.RWMutex
	sessions map[string]map[domain.AlertKey]domain.AlertDismissalRecord
}

// NewDismissalRepository creates an empty DismissalRepository
func NewDismissalRepository() *DismissalRepository {
	return &DismissalRepository{
		sessions: make(map[string]map[domain.AlertKey]domain.AlertDismissalRecord),
	}
}

var _ domain.DismissalRepository = (*DismissalRepository)(nil)

// Save inserts or replaces the record for its session and alert key
func (r *DismissalRepository) Save(ctx context.Context, record *domain.AlertDismissalRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	records, ok := r.sessions[record.SessionID]
	if !ok {
		records = make(map[domain.AlertKey]domain.AlertDismissalRecord)
		r.sessions[record.SessionID] = records
	}
	records[record.AlertKey] = cloneRecord(*record)
	return nil
}

// FindBySession returns the session's records ordered by alert key
func (r *DismissalRepository) FindBySession(ctx context.Context, sessionID string) ([]*domain.AlertDismissalRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	records := r.sessions[sessionID]
	out := make([]*domain.AlertDismissalRecord, 0, len(records))
	for _, record := range records {
		copied := cloneRecord(record)
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AlertKey < out[j].AlertKey })
	return out, nil
}

// DeleteBySession removes every record of the session
func (r *DismissalRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}

// SessionCount returns the number of sessions holding at least one record
func (r *DismissalRepository) SessionCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func cloneRecord(record domain.AlertDismissalRecord) domain.AlertDismissalRecord {
	record.Metadata.ProductNames = append([]string(nil), record.Metadata.ProductNames...)
	return record
}
