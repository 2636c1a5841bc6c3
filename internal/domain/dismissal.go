package domain

import (
	"context"
	"time"
)

// DismissalMetadata describes what the user saw when dismissing an alert
type DismissalMetadata struct {
	ProductNames []string `json:"productNames" bson:"productNames"`
	Count        int      `json:"count" bson:"count"`
}

// AlertDismissalRecord silences one alert class for the rest of a session
type AlertDismissalRecord struct {
	SessionID   string            `json:"sessionId" bson:"sessionId"`
	AlertKey    AlertKey          `json:"alertKey" bson:"alertKey"`
	Kind        string            `json:"kind" bson:"kind"`
	Detail      string            `json:"detail" bson:"detail"`
	DismissedAt time.Time         `json:"dismissedAt" bson:"dismissedAt"`
	Metadata    DismissalMetadata `json:"metadata" bson:"metadata"`
}

// DismissalRepository stores dismissal records per session
type DismissalRepository interface {
	// Save inserts or replaces the record for (SessionID, AlertKey)
	Save(ctx context.Context, record *AlertDismissalRecord) error
	FindBySession(ctx context.Context, sessionID string) ([]*AlertDismissalRecord, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

// ExpiringDismissalRepository is implemented by stores that expire records
// on their own. Records in other stores are deleted when their session is
// evicted.
type ExpiringDismissalRepository interface {
	DismissalRepository
	ExpiresRecords() bool
}
