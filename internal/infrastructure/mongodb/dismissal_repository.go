package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	"github.com/wms-platform/pharmacy-inventory/pkg/metrics"
	pkgmongo "github.com/wms-platform/pharmacy-inventory/pkg/mongodb"
)

// DismissalCollection is the collection holding dismissal records
const DismissalCollection = "alert_dismissals"

// DefaultDismissalTTL bounds how long an abandoned session's records survive
const DefaultDismissalTTL = 24 * time.Hour

// DismissalRepository implements domain.DismissalRepository using MongoDB
type DismissalRepository struct {
	collection *mongo.Collection
	metrics    *metrics.Metrics
}

// NewDismissalRepository creates a new DismissalRepository. m may be nil.
func NewDismissalRepository(db *mongo.Database, m *metrics.Metrics) *DismissalRepository {
	return &DismissalRepository{
		collection: db.Collection(DismissalCollection),
		metrics:    m,
	}
}

var _ domain.ExpiringDismissalRepository = (*DismissalRepository)(nil)

// EnsureIndexes creates the unique (sessionId, alertKey) index and the
// TTL index that expires records ttl after dismissal
func (r *DismissalRepository) EnsureIndexes(ctx context.Context, ttl time.Duration) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "sessionId", Value: 1}, {Key: "alertKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create dismissal index: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultDismissalTTL
	}
	return pkgmongo.EnsureTTLIndex(ctx, r.collection, "dismissedAt", ttl)
}

// Save upserts the record for its session and alert key
func (r *DismissalRepository) Save(ctx context.Context, record *domain.AlertDismissalRecord) error {
	filter := bson.M{"sessionId": record.SessionID, "alertKey": record.AlertKey}
	opts := options.Replace().SetUpsert(true)

	_, err := r.collection.ReplaceOne(ctx, filter, record, opts)
	r.record("save", err)
	if err != nil {
		return fmt.Errorf("failed to save dismissal: %w", err)
	}
	return nil
}

// FindBySession returns the session's records ordered by alert key
func (r *DismissalRepository) FindBySession(ctx context.Context, sessionID string) ([]*domain.AlertDismissalRecord, error) {
	opts := options.Find().SetSort(bson.D{{Key: "alertKey", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"sessionId": sessionID}, opts)
	if err != nil {
		r.record("find", err)
		return nil, fmt.Errorf("failed to find dismissals: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]*domain.AlertDismissalRecord, 0)
	err = cursor.All(ctx, &records)
	r.record("find", err)
	if err != nil {
		return nil, fmt.Errorf("failed to decode dismissals: %w", err)
	}
	return records, nil
}

// DeleteBySession removes every record of the session
func (r *DismissalRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"sessionId": sessionID})
	r.record("delete", err)
	if err != nil {
		return fmt.Errorf("failed to delete dismissals: %w", err)
	}
	return nil
}

// ExpiresRecords reports that the TTL index removes abandoned records
func (r *DismissalRepository) ExpiresRecords() bool {
	return true
}

func (r *DismissalRepository) record(operation string, err error) {
	if r.metrics != nil {
		r.metrics.RecordMongoDBOperation(DismissalCollection, operation, err == nil)
	}
}
