package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
)

func record(sessionID string, key domain.AlertKey, names ...string) *domain.AlertDismissalRecord {
	return &domain.AlertDismissalRecord{
		SessionID:   sessionID,
		AlertKey:    key,
		Kind:        "warning",
		DismissedAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
		Metadata:    domain.DismissalMetadata{ProductNames: names, Count: len(names)},
	}
}

func TestDismissalRepository_SaveReplacesPerKey(t *testing.T) {
	repo := NewDismissalRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("s1", domain.AlertOutOfStock, "Cetirizine")))
	require.NoError(t, repo.Save(ctx, record("s1", domain.AlertLowStock, "Amoxicillin")))
	require.NoError(t, repo.Save(ctx, record("s1", domain.AlertLowStock, "Amoxicillin", "Insulin")))

	records, err := repo.FindBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, domain.AlertLowStock, records[0].AlertKey)
	assert.Equal(t, 2, records[0].Metadata.Count)
	assert.Equal(t, domain.AlertOutOfStock, records[1].AlertKey)
}

func TestDismissalRepository_SessionsAreIsolated(t *testing.T) {
	repo := NewDismissalRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, record("s1", domain.AlertExpired)))
	require.NoError(t, repo.Save(ctx, record("s2", domain.AlertExpired)))
	require.NoError(t, repo.DeleteBySession(ctx, "s1"))

	gone, err := repo.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := repo.FindBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	assert.Equal(t, 1, repo.SessionCount())
}

func TestDismissalRepository_ReturnsCopies(t *testing.T) {
	repo := NewDismissalRepository()
	ctx := context.Background()
	original := record("s1", domain.AlertLowStock, "Amoxicillin")
	require.NoError(t, repo.Save(ctx, original))

	original.Metadata.ProductNames[0] = "changed"
	records, err := repo.FindBySession(ctx, "s1")
	require.NoError(t, err)
	records[0].Detail = "mutated"

	again, err := repo.FindBySession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"Amoxicillin"}, again[0].Metadata.ProductNames)
	assert.Empty(t, again[0].Detail)
}
