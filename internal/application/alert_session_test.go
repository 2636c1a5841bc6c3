package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
)

func testSummary() domain.AlertSummary {
	products := []domain.Product{
		{ID: "1", Name: "Amoxicillin", Quantity: 3},
		{ID: "2", Name: "Cetirizine", Quantity: 0},
		{ID: "3", Name: "Insulin", Quantity: 40, ExpirationDate: daysFromToday(-2)},
	}
	return domain.EvaluateAlerts(products, domain.DefaultAlertThresholds(), testToday)
}

func keys(notifications []Notification) []domain.AlertKey {
	out := make([]domain.AlertKey, len(notifications))
	for i, n := range notifications {
		out[i] = n.Key
	}
	return out
}

func TestAlertSession_PresentsEachClassOncePerScreen(t *testing.T) {
	registry := NewSessionRegistry(nil, testLogger())
	session, err := registry.Start(context.Background(), "s1")
	require.NoError(t, err)

	summary := testSummary()
	first := session.Present("inventory", summary, nil)
	assert.Equal(t, []domain.AlertKey{domain.AlertLowStock, domain.AlertOutOfStock, domain.AlertExpired}, keys(first))

	again := session.Present("inventory", summary, nil)
	assert.Empty(t, again)

	other := session.Present("dashboard", summary, nil)
	assert.Len(t, other, 3)
}

func TestAlertSession_CountReportedRegardlessOfDismissal(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(nil, testLogger())
	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)

	summary := testSummary()
	for _, key := range domain.AlertKeys {
		_, err := session.DismissAlert(ctx, key, key.Kind(), "", domain.DismissalMetadata{})
		require.NoError(t, err)
	}

	var reported []int
	listener := func(total int) { reported = append(reported, total) }

	assert.Empty(t, session.Present("inventory", summary, listener))
	assert.Empty(t, session.Present("inventory", summary, listener))
	assert.Equal(t, []int{3, 3}, reported)
}

func TestAlertSession_DismissIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDismissalRepo()
	registry := NewSessionRegistry(repo, testLogger())
	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)

	_, err = session.DismissAlert(ctx, domain.AlertLowStock, "warning", "1 product is low on stock: A", domain.DismissalMetadata{ProductNames: []string{"A"}, Count: 1})
	require.NoError(t, err)
	_, err = session.DismissAlert(ctx, domain.AlertLowStock, "warning", "2 products are low on stock: A, B", domain.DismissalMetadata{ProductNames: []string{"A", "B"}, Count: 2})
	require.NoError(t, err)

	assert.True(t, session.IsAlertDismissed(domain.AlertLowStock))
	assert.False(t, session.IsAlertDismissed(domain.AlertExpired))

	dismissals := session.Dismissals()
	require.Len(t, dismissals, 1)
	assert.Equal(t, 2, dismissals[0].Metadata.Count)
	assert.Equal(t, 1, repo.count("s1"))
}

func TestAlertSession_DismissedClassNotPresented(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(nil, testLogger())
	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)

	_, err = session.DismissAlert(ctx, domain.AlertOutOfStock, "error", "", domain.DismissalMetadata{})
	require.NoError(t, err)

	got := session.Present("inventory", testSummary(), nil)
	assert.Equal(t, []domain.AlertKey{domain.AlertLowStock, domain.AlertExpired}, keys(got))
}

func TestAlertSession_EmptyClassIsNotPresented(t *testing.T) {
	registry := NewSessionRegistry(nil, testLogger())
	session, err := registry.Start(context.Background(), "s1")
	require.NoError(t, err)

	summary := domain.EvaluateAlerts(nil, domain.DefaultAlertThresholds(), testToday)
	total := -1
	assert.Empty(t, session.Present("inventory", summary, func(n int) { total = n }))
	assert.Equal(t, 0, total)
}

func TestSessionRegistry_SessionsAreIndependent(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(nil, testLogger())
	a, err := registry.Start(ctx, "a")
	require.NoError(t, err)
	b, err := registry.Start(ctx, "b")
	require.NoError(t, err)

	_, err = a.DismissAlert(ctx, domain.AlertLowStock, "warning", "", domain.DismissalMetadata{})
	require.NoError(t, err)

	assert.True(t, a.IsAlertDismissed(domain.AlertLowStock))
	assert.False(t, b.IsAlertDismissed(domain.AlertLowStock))

	same, err := registry.Start(ctx, "a")
	require.NoError(t, err)
	assert.Same(t, a, same)
}

func TestSessionRegistry_StartRestoresPersistedDismissals(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDismissalRepo()
	require.NoError(t, repo.Save(ctx, &domain.AlertDismissalRecord{SessionID: "s1", AlertKey: domain.AlertExpired}))

	registry := NewSessionRegistry(repo, testLogger())
	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)

	assert.True(t, session.IsAlertDismissed(domain.AlertExpired))
}

func TestSessionRegistry_EndClearsDismissals(t *testing.T) {
	ctx := context.Background()
	repo := newFakeDismissalRepo()
	registry := NewSessionRegistry(repo, testLogger())
	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)
	_, err = session.DismissAlert(ctx, domain.AlertLowStock, "warning", "", domain.DismissalMetadata{})
	require.NoError(t, err)

	require.NoError(t, registry.End(ctx, "s1"))
	assert.Equal(t, 0, repo.count("s1"))
	assert.Equal(t, 0, registry.Count())

	fresh, err := registry.Start(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, fresh.IsAlertDismissed(domain.AlertLowStock))
	assert.Len(t, fresh.Present("inventory", testSummary(), nil), 3)
}

func TestSessionRegistry_RequiresSessionID(t *testing.T) {
	registry := NewSessionRegistry(nil, testLogger())
	_, err := registry.Start(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrSessionRequired)
}

func TestSessionRegistry_EvictIdle(t *testing.T) {
	now := testToday
	registry := NewSessionRegistry(nil, testLogger())
	registry.clock = func() time.Time { return now }

	_, err := registry.Start(context.Background(), "old")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = registry.Start(context.Background(), "new")
	require.NoError(t, err)

	assert.Equal(t, 1, registry.EvictIdle(context.Background(), time.Hour))
	_, ok := registry.Get("old")
	assert.False(t, ok)
	_, ok = registry.Get("new")
	assert.True(t, ok)
}

type expiringDismissalRepo struct {
	*fakeDismissalRepo
}

func (expiringDismissalRepo) ExpiresRecords() bool { return true }

func TestSessionRegistry_EvictIdleDeletesDismissals(t *testing.T) {
	ctx := context.Background()
	now := testToday
	repo := newFakeDismissalRepo()
	registry := NewSessionRegistry(repo, testLogger())
	registry.clock = func() time.Time { return now }

	for i := 0; i < 50; i++ {
		session, err := registry.Start(ctx, fmt.Sprintf("client-%d", i))
		require.NoError(t, err)
		_, err = session.DismissAlert(ctx, domain.AlertLowStock, "warning", "", domain.DismissalMetadata{})
		require.NoError(t, err)
	}
	require.Equal(t, 50, repo.sessionCount())

	now = now.Add(time.Hour)
	assert.Equal(t, 50, registry.EvictIdle(ctx, time.Minute))
	assert.Equal(t, 0, registry.Count())
	assert.Equal(t, 0, repo.sessionCount())
}

func TestSessionRegistry_EvictIdleLeavesExpiringStore(t *testing.T) {
	ctx := context.Background()
	now := testToday
	repo := expiringDismissalRepo{newFakeDismissalRepo()}
	registry := NewSessionRegistry(repo, testLogger())
	registry.clock = func() time.Time { return now }

	session, err := registry.Start(ctx, "s1")
	require.NoError(t, err)
	_, err = session.DismissAlert(ctx, domain.AlertExpired, "error", "", domain.DismissalMetadata{})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, registry.EvictIdle(ctx, time.Minute))
	assert.Equal(t, 1, repo.count("s1"))
}

type slowDismissalRepo struct {
	*fakeDismissalRepo
	entered chan struct{}
	release chan struct{}
}

func (r slowDismissalRepo) FindBySession(ctx context.Context, sessionID string) ([]*domain.AlertDismissalRecord, error) {
	if sessionID == "slow" {
		close(r.entered)
		<-r.release
	}
	return r.fakeDismissalRepo.FindBySession(ctx, sessionID)
}

func TestSessionRegistry_SlowLoadDoesNotBlockOtherSessions(t *testing.T) {
	ctx := context.Background()
	repo := slowDismissalRepo{fakeDismissalRepo: newFakeDismissalRepo(), entered: make(chan struct{}), release: make(chan struct{})}
	registry := NewSessionRegistry(repo, testLogger())

	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		_, _ = registry.Start(ctx, "slow")
	}()
	<-repo.entered

	fastDone := make(chan error, 1)
	go func() {
		_, err := registry.Start(ctx, "fast")
		fastDone <- err
	}()

	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start blocked behind another session's load")
	}

	close(repo.release)
	<-slowDone
	assert.Equal(t, 2, registry.Count())
}
