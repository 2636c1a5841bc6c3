package mongodb

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/wms-platform/pharmacy-inventory/internal/domain"
	testutil "github.com/wms-platform/pharmacy-inventory/pkg/testing"
)

type DismissalRepositoryIntegrationTestSuite struct {
	suite.Suite
	container *testutil.MongoDBContainer
	client    *mongo.Client
	db        *mongo.Database
	repo      *DismissalRepository
	ctx       context.Context
}

func (s *DismissalRepositoryIntegrationTestSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := testutil.NewMongoDBContainer(s.ctx)
	s.Require().NoError(err)
	s.container = container

	client, err := container.GetClient(s.ctx)
	s.Require().NoError(err)
	s.client = client

	s.db = client.Database("pharmacy_inventory_test")
	s.repo = NewDismissalRepository(s.db, nil)
	s.Require().NoError(s.repo.EnsureIndexes(s.ctx, time.Hour))
}

func (s *DismissalRepositoryIntegrationTestSuite) TearDownSuite() {
	if s.client != nil {
		_ = s.client.Disconnect(s.ctx)
	}
	if s.container != nil {
		s.Require().NoError(s.container.Close(s.ctx))
	}
}

func (s *DismissalRepositoryIntegrationTestSuite) TearDownTest() {
	_, _ = s.db.Collection(DismissalCollection).DeleteMany(s.ctx, bson.M{})
}

func TestDismissalRepositoryIntegrationTestSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	suite.Run(t, new(DismissalRepositoryIntegrationTestSuite))
}

func (s *DismissalRepositoryIntegrationTestSuite) dismissal(sessionID string, key domain.AlertKey, count int) *domain.AlertDismissalRecord {
	return &domain.AlertDismissalRecord{
		SessionID:   sessionID,
		AlertKey:    key,
		Kind:        "warning",
		Detail:      "dismissed from dashboard",
		DismissedAt: time.Now().UTC().Truncate(time.Millisecond),
		Metadata:    domain.DismissalMetadata{ProductNames: []string{"Amoxicillin"}, Count: count},
	}
}

func (s *DismissalRepositoryIntegrationTestSuite) TestSave_UpsertsPerSessionAndKey() {
	s.Require().NoError(s.repo.Save(s.ctx, s.dismissal("s1", domain.AlertLowStock, 1)))
	s.Require().NoError(s.repo.Save(s.ctx, s.dismissal("s1", domain.AlertLowStock, 3)))
	s.Require().NoError(s.repo.Save(s.ctx, s.dismissal("s1", domain.AlertExpired, 2)))

	records, err := s.repo.FindBySession(s.ctx, "s1")
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(domain.AlertExpired, records[0].AlertKey)
	s.Equal(domain.AlertLowStock, records[1].AlertKey)
	s.Equal(3, records[1].Metadata.Count)
	s.Equal([]string{"Amoxicillin"}, records[1].Metadata.ProductNames)
}

func (s *DismissalRepositoryIntegrationTestSuite) TestDeleteBySession_LeavesOtherSessions() {
	s.Require().NoError(s.repo.Save(s.ctx, s.dismissal("s1", domain.AlertOutOfStock, 1)))
	s.Require().NoError(s.repo.Save(s.ctx, s.dismissal("s2", domain.AlertOutOfStock, 1)))

	s.Require().NoError(s.repo.DeleteBySession(s.ctx, "s1"))

	gone, err := s.repo.FindBySession(s.ctx, "s1")
	s.Require().NoError(err)
	s.Empty(gone)

	kept, err := s.repo.FindBySession(s.ctx, "s2")
	s.Require().NoError(err)
	s.Len(kept, 1)
}
