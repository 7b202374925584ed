package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"dealdesk/internal/pipeline/models"
	"dealdesk/internal/pipeline/ports/mocks"
	domain "dealdesk/pkg/domain"
	dErrors "dealdesk/pkg/domain-errors"
	"dealdesk/pkg/platform/sentinel"
)

// =============================================================================
// Stage Machine Retry Suite
// =============================================================================
// Mock-based tests for the optimistic-lock retry loop: the memory store
// never produces version conflicts on its own, so the conflict paths are
// driven through a mocked store.

type StageMachineRetrySuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	store   *mocks.MockPropertyStore
	cache   *mocks.MockIdempotencyCache
	service *Service
}

func TestStageMachineRetrySuite(t *testing.T) {
	suite.Run(t, new(StageMachineRetrySuite))
}

func (s *StageMachineRetrySuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockPropertyStore(s.ctrl)
	s.cache = mocks.NewMockIdempotencyCache(s.ctrl)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var err error
	s.service, err = New(s.store,
		WithLogger(logger),
		WithIdempotencyCache(s.cache),
	)
	s.Require().NoError(err)
}

func (s *StageMachineRetrySuite) TearDownTest() {
	s.ctrl.Finish()
}

// evaluableProperty passes the purchase-price rule with its stored values.
func evaluableProperty() *models.Property {
	return &models.Property{
		ID:          domain.NewPropertyID(),
		Stage:       models.StageInitial,
		AskingPrice: domain.Money(20_000_00),
		MarketValue: domain.Money(30_000_00),
		TitleStatus: domain.TitleClean,
		Version:     1,
	}
}

func (s *StageMachineRetrySuite) expectGet(p *models.Property, times int) {
	s.store.EXPECT().Get(gomock.Any(), p.ID).DoAndReturn(
		func(context.Context, domain.PropertyID) (*models.Property, error) {
			return p.Clone(), nil
		},
	).Times(times)
}

func (s *StageMachineRetrySuite) TestVersionConflictRetries() {
	ctx := context.Background()
	p := evaluableProperty()

	s.expectGet(p, 2)
	gomock.InOrder(
		s.store.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(sentinel.ErrVersionConflict),
		s.store.EXPECT().
			ApplyTransition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil),
	)
	s.cache.EXPECT().Remember(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.service.EvaluateDeal(ctx, p.ID, EvaluateDealRequest{})
	s.Require().NoError(err)
	s.True(result.Passed)
	s.Equal(models.StagePassed70Rule, result.NewStage)
}

func (s *StageMachineRetrySuite) TestPersistentConflictSurfaces() {
	ctx := context.Background()
	p := evaluableProperty()

	s.expectGet(p, maxTransitionRetries)
	s.store.EXPECT().
		ApplyTransition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(sentinel.ErrVersionConflict).
		Times(maxTransitionRetries)

	_, err := s.service.EvaluateDeal(ctx, p.ID, EvaluateDealRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *StageMachineRetrySuite) TestCacheWriteFailureIsNonFatal() {
	ctx := context.Background()
	p := evaluableProperty()

	s.expectGet(p, 1)
	s.store.EXPECT().
		ApplyTransition(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil)
	s.cache.EXPECT().
		Remember(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(context.DeadlineExceeded)

	result, err := s.service.EvaluateDeal(ctx, p.ID, EvaluateDealRequest{})
	s.Require().NoError(err)
	s.True(result.Passed)
}

func (s *StageMachineRetrySuite) TestCacheHitAbsorbsMovedOnRetry() {
	ctx := context.Background()
	p := evaluableProperty()
	p.Stage = models.StagePassed70Rule
	// A later update moved the stored hash on; only the cache remembers
	// this fingerprint.
	p.LastInputsHash = "hash-of-a-later-submission"

	s.expectGet(p, 1)
	s.cache.EXPECT().Seen(gomock.Any(), gomock.Any()).Return(true, nil)

	result, err := s.service.EvaluateDeal(ctx, p.ID, EvaluateDealRequest{})
	s.Require().NoError(err)
	s.Equal(models.StagePassed70Rule, result.NewStage)
}
