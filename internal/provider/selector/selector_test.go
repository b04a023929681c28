package selector

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veriflow/internal/provider/models"
	"veriflow/internal/provider/registry"
	"veriflow/internal/provider/store"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

type SelectorSuite struct {
	suite.Suite
	store    *store.InMemory
	selector *Selector
	ctx      context.Context
	now      time.Time
}

func (s *SelectorSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.selector = New(registry.New(s.store), nil)
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestSelectorSuite(t *testing.T) {
	suite.Run(t, new(SelectorSuite))
}

func (s *SelectorSuite) addProvider(code string, priority int, createdAt time.Time, methods ...id.VerificationMethod) *models.Provider {
	p, err := models.NewProvider(
		id.ProviderID(uuid.New()),
		"Provider "+code,
		code,
		id.ProviderTypeGovernment,
		methods,
		"",
		nil,
		priority,
		createdAt,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(s.ctx, p))
	return p
}

func (s *SelectorSuite) TestPicksHighestPriority() {
	s.addProvider("low", 1, s.now, id.MethodIDCardTwoElements)
	s.addProvider("high", 10, s.now, id.MethodIDCardTwoElements)

	best, err := s.selector.SelectBest(s.ctx, id.MethodIDCardTwoElements)
	s.Require().NoError(err)
	s.Equal("high", best.Code)
}

func (s *SelectorSuite) TestTieBreaksOnEarliestCreated() {
	s.addProvider("late", 5, s.now.Add(time.Hour), id.MethodCarrierThreeElements)
	s.addProvider("early", 5, s.now, id.MethodCarrierThreeElements)

	best, err := s.selector.SelectBest(s.ctx, id.MethodCarrierThreeElements)
	s.Require().NoError(err)
	s.Equal("early", best.Code)
}

func (s *SelectorSuite) TestFiltersOnMethodSupport() {
	s.addProvider("bank", 10, s.now, id.MethodBankCardFourElements)
	s.addProvider("carrier", 1, s.now, id.MethodCarrierThreeElements)

	best, err := s.selector.SelectBest(s.ctx, id.MethodCarrierThreeElements)
	s.Require().NoError(err)
	s.Equal("carrier", best.Code, "higher priority provider without method support is skipped")
}

func (s *SelectorSuite) TestSkipsUnselectableProviders() {
	inactive := s.addProvider("inactive", 10, s.now, id.MethodLivenessDetection)
	invalidated := s.addProvider("invalidated", 9, s.now, id.MethodLivenessDetection)
	s.addProvider("active", 1, s.now, id.MethodLivenessDetection)

	_, err := s.store.Execute(s.ctx, inactive.ID,
		func(p *models.Provider) error { return p.CanDeactivate() },
		func(p *models.Provider) { p.ApplyDeactivation(s.now) },
	)
	s.Require().NoError(err)
	_, err = s.store.Execute(s.ctx, invalidated.ID,
		func(p *models.Provider) error { return p.CanInvalidate() },
		func(p *models.Provider) { p.ApplyInvalidation(s.now) },
	)
	s.Require().NoError(err)

	best, err := s.selector.SelectBest(s.ctx, id.MethodLivenessDetection)
	s.Require().NoError(err)
	s.Equal("active", best.Code)
}

func (s *SelectorSuite) TestUnavailableWhenNoneMatch() {
	s.addProvider("idcard", 10, s.now, id.MethodIDCardTwoElements)

	_, err := s.selector.SelectBest(s.ctx, id.MethodLivenessDetection)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeProviderUnavailable))
}

func (s *SelectorSuite) TestDeterministicChoice() {
	s.addProvider("a", 5, s.now, id.MethodIDCardTwoElements)
	s.addProvider("b", 5, s.now.Add(time.Minute), id.MethodIDCardTwoElements)

	first, err := s.selector.SelectBest(s.ctx, id.MethodIDCardTwoElements)
	s.Require().NoError(err)
	for range 10 {
		again, err := s.selector.SelectBest(s.ctx, id.MethodIDCardTwoElements)
		s.Require().NoError(err)
		s.Equal(first.ID, again.ID)
	}
}

func (s *SelectorSuite) TestRejectsUnknownMethod() {
	_, err := s.selector.SelectBest(s.ctx, id.VerificationMethod("palm_reading"))
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
