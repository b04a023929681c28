package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veriflow/internal/provider/models"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/sentinel"
)

type ProviderStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ProviderStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestProviderStoreSuite(t *testing.T) {
	suite.Run(t, new(ProviderStoreSuite))
}

func (s *ProviderStoreSuite) newProvider(code string, priority int, createdAt time.Time, methods ...id.VerificationMethod) *models.Provider {
	if len(methods) == 0 {
		methods = []id.VerificationMethod{id.MethodIDCardTwoElements}
	}
	p, err := models.NewProvider(
		id.ProviderID(uuid.New()),
		"Provider "+code,
		code,
		id.ProviderTypeThirdParty,
		methods,
		"https://"+code+".example.com",
		nil,
		priority,
		createdAt,
	)
	s.Require().NoError(err)
	return p
}

func (s *ProviderStoreSuite) TestCreationAndLookups() {
	s.Run("creates and finds provider by ID and code", func() {
		p := s.newProvider("alpha", 5, s.now)
		s.Require().NoError(s.store.Create(s.ctx, p))

		byID, err := s.store.FindByID(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Code, byID.Code)

		byCode, err := s.store.FindByCode(s.ctx, "alpha")
		s.Require().NoError(err)
		s.Equal(p.ID, byCode.ID)
	})

	s.Run("returns ErrNotFound for unknown ID", func() {
		_, err := s.store.FindByID(s.ctx, id.ProviderID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("code lookup is case-sensitive", func() {
		p := s.newProvider("CaseCode", 1, s.now)
		s.Require().NoError(s.store.Create(s.ctx, p))

		_, err := s.store.FindByCode(s.ctx, "casecode")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ProviderStoreSuite) TestCodeUniqueness() {
	p1 := s.newProvider("dup", 1, s.now)
	p2 := s.newProvider("dup", 2, s.now)

	s.Require().NoError(s.store.Create(s.ctx, p1))
	err := s.store.Create(s.ctx, p2)
	s.Require().ErrorIs(err, sentinel.ErrConflict)
}

func (s *ProviderStoreSuite) TestOrdering() {
	low := s.newProvider("low", 1, s.now)
	highLate := s.newProvider("high-late", 9, s.now.Add(time.Hour))
	highEarly := s.newProvider("high-early", 9, s.now)

	for _, p := range []*models.Provider{low, highLate, highEarly} {
		s.Require().NoError(s.store.Create(s.ctx, p))
	}

	active, err := s.store.FindActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 3)
	s.Equal("high-early", active[0].Code, "ties resolve to earliest created")
	s.Equal("high-late", active[1].Code)
	s.Equal("low", active[2].Code)
}

func (s *ProviderStoreSuite) TestFindByMethod() {
	idCard := s.newProvider("idcard", 1, s.now, id.MethodIDCardTwoElements)
	liveness := s.newProvider("liveness", 2, s.now, id.MethodLivenessDetection)
	s.Require().NoError(s.store.Create(s.ctx, idCard))
	s.Require().NoError(s.store.Create(s.ctx, liveness))

	matches, err := s.store.FindByMethod(s.ctx, id.MethodLivenessDetection)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal("liveness", matches[0].Code)
}

func (s *ProviderStoreSuite) TestFiltersExcludeUnselectable() {
	active := s.newProvider("active", 1, s.now)
	inactive := s.newProvider("inactive", 9, s.now)
	invalidated := s.newProvider("invalidated", 9, s.now)
	inactive.ApplyDeactivation(s.now)
	invalidated.ApplyInvalidation(s.now)

	for _, p := range []*models.Provider{active, inactive, invalidated} {
		s.Require().NoError(s.store.Create(s.ctx, p))
	}

	found, err := s.store.FindActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal("active", found[0].Code)

	all, err := s.store.List(s.ctx)
	s.Require().NoError(err)
	s.Len(all, 3, "List includes unselectable providers for the admin surface")
}

func (s *ProviderStoreSuite) TestExecute() {
	s.Run("applies mutation when validation passes", func() {
		p := s.newProvider("exec", 1, s.now)
		s.Require().NoError(s.store.Create(s.ctx, p))

		updated, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.Provider) error { return p.CanDeactivate() },
			func(p *models.Provider) { p.ApplyDeactivation(s.now.Add(time.Minute)) },
		)
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, updated.Status)
	})

	s.Run("leaves provider untouched when validation fails", func() {
		p := s.newProvider("exec-fail", 1, s.now)
		p.ApplyDeactivation(s.now)
		s.Require().NoError(s.store.Create(s.ctx, p))

		_, err := s.store.Execute(s.ctx, p.ID,
			func(p *models.Provider) error { return p.CanDeactivate() },
			func(p *models.Provider) { s.Fail("mutate must not run") },
		)
		s.Require().Error(err)
	})

	s.Run("returns ErrNotFound for unknown provider", func() {
		_, err := s.store.Execute(s.ctx, id.ProviderID(uuid.New()),
			func(*models.Provider) error { return nil },
			func(*models.Provider) {},
		)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
