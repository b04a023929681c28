package result

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/platform/sentinel"
)

type ResultStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *ResultStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestResultStoreSuite(t *testing.T) {
	suite.Run(t, new(ResultStoreSuite))
}

func (s *ResultStoreSuite) newResult(authID id.AuthenticationID, requestID string, at time.Time) *models.VerificationResult {
	r, err := models.NewVerificationResult(
		id.ResultID(uuid.New()),
		authID,
		id.ProviderID(uuid.New()),
		requestID,
		true,
		nil,
		nil,
		"",
		"",
		120,
		at,
	)
	s.Require().NoError(err)
	return r
}

func (s *ResultStoreSuite) TestCreateAndFind() {
	authID := id.AuthenticationID(uuid.New())
	r := s.newResult(authID, "REQ_1", s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	found, err := s.store.FindByID(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.RequestID, found.RequestID)

	s.Run("unknown id is not found", func() {
		_, err := s.store.FindByID(s.ctx, id.ResultID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}

func (s *ResultStoreSuite) TestRequestIDUniqueness() {
	authID := id.AuthenticationID(uuid.New())
	s.Require().NoError(s.store.Create(s.ctx, s.newResult(authID, "REQ_dup", s.now)))

	s.Run("same request id is rejected", func() {
		err := s.store.Create(s.ctx, s.newResult(authID, "REQ_dup", s.now))
		s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
	})

	s.Run("same request id under another authentication is rejected", func() {
		err := s.store.Create(s.ctx, s.newResult(id.AuthenticationID(uuid.New()), "REQ_dup", s.now))
		s.True(errors.Is(err, sentinel.ErrAlreadyUsed))
	})

	s.Run("fresh request id is accepted", func() {
		s.NoError(s.store.Create(s.ctx, s.newResult(authID, "REQ_fresh", s.now)))
	})
}

func (s *ResultStoreSuite) TestListByAuthentication() {
	authID := id.AuthenticationID(uuid.New())
	first := s.newResult(authID, "REQ_first", s.now)
	second := s.newResult(authID, "REQ_second", s.now.Add(time.Minute))
	other := s.newResult(id.AuthenticationID(uuid.New()), "REQ_other", s.now)
	for _, r := range []*models.VerificationResult{second, first, other} {
		s.Require().NoError(s.store.Create(s.ctx, r))
	}

	out, err := s.store.ListByAuthentication(s.ctx, authID)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	// Attempt order, oldest first.
	s.Equal(first.ID, out[0].ID)
	s.Equal(second.ID, out[1].ID)
}

func (s *ResultStoreSuite) TestInvalidate() {
	r := s.newResult(id.AuthenticationID(uuid.New()), "REQ_inv", s.now)
	s.Require().NoError(s.store.Create(s.ctx, r))

	invalidated, err := s.store.Invalidate(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.RecordInvalidated, invalidated.State)

	s.Run("invalidation is terminal", func() {
		_, err := s.store.Invalidate(s.ctx, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("unknown id is not found", func() {
		_, err := s.store.Invalidate(s.ctx, id.ResultID(uuid.New()))
		s.True(errors.Is(err, sentinel.ErrNotFound))
	})
}
