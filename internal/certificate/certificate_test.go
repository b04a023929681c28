package certificate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"veriflow/internal/verification/models"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
)

type CertificateSuite struct {
	suite.Suite
	issuer *Issuer
	now    time.Time
}

func (s *CertificateSuite) SetupTest() {
	s.issuer = NewIssuer("test-signing-key", "veriflow")
	// Validate checks the exp claim against the wall clock, so the suite
	// anchors on real time rather than a fixed date.
	s.now = time.Now().UTC().Truncate(time.Second)
}

func TestCertificateSuite(t *testing.T) {
	suite.Run(t, new(CertificateSuite))
}

// approvedRequest builds a request in the approved state with the given
// expiry window. A zero window means the approval never expires.
func (s *CertificateSuite) approvedRequest(expiresIn time.Duration) *models.AuthenticationRequest {
	r, err := models.NewAuthenticationRequest(
		id.AuthenticationID(uuid.New()),
		"user-9",
		id.MethodIDCardTwoElements,
		map[string]string{"name": "赵六", "idCard": "11010119900101100X"},
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(r.CanStartProcessing())
	r.ApplyStartProcessing(s.now)
	s.Require().NoError(r.CanApprove())
	r.ApplyApproval(map[string]string{"success": "true"}, nil, expiresIn, s.now)
	return r
}

func (s *CertificateSuite) TestIssueAndValidate() {
	request := s.approvedRequest(time.Hour)

	token, err := s.issuer.Issue(request, s.now)
	s.Require().NoError(err)
	s.NotEmpty(token)

	claims, err := s.issuer.Validate(token)
	s.Require().NoError(err)
	s.Equal(request.ID.String(), claims.AuthenticationID)
	s.Equal(string(id.MethodIDCardTwoElements), claims.Method)
	s.Equal("user-9", claims.Subject)
	s.Equal("veriflow", claims.Issuer)
	s.NotEmpty(claims.ID)
	s.Require().NotNil(claims.ExpiresAt)
	s.Equal(s.now.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())
}

func (s *CertificateSuite) TestIssueWithoutExpiry() {
	request := s.approvedRequest(0)

	token, err := s.issuer.Issue(request, s.now)
	s.Require().NoError(err)

	claims, err := s.issuer.Validate(token)
	s.Require().NoError(err)
	s.Nil(claims.ExpiresAt)
}

func (s *CertificateSuite) TestIssueRejectsNonApproved() {
	s.Run("pending request", func() {
		r, err := models.NewAuthenticationRequest(
			id.AuthenticationID(uuid.New()),
			"user-9",
			id.MethodIDCardTwoElements,
			map[string]string{"name": "赵六", "idCard": "11010119900101100X"},
			s.now,
		)
		s.Require().NoError(err)

		_, err = s.issuer.Issue(r, s.now)
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	s.Run("expired approval", func() {
		request := s.approvedRequest(time.Hour)
		_, err := s.issuer.Issue(request, s.now.Add(2*time.Hour))
		s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}

func (s *CertificateSuite) TestValidateRejectsBadTokens() {
	s.Run("garbage input", func() {
		_, err := s.issuer.Validate("not-a-jwt")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("wrong signing key", func() {
		request := s.approvedRequest(time.Hour)
		token, err := NewIssuer("other-key", "veriflow").Issue(request, s.now)
		s.Require().NoError(err)

		_, err = s.issuer.Validate(token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("expired certificate", func() {
		request := s.approvedRequest(time.Nanosecond)
		token, err := s.issuer.Issue(request, s.now)
		s.Require().NoError(err)

		_, err = s.issuer.Validate(token)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Contains(err.Error(), "expired")
	})
}
