package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"veriflow/internal/certificate"
	providermodels "veriflow/internal/provider/models"
	"veriflow/internal/provider/registry"
	"veriflow/internal/provider/selector"
	providerstore "veriflow/internal/provider/store"
	"veriflow/internal/verification/lifecycle"
	"veriflow/internal/verification/models"
	"veriflow/internal/verification/recorder"
	"veriflow/internal/verification/service"
	"veriflow/internal/verification/service/mocks"
	requeststore "veriflow/internal/verification/store/request"
	resultstore "veriflow/internal/verification/store/result"
	id "veriflow/pkg/domain"
	dErrors "veriflow/pkg/domain-errors"
	"veriflow/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	invoker   *mocks.MockInvoker
	providers *providerstore.InMemory
	requests  *requeststore.InMemory
	results   *resultstore.InMemory
	service   *service.Service
	ctx       context.Context
	now       time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.invoker = mocks.NewMockInvoker(s.ctrl)
	s.providers = providerstore.NewInMemory()
	s.requests = requeststore.NewInMemory()
	s.results = resultstore.NewInMemory()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.service = service.New(
		selector.New(registry.New(s.providers), nil),
		recorder.New(s.results),
		lifecycle.New(s.requests),
		s.invoker,
		service.Policy{ApprovalThreshold: 0.90, ApprovalTTL: 24 * time.Hour},
		service.WithCertificateIssuer(certificate.NewIssuer("test-signing-key", "veriflow")),
	)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) registerProvider(methods ...id.VerificationMethod) *providermodels.Provider {
	p, err := providermodels.NewProvider(
		id.ProviderID(uuid.New()),
		"Gov Check",
		"gov-check",
		id.ProviderTypeGovernment,
		methods,
		"https://gov.example/verify",
		nil,
		100,
		s.now,
	)
	s.Require().NoError(err)
	s.Require().NoError(s.providers.Create(s.ctx, p))
	return p
}

func validFields() map[string]string {
	return map[string]string{"name": "李四", "idCard": "11010119900101100X"}
}

func confidence(v float64) *float64 { return &v }

func (s *ServiceSuite) TestSubmitApproved() {
	provider := s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), id.MethodIDCardTwoElements, validFields()).
		Return(&service.InvokeOutcome{
			Success:        true,
			Confidence:     confidence(0.98),
			ResponseData:   map[string]string{"match": "exact"},
			ProcessingTime: 150 * time.Millisecond,
		}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	s.Equal(models.StatusApproved, out.Request.Status)
	s.Require().NotNil(out.Request.ExpireTime)
	s.Equal(s.now.Add(24*time.Hour), *out.Request.ExpireTime)
	s.Equal(validFields(), out.Request.SubmittedData)
	s.Equal("0.98", out.Request.ResultSummary["confidence"])
	s.Equal(provider.Code, out.Request.ProviderSummary["provider_code"])
	s.Equal("exact", out.Request.ProviderSummary["response_match"])

	s.NotEmpty(out.Certificate)

	results, err := s.results.ListByAuthentication(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.True(results[0].Success)
	s.Equal(provider.ID, results[0].ProviderID)
}

func (s *ServiceSuite) TestSubmitValidation() {
	s.registerProvider(id.MethodBankCardThreeElements)

	s.Run("missing required field", func() {
		_, err := s.service.Submit(s.ctx, "user-1", id.MethodBankCardThreeElements,
			map[string]string{"name": "李四", "idCard": "11010119900101100X"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("blank required field", func() {
		_, err := s.service.Submit(s.ctx, "user-1", id.MethodBankCardThreeElements,
			map[string]string{"name": "李四", "idCard": "11010119900101100X", "bankCard": "   "})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("nothing persisted on validation failure", func() {
		history, err := s.service.GetHistory(s.ctx, "user-1")
		s.Require().NoError(err)
		s.Empty(history)
	})
}

func (s *ServiceSuite) TestSubmitNoProvider() {
	// Registered provider does not cover the requested method.
	s.registerProvider(id.MethodLivenessDetection)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, out.Request.Status)
	s.Contains(out.Request.Reason, "no verification provider available")
	s.Empty(out.Certificate)

	// The request is persisted and visible in history.
	history, err := s.service.GetHistory(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(models.StatusRejected, history[0].Status)

	// No provider was invoked, so no result exists.
	results, err := s.results.ListByAuthentication(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Empty(results)
}

func (s *ServiceSuite) TestSubmitLowConfidence() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.InvokeOutcome{
			Success:    true,
			Confidence: confidence(0.42),
		}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, out.Request.Status)
	s.Equal("confidence score below approval threshold", out.Request.Reason)
	s.Nil(out.Request.ExpireTime)
	s.Empty(out.Certificate)
}

func (s *ServiceSuite) TestSubmitSuccessWithoutConfidence() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.InvokeOutcome{Success: true}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, out.Request.Status)
}

func (s *ServiceSuite) TestSubmitProviderFailure() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.InvokeOutcome{
			Success:      false,
			ErrorCode:    "no_match",
			ErrorMessage: "identity elements do not match",
		}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	s.Equal(models.StatusRejected, out.Request.Status)
	s.Equal("identity elements do not match", out.Request.Reason)

	results, err := s.results.ListByAuthentication(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.False(results[0].Success)
	s.Equal("no_match", results[0].ErrorCode)
}

func (s *ServiceSuite) TestSubmitInvokerError() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	// A transport failure still leaves a recorded result and a rejection.
	s.Equal(models.StatusRejected, out.Request.Status)
	s.Equal("connection refused", out.Request.Reason)

	results, err := s.results.ListByAuthentication(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Equal("provider_call_failed", results[0].ErrorCode)
}

func (s *ServiceSuite) TestCheckStatusAndExpiry() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.InvokeOutcome{Success: true, Confidence: confidence(0.95)}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	request, err := s.service.CheckStatus(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, request.Status)

	s.Run("approval is valid inside the window", func() {
		s.True(request.IsApproved(s.now.Add(23 * time.Hour)))
		s.False(request.IsExpired(s.now.Add(23 * time.Hour)))
	})

	s.Run("approval expires after the window", func() {
		s.False(request.IsApproved(s.now.Add(25 * time.Hour)))
		s.True(request.IsExpired(s.now.Add(25 * time.Hour)))
	})

	s.Run("status column is untouched by expiry", func() {
		s.Equal(models.StatusApproved, request.Status)
	})

	s.Run("unknown id is not found", func() {
		_, err := s.service.CheckStatus(s.ctx, id.AuthenticationID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestListResults() {
	s.registerProvider(id.MethodIDCardTwoElements)

	s.invoker.EXPECT().
		Invoke(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&service.InvokeOutcome{Success: true}, nil)

	out, err := s.service.Submit(s.ctx, "user-1", id.MethodIDCardTwoElements, validFields())
	s.Require().NoError(err)

	results, err := s.service.ListResults(s.ctx, out.Request.ID)
	s.Require().NoError(err)
	s.Require().Len(results, 1)
	s.Contains(results[0].RequestID, "REQ_")

	_, err = s.service.ListResults(s.ctx, id.AuthenticationID(uuid.New()))
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
