package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	providermodels "veriflow/internal/provider/models"
	"veriflow/internal/provider/registry"
	"veriflow/internal/provider/selector"
	providerstore "veriflow/internal/provider/store"
	"veriflow/internal/verification/invoker"
	"veriflow/internal/verification/lifecycle"
	"veriflow/internal/verification/recorder"
	"veriflow/internal/verification/service"
	requeststore "veriflow/internal/verification/store/request"
	resultstore "veriflow/internal/verification/store/result"
	id "veriflow/pkg/domain"
	"veriflow/pkg/platform/middleware/subject"
	"veriflow/pkg/testutil"
)

func newVerificationRouter(t *testing.T) http.Handler {
	t.Helper()

	providers := providerstore.NewInMemory()
	p, err := providermodels.NewProvider(
		id.ProviderID(uuid.New()),
		"Gov Check",
		"gov-check",
		id.ProviderTypeGovernment,
		[]id.VerificationMethod{id.MethodIDCardTwoElements},
		"https://gov.example/verify",
		nil,
		100,
		time.Now(),
	)
	if err != nil {
		t.Fatalf("failed to build provider: %v", err)
	}
	if err := providers.Create(t.Context(), p); err != nil {
		t.Fatalf("failed to store provider: %v", err)
	}

	svc := service.New(
		selector.New(registry.New(providers), nil),
		recorder.New(resultstore.NewInMemory()),
		lifecycle.New(requeststore.NewInMemory()),
		invoker.NewSimulated(0),
		service.Policy{ApprovalThreshold: 0.5, ApprovalTTL: time.Hour},
	)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	h := New(svc, logger)
	r := chi.NewRouter()
	r.Use(subject.Resolve)
	h.Register(r)
	return r
}

func submitBody(t *testing.T, fields map[string]string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"method": "id_card_two_elements",
		"fields": fields,
	})
	if err != nil {
		t.Fatalf("failed to marshal request body: %v", err)
	}
	return bytes.NewReader(body)
}

func TestSubmitRequiresSubject(t *testing.T) {
	router := newVerificationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications",
		submitBody(t, map[string]string{"name": "张三", "idCard": "11010119900101100X"}))
	req.Header.Set("Content-Type", "application/json")
	// No X-Subject-ID header set
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without subject header, got %d", rec.Code)
	}
}

func TestSubmitApprovedFlow(t *testing.T) {
	router := newVerificationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications",
		submitBody(t, map[string]string{"name": "张三", "idCard": "11010119900101100X"}))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithSubject(req, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 submitting verification, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Authentication struct {
			ID       string `json:"id"`
			Status   string `json:"status"`
			Approved bool   `json:"approved"`
		} `json:"authentication"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode submit response: %v", err)
	}
	if resp.Authentication.Status != "approved" || !resp.Authentication.Approved {
		t.Fatalf("expected approved authentication, got status %q", resp.Authentication.Status)
	}

	// Status endpoint returns the same request for the owner.
	statusReq := httptest.NewRequest(http.MethodGet, "/verifications/"+resp.Authentication.ID, nil)
	statusReq = testutil.WithSubject(statusReq, "user-1")
	statusRec := httptest.NewRecorder()
	router.ServeHTTP(statusRec, statusReq)
	if statusRec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching status, got %d", statusRec.Code)
	}

	// Another subject cannot see it.
	foreignReq := httptest.NewRequest(http.MethodGet, "/verifications/"+resp.Authentication.ID, nil)
	foreignReq = testutil.WithSubject(foreignReq, "user-2")
	foreignRec := httptest.NewRecorder()
	router.ServeHTTP(foreignRec, foreignReq)
	if foreignRec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for another subject, got %d", foreignRec.Code)
	}
}

func TestSubmitRejectedFlow(t *testing.T) {
	router := newVerificationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications",
		submitBody(t, map[string]string{"name": "张三", "idCard": "INVALID"}))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithSubject(req, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 for rejected submission, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Authentication struct {
			ID     string `json:"id"`
			Status string `json:"status"`
			Reason string `json:"reason"`
		} `json:"authentication"`
		Certificate string `json:"certificate"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode submit response: %v", err)
	}
	if resp.Authentication.Status != "rejected" {
		t.Fatalf("expected rejected authentication, got status %q", resp.Authentication.Status)
	}
	if resp.Authentication.Reason == "" {
		t.Fatalf("expected a rejection reason in the response")
	}
	if resp.Certificate != "" {
		t.Fatalf("expected no certificate for a rejected authentication")
	}

	// The failed attempt is listed under the request's results.
	resultsReq := httptest.NewRequest(http.MethodGet, "/verifications/"+resp.Authentication.ID+"/results", nil)
	resultsReq = testutil.WithSubject(resultsReq, "user-1")
	resultsRec := httptest.NewRecorder()
	router.ServeHTTP(resultsRec, resultsReq)
	if resultsRec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing results, got %d", resultsRec.Code)
	}

	var results struct {
		Results []struct {
			Success   bool   `json:"success"`
			ErrorCode string `json:"error_code"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resultsRec.Body).Decode(&results); err != nil {
		t.Fatalf("failed to decode results response: %v", err)
	}
	if len(results.Results) != 1 || results.Results[0].Success {
		t.Fatalf("expected one failed result, got %+v", results.Results)
	}
}

func TestSubmitValidation(t *testing.T) {
	router := newVerificationRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"method": `},
		{"unknown method", `{"method":"palm_reading","fields":{"name":"x"}}`},
		{"missing fields", `{"method":"id_card_two_elements","fields":{}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/verifications", bytes.NewReader([]byte(tc.body)))
			req.Header.Set("Content-Type", "application/json")
			req = testutil.WithSubject(req, "user-1")
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHistoryScopedToSubject(t *testing.T) {
	router := newVerificationRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/verifications",
		submitBody(t, map[string]string{"name": "张三", "idCard": "11010119900101100X"}))
	req.Header.Set("Content-Type", "application/json")
	req = testutil.WithSubject(req, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 submitting verification, got %d", rec.Code)
	}

	for subjectID, want := range map[string]int{"user-1": 1, "user-2": 0} {
		historyReq := httptest.NewRequest(http.MethodGet, "/verifications", nil)
		historyReq = testutil.WithSubject(historyReq, subjectID)
		historyRec := httptest.NewRecorder()
		router.ServeHTTP(historyRec, historyReq)
		if historyRec.Code != http.StatusOK {
			t.Fatalf("expected 200 fetching history, got %d", historyRec.Code)
		}

		var resp struct {
			Authentications []json.RawMessage `json:"authentications"`
		}
		if err := json.NewDecoder(historyRec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode history response: %v", err)
		}
		if len(resp.Authentications) != want {
			t.Fatalf("expected %d entries for %s, got %d", want, subjectID, len(resp.Authentications))
		}
	}
}

func TestStatusRejectsMalformedID(t *testing.T) {
	router := newVerificationRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/verifications/not-a-uuid", nil)
	req = testutil.WithSubject(req, "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}
