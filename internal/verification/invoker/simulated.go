// Package invoker provides the built-in provider invoker used when no real
// provider transport is configured. It answers deterministically from the
// submitted fields so local environments behave repeatably.
package invoker

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sort"
	"strings"
	"time"

	providermodels "veriflow/internal/provider/models"
	"veriflow/internal/verification/service"
	id "veriflow/pkg/domain"
)

// Simulated is a deterministic Invoker: identical inputs always produce the
// same outcome. Fields containing the marker value fail the check, everything
// else passes with a confidence derived from a hash of the inputs.
type Simulated struct {
	latency time.Duration
}

// FailMarker in any submitted field value forces a failed verification, which
// lets demos and smoke tests exercise the rejection path.
const FailMarker = "INVALID"

// NewSimulated constructs a simulated invoker reporting the given latency.
func NewSimulated(latency time.Duration) *Simulated {
	if latency <= 0 {
		latency = 120 * time.Millisecond
	}
	return &Simulated{latency: latency}
}

// Invoke simulates one provider call.
func (s *Simulated) Invoke(
	_ context.Context,
	provider *providermodels.Provider,
	method id.VerificationMethod,
	fields map[string]string,
) (*service.InvokeOutcome, error) {
	for _, v := range fields {
		if strings.Contains(v, FailMarker) {
			return &service.InvokeOutcome{
				Success:        false,
				ErrorCode:      "no_match",
				ErrorMessage:   "submitted identity data did not match authoritative records",
				ResponseData:   map[string]string{"checked_by": provider.Code},
				ProcessingTime: s.latency,
			}, nil
		}
	}

	confidence := derivedConfidence(provider.Code, method, fields)
	return &service.InvokeOutcome{
		Success:    true,
		Confidence: &confidence,
		ResponseData: map[string]string{
			"checked_by": provider.Code,
			"match":      "true",
		},
		ProcessingTime: s.latency,
	}, nil
}

// derivedConfidence hashes the inputs into a stable score in [0.80, 1.00).
func derivedConfidence(providerCode string, method id.VerificationMethod, fields map[string]string) float64 {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	h.Write([]byte(providerCode))
	h.Write([]byte(method))
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte(fields[k]))
	}
	sum := h.Sum(nil)
	n := binary.BigEndian.Uint16(sum[:2])
	return 0.80 + 0.20*float64(n)/65536.0
}
