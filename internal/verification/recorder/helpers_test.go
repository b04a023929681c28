package recorder

import (
	"context"
	"errors"

	"veriflow/internal/verification/store/reservation"
)

// newMemoryReservations wraps the in-memory reservation store; kept as a
// constructor so tests read uniformly.
func newMemoryReservations() ReservationStore {
	return reservation.NewInMemory()
}

// failingReservations simulates an unavailable reservation backend.
type failingReservations struct{}

func (f *failingReservations) Claim(context.Context, string) error {
	return errors.New("reservation backend unavailable")
}

func (f *failingReservations) Release(context.Context, string) error {
	return errors.New("reservation backend unavailable")
}
