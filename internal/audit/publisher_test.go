package audit

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type capturingSink struct {
	events []Event
	err    error
}

func (s *capturingSink) Append(_ context.Context, event Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

type PublisherSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *PublisherSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.ctx = context.Background()
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestEmitStoresAndFansOut() {
	sink := &capturingSink{}
	publisher := NewPublisher(s.store, nil, sink)

	event := Event{
		SubjectID: "user-1",
		Action:    EventAuthenticationSubmitted,
		Method:    "id_card_two_elements",
	}
	s.Require().NoError(publisher.Emit(s.ctx, event))

	stored := s.store.All()
	s.Require().Len(stored, 1)
	s.Equal(EventAuthenticationSubmitted, stored[0].Action)
	s.False(stored[0].Timestamp.IsZero())

	s.Require().Len(sink.events, 1)
	s.Equal(stored[0], sink.events[0])
}

func (s *PublisherSuite) TestEmitKeepsExplicitTimestamp() {
	publisher := NewPublisher(s.store, nil)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	s.Require().NoError(publisher.Emit(s.ctx, Event{Action: EventProviderRegistered, Timestamp: at}))

	stored := s.store.All()
	s.Require().Len(stored, 1)
	s.Equal(at, stored[0].Timestamp)
}

func (s *PublisherSuite) TestSinkFailureDoesNotFailEmit() {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	broken := &capturingSink{err: errors.New("broker unreachable")}
	working := &capturingSink{}
	publisher := NewPublisher(s.store, logger, broken, working)

	s.Require().NoError(publisher.Emit(s.ctx, Event{SubjectID: "user-1", Action: EventResultRecorded}))

	// The store stays authoritative and later sinks still receive the event.
	s.Len(s.store.All(), 1)
	s.Len(working.events, 1)
}

func (s *PublisherSuite) TestListBySubject() {
	publisher := NewPublisher(s.store, nil)
	s.Require().NoError(publisher.Emit(s.ctx, Event{SubjectID: "user-1", Action: EventAuthenticationSubmitted}))
	s.Require().NoError(publisher.Emit(s.ctx, Event{SubjectID: "user-1", Action: EventAuthenticationApproved}))
	s.Require().NoError(publisher.Emit(s.ctx, Event{SubjectID: "user-2", Action: EventAuthenticationSubmitted}))

	events, err := publisher.List(s.ctx, "user-1")
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(EventAuthenticationSubmitted, events[0].Action)
	s.Equal(EventAuthenticationApproved, events[1].Action)
}
