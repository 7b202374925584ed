//go:build integration

package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "dealdesk/pkg/platform/audit"
	auditpg "dealdesk/pkg/platform/audit/store/postgres"
	"dealdesk/pkg/platform/audit/worker"
	"dealdesk/pkg/testutil/containers"
)

const testTopic = "dealdesk.audit.events.it"

type OutboxWorkerSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *auditpg.Store
}

func TestOutboxWorkerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(OutboxWorkerSuite))
}

func (s *OutboxWorkerSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.store = auditpg.New(s.pg.DB)
}

func (s *OutboxWorkerSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "audit_outbox", "audit_events"))
}

func (s *OutboxWorkerSuite) TestOutboxShipsToKafka() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	producer := s.redpanda.NewClient(s.T())
	s.Require().NoError(worker.EnsureTopic(ctx, producer, testTopic))
	// EnsureTopic is idempotent on restart.
	s.Require().NoError(worker.EnsureTopic(ctx, producer, testTopic))

	event := audit.Event{
		EntityType: audit.EntityProperty,
		EntityID:   "prop-stream-1",
		Action:     audit.ActionStageTransition,
		FromState:  "initial",
		ToState:    "passed_70_rule",
		Reason:     "purchase rule passed",
	}
	s.Require().NoError(s.store.Append(ctx, event))

	w := worker.New(s.store, producer,
		worker.WithTopic(testTopic),
		worker.WithInterval(50*time.Millisecond),
		worker.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	workerCtx, stopWorker := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- w.Run(workerCtx) }()

	consumer := s.redpanda.NewClient(s.T(), testTopic)

	var received audit.Event
	s.Require().Eventually(func() bool {
		fetchCtx, fetchCancel := context.WithTimeout(ctx, time.Second)
		defer fetchCancel()
		fetches := consumer.PollFetches(fetchCtx)
		for _, record := range fetches.Records() {
			if err := json.Unmarshal(record.Value, &received); err == nil &&
				received.EntityID == "prop-stream-1" {
				return true
			}
		}
		return false
	}, 15*time.Second, 100*time.Millisecond, "audit event never arrived on the topic")

	s.Equal(audit.ActionStageTransition, received.Action)
	s.Equal("passed_70_rule", received.ToState)

	// The shipped entry is marked published and not claimed again.
	s.Require().Eventually(func() bool {
		pending, err := s.store.ClaimPending(ctx, 10)
		return err == nil && len(pending) == 0
	}, 5*time.Second, 100*time.Millisecond)

	stopWorker()
	err := <-done
	s.True(err == nil || errors.Is(err, context.Canceled))
}
