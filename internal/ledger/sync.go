package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"

	"github.com/rlagura/transferbot/internal/domain"
	"github.com/rlagura/transferbot/internal/logging"
)

const recordTopic = "ledger.record_approval"

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateKeyLayout   = "2006-01-02"
)

// SyncerOptions names the two sheets the syncer writes to.
type SyncerOptions struct {
	LedgerSheet  string
	SummarySheet string
}

// Syncer records approved claims in the external ledger. All writes are
// funneled through a single in-process queue handler, so the summary table's
// read-modify-write never interleaves between concurrent approvals.
type Syncer struct {
	client       Client
	logger       *slog.Logger
	loc          *time.Location
	ledgerRange  string
	summarySheet string
	summaryRange string
	nowFn        func() time.Time

	pubsub  *gochannel.GoChannel
	router  *message.Router
	pending sync.Map // message UUID -> chan error
}

// NewSyncer wires the queue, router, and handler around the given client.
// Run must be called before RecordApproval is used.
func NewSyncer(client Client, loc *time.Location, logger *slog.Logger, opts SyncerOptions) (*Syncer, error) {
	wmLogger := logging.NewWatermillAdapter(logger)

	router, err := message.NewRouter(message.RouterConfig{}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create ledger router: %w", err)
	}
	router.AddMiddleware(middleware.Recoverer)

	s := &Syncer{
		client:       client,
		logger:       logger,
		loc:          loc,
		ledgerRange:  opts.LedgerSheet + "!A:F",
		summarySheet: opts.SummarySheet,
		summaryRange: opts.SummarySheet + "!A:D",
		nowFn:        time.Now,
		pubsub:       gochannel.NewGoChannel(gochannel.Config{}, wmLogger),
		router:       router,
	}

	router.AddNoPublisherHandler("record_approval", recordTopic, s.pubsub, s.handleRecord)

	return s, nil
}

// WithClock overrides the time provider (used primarily in tests).
func (s *Syncer) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		s.nowFn = nowFn
	}
}

// Run processes queued ledger writes until ctx is cancelled.
func (s *Syncer) Run(ctx context.Context) error {
	return s.router.Run(ctx)
}

// Running is closed once the queue handler is accepting messages.
func (s *Syncer) Running() <-chan struct{} {
	return s.router.Running()
}

// Close releases the underlying queue.
func (s *Syncer) Close() error {
	return s.pubsub.Close()
}

// RecordApproval enqueues the ledger append for an approved claim and waits
// for the write to complete, so the caller can sequence its acknowledgement
// after the row of record exists. The returned error covers the ledger append
// only; summary upkeep is best-effort and never surfaces here.
func (s *Syncer) RecordApproval(ctx context.Context, claim domain.Claim) error {
	payload, err := json.Marshal(claim)
	if err != nil {
		return fmt.Errorf("encode claim %s: %w", claim.ID, err)
	}

	id := uuid.NewString()
	done := make(chan error, 1)
	s.pending.Store(id, done)
	defer s.pending.Delete(id)

	if err := s.pubsub.Publish(recordTopic, message.NewMessage(id, payload)); err != nil {
		return fmt.Errorf("enqueue ledger record for %s: %w", claim.ID, err)
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleRecord always acks: failures are reported back to the waiting caller
// rather than nacked, so a poisoned message cannot wedge the queue.
func (s *Syncer) handleRecord(msg *message.Message) error {
	var claim domain.Claim
	if err := json.Unmarshal(msg.Payload, &claim); err != nil {
		s.logger.Error("discarding undecodable ledger record", "error", err)
		return nil
	}

	err := s.record(msg.Context(), claim)
	if ch, ok := s.pending.Load(msg.UUID); ok {
		ch.(chan error) <- err
	} else if err != nil {
		s.logger.Error("ledger record failed with no waiter", "claim_id", claim.ID, "error", err)
	}
	return nil
}

func (s *Syncer) record(ctx context.Context, claim domain.Claim) error {
	decidedAt := claim.DecidedAt.In(s.loc)
	dateKey := decidedAt.Format(dateKeyLayout)

	row := []any{
		claim.ID,
		decidedAt.Format(timestampLayout),
		dateKey,
		claim.Claimant,
		claim.TransferredFrom,
		claim.DecidedBy,
	}
	if err := s.client.Append(ctx, s.ledgerRange, row); err != nil {
		return fmt.Errorf("append ledger row for %s: %w", claim.ID, err)
	}

	if err := s.upsertSummary(ctx, dateKey, claim.Claimant); err != nil {
		// The ledger row is the record of truth; the summary is a derived
		// cache, so a failed upsert is logged and swallowed.
		s.logger.Error("summary upsert failed", "claim_id", claim.ID, "date_key", dateKey, "error", err)
	}
	return nil
}

// upsertSummary increments the (dateKey, claimant) row in place, or appends a
// fresh row with count 1. Row 0 is the header and never matches.
func (s *Syncer) upsertSummary(ctx context.Context, dateKey, claimant string) error {
	rows, err := s.client.Read(ctx, s.summaryRange)
	if err != nil {
		return fmt.Errorf("read summary: %w", err)
	}

	rowIndex := -1
	for i := 1; i < len(rows); i++ {
		if len(rows[i]) < 2 {
			continue
		}
		if cellString(rows[i][0]) == dateKey && cellString(rows[i][1]) == claimant {
			rowIndex = i
			break
		}
	}

	generatedAt := s.nowFn().In(s.loc).Format(timestampLayout)

	if rowIndex > 0 {
		count := 0
		if len(rows[rowIndex]) > 2 {
			count = cellCount(rows[rowIndex][2])
		}
		cellRange := fmt.Sprintf("%s!A%d:D%d", s.summarySheet, rowIndex+1, rowIndex+1)
		return s.client.Update(ctx, cellRange, []any{dateKey, claimant, count + 1, generatedAt})
	}

	return s.client.Append(ctx, s.summaryRange, []any{dateKey, claimant, 1, generatedAt})
}

func cellString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// cellCount tolerates blank and numeric cells, matching how the sheet stores
// previously written counts.
func cellCount(v any) int {
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		n, err := strconv.Atoi(val)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
