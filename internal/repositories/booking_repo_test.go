package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// stubQuerier records Exec calls and replays a canned command tag, enough to
// pin down the SQL the repo issues without a database.
type stubQuerier struct {
	tag   pgconn.CommandTag
	calls []struct {
		sql  string
		args []any
	}
}

func (s *stubQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.calls = append(s.calls, struct {
		sql  string
		args []any
	}{sql, args})
	return s.tag, nil
}

func (s *stubQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("unexpected Query")
}

func (s *stubQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	panic("unexpected QueryRow")
}

func TestApplyScheduleResetsMeetingState(t *testing.T) {
	stub := &stubQuerier{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewBookingRepo(stub)

	id := uuid.New()
	releaseAt := time.Date(2026, 3, 14, 17, 0, 0, 0, time.UTC)
	if err := repo.ApplySchedule(context.Background(), id, "2026-03-14", "14:00", "15:00", releaseAt); err != nil {
		t.Fatalf("ApplySchedule: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected one statement, got %d", len(stub.calls))
	}

	// A rescheduled viewing starts over: neither party has arrived yet and
	// the meeting is unconfirmed, whatever the prior state was.
	sql := stub.calls[0].sql
	for _, reset := range []string{
		"seeker_arrived = false",
		"agent_arrived = false",
		"physical_meeting_confirmed = false",
		"actual_start_time = NULL",
	} {
		if !strings.Contains(sql, reset) {
			t.Errorf("ApplySchedule must reset %q, statement was:\n%s", reset, sql)
		}
	}

	args := stub.calls[0].args
	if len(args) != 5 {
		t.Fatalf("expected 5 args, got %d", len(args))
	}
	if args[0] != "2026-03-14" || args[1] != "14:00" || args[2] != "15:00" {
		t.Errorf("schedule args = %v %v %v", args[0], args[1], args[2])
	}
	if args[3] != releaseAt || args[4] != id {
		t.Errorf("release/id args = %v %v", args[3], args[4])
	}
}

func TestFinalizeCompletedSingleStatementLatch(t *testing.T) {
	stub := &stubQuerier{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewBookingRepo(stub)

	done, err := repo.FinalizeCompleted(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("FinalizeCompleted: %v", err)
	}
	if !done {
		t.Fatal("expected the update to report done")
	}
	if len(stub.calls) != 1 {
		t.Fatalf("finalization must be one conditional update, got %d statements", len(stub.calls))
	}

	// Status and payment flip together, guarded on the pre-finalized state.
	// Concurrent finalizers race to one winner; an already-released booking
	// can never release again, so at most one earning is ever written off it.
	sql := stub.calls[0].sql
	if !strings.Contains(sql, "status IN") || !strings.Contains(sql, "payment_status =") {
		t.Errorf("missing finalizable-state guard, statement was:\n%s", sql)
	}
	if !strings.Contains(sql, "completed_at = now()") {
		t.Errorf("missing completion stamp, statement was:\n%s", sql)
	}
}

func TestFinalizeCompletedLoserSeesZeroRows(t *testing.T) {
	stub := &stubQuerier{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewBookingRepo(stub)

	done, err := repo.FinalizeCompleted(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("FinalizeCompleted: %v", err)
	}
	if done {
		t.Fatal("an already-finalized booking must not report done")
	}
}

func TestMarkDisputedOnlyFromConfirmed(t *testing.T) {
	stub := &stubQuerier{tag: pgconn.NewCommandTag("UPDATE 1")}
	repo := NewBookingRepo(stub)

	ok, err := repo.MarkDisputed(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("MarkDisputed: %v", err)
	}
	if !ok {
		t.Fatal("expected the update to report done")
	}

	args := stub.calls[0].args
	if len(args) != 3 || args[0] != "disputed" || args[2] != "confirmed" {
		t.Errorf("expected a confirmed->disputed guard, args = %v", args)
	}
}

func TestSetOutcomeGuards(t *testing.T) {
	stub := &stubQuerier{tag: pgconn.NewCommandTag("UPDATE 0")}
	repo := NewBookingRepo(stub)

	ok, err := repo.SetOutcome(context.Background(), uuid.New(), "completed_satisfied")
	if err != nil {
		t.Fatalf("SetOutcome: %v", err)
	}
	if ok {
		t.Fatal("zero rows must not report the outcome as set")
	}

	sql := stub.calls[0].sql
	for _, guard := range []string{"outcome IS NULL", "physical_meeting_confirmed = true"} {
		if !strings.Contains(sql, guard) {
			t.Errorf("SetOutcome must guard on %q, statement was:\n%s", guard, sql)
		}
	}
}
