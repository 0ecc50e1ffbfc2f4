package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/hangeul/internal/assessment"
	"github.com/abhisek/hangeul/internal/events"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenClose(t *testing.T) {
	s := openTestStore(t)
	if s.DB() == nil {
		t.Fatal("expected non-nil db")
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so journal_mode is checked with a file-based DB below.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "hangeul.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal_mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{tableSessionEvents, tableAttemptResults, "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s: %v", table, err)
		}
	}
}

func TestMigrationCreatesIndexes(t *testing.T) {
	s := openTestStore(t)
	for _, index := range []string{"session_events_session_id", "attempt_results_completed_at"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='index' AND name=?", index,
		).Scan(&name)
		if err != nil {
			t.Fatalf("index %s: %v", index, err)
		}
	}
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := migrate(ctx, s.drv); err != nil {
			t.Fatalf("migrate #%d: %v", i+1, err)
		}
	}

	// Column defaults survive the round trip through the DDL.
	if _, err := s.DB().Exec(`INSERT INTO attempt_results
		(session_id, assessment_id, score, passed, correct, total, time_taken, auto_submitted, completed_at)
		VALUES ('s1', 'a', 80, 1, 4, 5, 30, 0, '2026-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var title string
	if err := s.DB().QueryRow("SELECT title FROM attempt_results WHERE session_id = 's1'").Scan(&title); err != nil {
		t.Fatalf("select: %v", err)
	}
	if title != "" {
		t.Errorf("title = %q, want empty default", title)
	}

	_, err := s.DB().Exec(`INSERT INTO attempt_results
		(session_id, assessment_id, score, passed, correct, total, time_taken, auto_submitted, completed_at)
		VALUES ('s1', 'a', 0, 0, 0, 5, 30, 0, '2026-01-01T00:00:00Z')`)
	if err == nil {
		t.Error("expected unique constraint on session_id")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hangeul.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AttemptRepo().Save(ctx, Attempt{SessionID: "s1", AssessmentID: "a", CompletedAt: time.Now()}); err != nil {
		t.Fatalf("save: %v", err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.AttemptRepo().Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("attempts after reopen = %d, want 1", len(got))
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestEventAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	repo := s.EventRepo()
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	// Appended out of order; Query sorts by timestamp.
	evs := []events.SessionEvent{
		events.New(events.TypeSubmitting, "s1", "topik-1", base.Add(2*time.Minute)),
		events.New(events.TypeStarted, "s1", "topik-1", base),
		events.New(events.TypeStarted, "s2", "quiz-3", base.Add(time.Minute)),
	}
	evs[0].Answered = 9
	for _, ev := range evs {
		if err := repo.Append(ctx, ev); err != nil {
			t.Fatalf("append %s: %v", ev.Type, err)
		}
	}

	all, err := repo.Query(ctx, QueryOpts{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("events = %d, want 3", len(all))
	}
	if all[0].Action != events.TypeStarted || all[0].SessionID != "s1" {
		t.Errorf("first = %s/%s, want s1 started", all[0].SessionID, all[0].Action)
	}
	if !all[2].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("last timestamp = %v", all[2].Timestamp)
	}
	if all[2].Payload.Answered != 9 {
		t.Errorf("payload answered = %d, want 9", all[2].Payload.Answered)
	}
	if all[2].Sequence != 1 {
		t.Errorf("sequence = %d, want 1 (first appended)", all[2].Sequence)
	}

	s1, err := repo.Query(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query s1: %v", err)
	}
	if len(s1) != 2 {
		t.Errorf("s1 events = %d, want 2", len(s1))
	}

	windowed, err := repo.Query(ctx, QueryOpts{From: base.Add(30 * time.Second), To: base.Add(90 * time.Second)})
	if err != nil {
		t.Fatalf("query window: %v", err)
	}
	if len(windowed) != 1 || windowed[0].SessionID != "s2" {
		t.Errorf("windowed = %+v, want the s2 event", windowed)
	}

	after, err := repo.Query(ctx, QueryOpts{After: 1, Limit: 1})
	if err != nil {
		t.Fatalf("query after: %v", err)
	}
	if len(after) != 1 || after[0].Sequence != 2 {
		t.Errorf("after = %+v, want sequence 2", after)
	}
}

func TestAttemptRecentNewestFirst(t *testing.T) {
	s := openTestStore(t)
	repo := s.AttemptRepo()
	ctx := context.Background()

	base := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		err := repo.Save(ctx, Attempt{
			SessionID:        fmt.Sprintf("s%d", i),
			AssessmentID:     "topik-1",
			Title:            "TOPIK I",
			Score:            i * 25,
			Passed:           i >= 2,
			Correct:          i,
			Total:            4,
			TimeTakenSeconds: 100 + i,
			CompletedAt:      base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	got, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("recent = %d, want 2", len(got))
	}
	if got[0].SessionID != "s3" || got[1].SessionID != "s2" {
		t.Errorf("order = %s,%s want s3,s2", got[0].SessionID, got[1].SessionID)
	}
	if !got[0].Passed || got[0].Score != 75 || got[0].TimeTakenSeconds != 103 {
		t.Errorf("attempt = %+v", got[0])
	}
	if !got[0].CompletedAt.Equal(base.Add(3 * time.Hour)) {
		t.Errorf("completed_at = %v", got[0].CompletedAt)
	}
}

func TestAttemptSaveIsIdempotentPerSession(t *testing.T) {
	s := openTestStore(t)
	repo := s.AttemptRepo()
	ctx := context.Background()

	a := Attempt{SessionID: "dup", AssessmentID: "a", Score: 10, CompletedAt: time.Now()}
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("save: %v", err)
	}
	a.Score = 90
	if err := repo.Save(ctx, a); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := repo.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 1 || got[0].Score != 10 {
		t.Errorf("attempts = %+v, want one with score 10", got)
	}
}

func TestJournalHandle(t *testing.T) {
	s := openTestStore(t)
	j := NewJournal(s, nil)
	ctx := context.Background()
	at := time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)

	started := events.New(events.TypeStarted, "s1", "topik-1", at)
	completed := events.New(events.TypeCompleted, "s1", "topik-1", at.Add(10*time.Minute))
	completed.Title = "TOPIK I Reading"
	completed.TimeTakenSeconds = 600
	completed.AutoSubmitted = true
	completed.Result = &assessment.Result{Score: 80, Passed: true, CorrectAnswers: 8, TotalQuestions: 10}

	for _, ev := range []events.SessionEvent{started, completed} {
		if err := j.Handle(ctx, ev); err != nil {
			t.Fatalf("handle %s: %v", ev.Type, err)
		}
	}

	recs, err := s.EventRepo().Query(ctx, QueryOpts{SessionID: "s1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(recs) != 2 {
		t.Errorf("journaled = %d, want 2", len(recs))
	}

	attempts, err := s.AttemptRepo().Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(attempts) != 1 {
		t.Fatalf("attempts = %d, want 1", len(attempts))
	}
	a := attempts[0]
	if a.Title != "TOPIK I Reading" || a.Score != 80 || !a.Passed || a.Correct != 8 || a.Total != 10 {
		t.Errorf("attempt = %+v", a)
	}
	if a.TimeTakenSeconds != 600 || !a.AutoSubmitted {
		t.Errorf("attempt timing = %d auto=%v", a.TimeTakenSeconds, a.AutoSubmitted)
	}
}

func TestJournalRunsOnBus(t *testing.T) {
	s := openTestStore(t)
	bus := events.NewBus(events.BusConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done, err := NewJournal(s, nil).Run(ctx, bus)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	ev := events.New(events.TypeCompleted, "bus-1", "quiz-1", time.Now())
	ev.Result = &assessment.Result{Score: 50, TotalQuestions: 2, CorrectAnswers: 1}
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := s.AttemptRepo().Recent(ctx, 0)
		if err != nil {
			t.Fatalf("recent: %v", err)
		}
		if len(got) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("attempt was not journaled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	bus.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("journal did not stop with the bus")
	}
}

func TestJournalDrainsOnBusClose(t *testing.T) {
	s := openTestStore(t)
	bus := events.NewBus(events.BusConfig{})
	ctx := context.Background()

	done, err := NewJournal(s, nil).Run(ctx, bus)
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for i := 0; i < 30; i++ {
		if err := bus.Publish(ctx, events.New(events.TypeSubmitting, "drain-1", "quiz-1", time.Now())); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	ev := events.New(events.TypeCompleted, "drain-1", "quiz-1", time.Now())
	ev.Result = &assessment.Result{Score: 100, TotalQuestions: 1, CorrectAnswers: 1, Passed: true}
	if err := bus.Publish(ctx, ev); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	<-done

	got, err := s.EventRepo().Query(ctx, QueryOpts{SessionID: "drain-1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 31 {
		t.Fatalf("journaled events = %d, want 31", len(got))
	}
	if got[30].Action != events.TypeCompleted {
		t.Errorf("last journaled = %s, want %s", got[30].Action, events.TypeCompleted)
	}
	attempts, err := s.AttemptRepo().Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(attempts))
	}
}

func TestDefaultDBPath_Env(t *testing.T) {
	p := filepath.Join(t.TempDir(), "nested", "custom.db")
	t.Setenv("HANGEUL_DB", p)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if got != p {
		t.Errorf("path = %q, want %q", got, p)
	}
}

func TestDefaultDBPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HANGEUL_DB", "")
	t.Setenv("XDG_DATA_HOME", dir)

	got, err := DefaultDBPath()
	if err != nil {
		t.Fatalf("default db path: %v", err)
	}
	if want := filepath.Join(dir, "hangeul", "hangeul.db"); got != want {
		t.Errorf("path = %q, want %q", got, want)
	}
}
