package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeResult struct {
	rowsAffected int64
	err          error
}

func (r *fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r *fakeResult) RowsAffected() (int64, error) { return r.rowsAffected, r.err }

type mockExecutor struct {
	mu      sync.Mutex
	calls   int
	queries []string
	result  sql.Result
	err     error
}

func (m *mockExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.queries = append(m.queries, query)
	return m.result, m.err
}

func (m *mockExecutor) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func TestSessionCleanupJob_Run_DeletesExpiredSessions(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{rowsAffected: 4}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	deleted, err := job.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted != 4 {
		t.Errorf("deleted = %d, want 4", deleted)
	}
	if len(mock.queries) != 1 {
		t.Fatalf("queries = %d, want 1", len(mock.queries))
	}
	q := mock.queries[0]
	if !strings.Contains(q, "DELETE FROM sessions") || !strings.Contains(q, "expires_at < now()") {
		t.Errorf("unexpected query: %s", q)
	}
	if !strings.Contains(buf.String(), `"deleted_count":4`) {
		t.Errorf("completion log should include deleted_count, got %s", buf.String())
	}
}

func TestSessionCleanupJob_Run_ExecError(t *testing.T) {
	var buf bytes.Buffer
	dbErr := errors.New("connection refused")
	job := NewSessionCleanupJob(&mockExecutor{err: dbErr}, newTestLogger(&buf))

	_, err := job.Run(context.Background())
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped %v", err, dbErr)
	}
	if !strings.Contains(buf.String(), "session cleanup failed") {
		t.Errorf("failure should be logged, got %s", buf.String())
	}
}

func TestSessionCleanupJob_Run_RowsAffectedError(t *testing.T) {
	var buf bytes.Buffer
	job := NewSessionCleanupJob(&mockExecutor{result: &fakeResult{err: errors.New("unsupported")}}, newTestLogger(&buf))

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSessionCleanupJob_Start_RunsImmediatelyAndStops(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		job.Start(ctx, time.Hour)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mock.callCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
	if got := mock.callCount(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestSessionCleanupJob_Start_SkipsWhenAlreadyCancelled(t *testing.T) {
	var buf bytes.Buffer
	mock := &mockExecutor{result: &fakeResult{}}
	job := NewSessionCleanupJob(mock, newTestLogger(&buf))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	job.Start(ctx, time.Hour)

	if got := mock.callCount(); got != 0 {
		t.Errorf("calls = %d, want 0", got)
	}
}

type mockPruner struct {
	calls  []time.Time
	pruned int
}

func (m *mockPruner) PruneExpired(now time.Time) int {
	m.calls = append(m.calls, now)
	return m.pruned
}

func TestSessionCleanupJob_Run_PrunesInMemoryStates(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{pruned: 7}
	job := NewSessionCleanupJob(&mockExecutor{result: &fakeResult{rowsAffected: 2}}, newTestLogger(&buf), pruner)
	fixed := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return fixed }

	if _, err := job.Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pruner.calls) != 1 || !pruner.calls[0].Equal(fixed) {
		t.Errorf("prune calls = %v, want one call at %v", pruner.calls, fixed)
	}
	if !strings.Contains(buf.String(), `"pruned_states":7`) {
		t.Errorf("log should include pruned_states, got: %s", buf.String())
	}
}

func TestSessionCleanupJob_Run_PrunesEvenWhenDeleteFails(t *testing.T) {
	var buf bytes.Buffer
	pruner := &mockPruner{}
	job := NewSessionCleanupJob(&mockExecutor{err: errors.New("connection refused")}, newTestLogger(&buf), pruner)

	if _, err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(pruner.calls) != 1 {
		t.Errorf("prune calls = %d, want 1", len(pruner.calls))
	}
}
