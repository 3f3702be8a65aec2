package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mohammedpatel29/ReelResumeBuilderMP1/internal/talent"
)

func TestJobsTableDefaults(t *testing.T) {
	s := openTestStore(t)

	_, err := s.db.Exec(`INSERT INTO jobs (id, type, payload_json, run_after, created_at, updated_at)
		VALUES ('j1', 'match_job', '{"job_posting_id":1}', 'x', 'x', 'x')`)
	if err != nil {
		t.Fatalf("INSERT into jobs: %v", err)
	}

	var status string
	var attempts, maxAttempts int
	err = s.db.QueryRow(`SELECT status, attempts, max_attempts FROM jobs WHERE id = 'j1'`).
		Scan(&status, &attempts, &maxAttempts)
	if err != nil {
		t.Fatalf("SELECT from jobs: %v", err)
	}
	if status != "pending" || attempts != 0 || maxAttempts != 3 {
		t.Errorf("defaults = (%q, %d, %d), want (pending, 0, 3)", status, attempts, maxAttempts)
	}
}

func TestEnqueueAndClaimJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id, err := s.EnqueueJob(ctx, Job{Type: "match_job", PayloadJSON: `{"job_posting_id":1}`})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if id == "" {
		t.Fatal("EnqueueJob returned empty id")
	}

	got, err := s.ClaimNextJob(ctx, []string{"match_job"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil {
		t.Fatal("ClaimNextJob returned nil")
	}
	if got.ID != id {
		t.Errorf("ID = %q, want %q", got.ID, id)
	}
	if got.PayloadJSON != `{"job_posting_id":1}` {
		t.Errorf("PayloadJSON = %q", got.PayloadJSON)
	}
	if got.Status != "running" {
		t.Errorf("Status = %q, want %q", got.Status, "running")
	}
	if got.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", got.MaxAttempts)
	}
}

func TestClaimNextJob_Empty(t *testing.T) {
	s := openTestStore(t)

	got, err := s.ClaimNextJob(context.Background(), []string{"match_job"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestClaimNextJob_RespectRunAfter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-future", Type: "x", RunAfter: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for future run_after, got %+v", got)
	}
}

func TestClaimNextJob_TypeFilter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-a", Type: "a"}); err != nil {
		t.Fatalf("EnqueueJob a: %v", err)
	}
	if _, err := s.EnqueueJob(ctx, Job{ID: "j-b", Type: "b"}); err != nil {
		t.Fatalf("EnqueueJob b: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"b"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if got == nil || got.Type != "b" {
		t.Errorf("got %+v, want job of type b", got)
	}
}

func TestClaimNextJob_SkipsRunning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-first", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob first: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob first: %v", err)
	}
	if _, err := s.EnqueueJob(ctx, Job{ID: "j-second", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob second: %v", err)
	}

	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil {
		t.Fatalf("ClaimNextJob second: %v", err)
	}
	if got == nil || got.ID != "j-second" {
		t.Errorf("got %+v, want j-second", got)
	}
}

func TestHasOpenJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	payload := `{"job_posting_id":4}`

	open, err := s.HasOpenJob(ctx, "match_job", payload)
	if err != nil || open {
		t.Fatalf("HasOpenJob before enqueue = %v, %v; want false", open, err)
	}
	id, err := s.EnqueueJob(ctx, Job{Type: "match_job", PayloadJSON: payload})
	if err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if open, _ := s.HasOpenJob(ctx, "match_job", payload); !open {
		t.Error("HasOpenJob after enqueue = false, want true")
	}
	if err := s.CompleteJob(ctx, id); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
	if open, _ := s.HasOpenJob(ctx, "match_job", payload); open {
		t.Error("HasOpenJob after completion = true, want false")
	}
}

func TestCompleteJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-complete", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.CompleteJob(ctx, "j-complete"); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-complete")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != "completed" {
		t.Errorf("status = %q, want %q", j.Status, "completed")
	}
}

func TestCompleteJob_NotFound(t *testing.T) {
	s := openTestStore(t)
	if err := s.CompleteJob(context.Background(), "nope"); !errors.Is(err, talent.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFailJob_IncrementsAttempts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-fail-inc", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob(ctx, "j-fail-inc", "something broke"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-fail-inc")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", j.Attempts)
	}
	if j.Status != "pending" {
		t.Errorf("status = %q, want %q", j.Status, "pending")
	}
	if j.LastError != "something broke" {
		t.Errorf("last_error = %q, want %q", j.LastError, "something broke")
	}
}

func TestFailJob_MaxAttemptsReached(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-fail-max", Type: "x", MaxAttempts: 1}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.FailJob(ctx, "j-fail-max", "fatal"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-fail-max")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != "failed" {
		t.Errorf("status = %q, want %q", j.Status, "failed")
	}
}

func TestFailJob_SetsBackoff(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-backoff", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}

	before := time.Now().UTC()
	if err := s.FailJob(ctx, "j-backoff", "retry"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-backoff")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if !j.RunAfter.After(before) {
		t.Errorf("run_after %v should be after %v", j.RunAfter, before)
	}
}

func TestRequeueJob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.EnqueueJob(ctx, Job{ID: "j-requeue", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if _, err := s.ClaimNextJob(ctx, []string{"x"}); err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if err := s.RequeueJob(ctx, "j-requeue"); err != nil {
		t.Fatalf("RequeueJob: %v", err)
	}

	j, err := s.GetJob(ctx, "j-requeue")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if j.Status != "pending" || j.Attempts != 0 {
		t.Errorf("status=%q attempts=%d, want pending/0", j.Status, j.Attempts)
	}
	got, err := s.ClaimNextJob(ctx, []string{"x"})
	if err != nil || got == nil || got.ID != "j-requeue" {
		t.Errorf("reclaim = %+v, %v; want j-requeue", got, err)
	}
}

func TestRequeueJob_NotRunning(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	if _, err := s.EnqueueJob(ctx, Job{ID: "j-idle", Type: "x"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}
	if err := s.RequeueJob(ctx, "j-idle"); !errors.Is(err, talent.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestResetRunningJobs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"j-a", "j-b", "j-c"} {
		if _, err := s.EnqueueJob(ctx, Job{ID: id, Type: "x"}); err != nil {
			t.Fatalf("EnqueueJob %s: %v", id, err)
		}
	}
	var claimed []string
	for i := 0; i < 2; i++ {
		j, err := s.ClaimNextJob(ctx, []string{"x"})
		if err != nil || j == nil {
			t.Fatalf("ClaimNextJob: %v, %v", j, err)
		}
		claimed = append(claimed, j.ID)
	}
	if err := s.CompleteJob(ctx, claimed[0]); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}

	n, err := s.ResetRunningJobs(ctx)
	if err != nil {
		t.Fatalf("ResetRunningJobs: %v", err)
	}
	if n != 1 {
		t.Errorf("reset %d jobs, want 1", n)
	}
	want := map[string]string{"j-a": "pending", "j-b": "pending", "j-c": "pending"}
	want[claimed[0]] = "completed"
	for id, status := range want {
		j, err := s.GetJob(ctx, id)
		if err != nil {
			t.Fatalf("GetJob %s: %v", id, err)
		}
		if j.Status != status {
			t.Errorf("%s status = %q, want %q", id, j.Status, status)
		}
	}
}
