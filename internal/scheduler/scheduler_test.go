package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/logging"
)

type fakeExpirer struct {
	calls int
	ttl   time.Duration
	err   error
}

func (f *fakeExpirer) ExpireStale(ctx context.Context, olderThan time.Duration) (int, error) {
	f.calls++
	f.ttl = olderThan
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("expected bounded context")
	}
	return 3, f.err
}

func TestExpirePendingRequests_PassesTTL(t *testing.T) {
	exp := &fakeExpirer{}
	jobs := NewJobs(exp, 48*time.Hour, time.Second, logging.Discard())

	jobs.ExpirePendingRequests()
	if exp.calls != 1 || exp.ttl != 48*time.Hour {
		t.Fatalf("unexpected expirer state %+v", exp)
	}

	exp.err = errors.New("boom")
	jobs.ExpirePendingRequests()
	if exp.calls != 2 {
		t.Fatalf("expected second call, got %d", exp.calls)
	}
}

func TestScheduler_DisabledWithoutTTL(t *testing.T) {
	s := New(NewJobs(&fakeExpirer{}, 0, time.Second, logging.Discard()), "@every 1m", logging.Discard())
	if s.Enabled() {
		t.Fatal("zero ttl should disable the job")
	}
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}

func TestScheduler_RejectsBadSchedule(t *testing.T) {
	s := New(NewJobs(&fakeExpirer{}, time.Hour, time.Second, logging.Discard()), "every tuesday", logging.Discard())
	if err := s.Start(); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestValidate(t *testing.T) {
	for _, ok := range []string{"", "@every 15m", "*/5 * * * *"} {
		if err := Validate(ok); err != nil {
			t.Fatalf("%q: unexpected error %v", ok, err)
		}
	}
	if err := Validate("61 * * * *"); err == nil {
		t.Fatal("expected invalid minute to be rejected")
	}
}
