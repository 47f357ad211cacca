package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/service"
)

type fakeChecker struct {
	calls int
	ttl   time.Duration
	err   error
}

func (f *fakeChecker) RunLocked(ctx context.Context, ttl time.Duration) (*service.AffiliateCheckReport, error) {
	f.calls++
	f.ttl = ttl
	if f.err != nil {
		return nil, f.err
	}
	return &service.AffiliateCheckReport{ApprovedReferrals: 2}, nil
}

func TestNewSchedulerValidation(t *testing.T) {
	checker := &fakeChecker{}
	if _, err := NewScheduler(config.CronConfig{Enabled: false}, checker, nil); err == nil {
		t.Fatalf("expected error when cron disabled")
	}
	if _, err := NewScheduler(config.CronConfig{Enabled: true}, nil, nil); err == nil {
		t.Fatalf("expected error when checker nil")
	}
	if _, err := NewScheduler(config.CronConfig{Enabled: true, AffiliateCheck: "every day"}, checker, nil); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestNewSchedulerDefaults(t *testing.T) {
	s, err := NewScheduler(config.CronConfig{Enabled: true}, &fakeChecker{}, nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	if s.spec != defaultAffiliateCheckSpec {
		t.Fatalf("spec want %q got %q", defaultAffiliateCheckSpec, s.spec)
	}
	if s.lockTTL != defaultCheckLockTTL {
		t.Fatalf("lock ttl want %v got %v", defaultCheckLockTTL, s.lockTTL)
	}
	if s.Name() != "scheduler" {
		t.Fatalf("unexpected name %q", s.Name())
	}
}

func TestRunAffiliateCheckUsesConfiguredTTL(t *testing.T) {
	checker := &fakeChecker{}
	s, err := NewScheduler(config.CronConfig{Enabled: true, AffiliateCheck: "*/5 * * * *", LockTTLSeconds: 30}, checker, nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	s.runAffiliateCheck(context.Background())
	if checker.calls != 1 {
		t.Fatalf("expected one run, got %d", checker.calls)
	}
	if checker.ttl != 30*time.Second {
		t.Fatalf("ttl want 30s got %v", checker.ttl)
	}
}

func TestRunAffiliateCheckToleratesErrors(t *testing.T) {
	checker := &fakeChecker{err: service.ErrCheckInProgress}
	s, err := NewScheduler(config.CronConfig{Enabled: true}, checker, nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	s.runAffiliateCheck(context.Background())

	checker.err = errors.New("db down")
	s.runAffiliateCheck(context.Background())
	if checker.calls != 2 {
		t.Fatalf("expected two runs, got %d", checker.calls)
	}
}

func TestSchedulerStartStop(t *testing.T) {
	s, err := NewScheduler(config.CronConfig{Enabled: true}, &fakeChecker{}, nil)
	if err != nil {
		t.Fatalf("new scheduler failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := s.Stop(stopCtx); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
}
