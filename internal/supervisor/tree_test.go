package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

type countingService struct {
	starts  int
	failAt  int
	started chan struct{}
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts++
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.failAt > 0 && s.starts <= s.failAt {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return nil
}

func TestSessionTreeRunsServices(t *testing.T) {
	tree := NewSessionTree(slog.Default(), TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	started := make(chan struct{}, 1)
	svc := &countingService{started: started}
	tree.AddNotifyService(svc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("service never started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("tree never stopped")
	}
}

func TestSessionTreeRestartsFailedService(t *testing.T) {
	tree := NewSessionTree(slog.Default(), TreeConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	svc := &countingService{failAt: 1, started: make(chan struct{}, 4)}
	token := tree.AddAutoUpdateService(svc)
	_ = token

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go tree.Serve(ctx)

	deadline := time.After(2 * time.Second)
	for svc.starts < 2 {
		select {
		case <-svc.started:
		case <-deadline:
			t.Fatalf("service only started %d times, want >= 2", svc.starts)
		}
	}
}

var _ suture.Service = (*countingService)(nil)
