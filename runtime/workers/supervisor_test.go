package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"campus-dm/mocks"
)

func Test_Supervisor_Restarts_A_Failing_Worker(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	worker := mocks.NewMockWorker(ctrl)
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
			return ctx.Err()
		}
		return context.DeadlineExceeded
	}).AnyTimes()

	sup := NewSupervisor(slog.Default(), time.Millisecond).Add(worker)
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
	req.GreaterOrEqual(runs.Load(), int32(3))
}

func Test_Supervisor_Recovers_From_A_Panicking_Worker(t *testing.T) {
	ctrl := gomock.NewController(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	worker := mocks.NewMockWorker(ctrl)
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		if runs.Add(1) >= 2 {
			cancel()
			return ctx.Err()
		}
		panic("worker exploded")
	}).AnyTimes()

	sup := NewSupervisor(slog.Default(), time.Millisecond).Add(worker)
	done := make(chan struct{})
	go func() {
		sup.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not recover from the panic")
	}
}

func Test_Supervisor_Does_Not_Restart_A_Finished_Worker(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)

	var runs atomic.Int32
	worker := mocks.NewMockWorker(ctrl)
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(func(context.Context) error {
		runs.Add(1)
		return nil
	}).Times(1)

	sup := NewSupervisor(slog.Default(), time.Millisecond).Add(worker)
	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor kept running after its only worker finished")
	}
	req.Equal(int32(1), runs.Load())
}

func Test_Stop_Shuts_The_Group_Down(t *testing.T) {
	ctrl := gomock.NewController(t)

	started := make(chan struct{}, 1)
	worker := mocks.NewMockWorker(ctrl)
	worker.EXPECT().Run(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}).AnyTimes()

	sup := NewSupervisor(slog.Default(), time.Millisecond).Add(worker)
	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	<-started
	sup.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not end the supervised group")
	}
}
