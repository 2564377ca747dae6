package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studyhall/studyhall-api/internal/config"
	"github.com/studyhall/studyhall-api/internal/domain"
)

type stubTask struct {
	id       uuid.UUID
	executed chan struct{}
	block    chan struct{}
}

func newStubTask() *stubTask {
	return &stubTask{id: uuid.New(), executed: make(chan struct{})}
}

func (s *stubTask) ID() uuid.UUID { return s.id }

func (s *stubTask) Execute(_ context.Context) error {
	close(s.executed)
	if s.block != nil {
		<-s.block
	}
	return nil
}

func testTaskConfig() config.TaskConfig {
	return config.TaskConfig{
		WorkerCount:            2,
		QueueSize:              4,
		StuckTaskAge:           time.Minute,
		StuckTaskCheckInterval: time.Hour,
	}
}

func TestRunnerExecutesSubmittedTasks(t *testing.T) {
	t.Parallel()

	runner := NewRunner(newFakeTaskStore(), testTaskConfig(), nil)
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	st := newStubTask()
	require.NoError(t, runner.Submit(st))

	select {
	case <-st.executed:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not executed")
	}
}

func TestRunnerSubmitBeforeStart(t *testing.T) {
	t.Parallel()

	runner := NewRunner(newFakeTaskStore(), testTaskConfig(), nil)
	err := runner.Submit(newStubTask())
	assert.ErrorIs(t, err, ErrRunnerStopped)
}

func TestRunnerQueueFull(t *testing.T) {
	t.Parallel()

	cfg := testTaskConfig()
	cfg.WorkerCount = 1
	cfg.QueueSize = 1

	runner := NewRunner(newFakeTaskStore(), cfg, nil)
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	// Occupy the single worker, then fill the single queue slot.
	blocker := newStubTask()
	blocker.block = make(chan struct{})
	defer close(blocker.block)

	require.NoError(t, runner.Submit(blocker))
	<-blocker.executed

	require.NoError(t, runner.Submit(newStubTask()))

	var sawFull bool
	for i := 0; i < 10; i++ {
		if err := runner.Submit(newStubTask()); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			sawFull = true
			break
		}
	}
	assert.True(t, sawFull, "expected a full queue rejection")
}

func TestRunnerStartSweepsOrphanedTasks(t *testing.T) {
	t.Parallel()

	tasks := newFakeTaskStore()
	orphan, err := domain.NewGenerationTask(uuid.New(), uuid.New(), domain.KindAll)
	require.NoError(t, err)
	tasks.add(orphan)

	runner := NewRunner(tasks, testTaskConfig(), nil)
	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	assert.Equal(t, domain.TaskStatusFailed, orphan.Status)
	assert.Equal(t, reasonInterrupted, orphan.ErrorMessage)
}

func TestRunnerStopIsIdempotent(t *testing.T) {
	t.Parallel()

	runner := NewRunner(newFakeTaskStore(), testTaskConfig(), nil)
	require.NoError(t, runner.Start(context.Background()))

	runner.Stop()
	runner.Stop()

	assert.ErrorIs(t, runner.Submit(newStubTask()), ErrRunnerStopped)
}

func TestInlineExecutorRunsOnCaller(t *testing.T) {
	t.Parallel()

	var ran atomic.Bool
	st := newStubTask()
	go func() {
		<-st.executed
		ran.Store(true)
	}()

	require.NoError(t, InlineExecutor{}.Dispatch(context.Background(), st))
	assert.Eventually(t, ran.Load, time.Second, 10*time.Millisecond)
}

func TestParseExecutionMode(t *testing.T) {
	t.Parallel()

	mode, err := ParseExecutionMode("inline")
	require.NoError(t, err)
	assert.Equal(t, ModeInline, mode)

	mode, err = ParseExecutionMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeDeferred, mode)

	_, err = ParseExecutionMode("sometime")
	assert.ErrorIs(t, err, ErrInvalidExecutionMode)
}
