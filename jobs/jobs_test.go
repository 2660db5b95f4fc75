package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/recipe-app/recipe-api/internal/jobs"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "1", Queue: QueueDefault, Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

type fakeDeleter struct {
	keys []string
	err  error
}

func (f *fakeDeleter) Delete(ctx context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.keys = append(f.keys, key)
	return nil
}

type fakeInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (f fakeInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	return f.info, f.err
}

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func TestClientEnqueuesWelcome(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq, testMetrics())

	require.NoError(t, client.NotifyWelcome(context.Background(), 7, "cook@example.com", "Cook"))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskUserWelcome, enq.tasks[0].Type())

	var payload WelcomePayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &payload))
	assert.Equal(t, WelcomePayload{UserID: 7, Email: "cook@example.com", Name: "Cook"}, payload)
}

func TestClientEnqueuesImageCleanup(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq, nil)

	require.NoError(t, client.ScheduleImageCleanup(context.Background(), "recipes/abc.png"))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskRecipeImageCleanup, enq.tasks[0].Type())

	require.Error(t, client.ScheduleImageCleanup(context.Background(), ""))
	assert.Len(t, enq.tasks, 1)
}

func TestClientPropagatesEnqueueError(t *testing.T) {
	boom := errors.New("redis unavailable")
	client := NewClientWith(&fakeEnqueuer{err: boom}, testMetrics())
	assert.ErrorIs(t, client.NotifyWelcome(context.Background(), 1, "a@b.io", ""), boom)
}

func TestWelcomeJobHandle(t *testing.T) {
	job := NewWelcomeJob(nil, testMetrics())

	task, err := NewWelcomeTask(WelcomePayload{UserID: 1, Email: "a@b.io", Name: "A"})
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))

	err = job.Handle(context.Background(), asynq.NewTask(TaskUserWelcome, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = job.Handle(context.Background(), asynq.NewTask(TaskUserWelcome, []byte(`{"user_id":0}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestImageCleanupJobHandle(t *testing.T) {
	store := &fakeDeleter{}
	job := NewImageCleanupJob(store, nil, testMetrics())

	task, err := NewImageCleanupTask("recipes/old.jpg")
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, []string{"recipes/old.jpg"}, store.keys)

	err = job.Handle(context.Background(), asynq.NewTask(TaskRecipeImageCleanup, []byte(`{"key":""}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestImageCleanupJobRetriesStorageErrors(t *testing.T) {
	job := NewImageCleanupJob(&fakeDeleter{err: errors.New("timeout")}, nil, nil)
	task, err := NewImageCleanupTask("recipes/old.jpg")
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry))
}

func TestImageCleanupJobWithoutStorage(t *testing.T) {
	job := NewImageCleanupJob(nil, nil, nil)
	task, err := NewImageCleanupTask("recipes/old.jpg")
	require.NoError(t, err)
	assert.ErrorIs(t, job.Handle(context.Background(), task), asynq.SkipRetry)
}

func TestServeMuxDispatches(t *testing.T) {
	var handled []string
	mux := NewServeMux([]TaskHandler{
		{Type: TaskUserWelcome, Handler: func(ctx context.Context, task *asynq.Task) error {
			handled = append(handled, task.Type())
			return nil
		}},
		{Type: "", Handler: nil},
	})
	require.NoError(t, mux.ProcessTask(context.Background(), asynq.NewTask(TaskUserWelcome, nil)))
	assert.Equal(t, []string{TaskUserWelcome}, handled)
	assert.Error(t, mux.ProcessTask(context.Background(), asynq.NewTask("unknown:task", nil)))
}

func serveHealth(t *testing.T, inspector QueueInspector) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(inspector, nil).MountRoutes)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	return rr
}

func TestHealthReportsQueueInfo(t *testing.T) {
	rr := serveHealth(t, fakeInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 3, Active: 1}})
	require.Equal(t, http.StatusOK, rr.Code)

	var body queueHealth
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, queueHealth{Queue: QueueDefault, Pending: 3, Active: 1}, body)
}

func TestHealthWithoutInspector(t *testing.T) {
	rr := serveHealth(t, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"archived":0}`, rr.Body.String())
}

func TestHealthQueueErrors(t *testing.T) {
	rr := serveHealth(t, fakeInspector{err: asynq.ErrQueueNotFound})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = serveHealth(t, fakeInspector{err: errors.New("redis down")})
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
