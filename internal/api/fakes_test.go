package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/tasksync-api/internal/domain"
	"github.com/phrazzld/tasksync-api/internal/store"
)

// fakeGateway counts leases and can be told to fail acquisition.
type fakeGateway struct {
	mu         sync.Mutex
	acquired   int
	released   int
	acquireErr error
}

func (g *fakeGateway) WithConn(ctx context.Context, fn func(ctx context.Context, conn store.Conn) error) error {
	g.mu.Lock()
	if g.acquireErr != nil {
		g.mu.Unlock()
		return g.acquireErr
	}
	g.acquired++
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.released++
		g.mu.Unlock()
	}()
	return fn(ctx, nil)
}

func (g *fakeGateway) Ping(ctx context.Context) error {
	return g.WithConn(ctx, func(context.Context, store.Conn) error { return nil })
}

func (g *fakeGateway) counts() (acquired, released int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.acquired, g.released
}

// memoryTaskStore is an in-memory store.TaskStore with the same ordering
// and error contract as the PostgreSQL implementation.
type memoryTaskStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	order []string
	clock time.Time
	// failWith, when set, is returned by every operation.
	failWith error
}

func newMemoryTaskStore() *memoryTaskStore {
	return &memoryTaskStore{
		tasks: map[string]*domain.Task{},
		clock: time.Date(2024, 4, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (s *memoryTaskStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memoryTaskStore) ListByOwner(ctx context.Context, userID string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	out := make([]*domain.Task, 0)
	for i := len(s.order) - 1; i >= 0; i-- {
		if t := s.tasks[s.order[i]]; t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryTaskStore) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[taskID]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memoryTaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if err := task.Validate(); err != nil {
		return err
	}
	if _, exists := s.tasks[task.ID]; exists {
		return store.ErrTaskExists
	}
	now := s.tick()
	task.CreatedAt, task.UpdatedAt = now, now
	cp := *task
	s.tasks[task.ID] = &cp
	s.order = append(s.order, task.ID)
	return nil
}

func (s *memoryTaskStore) Update(ctx context.Context, taskID string, patch domain.TaskPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if patch.IsEmpty() {
		return store.ErrNoFields
	}
	t, ok := s.tasks[taskID]
	if !ok {
		return store.ErrTaskNotFound
	}
	patch.Apply(t)
	t.UpdatedAt = s.tick()
	return nil
}

type testServer struct {
	router  http.Handler
	gateway *fakeGateway
	store   *memoryTaskStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gw := &fakeGateway{}
	mem := newMemoryTaskStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	tasks := NewTaskHandler(gw, func(store.Conn) store.TaskStore { return mem }, log)
	health := NewHealthHandler(gw, "1.0", log)

	r := chi.NewRouter()
	RegisterRoutes(r, tasks, health)
	return &testServer{router: r, gateway: gw, store: mem}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}
