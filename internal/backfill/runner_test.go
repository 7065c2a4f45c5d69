package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinmuron/prostormat-sub002/internal/broadcasts"
	"github.com/martinmuron/prostormat-sub002/internal/eventrequests"
	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/pkg/response"
)

// pagedSource serves a fixed list in (created_at, id) order.
type pagedSource struct {
	mu    sync.Mutex
	items []models.EventRequest
	calls int
	err   error
}

func newPagedSource(n int) *pagedSource {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	s := &pagedSource{}
	for i := 0; i < n; i++ {
		s.items = append(s.items, models.EventRequest{ID: uuid.New(), ContactName: "c", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].CreatedAt.Before(s.items[j].CreatedAt) })
	return s
}

func (s *pagedSource) ListUnlinked(_ context.Context, after *eventrequests.Cursor, limit int) ([]models.EventRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.EventRequest
	for _, er := range s.items {
		if after != nil && !er.CreatedAt.After(after.CreatedAt) {
			continue
		}
		out = append(out, er)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// funcLinker records every request it sees.
type funcLinker struct {
	mu   sync.Mutex
	seen map[uuid.UUID]int
	fn   func(er *models.EventRequest) (*broadcasts.LinkResult, error)
}

func newFuncLinker(fn func(er *models.EventRequest) (*broadcasts.LinkResult, error)) *funcLinker {
	return &funcLinker{seen: map[uuid.UUID]int{}, fn: fn}
}

func (l *funcLinker) Link(_ context.Context, er *models.EventRequest) (*broadcasts.LinkResult, error) {
	l.mu.Lock()
	l.seen[er.ID]++
	l.mu.Unlock()
	return l.fn(er)
}

func TestRunner_CountsOutcomes(t *testing.T) {
	src := newPagedSource(10)
	outcomes := []func() (*broadcasts.LinkResult, error){
		func() (*broadcasts.LinkResult, error) {
			return &broadcasts.LinkResult{Linked: true, Outcome: broadcasts.OutcomeAlreadyLinked}, nil
		},
		func() (*broadcasts.LinkResult, error) {
			return &broadcasts.LinkResult{Linked: true, Outcome: broadcasts.OutcomeLinkedExisting}, nil
		},
		func() (*broadcasts.LinkResult, error) {
			return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
		},
		func() (*broadcasts.LinkResult, error) { return nil, broadcasts.ErrNoMatches },
		func() (*broadcasts.LinkResult, error) { return nil, errors.New("db down") },
	}
	index := map[uuid.UUID]int{}
	for i, er := range src.items {
		index[er.ID] = i % len(outcomes)
	}
	linker := newFuncLinker(func(er *models.EventRequest) (*broadcasts.LinkResult, error) {
		return outcomes[index[er.ID]]()
	})

	r := NewRunner(src, linker, Options{Workers: 3, BatchSize: 4}, nil)
	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 10, report.Processed)
	assert.Equal(t, 2, report.AlreadyLinked)
	assert.Equal(t, 2, report.LinkedExisting)
	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 2, report.NoMatches)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 3, src.calls, "pages of 4, 4 and 2")
}

func TestRunner_EachRequestLinkedOnce(t *testing.T) {
	src := newPagedSource(57)
	linker := newFuncLinker(func(*models.EventRequest) (*broadcasts.LinkResult, error) {
		return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
	})

	report, err := NewRunner(src, linker, Options{Workers: 8, BatchSize: 10}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 57, report.Created)
	require.Len(t, linker.seen, 57)
	for id, n := range linker.seen {
		assert.Equal(t, 1, n, id.String())
	}
}

func TestRunner_ExactMultipleOfBatchStopsOnEmptyPage(t *testing.T) {
	src := newPagedSource(4)
	linker := newFuncLinker(func(*models.EventRequest) (*broadcasts.LinkResult, error) {
		return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
	})

	report, err := NewRunner(src, linker, Options{Workers: 2, BatchSize: 2}, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Processed)
	assert.Equal(t, 3, src.calls)
}

func TestRunner_ListErrorAborts(t *testing.T) {
	src := newPagedSource(3)
	src.err = errors.New("timeout")

	_, err := NewRunner(src, newFuncLinker(nil), Options{}, nil).Run(context.Background())
	assert.EqualError(t, err, "timeout")
}

func TestRunner_CancelledContext(t *testing.T) {
	src := newPagedSource(5)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	linker := newFuncLinker(func(*models.EventRequest) (*broadcasts.LinkResult, error) {
		return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
	})

	_, err := NewRunner(src, linker, Options{Workers: 1, BatchSize: 10}, nil).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, linker.seen)
}

func TestRunner_RejectsOverlappingRuns(t *testing.T) {
	src := newPagedSource(1)
	release := make(chan struct{})
	started := make(chan struct{})
	linker := newFuncLinker(func(*models.EventRequest) (*broadcasts.LinkResult, error) {
		close(started)
		<-release
		return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
	})
	r := NewRunner(src, linker, Options{}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background())
		done <- err
	}()
	<-started

	_, err := r.Run(context.Background())
	assert.ErrorIs(t, err, ErrRunning)

	close(release)
	require.NoError(t, <-done)
}

func TestHandler_Run(t *testing.T) {
	gin.SetMode(gin.TestMode)
	src := newPagedSource(2)
	linker := newFuncLinker(func(*models.EventRequest) (*broadcasts.LinkResult, error) {
		return &broadcasts.LinkResult{Outcome: broadcasts.OutcomeCreated}, nil
	})
	h := NewHandler(NewRunner(src, linker, Options{}, nil))
	r := gin.New()
	r.POST("/backfill", h.Run)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/backfill", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		response.Body
		Data Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 2, body.Data.Created)
}

func TestScheduler_InvalidSpec(t *testing.T) {
	s := NewScheduler(NewRunner(newPagedSource(0), newFuncLinker(nil), Options{}, nil), "not a schedule", nil)
	assert.Error(t, s.Start(context.Background()))
}

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler(NewRunner(newPagedSource(0), newFuncLinker(nil), Options{}, nil), "@every 1h", nil)
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
}
