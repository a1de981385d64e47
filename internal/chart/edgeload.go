package chart

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/natelewis/whalewatch-sub003/internal/ports"
)

// Direction names the data edge a fetch should extend.
type Direction string

const (
	DirectionPast   Direction = "past"   // left edge, older history
	DirectionFuture Direction = "future" // right edge, newer bars
)

// FetchFunc loads more data beyond the given edge. The boolean reports
// whether any new data was actually loaded; returning false (or an error)
// releases the edge lock so the next qualifying approach can re-trigger.
type FetchFunc func(ctx context.Context, dir Direction) (bool, error)

// Scheduler defers a task past the current render call. The edge loader
// dispatches fetches through it so the data-load callback never runs inside
// the render stack that triggered it.
type Scheduler interface {
	Schedule(task func())
}

// AsyncScheduler runs each task on its own goroutine.
type AsyncScheduler struct{}

func (AsyncScheduler) Schedule(task func()) { go task() }

// EdgeStore holds the per-edge lock state: a cooperative "fetch in flight"
// flag plus the dataset length recorded when the lock was taken.
// Implementations decide how access is serialized; the loader only reads and
// writes through this interface.
type EdgeStore interface {
	// Edge returns the lock flag and recorded dataset length for a direction.
	Edge(dir Direction) (locked bool, length int)
	// Lock sets the flag and records the dataset length it was taken at.
	Lock(dir Direction, length int)
	// Release clears the flag and the recorded length.
	Release(dir Direction)
}

// EdgeState is the standard EdgeStore: one lock/length pair per edge behind
// a small mutex, since the fetch outcome is reconciled from the scheduler's
// goroutine while renders keep arriving on the caller's.
type EdgeState struct {
	mu    sync.Mutex
	left  edge
	right edge
}

type edge struct {
	locked bool
	length int
}

// NewEdgeState returns an unlocked edge store.
func NewEdgeState() *EdgeState { return &EdgeState{} }

func (s *EdgeState) Edge(dir Direction) (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.edge(dir)
	return e.locked, e.length
}

func (s *EdgeState) Lock(dir Direction, length int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.edge(dir)
	e.locked = true
	e.length = length
}

func (s *EdgeState) Release(dir Direction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.edge(dir)
	e.locked = false
	e.length = 0
}

func (s *EdgeState) edge(dir Direction) *edge {
	if dir == DirectionPast {
		return &s.left
	}
	return &s.right
}

// EdgeLoaderConfig configures the edge-trigger auto-loader.
type EdgeLoaderConfig struct {
	// Threshold is the maximum distance, in bars, between a viewport edge
	// and the matching data edge before a fetch is requested.
	Threshold int
	Scheduler Scheduler
	Logger    ports.Logger
}

// DefaultEdgeThreshold is the trigger distance used when none is configured.
const DefaultEdgeThreshold = 10

// EdgeLoader decides, per render, whether the viewport is close enough to a
// data edge to request more history or newer bars. The lock discipline
// collapses the many render ticks of a pan gesture into at most one
// in-flight request per edge, and the length-based reset guarantees a lock
// can never wedge: once the dataset size changes, the lock's premise is
// stale and it is dropped.
type EdgeLoader struct {
	threshold int
	sched     Scheduler
	logger    ports.Logger
}

// NewEdgeLoader creates an edge loader.
func NewEdgeLoader(cfg EdgeLoaderConfig) (*EdgeLoader, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for edge loader")
	}
	threshold := cfg.Threshold
	if threshold <= 0 {
		threshold = DefaultEdgeThreshold
	}
	sched := cfg.Scheduler
	if sched == nil {
		sched = AsyncScheduler{}
	}
	return &EdgeLoader{threshold: threshold, sched: sched, logger: cfg.Logger}, nil
}

// Check evaluates both edges for the given viewport. For each edge within
// threshold whose lock is clear, the lock is taken synchronously (before any
// deferred work, so a second render in the same gesture cannot double-fire)
// and the fetch is dispatched through the scheduler. On a single-point
// dataset both edges coincide and both directions trigger.
func (l *EdgeLoader) Check(ctx context.Context, store EdgeStore, viewStart, viewEnd, total int, fetch FetchFunc) {
	if total <= 0 || fetch == nil {
		return
	}

	distLeft := max(0, viewStart)
	distRight := max(0, total-1-viewEnd)

	l.checkEdge(ctx, store, DirectionPast, distLeft, total, fetch)
	l.checkEdge(ctx, store, DirectionFuture, distRight, total, fetch)
}

func (l *EdgeLoader) checkEdge(ctx context.Context, store EdgeStore, dir Direction, distance, total int, fetch FetchFunc) {
	locked, lockedAt := store.Edge(dir)
	if locked && lockedAt != total {
		// The dataset grew or shrank since the lock was taken; its premise
		// is stale so it no longer suppresses triggering.
		store.Release(dir)
		locked = false
	}
	if distance > l.threshold || locked {
		return
	}

	store.Lock(dir, total)
	requestID := uuid.NewString()
	l.logger.Debug(ctx, "edge approach, dispatching data load", map[string]interface{}{
		"direction": string(dir),
		"distance":  distance,
		"total":     total,
		"requestID": requestID,
	})

	l.sched.Schedule(func() {
		loaded, err := fetch(ctx, dir)
		if err != nil {
			// Never leave a permanent lock behind a failed fetch; that would
			// silently stop all future auto-loading at this edge.
			l.logger.Error(ctx, err, "edge data load failed", map[string]interface{}{
				"direction": string(dir),
				"requestID": requestID,
			})
			store.Release(dir)
			return
		}
		if !loaded {
			store.Release(dir)
			return
		}
		// Data arrived; the lock clears via the length-change reset on the
		// next render.
	})
}
