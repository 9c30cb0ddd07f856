// Package stream runs the background worker that keeps a SparseTileMap's
// live window centered on the last position the simulation posted.
package stream

import (
	"context"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"terragrain/telemetry"
	"terragrain/terrain"
)

// Options tunes a Worker.
type Options struct {
	// RadiusX, RadiusY are the load-window half-extents in meters.
	RadiusX float64
	RadiusY float64
	// Interval between streaming iterations.
	Interval time.Duration
	// SaveOnEvict drains the eviction buffer to the map's store each
	// iteration. Without it, evicted tiles are dropped on the next SaveMap
	// or at shutdown.
	SaveOnEvict bool
	// Logger for per-iteration failures. Defaults to a discard logger.
	Logger *log.Logger
	// Recorder receives per-iteration stats. May be nil.
	Recorder *telemetry.Recorder
}

// Worker streams tiles around the pending position of a SparseTileMap. The
// simulation posts positions with Map.PostPosition; the worker snapshots the
// target under the position lock, then loads and evicts under the map lock.
// The two locks are never held together.
//
// Lifecycle: Created -> Running (Start) -> StopRequested (Stop) -> Stopped.
// Stop is observed at the top of an iteration; an iteration in flight always
// finishes, so no tile mutation is ever cut short.
type Worker struct {
	m   *terrain.SparseTileMap
	opt Options

	seq      int
	started  atomic.Bool
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
	doneOnce sync.Once
}

// NewWorker wires a worker to a map. The worker holds only a non-owning
// reference; the map belongs to the simulation.
func NewWorker(m *terrain.SparseTileMap, opt Options) *Worker {
	if opt.Interval <= 0 {
		opt.Interval = 100 * time.Millisecond
	}
	if opt.Logger == nil {
		opt.Logger = log.New(io.Discard, "", 0)
	}
	return &Worker{
		m:    m,
		opt:  opt,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.started.Store(true)
	go func() { _ = w.Run(ctx) }()
}

// Run executes the streaming loop until Stop is called or ctx is canceled.
// Storage failures are counted and logged, never fatal to the loop.
func (w *Worker) Run(ctx context.Context) error {
	w.started.Store(true)
	defer w.doneOnce.Do(func() { close(w.done) })

	ticker := time.NewTicker(w.opt.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case <-ticker.C:
			w.step()
		}
	}
}

// Stop requests shutdown and waits for the current iteration to complete.
// Safe to call more than once. On a worker that never ran, Stop returns
// immediately; the stop request still applies if Run is called later.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	if !w.started.Load() {
		return
	}
	<-w.done
}

func (w *Worker) step() {
	pos, ok := w.m.PendingPosition()
	if !ok {
		return
	}
	start := time.Now()
	loaded, evicted := w.m.Update(pos, w.opt.RadiusX, w.opt.RadiusY)

	saved := 0
	saveErrors := 0
	if w.opt.SaveOnEvict {
		var err error
		saved, err = w.m.SaveMap()
		if err != nil {
			saveErrors++
			w.opt.Logger.Printf("save map: %v", err)
		}
	}

	w.seq++
	w.opt.Recorder.Record(telemetry.IterationStats{
		Seq:        w.seq,
		PosX:       pos.X,
		PosY:       pos.Y,
		Loaded:     loaded,
		Evicted:    evicted,
		Saved:      saved,
		SaveErrors: saveErrors,
		LiveTiles:  w.m.LiveTileCount(),
		ElapsedMs:  float64(time.Since(start).Microseconds()) / 1000,
	})
}
