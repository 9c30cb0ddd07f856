// Package telemetry records streaming-worker statistics and writes them as
// CSV for offline analysis.
package telemetry

import "sync"

// IterationStats is one streaming iteration's record.
type IterationStats struct {
	Seq        int     `csv:"seq"`
	PosX       float64 `csv:"pos_x"`
	PosY       float64 `csv:"pos_y"`
	Loaded     int     `csv:"tiles_loaded"`
	Evicted    int     `csv:"tiles_evicted"`
	Saved      int     `csv:"tiles_saved"`
	SaveErrors int     `csv:"save_errors"`
	LiveTiles  int     `csv:"live_tiles"`
	ElapsedMs  float64 `csv:"elapsed_ms"`
}

// Totals aggregates iteration stats over the worker's lifetime.
type Totals struct {
	Iterations int
	Loaded     int
	Evicted    int
	Saved      int
	SaveErrors int
}

// Recorder accumulates totals and optionally streams per-iteration rows to an
// Output. A nil Recorder is valid and records nothing.
type Recorder struct {
	mu     sync.Mutex
	totals Totals
	out    *Output
}

// NewRecorder returns a recorder writing rows to out. out may be nil.
func NewRecorder(out *Output) *Recorder {
	return &Recorder{out: out}
}

// Record folds one iteration into the totals and appends a CSV row when an
// output is attached. Output failures are swallowed; telemetry never stalls
// streaming.
func (r *Recorder) Record(s IterationStats) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.totals.Iterations++
	r.totals.Loaded += s.Loaded
	r.totals.Evicted += s.Evicted
	r.totals.Saved += s.Saved
	r.totals.SaveErrors += s.SaveErrors
	out := r.out
	r.mu.Unlock()

	if out != nil {
		_ = out.WriteIteration(s)
	}
}

// Totals returns a copy of the lifetime aggregates.
func (r *Recorder) Totals() Totals {
	if r == nil {
		return Totals{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals
}
