// Package stats holds lightweight kernel counters and exports them as a
// pprof profile, adapted from and extending the teacher's stats package.
package stats

import (
	"sync/atomic"
	"time"

	"github.com/google/pprof/profile"
)

// Enabled gates whether counters actually accumulate, matching the
// teacher's compile-time Stats/Timing toggles.
const Enabled = true

// Counter is a statistical counter, incremented with atomic adds.
type Counter int64

// Inc increments the counter by one.
func (c *Counter) Inc() {
	if Enabled {
		atomic.AddInt64((*int64)(c), 1)
	}
}

// Add adds n to the counter.
func (c *Counter) Add(n int64) {
	if Enabled {
		atomic.AddInt64((*int64)(c), n)
	}
}

// Get returns the counter's current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64((*int64)(c))
}

// Scheduler holds the kernel-wide scheduling counters sampled into a
// pprof profile by Snapshot.
var Scheduler struct {
	ContextSwitches Counter
	ThreadsCreated  Counter
	ThreadsExited   Counter
	Yields          Counter
	Blocks          Counter
}

// Snapshot builds a pprof profile.Profile describing the current
// scheduler counters as a single sample, generalizing the teacher's
// Stats2String text dump into a tool-consumable format.
func Snapshot() *profile.Profile {
	sampleType := []*profile.ValueType{
		{Type: "context_switches", Unit: "count"},
		{Type: "threads_created", Unit: "count"},
		{Type: "threads_exited", Unit: "count"},
		{Type: "yields", Unit: "count"},
		{Type: "blocks", Unit: "count"},
	}
	fn := &profile.Function{ID: 1, Name: "scheduler"}
	loc := &profile.Location{ID: 1, Function: fn}
	sample := &profile.Sample{
		Location: []*profile.Location{loc},
		Value: []int64{
			Scheduler.ContextSwitches.Get(),
			Scheduler.ThreadsCreated.Get(),
			Scheduler.ThreadsExited.Get(),
			Scheduler.Yields.Get(),
			Scheduler.Blocks.Get(),
		},
	}
	return &profile.Profile{
		SampleType:    sampleType,
		Sample:        []*profile.Sample{sample},
		Function:      []*profile.Function{fn},
		Location:      []*profile.Location{loc},
		TimeNanos:     time.Now().UnixNano(),
		DurationNanos: 0,
	}
}
