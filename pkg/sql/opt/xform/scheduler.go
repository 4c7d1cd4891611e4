// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package xform

import (
	"context"
	"time"

	"github.com/cockroachdb/cascades/pkg/sql/opt"
	"github.com/cockroachdb/cascades/pkg/sql/opt/opterrors"
	"github.com/cockroachdb/cascades/pkg/util/ring"
	"github.com/cockroachdb/cascades/pkg/util/taskset"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// job is a unit of search work. A job runs in steps: each call to run
// performs the next step, and may spawn child jobs through the scheduler.
// A job that spawned children is resumed only after all of them completed.
type job interface {
	// run performs the next step of the job and returns true if the job has
	// no steps left.
	run(o *Optimizer) (done bool)
}

// task tracks a scheduled job and its place in the job tree.
type task struct {
	job    job
	parent *task

	// pending is the number of children that have not completed.
	pending int
	// spawned are the children spawned by the current step, in order.
	spawned []*task
	// done is set once run returned true.
	done bool
}

// scheduler runs jobs depth first from a work list. The children of a step
// run in the order they were spawned, and each child's subtree completes
// before the next child starts. Jobs run on a single goroutine; only the
// compute phases of rule and cost batches fan out to workers.
type scheduler struct {
	work    ring.Buffer[*task]
	running *task

	// jobs is the number of jobs run so far, across all phases.
	jobs     int
	maxJobs  int
	deadline time.Time
	timeout  time.Duration
}

func (s *scheduler) init(maxJobs int, timeout time.Duration, now time.Time) {
	*s = scheduler{maxJobs: maxJobs, timeout: timeout}
	if timeout > 0 {
		s.deadline = now.Add(timeout)
	}
}

// spawn schedules a child of the running job.
func (s *scheduler) spawn(j job) {
	t := &task{job: j, parent: s.running}
	s.running.pending++
	s.running.spawned = append(s.running.spawned, t)
}

// runJob runs the job and its descendants to completion. Errors are raised
// as panics, and caught at the optimizer boundary.
func (s *scheduler) runJob(ctx context.Context, o *Optimizer, root job) {
	s.work.AddLast(&task{job: root})
	for s.work.Len() > 0 {
		s.checkBudget(ctx)
		t := s.work.GetLast()
		s.work.RemoveLast()
		s.jobs++
		o.metrics.Jobs.Inc(1)

		s.running = t
		t.done = t.job.run(o)
		s.running = nil

		if t.pending > 0 {
			// Push the children so that the first one spawned runs first.
			for i := len(t.spawned) - 1; i >= 0; i-- {
				s.work.AddLast(t.spawned[i])
			}
			t.spawned = t.spawned[:0]
			continue
		}
		if !t.done {
			s.work.AddLast(t)
			continue
		}
		s.complete(t)
	}
}

// complete resumes the parent of a finished job once all of its siblings
// finished too. A parent that has no steps left completes in turn.
func (s *scheduler) complete(t *task) {
	for p := t.parent; p != nil; p = p.parent {
		p.pending--
		if p.pending > 0 {
			return
		}
		if !p.done {
			s.work.AddLast(p)
			return
		}
	}
}

// checkBudget aborts the search when the context is canceled or a budget is
// exhausted.
func (s *scheduler) checkBudget(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		panic(errors.Wrap(err, "optimization canceled"))
	}
	if s.maxJobs > 0 && s.jobs >= s.maxJobs {
		panic(opterrors.NewResourceExceededError(opterrors.ResourceJobs, s.maxJobs))
	}
	if !s.deadline.IsZero() && timeNow().After(s.deadline) {
		panic(opterrors.NewResourceExceededError(opterrors.ResourceTime, s.timeout))
	}
}

// timeNow is overridden by tests.
var timeNow = time.Now

// runParallel calls fn for every index in [0, n), on up to the given number
// of workers. The workers claim adjacent indexes from a task set. fn must
// not modify the memo. A panic in fn is returned as an error.
func runParallel(ctx context.Context, workers, n int, fn func(i int)) error {
	if workers <= 1 || n <= 1 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return nil
	}
	if workers > n {
		workers = n
	}
	tasks := taskset.MakeTaskSet(int64(n))
	g, _ := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = opt.CatchOptimizerError(r)
				}
			}()
			for task := tasks.ClaimFirst(); !task.IsDone(); task = tasks.ClaimNext(task) {
				fn(int(task))
			}
			return nil
		})
	}
	return g.Wait()
}
