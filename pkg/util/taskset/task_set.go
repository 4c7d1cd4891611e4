// Copyright 2025 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package taskset hands out the indexes of a fixed batch of tasks to a pool
// of workers.
package taskset

import "github.com/cockroachdb/cascades/pkg/util/syncutil"

// TaskID identifies a task of a batch. Tasks are numbered from 0.
type TaskID int64

// TaskIDDone is returned once every task has been claimed.
const TaskIDDone = TaskID(-1)

// IsDone returns true for TaskIDDone.
func (t TaskID) IsDone() bool {
	return t == TaskIDDone
}

type taskSpan struct {
	start TaskID
	end   TaskID
}

func (t taskSpan) size() int64 {
	return int64(t.end - t.start)
}

func (t taskSpan) split() (taskSpan, taskSpan) {
	mid := t.start + TaskID(t.size()/2)
	return taskSpan{start: t.start, end: mid}, taskSpan{start: mid, end: t.end}
}

// TaskSet manages a batch of tasks claimed by concurrent workers. A worker
// that finishes task n claims task n+1 if it is still available, so that
// each worker walks a run of adjacent tasks. Otherwise the largest run of
// unclaimed tasks is split in two, and the worker claims the start of the
// right half.
//
// Every task is claimed exactly once. TaskSet is safe for concurrent use.
type TaskSet struct {
	mu struct {
		syncutil.Mutex
		unassigned []taskSpan
	}
}

// MakeTaskSet returns a set of tasks numbered [0, taskCount).
func MakeTaskSet(taskCount int64) *TaskSet {
	t := &TaskSet{}
	if taskCount > 0 {
		t.mu.unassigned = []taskSpan{{start: 0, end: TaskID(taskCount)}}
	}
	return t
}

// ClaimFirst returns the first task of a worker, or TaskIDDone if every task
// was claimed.
func (t *TaskSet) ClaimFirst() TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.claimFirstLocked()
}

// ClaimNext returns the next task of a worker that finished lastTask, or
// TaskIDDone if every task was claimed.
func (t *TaskSet) ClaimNext(lastTask TaskID) TaskID {
	t.mu.Lock()
	defer t.mu.Unlock()
	next := lastTask + 1
	for i, span := range t.mu.unassigned {
		if span.start != next {
			continue
		}
		span.start++
		if span.size() == 0 {
			t.removeSpanLocked(i)
		} else {
			t.mu.unassigned[i] = span
		}
		return next
	}
	return t.claimFirstLocked()
}

func (t *TaskSet) claimFirstLocked() TaskID {
	if len(t.mu.unassigned) == 0 {
		return TaskIDDone
	}
	largest := 0
	for i := range t.mu.unassigned {
		if t.mu.unassigned[largest].size() < t.mu.unassigned[i].size() {
			largest = i
		}
	}

	span := t.mu.unassigned[largest]
	if span.size() == 1 {
		t.removeSpanLocked(largest)
		return span.start
	}

	left, right := span.split()
	t.mu.unassigned[largest] = left
	task := right.start
	right.start++
	if right.size() != 0 {
		t.insertSpanLocked(right, largest+1)
	}
	return task
}

func (t *TaskSet) insertSpanLocked(span taskSpan, index int) {
	t.mu.unassigned = append(t.mu.unassigned, taskSpan{})
	copy(t.mu.unassigned[index+1:], t.mu.unassigned[index:])
	t.mu.unassigned[index] = span
}

func (t *TaskSet) removeSpanLocked(index int) {
	t.mu.unassigned = append(t.mu.unassigned[:index], t.mu.unassigned[index+1:]...)
}
