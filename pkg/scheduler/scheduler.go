// Package scheduler runs a task once after a fixed delay. The valve
// controller uses it to hold the interlock while the valve spring returns and
// to retry calls that arrived while a transition was in progress.
package scheduler

import (
	"context"
	"sync"
	"time"
)

// Schedule runs task after waitTime. Canceling ctx cancels the job.
func Schedule(ctx context.Context, task Task, waitTime time.Duration) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	j := &Job{
		task:   task,
		due:    time.Now().Add(waitTime),
		cancel: cancel,
	}
	go j.run(jobCtx, waitTime)
	return j
}

// A Task is the work performed by a Job.
type Task interface {
	Run(ctx context.Context) error
}

// RunFunc adapts an ordinary function to the Task interface.
type RunFunc func(ctx context.Context) error

// Run calls f.
func (f RunFunc) Run(ctx context.Context) error { return f(ctx) }

// A Job is a single scheduled invocation of a Task.
type Job struct {
	task   Task
	due    time.Time
	cancel context.CancelFunc
	state  state
	err    error
	lock   sync.RWMutex
}

func (j *Job) run(ctx context.Context, waitTime time.Duration) {
	j.setState(stateScheduled, nil)
	select {
	case <-ctx.Done():
		return
	case <-time.After(waitTime):
		err := j.task.Run(ctx)
		s := stateCompleted
		if err != nil {
			s = stateFailed
		}
		j.setState(s, err)
	}
}

// Cancel stops the job. It has no effect once the task has started running.
func (j *Job) Cancel() {
	j.cancel()
	j.setState(stateCanceled, nil)
}

// Due returns the time the job is scheduled to run.
func (j *Job) Due() time.Time {
	return j.due
}

// Result reports whether the job has finished, and the error the task
// returned, if any.
func (j *Job) Result() (completed bool, err error) {
	var result state
	result, err = j.getState()
	if completed = result.done(); completed {
		j.cancel()
	}
	return completed, err
}

func (j *Job) setState(state state, err error) {
	j.lock.Lock()
	defer j.lock.Unlock()
	j.state = state
	j.err = err
}

func (j *Job) getState() (state, error) {
	j.lock.RLock()
	defer j.lock.RUnlock()
	return j.state, j.err
}

type state int

const (
	stateUnknown state = iota
	stateScheduled
	stateCanceled
	stateCompleted
	stateFailed
)

func (s state) done() bool {
	return s == stateCompleted || s == stateFailed || s == stateCanceled
}
