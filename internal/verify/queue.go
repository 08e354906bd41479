package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"clubrun/internal/domain"
)

// Queue holds pending verification tasks and drains them with a single
// worker. Tasks run strictly one at a time: a drain pass is started only
// after checking-and-setting the running flag under the lock, so no two
// attempts ever overlap, which is what prevents duplicate payment dispatch.
//
// Dequeue honors retryAt: a task whose retry time is in the future is
// skipped until the clock reaches it, so backoff is a real gate, not an
// annotation. Among ready tasks order is FIFO; a deferred or retried task
// rejoins at the tail.
type Queue struct {
	worker *Worker
	now    func() time.Time

	mu         sync.Mutex
	cond       *sync.Cond
	items      []*domain.VerificationTask
	inflight   map[string]*domain.VerificationTask
	running    bool
	processing bool

	wake     chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func NewQueue(worker *Worker) *Queue {
	q := &Queue{
		worker:   worker,
		now:      worker.now,
		inflight: make(map[string]*domain.VerificationTask),
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue creates a task for the mission and appends it to the tail. A
// mission already queued or in flight is rejected rather than duplicated.
func (q *Queue) Enqueue(missionID, runnerID string, window domain.VerificationWindow) (domain.VerificationTask, error) {
	if missionID == "" {
		return domain.VerificationTask{}, fmt.Errorf("mission id required")
	}
	if runnerID == "" {
		return domain.VerificationTask{}, fmt.Errorf("runner id required")
	}
	task := &domain.VerificationTask{
		ID:          uuid.New().String(),
		MissionID:   missionID,
		RunnerID:    runnerID,
		Window:      window,
		Attempts:    0,
		MaxAttempts: q.worker.Config.MaxAttempts,
		CreatedAt:   q.now().UTC().Format(time.RFC3339),
	}

	q.mu.Lock()
	select {
	case <-q.stop:
		q.mu.Unlock()
		return domain.VerificationTask{}, fmt.Errorf("queue stopped")
	default:
	}
	if _, dup := q.inflight[missionID]; dup {
		q.mu.Unlock()
		return domain.VerificationTask{}, fmt.Errorf("mission %s already queued for verification", missionID)
	}
	q.inflight[missionID] = task
	q.items = append(q.items, task)
	start := !q.running
	if start {
		q.running = true
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	} else {
		q.Wake()
	}
	return *task, nil
}

// Wake nudges the drain loop to re-check for ready tasks, e.g. after the
// clock passes a retryAt.
func (q *Queue) Wake() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop halts draining. In-flight work finishes; queued tasks are abandoned.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stop) })
	q.Wake()
}

// Status returns the queued task for a mission, if any.
func (q *Queue) Status(missionID string) (domain.VerificationTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	task, ok := q.inflight[missionID]
	if !ok {
		return domain.VerificationTask{}, false
	}
	return *task, true
}

// Pending reports how many tasks are queued or in flight.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inflight)
}

// WaitIdle blocks until no attempt is processing and no queued task is
// ready at the current clock, or until ctx expires. Tasks parked on a
// future retryAt count as idle.
func (q *Queue) WaitIdle(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.mu.Lock()
		for q.processing || q.readyLocked() {
			q.cond.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		q.cond.Broadcast()
		return ctx.Err()
	}
}

// readyLocked reports whether any queued task may run at the current clock.
// Caller holds q.mu.
func (q *Queue) readyLocked() bool {
	now := q.now().UTC()
	for _, task := range q.items {
		if taskReady(task, now) {
			return true
		}
	}
	return false
}

func taskReady(task *domain.VerificationTask, now time.Time) bool {
	if task.RetryAt == nil {
		return true
	}
	retryAt, err := time.Parse(time.RFC3339, *task.RetryAt)
	if err != nil {
		return true
	}
	return !now.Before(retryAt)
}

// drain pops and processes ready tasks until none remain. Exactly one drain
// goroutine exists at a time.
func (q *Queue) drain() {
	for {
		task, wait, ok := q.next()
		if !ok {
			return
		}
		if task == nil {
			timer := time.NewTimer(wait)
			select {
			case <-q.wake:
			case <-timer.C:
			case <-q.stop:
				timer.Stop()
				q.goIdle()
				return
			}
			timer.Stop()
			continue
		}
		q.process(task)
	}
}

// next pops the first ready task and marks it processing. Returns
// (nil, wait, true) when only future-retry tasks remain, and
// (nil, 0, false) after flipping to idle when the queue is empty or
// stopped.
func (q *Queue) next() (*domain.VerificationTask, time.Duration, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	select {
	case <-q.stop:
		q.running = false
		q.cond.Broadcast()
		return nil, 0, false
	default:
	}

	now := q.now().UTC()
	earliest := time.Time{}
	for i, task := range q.items {
		if taskReady(task, now) {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.processing = true
			return task, 0, true
		}
		retryAt, _ := time.Parse(time.RFC3339, *task.RetryAt)
		if earliest.IsZero() || retryAt.Before(earliest) {
			earliest = retryAt
		}
	}
	if len(q.items) == 0 {
		q.running = false
		q.cond.Broadcast()
		return nil, 0, false
	}
	// All parked on future retries; release idle waiters and sleep until
	// the earliest one, or a wake.
	q.cond.Broadcast()
	wait := earliest.Sub(now)
	if wait < 10*time.Millisecond {
		wait = 10 * time.Millisecond
	}
	return nil, wait, true
}

func (q *Queue) goIdle() {
	q.mu.Lock()
	q.running = false
	q.cond.Broadcast()
	q.mu.Unlock()
}

func (q *Queue) process(task *domain.VerificationTask) {
	outcome := q.worker.Process(context.Background(), task)
	q.mu.Lock()
	switch outcome {
	case OutcomeDeferred, OutcomeRetry:
		q.items = append(q.items, task)
	default:
		delete(q.inflight, task.MissionID)
	}
	q.processing = false
	q.cond.Broadcast()
	q.mu.Unlock()
}
