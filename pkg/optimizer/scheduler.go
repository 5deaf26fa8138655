package optimizer

import "time"

// Task is a unit of deferred work.
type Task func()

type interval struct {
	id     int
	period time.Duration
	next   time.Time
	fn     Task
}

// Scheduler is the cooperative task queue standing in for the host's
// idle-callback and timer facilities. Everything runs on the goroutine that
// calls Tick; there is no locking and no preemption. Tasks deferred while a
// tick is running execute on the following tick, which keeps yield points
// (like progressive-load batch boundaries) observable to the caller and
// makes unit tests deterministic without a real event loop.
type Scheduler struct {
	deferred  []Task
	intervals []*interval
	nextID    int
	now       func() time.Time
	stopped   bool
}

func NewScheduler(now func() time.Time) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{now: now}
}

// Defer queues fn to run on the next tick.
func (s *Scheduler) Defer(fn Task) {
	if s.stopped || fn == nil {
		return
	}
	s.deferred = append(s.deferred, fn)
}

// Every registers fn to run each time period elapses, starting one period
// from now. The returned id cancels it.
func (s *Scheduler) Every(period time.Duration, fn Task) int {
	if s.stopped || fn == nil || period <= 0 {
		return 0
	}
	s.nextID++
	s.intervals = append(s.intervals, &interval{
		id:     s.nextID,
		period: period,
		next:   s.now().Add(period),
		fn:     fn,
	})
	return s.nextID
}

// CancelInterval removes a periodic task. Unknown ids are ignored.
func (s *Scheduler) CancelInterval(id int) {
	for i, iv := range s.intervals {
		if iv.id == id {
			s.intervals = append(s.intervals[:i], s.intervals[i+1:]...)
			return
		}
	}
}

// Tick runs every task that was queued before the tick began, then fires
// any intervals that have come due.
func (s *Scheduler) Tick() {
	if s.stopped {
		return
	}

	queue := s.deferred
	s.deferred = nil
	for _, fn := range queue {
		fn()
	}

	now := s.now()
	for _, iv := range s.intervals {
		if !now.Before(iv.next) {
			iv.next = now.Add(iv.period)
			iv.fn()
		}
	}
}

// Pending reports whether deferred work is queued for the next tick.
func (s *Scheduler) Pending() bool {
	return len(s.deferred) > 0
}

// Stop drops all pending and periodic work and refuses new registrations.
// Idempotent.
func (s *Scheduler) Stop() {
	s.stopped = true
	s.deferred = nil
	s.intervals = nil
}
