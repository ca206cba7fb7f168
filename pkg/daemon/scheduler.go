package daemon

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// TaskFunc represents a runnable task.
type TaskFunc func() error

// ErrorFunc is called when a scheduled run fails.
type ErrorFunc func(error)

// Scheduler runs the recalibration task on a cron schedule. A scheduler
// with no schedule set idles until one arrives.
type Scheduler struct {
	Task    TaskFunc
	OnError ErrorFunc

	parser cron.Parser

	mu       sync.Mutex
	schedule cron.Schedule
	nextRun  time.Time
	running  bool

	controlCh chan struct{}
	stopCh    chan struct{}
}

func NewScheduler(task TaskFunc, onError ErrorFunc) *Scheduler {
	if task == nil {
		panic("task function cannot be nil")
	}

	return &Scheduler{
		Task:      task,
		OnError:   onError,
		parser:    cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		controlCh: make(chan struct{}, 4),
		stopCh:    make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	go s.loop()
}

func (s *Scheduler) Stop() {
	select {
	case <-s.stopCh: // already closed
	default:
		close(s.stopCh)
	}
}

// Schedule replaces the cron schedule. The loop, if running, picks the new
// schedule up immediately.
func (s *Scheduler) Schedule(cronExpr string) error {
	sh, err := s.parser.Parse(cronExpr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.schedule = sh
	s.nextRun = sh.Next(time.Now())
	s.mu.Unlock()

	s.poke()
	return nil
}

// Unschedule clears the schedule; the loop goes back to idling.
func (s *Scheduler) Unschedule() {
	s.mu.Lock()
	s.schedule = nil
	s.nextRun = time.Time{}
	s.mu.Unlock()

	s.poke()
}

// Skip advances past the next scheduled run without executing it.
func (s *Scheduler) Skip() {
	s.mu.Lock()
	if s.schedule != nil && !s.nextRun.IsZero() {
		s.nextRun = s.schedule.Next(s.nextRun)
	}
	s.mu.Unlock()

	s.poke()
}

func (s *Scheduler) Status() (nextRun time.Time, running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextRun = s.nextRun
	running = s.running
	return
}

func (s *Scheduler) loop() {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		logrus.Debug("scheduler stopped")
	}()

	logrus.Debug("scheduler started")

	for {
		_, nextRun := s.snapshot()

		var timer *time.Timer
		if nextRun.IsZero() {
			// No schedule; wait for a poke.
			timer = time.NewTimer(time.Hour * 10000)
		} else {
			wait := time.Until(nextRun)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
		}

		select {
		case <-timer.C:
			if nextRun.IsZero() {
				continue
			}

			logrus.Debugf("running scheduled recalibration at %s", nextRun.Format(time.DateTime))
			go func() {
				if err := s.Task(); err != nil && s.OnError != nil {
					s.OnError(err)
				}
			}()
			s.advanceNextRun()
		case <-s.stopCh:
			timer.Stop()
			return
		case <-s.controlCh:
			// Schedule changed; recompute the wait.
			timer.Stop()
		}
	}
}

func (s *Scheduler) snapshot() (cron.Schedule, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule, s.nextRun
}

func (s *Scheduler) advanceNextRun() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schedule == nil {
		return
	}
	s.nextRun = s.schedule.Next(s.nextRun)
}

func (s *Scheduler) poke() {
	select {
	case s.controlCh <- struct{}{}:
	default:
	}
}
