package service

import (
	"fmt"
	"sync"
	"time"

	"github.com/zeromicro/go-zero/core/collection"
)

var newTimingWheel = collection.NewTimingWheel

const (
	// 1 second tick, 3600 slots; the wheel handles longer delays by circling
	schedulerTick  = time.Second
	schedulerSlots = 3600
)

// refreshScheduler runs the cache's "do this again after D" work: one-shot
// named timers whose delay is recomputed by the task itself on completion.
// All callbacks execute on the wheel's runner, serially across keys.
type refreshScheduler struct {
	tw       *collection.TimingWheel
	tick     time.Duration
	stopOnce sync.Once
}

func newRefreshScheduler() (*refreshScheduler, error) {
	return newRefreshSchedulerWithTick(schedulerTick, schedulerSlots)
}

func newRefreshSchedulerWithTick(tick time.Duration, slots int) (*refreshScheduler, error) {
	tw, err := newTimingWheel(tick, slots, func(_, value any) {
		if fn, ok := value.(func()); ok {
			fn()
		}
	})
	if err != nil {
		return nil, fmt.Errorf("create timing wheel: %w", err)
	}
	return &refreshScheduler{tw: tw, tick: tick}, nil
}

// Schedule arms (or re-arms) the named one-shot task. A non-positive delay
// means the token already sits inside the skew window, so the task runs on
// the next tick instead of erroring.
func (s *refreshScheduler) Schedule(key string, delay time.Duration, fn func()) {
	if delay < s.tick {
		delay = s.tick
	}
	_ = s.tw.SetTimer(key, fn, delay)
}

// Cancel drops the named task if one is armed.
func (s *refreshScheduler) Cancel(key string) {
	_ = s.tw.RemoveTimer(key)
}

func (s *refreshScheduler) Stop() {
	s.stopOnce.Do(func() {
		s.tw.Stop()
	})
}
