package utils

import (
	"sync"
	"time"
)

type IntervalTimer interface {
	Stop()
}

type timeInterval struct {
	once sync.Once
	quit chan struct{}
}

// Stop is safe to call more than once.
func (t *timeInterval) Stop() {
	t.once.Do(func() { close(t.quit) })
}

func SetIntervalTimer(duration time.Duration, function func()) IntervalTimer {
	ticker := time.NewTicker(duration)
	quit := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				function()
			case <-quit:
				ticker.Stop()
				return
			}
		}
	}()
	return &timeInterval{quit: quit}
}
