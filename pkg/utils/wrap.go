package utils

import "sync"

type WaitGroupWrapper struct {
	sync.WaitGroup
}

// Wrap runs cb on a new goroutine tracked by the group.
func (w *WaitGroupWrapper) Wrap(cb func()) {
	w.Add(1)
	go func() {
		defer w.Done()
		cb()
	}()
}
