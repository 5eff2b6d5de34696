package homekit

import (
	"context"
	"sync"
)

// NoopHap keeps the last values instead of publishing them.
type NoopHap struct {
	mu   sync.Mutex
	T, H float64
}

func (n *NoopHap) SetCurrentTemperature(t float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.T = t
}

func (n *NoopHap) SetCurrentHumidity(h float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.H = h
}

func (n *NoopHap) Values() (t, h float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.T, n.H
}

func (n *NoopHap) ListenAndServe(ctx context.Context) error {
	<-ctx.Done()

	return nil
}
