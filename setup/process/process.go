package process

import (
	"context"
	"fmt"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

type ProcessContext struct {
	mu       sync.RWMutex
	wg       *sync.WaitGroup    // used to wait for components to shutdown
	ctx      context.Context    // cancelled when Stop is called
	shutdown context.CancelFunc // shut down the service
	degraded atomic.Bool
	reasons  map[string]struct{}
}

func NewProcessContext() *ProcessContext {
	ctx, shutdown := context.WithCancel(context.Background())
	return &ProcessContext{
		ctx:      ctx,
		shutdown: shutdown,
		wg:       &sync.WaitGroup{},
		reasons:  make(map[string]struct{}),
	}
}

func (b *ProcessContext) Context() context.Context {
	return context.WithValue(b.ctx, scopeKey{}, "process")
}

// Child returns a context that is cancelled either by the returned cancel
// function or when the process shuts down. Screens use this to bind their
// pending work to their own lifetime.
func (b *ProcessContext) Child() (context.Context, context.CancelFunc) {
	return context.WithCancel(b.ctx)
}

func (b *ProcessContext) ComponentStarted() {
	b.wg.Add(1)
}

func (b *ProcessContext) ComponentFinished() {
	b.wg.Done()
}

func (b *ProcessContext) Shutdown() {
	b.shutdown()
}

func (b *ProcessContext) WaitForShutdown() <-chan struct{} {
	return b.ctx.Done()
}

func (b *ProcessContext) WaitForComponentsToFinish() {
	b.wg.Wait()
}

// Degraded flags the process as running in a degraded state. The first
// occurrence of each distinct reason is reported to Sentry.
func (b *ProcessContext) Degraded(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.reasons[err.Error()]; !ok {
		b.reasons[err.Error()] = struct{}{}
		logrus.WithError(err).Warn("Perfil is running in a degraded state")
		sentry.CaptureException(fmt.Errorf("process is running in a degraded state: %w", err))
	}
	b.degraded.Store(true)
}

func (b *ProcessContext) IsDegraded() (bool, []string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.degraded.Load() {
		return false, nil
	}
	reasons := make([]string, 0, len(b.reasons))
	for reason := range b.reasons {
		reasons = append(reasons, reason)
	}
	return true, reasons
}

type scopeKey struct{}
