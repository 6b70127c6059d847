package observable

import (
	"context"
	"sync"
)

// When blocks until every source has emitted at least once after the call,
// or ctx is done. With no sources it returns immediately.
func When(ctx context.Context, sources ...Source) error {
	return Watch(ctx, nil, sources...)
}

// Watch subscribes to every source, runs action, then blocks until each
// source has emitted at least once or ctx is done. Subscribing first means
// changes made synchronously by action are never missed. action may be nil.
func Watch(ctx context.Context, action func(), sources ...Source) error {
	if len(sources) == 0 {
		if action != nil {
			action()
		}
		return nil
	}

	var (
		mu      sync.Mutex
		pending = len(sources)
		done    = make(chan struct{})
	)

	subs := make([]*Subscription, len(sources))
	for i, s := range sources {
		var once sync.Once
		subs[i] = s.Changed(func() {
			once.Do(func() {
				mu.Lock()
				defer mu.Unlock()
				pending--
				if pending == 0 {
					close(done)
				}
			})
		})
	}
	defer func() {
		for _, s := range subs {
			s.Unsubscribe()
		}
	}()

	if action != nil {
		action()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
