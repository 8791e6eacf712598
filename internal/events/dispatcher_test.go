package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestDispatcherSwallowsHandlerFailures(t *testing.T) {
	for _, tc := range []struct {
		name string
		d    *InMemoryDispatcher
	}{
		{name: "sync", d: NewInMemoryDispatcher(nil)},
		{name: "async", d: NewAsyncDispatcher(nil)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			tc.d.Subscribe(EventConsentDecided, func(context.Context, Event) error {
				calls.Add(1)
				return errors.New("smtp down")
			})
			tc.d.Subscribe(EventConsentDecided, func(context.Context, Event) error {
				calls.Add(1)
				panic("boom")
			})
			tc.d.Subscribe(EventConsentDecided, func(context.Context, Event) error {
				calls.Add(1)
				return nil
			})
			tc.d.Subscribe(EventEntryPrepared, func(context.Context, Event) error {
				t.Error("handler for another event type invoked")
				return nil
			})

			if err := tc.d.Publish(context.Background(), New(EventConsentDecided, "001", Actor{}, nil)); err != nil {
				t.Fatalf("publish returned %v", err)
			}
			tc.d.Wait()
			if calls.Load() != 3 {
				t.Errorf("expected 3 handler calls, got %d", calls.Load())
			}
		})
	}
}

func TestAsyncDispatcherDetachesCancellation(t *testing.T) {
	d := NewAsyncDispatcher(nil)
	var ctxErr atomic.Value
	d.Subscribe(EventConsentDecided, func(ctx context.Context, _ Event) error {
		ctxErr.Store(ctx.Err() == nil)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = d.Publish(ctx, New(EventConsentDecided, "001", Actor{}, nil))
	d.Wait()
	if ok, _ := ctxErr.Load().(bool); !ok {
		t.Error("handler saw the publisher's cancellation")
	}
}
