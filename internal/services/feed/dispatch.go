package feed

import (
	"context"
	"sync"
	"time"

	"github.com/monngon/feed-service/internal/pkg/log"
)

// Dispatcher runs gateway calls as tracked background tasks. The initiator
// of a mutation never waits on the call; the outcome is consumed entirely
// by the completion callback, which performs reconciliation or failure
// surfacing. Tasks are never cancelled by the initiator going away.
type Dispatcher struct {
	callTimeout time.Duration
	wg          sync.WaitGroup
}

func CreateDispatcher(callTimeout time.Duration) *Dispatcher {
	return &Dispatcher{callTimeout: callTimeout}
}

// Dispatch starts the call in the background and hands its error, nil on
// success, to done. done always runs, exactly once.
func (d *Dispatcher) Dispatch(op string, call func(ctx context.Context) error, done func(err error)) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.callTimeout)
		defer cancel()
		err := call(ctx)
		if err != nil {
			log.Error("gateway call failed", op+": "+err.Error())
		}
		done(err)
	}()
}

// Drain blocks until every in-flight task has completed. Used on shutdown
// and by tests.
func (d *Dispatcher) Drain() {
	d.wg.Wait()
}
