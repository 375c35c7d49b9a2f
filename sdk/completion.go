package sdk

import "context"

// Completion is the pending result of SubmitResult, CompleteTurn or Abort.
// It resolves exactly once, after the session is back in StateInitialized,
// so a caller waiting on it may tear down its game immediately.
type Completion struct {
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

func failedCompletion(err error) *Completion {
	c := newCompletion()
	c.resolve(err)
	return c
}

// resolve must be called once per completion.
func (c *Completion) resolve(err error) {
	c.err = err
	close(c.done)
}

// Done is closed when the operation has finished.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the operation's error. It is only meaningful after Done is
// closed.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

// Wait blocks until the operation finishes or ctx is done.
func (c *Completion) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
