package daemon

import (
	"context"

	"github.com/dylangardner/userctl/internal/logger"
	"github.com/dylangardner/userctl/pkg/evaluator"
	"github.com/dylangardner/userctl/pkg/session"
)

// UserEventSource is the subset of session.Manager the Event Loop depends
// on, so tests can drive it with a fixture channel instead of a live bus
// subscription.
type UserEventSource interface {
	Subscribe(ctx context.Context) (<-chan session.NewUserEvent, error)
}

// RunEventLoop subscribes to source's new-user notifications and, for each
// one, evaluates the uid against c's registry and enforces the winning
// class. It runs until ctx is cancelled; cancellation is abrupt — there is
// no drain, because each handler completes in bounded time (one evaluate
// plus at most one process spawn and wait).
func RunEventLoop(ctx context.Context, c *Context, source UserEventSource) error {
	events, err := source.Subscribe(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			c.handleNewUser(ctx, event.UID)
		}
	}
}

func (c *Context) handleNewUser(ctx context.Context, uid uint32) {
	result, err := evaluator.Evaluate(uid, c.registry)
	if err != nil {
		logger.Warn("failed to evaluate new user session", logger.UID(uid), logger.Err(err))
		return
	}
	if result.Matched == nil {
		logger.Info("new user session matched no class", logger.UID(uid))
		return
	}

	class := result.Matched
	if err := c.enforcer.Enforce(ctx, uid, class.Controls, class.ControlOrder); err != nil {
		logger.Warn("failed to enforce new user session", logger.UID(uid), logger.Class(class.Name), logger.Err(err))
	}
}
