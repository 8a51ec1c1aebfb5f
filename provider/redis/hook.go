package redis

import (
	"context"
	"errors"
	"net"

	goredis "github.com/redis/go-redis/v9"

	pr "github.com/unkn0wn-root/herdcache/provider"
)

// eventHook turns go-redis dial and command results into lifecycle events.
// Every new pool connection reports EventConnect, failures report EventError.
// Misses and caller cancellations are not failures of the connection.
type eventHook struct {
	n *pr.Notifier
}

var _ goredis.Hook = eventHook{}

func (h eventHook) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := next(ctx, network, addr)
		if err != nil {
			h.n.EmitError(err)
			return nil, err
		}
		h.n.Emit(pr.Event{Kind: pr.EventConnect})
		return conn, nil
	}
}

func (h eventHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		if reportable(err) {
			h.n.EmitError(err)
		}
		return err
	}
}

func (h eventHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []goredis.Cmder) error {
		err := next(ctx, cmds)
		if reportable(err) {
			h.n.EmitError(err)
		}
		return err
	}
}

func reportable(err error) bool {
	return err != nil &&
		!errors.Is(err, goredis.Nil) &&
		!errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded)
}
