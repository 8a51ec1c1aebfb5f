package redis

import (
	"context"
	"net"
	"strings"
	"sync"

	goredis "github.com/redis/go-redis/v9"
)

// fakeServer answers the handful of commands the provider issues without a
// network round trip. Expiry is not modelled.
type fakeServer struct {
	mu   sync.Mutex
	data map[string][]byte
	fail error // returned by every command when set
}

func newFakeServer() *fakeServer {
	return &fakeServer{data: make(map[string][]byte)}
}

func (s *fakeServer) DialHook(next goredis.DialHook) goredis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return next(ctx, network, addr)
	}
}

func (s *fakeServer) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func (s *fakeServer) ProcessHook(goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.fail != nil {
			cmd.SetErr(s.fail)
			return s.fail
		}

		args := cmd.Args()
		key := func(i int) string { return args[i].(string) }
		switch strings.ToLower(cmd.Name()) {
		case "ping":
			cmd.(*goredis.StatusCmd).SetVal("PONG")
		case "exists":
			n := int64(0)
			for i := 1; i < len(args); i++ {
				if _, ok := s.data[key(i)]; ok {
					n++
				}
			}
			cmd.(*goredis.IntCmd).SetVal(n)
		case "get":
			v, ok := s.data[key(1)]
			if !ok {
				cmd.SetErr(goredis.Nil)
				return goredis.Nil
			}
			cmd.(*goredis.StringCmd).SetVal(string(v))
		case "set", "setnx":
			nx := cmd.Name() == "setnx"
			for _, a := range args[3:] {
				if s, ok := a.(string); ok && strings.EqualFold(s, "nx") {
					nx = true
				}
			}
			_, exists := s.data[key(1)]
			if nx && exists {
				if bc, ok := cmd.(*goredis.BoolCmd); ok {
					bc.SetVal(false)
				}
				return nil
			}
			s.data[key(1)] = append([]byte(nil), args[2].([]byte)...)
			switch c := cmd.(type) {
			case *goredis.BoolCmd:
				c.SetVal(true)
			case *goredis.StatusCmd:
				c.SetVal("OK")
			}
		case "del":
			n := int64(0)
			for i := 1; i < len(args); i++ {
				if _, ok := s.data[key(i)]; ok {
					delete(s.data, key(i))
					n++
				}
			}
			cmd.(*goredis.IntCmd).SetVal(n)
		}
		return nil
	}
}
