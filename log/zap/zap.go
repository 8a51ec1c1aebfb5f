package zap

import (
	"github.com/unkn0wn-root/herdcache"
	"go.uber.org/zap"
)

var _ herdcache.Logger = ZapLogger{}

// ZapLogger adapts a *zap.Logger. zap has no trace level; Trace logs at Debug.
type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Trace(msg string, f herdcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Debug(msg string, f herdcache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f herdcache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f herdcache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f herdcache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f herdcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
