package util

import "go.uber.org/zap"

// Log is the package-wide structured logger. It defaults to a no-op
// logger so that embedding a writer into another program does not
// impose golucene's log format on stderr; callers that want the
// teacher's chatty seek/flush/commit tracing call SetLogger with a
// real *zap.Logger (e.g. zap.NewDevelopment()).
var Log = zap.NewNop().Sugar()

// SetLogger replaces the package logger. Passing nil restores the
// no-op logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		Log = zap.NewNop().Sugar()
		return
	}
	Log = l.Sugar()
}
