// Package logger provides the shared zap logger.
package logger

import "go.uber.org/zap"

// Log is the global logger. Init must be called once from main before use;
// packages under test get a no-op logger by default.
var Log = zap.NewNop()

func Init(service string) {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	Log = l.With(zap.String("service", service))
}

func Sync() { _ = Log.Sync() }
