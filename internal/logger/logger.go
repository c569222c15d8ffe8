// Package logger defines the structured-logging interface used throughout
// the node: every other package depends on this interface, never directly
// on zap, so the concrete sink can be swapped (or nopped out in tests)
// without touching call sites.
package logger

import "chorddht/internal/ring"

// Field is a structured key:value pair attached to a log entry.
type Field struct {
	Key string
	Val any
}

// Logger is the minimal structured logger required across the codebase.
type Logger interface {
	Named(name string) Logger
	With(fields ...Field) Logger
	WithNode(self ring.Peer) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// F builds a Field concisely.
func F(key string, val any) Field { return Field{Key: key, Val: val} }

// FPeer serializes a ring.Peer into a readable structured field.
func FPeer(key string, p ring.Peer) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"id":   p.ID.ToHexString(false),
			"addr": p.Addr,
		},
	}
}

// FResource serializes a key/value-ish payload (the key already rendered as
// a hex string, plus a loggable value) into a readable structured field.
// Takes plain values rather than a concrete store type so the logger
// package never imports the store package.
func FResource(key string, keyHex string, value any) Field {
	return Field{
		Key: key,
		Val: map[string]any{
			"key":   keyHex,
			"value": value,
		},
	}
}

// NopLogger discards everything. Used in tests and wherever a Logger is
// required but no output is wanted.
type NopLogger struct{}

func (l NopLogger) Named(name string) Logger        { return l }
func (l NopLogger) With(fields ...Field) Logger     { return l }
func (l NopLogger) WithNode(self ring.Peer) Logger  { return l }
func (l NopLogger) Debug(msg string, fields ...Field) {}
func (l NopLogger) Info(msg string, fields ...Field)  {}
func (l NopLogger) Warn(msg string, fields ...Field)  {}
func (l NopLogger) Error(msg string, fields ...Field) {}
