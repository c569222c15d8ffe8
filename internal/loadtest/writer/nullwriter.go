package writer

import "time"

// NopWriter is a writer that does nothing.
type NopWriter struct{}

// WriteRow does nothing.
func (NopWriter) WriteRow(node, result string, delay time.Duration) error { return nil }

// Flush does nothing.
func (NopWriter) Flush() error { return nil }

// Close does nothing.
func (NopWriter) Close() error { return nil }
