package util

import "sync/atomic"

// Counter is a thread-safe monotonic-ish accumulator used to track RAM
// usage of the postings accumulator. Unit is always bytes (see
// DESIGN.md Open Question 1); term/block counts are plain int values
// and never pass through a Counter.
//
// Mirrors util.Counter referenced by TermsHashPerField.bytesUsed in the
// teacher's invertedDocConsumerPerField.go.
type Counter struct {
	v int64
}

// NewCounter returns a zeroed Counter.
func NewCounter() *Counter {
	return &Counter{}
}

// AddAndGet adds delta and returns the new value.
func (c *Counter) AddAndGet(delta int64) int64 {
	return atomic.AddInt64(&c.v, delta)
}

// Get returns the current value.
func (c *Counter) Get() int64 {
	return atomic.LoadInt64(&c.v)
}

// Set overwrites the current value.
func (c *Counter) Set(v int64) {
	atomic.StoreInt64(&c.v, v)
}
