package storage

import "sync/atomic"

// RefCount is a small atomic counter, adapted from the teacher's
// internal/lock/refcount.go, used here as a page's pin counter so its
// value can be read without taking the page's own latch.
type RefCount struct {
	n int32
}

// Add adjusts the counter by delta and returns the new value.
func (r *RefCount) Add(delta int32) int32 { return atomic.AddInt32(&r.n, delta) }

// Get returns the current value.
func (r *RefCount) Get() int32 { return atomic.LoadInt32(&r.n) }

// Set overwrites the current value.
func (r *RefCount) Set(v int32) { atomic.StoreInt32(&r.n, v) }
