package bptree

import "errors"

// ErrEmptyTree is the package's internal signal that a lookup found no
// root page yet. GetValue turns it into a not-found result and Begin
// into an iterator that is already at its end.
var ErrEmptyTree = errors.New("bptree: tree is empty")

// errRetryPessimistic signals that the optimistic (read-latch-coupled,
// single-write-latch-at-the-leaf) pass could not complete safely and
// the caller must retry holding write latches down the whole path.
var errRetryPessimistic = errors.New("bptree: retry with pessimistic latching")
