//go:build !deadlock

// Package syncutil provides the locks used across ap2link. Without the
// deadlock build tag they are plain sync locks.
package syncutil

import "sync"

// Mutex is sync.Mutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedded to expose Lock and Unlock
type Mutex struct {
	sync.Mutex
}

// RWMutex is sync.RWMutex unless built with -tags=deadlock.
//
//nolint:gocritic // embedded to expose the full RWMutex method set
type RWMutex struct {
	sync.RWMutex
}
