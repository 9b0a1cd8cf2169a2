//go:build deadlock

// Package syncutil provides the locks used across ap2link. Building with
// -tags=deadlock swaps them for go-deadlock, which reports lock order
// inversions between the scan loop and host callbacks.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex is a deadlock-detecting mutex.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex is a deadlock-detecting reader/writer mutex.
type RWMutex struct {
	deadlock.RWMutex
}
