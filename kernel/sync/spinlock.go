// Package sync provides busy-waiting lock primitives for a single-core kernel
// where interrupt handlers may contend with the foreground context.
package sync

import (
	"rikaos/kernel/cpu"
	"sync/atomic"
)

// attemptsBeforeYielding is the number of acquisition attempts performed by
// the arch-specific spin loop before yieldFn gets a chance to run.
const attemptsBeforeYielding = 1024

var (
	// yieldFn is nil until the kernel can switch tasks; tests use
	// runtime.Gosched.
	yieldFn func()

	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts
	interruptsEnabledFn = cpu.InterruptsEnabled
)

// Spinlock implements a lock where each task trying to acquire it busy-waits
// till the lock becomes available.
type Spinlock struct {
	state uint32
}

// Acquire blocks until the lock can be acquired by the currently active task.
// Any attempt to re-acquire a lock already held by the current task will cause
// a deadlock.
func (l *Spinlock) Acquire() {
	for !archAcquireSpinlock(&l.state, attemptsBeforeYielding) {
		if yieldFn != nil {
			yieldFn()
		}
	}
}

// TryToAcquire attempts to acquire the lock and returns true if the lock could
// be acquired or false otherwise.
func (l *Spinlock) TryToAcquire() bool {
	return atomic.SwapUint32(&l.state, 1) == 0
}

// Release relinquishes a held lock allowing other tasks to acquire it. Calling
// Release while the lock is free has no effect.
func (l *Spinlock) Release() {
	atomic.StoreUint32(&l.state, 0)
}

// IRQSpinlock is a Spinlock for state that is shared with interrupt handlers.
// Acquire disables interrupts before spinning so a handler can never preempt
// the holder on the same core and spin on the lock forever; Release restores
// the interrupt flag to the value observed by Acquire.
type IRQSpinlock struct {
	lock Spinlock

	restoreInterrupts bool
}

// Acquire disables interrupts and acquires the lock.
func (l *IRQSpinlock) Acquire() {
	wasEnabled := interruptsEnabledFn()
	disableInterruptsFn()
	l.lock.Acquire()
	l.restoreInterrupts = wasEnabled
}

// Release releases the lock and re-enables interrupts if they were enabled
// when the lock was acquired.
func (l *IRQSpinlock) Release() {
	restore := l.restoreInterrupts
	l.restoreInterrupts = false
	l.lock.Release()
	if restore {
		enableInterruptsFn()
	}
}

// archAcquireSpinlock tries to acquire the lock up to attempts times and
// reports whether it succeeded.
func archAcquireSpinlock(state *uint32, attempts uint32) bool
