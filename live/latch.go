package live

import "sync"

// JoinLatch joins a fan-out of asynchronous sub-operations back into one
// continuation. Callers Add pending work, each sub-operation ends in
// exactly one Done or Fail, and the registered continuations run exactly
// once when the pending count returns to zero with no failure observed.
//
// Failure contract: the first Fail is delivered to the error handler and
// only the first; later failures still drain the counter but are
// otherwise dropped, and the continuations never run. There is no
// cancellation of sibling work; draining is cooperative.
//
// Reset re-arms a fired or failed latch so one logical operation can run
// a second wave of work through the same latch; registered continuations
// and the error handler survive the reset.
type JoinLatch struct {
	mu         sync.Mutex
	pending    int
	fired      bool
	failed     bool
	calledBack bool
	thens      []func()
	errFn      func(error)
}

func NewJoinLatch() *JoinLatch {
	return &JoinLatch{}
}

// Add registers n pending sub-operations. Safe to call before or after
// Then; continuations only ever run on a completed wave.
func (l *JoinLatch) Add(n int) {
	l.mu.Lock()
	l.pending += n
	l.mu.Unlock()
}

// Then registers a continuation for the zero-pending moment. Registering
// never fires anything by itself, even when the latch is currently idle.
func (l *JoinLatch) Then(fn func()) *JoinLatch {
	l.mu.Lock()
	l.thens = append(l.thens, fn)
	l.mu.Unlock()
	return l
}

// OnError registers the error handler. It is invoked at most once per
// armed wave, with the first failure observed.
func (l *JoinLatch) OnError(fn func(error)) *JoinLatch {
	l.mu.Lock()
	l.errFn = fn
	l.mu.Unlock()
	return l
}

// Done resolves one pending sub-operation.
func (l *JoinLatch) Done() {
	l.mu.Lock()
	if l.pending > 0 {
		l.pending--
	}
	fire := l.pending == 0 && !l.failed && !l.fired
	if fire {
		l.fired = true
	}
	thens := l.thens
	l.mu.Unlock()

	// Run outside the lock: continuations may Reset and re-arm the latch.
	if fire {
		for _, fn := range thens {
			fn()
		}
	}
}

// Fail resolves one pending sub-operation with an error. The first
// failure reaches the handler; the wave's continuations are suppressed.
func (l *JoinLatch) Fail(err error) {
	l.mu.Lock()
	if l.pending > 0 {
		l.pending--
	}
	first := !l.calledBack
	l.calledBack = true
	l.failed = true
	errFn := l.errFn
	l.mu.Unlock()

	if first && errFn != nil {
		errFn(err)
	}
}

// Reset re-arms the latch for another wave. Pending work is assumed to
// be fully drained by the time this is called.
func (l *JoinLatch) Reset() {
	l.mu.Lock()
	l.pending = 0
	l.fired = false
	l.failed = false
	l.calledBack = false
	l.mu.Unlock()
}
