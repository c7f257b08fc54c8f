package actor

import (
	"sync"
	"time"
)

// DispatchResult is the outcome of invoking a Behavior against a message.
type DispatchResult int

const (
	// Handled means the message matched and was processed.
	Handled DispatchResult = iota
	// Skip means the message did not match; it goes to the cache.
	Skip
	// NoMatch is equivalent to Skip at this level; callers that compose
	// behaviors may distinguish the two, the dispatcher in actor.go does not.
	NoMatch
)

// Case is a single type-erased (predicate, handler) pair: it inspects msg
// and either handles it (returning matched=true) or declines.
type Case func(msg Message) (matched bool)

// Behavior is an immutable, composable partial function over messages,
// with an optional timeout. Composition via OrElse builds a left-biased
// chain; the outermost node's timeout wins.
type Behavior struct {
	cases       []Case
	hasTimeout  bool
	timeout     time.Duration
	onTimeout   func()
	contOnce    *sync.Once
	cont        func()
}

// NewBehavior builds a Behavior from an ordered list of cases. The first
// case that returns matched=true wins.
func NewBehavior(cases ...Case) *Behavior {
	return &Behavior{cases: cases}
}

// WithTimeout returns a copy of b with a finite timeout and handler
// attached. The timer is absolute from the moment the behavior becomes
// active: it is not reset by non-matching arrivals, only
// by a behavior change.
func (b *Behavior) WithTimeout(d time.Duration, handler func()) *Behavior {
	nb := b.clone()
	nb.hasTimeout = true
	nb.timeout = d
	nb.onTimeout = handler
	return nb
}

// HasTimeout reports whether this behavior arms a timer, and what it is.
func (b *Behavior) HasTimeout() (time.Duration, func(), bool) {
	if b == nil || !b.hasTimeout {
		return 0, nil, false
	}
	return b.timeout, b.onTimeout, true
}

// OrElse composes b with other: messages are tried against b's cases
// first, then other's. The resulting behavior's timeout is other's,
// matching the "or_else(other) yields a new behavior whose timeout
// is other's".
func (b *Behavior) OrElse(other *Behavior) *Behavior {
	nb := &Behavior{
		cases:      append(append([]Case{}, b.cases...), other.cases...),
		hasTimeout: other.hasTimeout,
		timeout:    other.timeout,
		onTimeout:  other.onTimeout,
	}
	return nb
}

// Then decorates b with a one-shot continuation that runs exactly once,
// after the first successful dispatch through this behavior value.
func (b *Behavior) Then(fn func()) *Behavior {
	nb := b.clone()
	nb.contOnce = &sync.Once{}
	nb.cont = fn
	return nb
}

func (b *Behavior) clone() *Behavior {
	nb := *b
	nb.cases = append([]Case{}, b.cases...)
	return &nb
}

// Invoke tries each case in order against msg. Returns Handled on the
// first match (running the one-shot continuation, if any, after the
// handler), Skip otherwise.
func (b *Behavior) Invoke(msg Message) DispatchResult {
	if b == nil {
		return Skip
	}
	for _, c := range b.cases {
		if c(msg) {
			if b.cont != nil && b.contOnce != nil {
				b.contOnce.Do(b.cont)
			}
			return Handled
		}
	}
	return Skip
}

// Empty reports whether the behavior has no cases at all, the condition
// under which an actor with no further behavior terminates normally
// ("it becomes empty").
func (b *Behavior) Empty() bool {
	return b == nil || len(b.cases) == 0
}
