package actor

import (
	"sync"
	"sync/atomic"
	"time"
)

// requestTable tracks this actor's outstanding synchronous requests:
// the monotonic request-id counter (never reused, never zero) and the
// pending continuation registered per request id.
type requestTable struct {
	mu      sync.Mutex
	nextID  uint64
	pending map[MessageID]*pendingRequest
}

type pendingRequest struct {
	callback func(Message)
	timer    *time.Timer
	resolved atomic.Bool
}

func newRequestTable() *requestTable {
	return &requestTable{pending: make(map[MessageID]*pendingRequest)}
}

// newRequestID draws the next value from the per-actor monotonic
// counter; ids are never reused within the actor's lifetime.
func (rt *requestTable) newRequestID() MessageID {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.nextID++
	return MessageID(rt.nextID)
}

// register arms a pending continuation for mid's bare request id. If
// timeout > 0, it arms a timer that delivers SyncTimeoutMsg and removes
// the entry if no response arrives first; the timer is independent per
// pending request.
func (rt *requestTable) register(mid MessageID, timeout time.Duration, callback func(Message), onExpire func()) {
	key := mid.RequestID()
	pr := &pendingRequest{callback: callback}
	rt.mu.Lock()
	rt.pending[key] = pr
	rt.mu.Unlock()
	if timeout > 0 {
		pr.timer = time.AfterFunc(timeout, func() {
			if rt.takeIfPresent(key) == nil {
				return
			}
			if onExpire != nil {
				onExpire()
			}
			callback(SyncTimeoutMsg{})
		})
	}
}

// takeIfPresent removes and returns the pending entry for key if one is
// still registered and not yet resolved, nil otherwise. Resolution
// (response delivery, timeout firing, or bouncer firing) is therefore
// exactly-once per request id.
func (rt *requestTable) takeIfPresent(key MessageID) *pendingRequest {
	rt.mu.Lock()
	pr, ok := rt.pending[key]
	if ok {
		delete(rt.pending, key)
	}
	rt.mu.Unlock()
	if !ok {
		return nil
	}
	if !pr.resolved.CompareAndSwap(false, true) {
		return nil
	}
	return pr
}

// resolveResponse is called when a response (or sync-exited bounce)
// arrives for mid. Returns false if there was no matching pending
// request (already answered, timed out, or never existed).
func (rt *requestTable) resolveResponse(mid MessageID, payload Message) bool {
	key := mid.RequestID()
	pr := rt.takeIfPresent(key)
	if pr == nil {
		return false
	}
	if pr.timer != nil {
		pr.timer.Stop()
	}
	pr.callback(payload)
	return true
}

// drainAsExited fires every still-pending request with SyncExitedMsg,
// used when this actor itself terminates while it still has outstanding
// requests of its own awaiting replies from peers that may never answer
// (e.g. on forced shutdown). Not strictly required but keeps
// callers from hanging forever once their owner is gone.
func (rt *requestTable) drainAsExited(reason ExitReason, self ActorAddr) {
	rt.mu.Lock()
	all := rt.pending
	rt.pending = make(map[MessageID]*pendingRequest)
	rt.mu.Unlock()
	for _, pr := range all {
		if !pr.resolved.CompareAndSwap(false, true) {
			continue
		}
		if pr.timer != nil {
			pr.timer.Stop()
		}
		pr.callback(SyncExitedMsg{Source: self, Reason: reason})
	}
}

// ResponsePromise is a deferred obligation to answer a specific request:
// it holds (from, to, request_id) and owns the right to deliver exactly
// one reply. Dropping it without delivering is not an error — the
// requester simply sees sync_timeout or sync_exited instead.
type ResponsePromise struct {
	from      ActorAddr
	to        ActorAddr
	responseID MessageID
	delivered *atomic.Bool
	execUnit  Resumable
}

func newResponsePromise(from, to ActorAddr, mid MessageID, execUnit Resumable) *ResponsePromise {
	return &ResponsePromise{
		from:       from,
		to:         to,
		responseID: mid.ResponseID(),
		delivered:  new(atomic.Bool),
		execUnit:   execUnit,
	}
}

// Deliver answers the request. The actor marks the request answered the
// moment user code calls this; a second call is a no-op.
func (rp *ResponsePromise) Deliver(payload Message) {
	if rp == nil || !rp.delivered.CompareAndSwap(false, true) {
		return
	}
	if !rp.responseID.Valid() {
		// Derived id collapsed to asynchronous (e.g. replying to a
		// response): nothing meaningful to route back to.
		return
	}
	rp.to.Enqueue(rp.from, rp.to, rp.responseID.MarkAnswered(), payload, rp.execUnit)
}

// Answered reports whether Deliver has already been called.
func (rp *ResponsePromise) Answered() bool {
	return rp != nil && rp.delivered.Load()
}
