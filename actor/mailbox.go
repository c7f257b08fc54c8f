package actor

import (
	"container/list"
	"sync"
)

// Mailbox is an MPSC-style FIFO queue with a second priority lane.
// Dequeue always drains the priority lane first. It preserves FIFO
// ordering between any two elements enqueued from the same sender to
// the same receiver over the same channel; no ordering is promised
// across distinct senders, nor between the two lanes beyond
// "priority first".
type Mailbox struct {
	mu       sync.Mutex
	normal   list.List
	priority list.List
	closed   bool
}

func NewMailbox() *Mailbox {
	m := &Mailbox{}
	m.normal.Init()
	m.priority.Init()
	return m
}

// Enqueue appends elem to the appropriate lane. Returns false if the
// mailbox is closed (terminal), in which case the caller is responsible
// for sync-bouncer semantics.
func (m *Mailbox) Enqueue(elem *MailboxElement) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if elem.MID.IsHighPriority() {
		m.priority.PushBack(elem)
	} else {
		m.normal.PushBack(elem)
	}
	return true
}

// Dequeue pops the next element, priority lane first. ok is false if
// both lanes are empty.
func (m *Mailbox) Dequeue() (elem *MailboxElement, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.priority.Front(); e != nil {
		m.priority.Remove(e)
		return e.Value.(*MailboxElement), true
	}
	if e := m.normal.Front(); e != nil {
		m.normal.Remove(e)
		return e.Value.(*MailboxElement), true
	}
	return nil, false
}

func (m *Mailbox) Empty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priority.Len() == 0 && m.normal.Len() == 0
}

func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.priority.Len() + m.normal.Len()
}

// Close marks the mailbox terminal; further Enqueue calls fail. Drain
// returns every element still queued so the caller (the actor's
// termination path) can run the sync-request bouncer over them.
func (m *Mailbox) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Drain removes and returns every remaining element from both lanes,
// priority first.
func (m *Mailbox) Drain() []*MailboxElement {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*MailboxElement, 0, m.priority.Len()+m.normal.Len())
	for e := m.priority.Front(); e != nil; e = m.priority.Front() {
		out = append(out, e.Value.(*MailboxElement))
		m.priority.Remove(e)
	}
	for e := m.normal.Front(); e != nil; e = m.normal.Front() {
		out = append(out, e.Value.(*MailboxElement))
		m.normal.Remove(e)
	}
	return out
}

// cache holds messages that arrived while no behavior was active, or
// that failed to match the current behavior. It is
// re-scanned from the front on every behavior change.
type cache struct {
	elems []*MailboxElement
}

func (c *cache) pushBack(e *MailboxElement) {
	c.elems = append(c.elems, e)
}

func (c *cache) len() int {
	return len(c.elems)
}
