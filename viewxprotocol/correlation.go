package viewxprotocol

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ReplyHandler is a continuation invoked once when a Pending completes.
// Exactly one of reply or err is meaningful: err is nil on success and one of
// ErrCanceled, ErrTimeout, ErrClosed (possibly wrapped) on failure.
//
// Handlers run on the goroutine that completed the Pending, which for
// replies is the channel's receive loop. Long-running work should be
// handed off to another goroutine.
type ReplyHandler func(reply Reply, err error)

// Pending is a single-use expectation of one reply for one keyword.
// It behaves as a future (Done, Wait, Result) and optionally carries a
// ReplyHandler callback.
type Pending struct {
	id        string
	handler   ReplyHandler
	createdAt time.Time
	done      chan struct{}

	// mu guards the fields below. Lock order: CorrelationTable.mu, then Pending.mu.
	mu      sync.Mutex
	keyword string
	table   *CorrelationTable
	elem    *list.Element
	settled bool
	reply   Reply
	err     error
}

// NewPending creates an unregistered expectation. handler may be nil.
func NewPending(handler ReplyHandler) *Pending {
	return &Pending{
		id:        uuid.NewString(),
		handler:   handler,
		createdAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// ID returns a unique identifier for diagnostics. It never goes on the wire.
func (p *Pending) ID() string {
	return p.id
}

// Keyword returns the keyword the expectation was registered under.
func (p *Pending) Keyword() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.keyword
}

// Age returns how long ago the expectation was created.
func (p *Pending) Age() time.Duration {
	return time.Since(p.createdAt)
}

// Done returns a channel closed when the expectation completes.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Completed reports whether the expectation has completed.
func (p *Pending) Completed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result blocks until the expectation completes and returns its outcome.
func (p *Pending) Result() (Reply, error) {
	<-p.done
	return p.reply, p.err
}

// Wait blocks until the expectation completes or ctx is done. When ctx ends
// first, Wait returns ctx.Err() and the expectation stays registered; use
// Cancel (or Client.Call, which does both) to release it.
func (p *Pending) Wait(ctx context.Context) (Reply, error) {
	select {
	case <-p.done:
		return p.reply, p.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

// Cancel withdraws the expectation, completing it with ErrCanceled.
// It returns false if the expectation already completed.
func (p *Pending) Cancel() bool {
	p.mu.Lock()
	table := p.table
	if table == nil {
		ok := p.settleLocked(Reply{}, ErrCanceled)
		p.mu.Unlock()
		if ok {
			p.notify()
		}
		return ok
	}
	p.mu.Unlock()
	return table.Cancel(p)
}

// settleLocked records the outcome. The caller must hold p.mu.
func (p *Pending) settleLocked(reply Reply, err error) bool {
	if p.settled {
		return false
	}
	p.settled = true
	p.reply = reply
	p.err = err
	close(p.done)
	return true
}

func (p *Pending) notify() {
	if p.handler != nil {
		p.handler(p.reply, p.err)
	}
}

// CorrelationTable matches inbound replies to pending expectations.
// Expectations are kept per keyword in registration order, and a reply
// always completes the oldest expectation for its keyword.
//
// All methods are safe for concurrent use. Handlers are invoked after the
// table lock is released.
type CorrelationTable struct {
	mu     sync.Mutex
	queues map[string]*list.List
	count  int
	closed bool
}

// NewCorrelationTable creates an empty table.
func NewCorrelationTable() *CorrelationTable {
	return &CorrelationTable{queues: make(map[string]*list.List)}
}

// Register appends p to the expectations for keyword.
func (t *CorrelationTable) Register(keyword string, p *Pending) error {
	if keyword == "" {
		return &ValidationError{Kind: ErrKindEmptyKeyword}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.table != nil || p.settled {
		return ErrAlreadyRegistered
	}

	q, ok := t.queues[keyword]
	if !ok {
		q = list.New()
		t.queues[keyword] = q
	}
	p.elem = q.PushBack(p)
	p.table = t
	p.keyword = keyword
	t.count++
	return nil
}

// Resolve completes the oldest expectation for keyword with reply.
// It returns false, leaving the table untouched, when nothing is pending
// for keyword.
func (t *CorrelationTable) Resolve(keyword string, reply Reply) bool {
	t.mu.Lock()
	q, ok := t.queues[keyword]
	if !ok || q.Len() == 0 {
		t.mu.Unlock()
		return false
	}

	p := q.Remove(q.Front()).(*Pending)
	if q.Len() == 0 {
		delete(t.queues, keyword)
	}
	t.count--

	p.mu.Lock()
	p.table = nil
	p.elem = nil
	settled := p.settleLocked(reply, nil)
	p.mu.Unlock()
	t.mu.Unlock()

	if settled {
		p.notify()
	}
	return true
}

// Cancel removes a still-pending expectation and completes it with
// ErrCanceled. It is a no-op returning false when p is not pending in t.
func (t *CorrelationTable) Cancel(p *Pending) bool {
	return t.CancelWithCause(p, ErrCanceled)
}

// CancelWithCause is like Cancel but completes p with cause, letting a
// timeout layer report ErrTimeout instead of ErrCanceled.
func (t *CorrelationTable) CancelWithCause(p *Pending, cause error) bool {
	return t.cancel(p, cause, true)
}

// withdraw removes p after a failed transmission. The caller reports the
// failure synchronously, so p's handler is not invoked.
func (t *CorrelationTable) withdraw(p *Pending, cause error) bool {
	return t.cancel(p, cause, false)
}

func (t *CorrelationTable) cancel(p *Pending, cause error, notify bool) bool {
	t.mu.Lock()
	p.mu.Lock()
	if p.table != t || p.elem == nil {
		p.mu.Unlock()
		t.mu.Unlock()
		return false
	}

	if q, ok := t.queues[p.keyword]; ok {
		q.Remove(p.elem)
		if q.Len() == 0 {
			delete(t.queues, p.keyword)
		}
	}
	t.count--
	p.table = nil
	p.elem = nil
	settled := p.settleLocked(Reply{}, cause)
	p.mu.Unlock()
	t.mu.Unlock()

	if settled && notify {
		p.notify()
	}
	return settled
}

// Close fails every pending expectation with cause (ErrClosed if nil) and
// rejects further registrations. It returns the number of expectations failed.
func (t *CorrelationTable) Close(cause error) int {
	if cause == nil {
		cause = ErrClosed
	}

	t.mu.Lock()
	t.closed = true
	keywords := t.keywordsLocked()
	var failed []*Pending
	for _, kw := range keywords {
		q := t.queues[kw]
		for e := q.Front(); e != nil; e = e.Next() {
			p := e.Value.(*Pending)
			p.mu.Lock()
			p.table = nil
			p.elem = nil
			if p.settleLocked(Reply{}, cause) {
				failed = append(failed, p)
			}
			p.mu.Unlock()
		}
	}
	t.queues = make(map[string]*list.List)
	t.count = 0
	t.mu.Unlock()

	for _, p := range failed {
		p.notify()
	}
	return len(failed)
}

// Len returns the total number of pending expectations.
func (t *CorrelationTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// PendingFor returns the number of expectations waiting on keyword.
func (t *CorrelationTable) PendingFor(keyword string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[keyword]; ok {
		return q.Len()
	}
	return 0
}

// Keywords returns the keywords with pending expectations, sorted.
func (t *CorrelationTable) Keywords() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.keywordsLocked()
}

// Oldest returns the oldest expectation for keyword, or nil.
func (t *CorrelationTable) Oldest(keyword string) *Pending {
	t.mu.Lock()
	defer t.mu.Unlock()
	if q, ok := t.queues[keyword]; ok && q.Len() > 0 {
		return q.Front().Value.(*Pending)
	}
	return nil
}

func (t *CorrelationTable) keywordsLocked() []string {
	out := make([]string, 0, len(t.queues))
	for kw := range t.queues {
		out = append(out, kw)
	}
	sort.Strings(out)
	return out
}
