package transmission

import (
	"context"
	"log"
	"sync"
	"time"
)

// CompletedMarker is the value CurrentName carries on the final snapshot.
const CompletedMarker = "Concluído"

// Contact is one recipient of a run. Phone is digits only, with country code.
type Contact struct {
	ID    string
	Name  string
	Phone string
}

// Status is the live aggregate of one run. Sent+Errors never exceeds Total;
// IsCompleted is true only on the last snapshot.
type Status struct {
	Total       int    `json:"total"`
	Sent        int    `json:"sent"`
	Errors      int    `json:"errors"`
	CurrentName string `json:"current_name"`
	IsCompleted bool   `json:"is_completed"`
}

// Sender delivers one message to one phone number. Implementations report
// failure as false and never return an error past this boundary.
type Sender interface {
	Send(ctx context.Context, phone, text string) bool
}

// SendFunc adapts a function to the Sender interface.
type SendFunc func(ctx context.Context, phone, text string) bool

func (f SendFunc) Send(ctx context.Context, phone, text string) bool {
	return f(ctx, phone, text)
}

// Listener receives a status snapshot after every aggregate update.
type Listener func(Status)

// Policy bounds the request rate against the upstream gateway: contacts are
// dispatched in consecutive batches of BatchSize concurrent sends, with a
// BatchPause between batches.
type Policy struct {
	BatchSize  int
	BatchPause time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		BatchSize:  5,
		BatchPause: 100 * time.Millisecond,
	}
}

// Engine dispatches one personalized message per contact through the sender.
// A failed send is counted and the run continues; every contact is attempted
// exactly once. Each Transmit call owns a fresh aggregate, so runs are
// independent of each other.
type Engine struct {
	sender Sender
	policy Policy

	mu        sync.Mutex
	listeners []Listener
}

func NewEngine(sender Sender, policy Policy) *Engine {
	if policy.BatchSize <= 0 {
		policy.BatchSize = DefaultPolicy().BatchSize
	}
	return &Engine{sender: sender, policy: policy}
}

// Subscribe registers a progress listener. Listeners are called synchronously
// after each aggregate update, in registration order.
func (e *Engine) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

type run struct {
	listeners []Listener

	mu     sync.Mutex
	status Status
}

// emit must be called with r.mu held so that snapshots reach listeners in
// the same order the aggregate was updated.
func (r *run) emit() {
	snapshot := r.status
	for _, l := range r.listeners {
		l(snapshot)
	}
}

// Transmit sends one personalized message per contact, in batches, and
// returns the final aggregate. Callers are responsible for ensuring the
// session is active and that contacts and template are non-empty.
func (e *Engine) Transmit(ctx context.Context, contacts []Contact, template string) Status {
	e.mu.Lock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.Unlock()

	r := &run{listeners: listeners}
	r.status = Status{Total: len(contacts)}

	r.mu.Lock()
	r.emit()
	r.mu.Unlock()

	for start := 0; start < len(contacts); start += e.policy.BatchSize {
		end := start + e.policy.BatchSize
		if end > len(contacts) {
			end = len(contacts)
		}
		batch := contacts[start:end]

		var wg sync.WaitGroup
		for _, contact := range batch {
			wg.Add(1)
			go func(contact Contact) {
				defer wg.Done()
				text := Render(template, contact.Name)
				ok := e.sender.Send(ctx, contact.Phone, text)

				// One compound update per completed send: counters and
				// current name move together, then the snapshot goes out.
				r.mu.Lock()
				if ok {
					r.status.Sent++
				} else {
					r.status.Errors++
				}
				r.status.CurrentName = contact.Name
				r.emit()
				r.mu.Unlock()

				if !ok {
					log.Printf("Transmission: send to %s (%s) failed", contact.Name, contact.Phone)
				}
			}(contact)
		}
		wg.Wait()

		if end < len(contacts) && e.policy.BatchPause > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.policy.BatchPause):
			}
		}
	}

	r.mu.Lock()
	r.status.IsCompleted = true
	r.status.CurrentName = CompletedMarker
	r.emit()
	final := r.status
	r.mu.Unlock()

	return final
}
