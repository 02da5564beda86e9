package pipeline

// Event is a notification fired after an activation run.
type Event int

const (
	// ActivationChanged is fired after every activation run.
	ActivationChanged Event = iota
	// VisibilityChanged is fired after a run that flipped the hidden flag of at least one
	// pipeline parameter.
	VisibilityChanged
)

// String returns a human-readable representation of the Event
func (e Event) String() string {
	switch e {
	case ActivationChanged:
		return "activation_changed"
	case VisibilityChanged:
		return "visibility_changed"
	default:
		return "unknown"
	}
}

// Observer receives pipeline events synchronously, on the goroutine that mutated the
// pipeline, after the pipeline lock has been released. Observers may read the pipeline but
// must not mutate it.
type Observer func(Event)

type subscription struct {
	id int
	fn Observer
}

// Subscribe registers an observer and returns a function that removes it.
func (p *Pipeline) Subscribe(fn Observer) (unsubscribe func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextSubID++
	id := p.nextSubID
	p.observers = append(p.observers, subscription{id: id, fn: fn})

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		for i, s := range p.observers {
			if s.id == id {
				p.observers = append(p.observers[:i:i], p.observers[i+1:]...)
				return
			}
		}
	}
}

// notify delivers events to a copy of the observer list. Must be called without the lock.
func notify(observers []subscription, events []Event) {
	for _, ev := range events {
		for _, s := range observers {
			s.fn(ev)
		}
	}
}
