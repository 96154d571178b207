package event

import "sync"

// Delivery is one event observed by a Recorder.
type Delivery struct {
	Scope  string // set for broadcasts
	To     string // set for direct emits
	Except string
	Event  Event
}

// Recorder is an in-memory Emitter and Scopes used by tests and tooling. It
// resolves broadcasts against its own scope membership so callers can ask
// which players saw an event.
type Recorder struct {
	mu      sync.Mutex
	log     []Delivery
	members map[string]map[string]struct{}
}

func NewRecorder() *Recorder {
	return &Recorder{members: make(map[string]map[string]struct{})}
}

func (r *Recorder) Broadcast(scope string, e Event, exceptUserID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, Delivery{Scope: scope, Except: exceptUserID, Event: e})
}

func (r *Recorder) EmitTo(userID string, e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = append(r.log, Delivery{To: userID, Event: e})
}

func (r *Recorder) Join(userID, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[scope]
	if !ok {
		m = make(map[string]struct{})
		r.members[scope] = m
	}
	m[userID] = struct{}{}
}

func (r *Recorder) Leave(userID, scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.members[scope]; ok {
		delete(m, userID)
		if len(m) == 0 {
			delete(r.members, scope)
		}
	}
}

// InScope reports whether userID is a member of scope.
func (r *Recorder) InScope(userID, scope string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[scope][userID]
	return ok
}

// All returns a copy of every delivery so far.
func (r *Recorder) All() []Delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Delivery(nil), r.log...)
}

// Named returns deliveries of the given event name, in order.
func (r *Recorder) Named(name string) []Delivery {
	var out []Delivery
	for _, d := range r.All() {
		if d.Event.Name == name {
			out = append(out, d)
		}
	}
	return out
}

// Last returns the latest delivery of name.
func (r *Recorder) Last(name string) (Delivery, bool) {
	ds := r.Named(name)
	if len(ds) == 0 {
		return Delivery{}, false
	}
	return ds[len(ds)-1], true
}

// SeenBy returns the events of the given name that reached userID, resolving
// broadcasts against scope membership at the time of the call.
func (r *Recorder) SeenBy(userID, name string) []Event {
	var out []Event
	for _, d := range r.All() {
		if d.Event.Name != name {
			continue
		}
		switch {
		case d.To != "":
			if d.To == userID {
				out = append(out, d.Event)
			}
		case d.Except != userID && r.InScope(userID, d.Scope):
			out = append(out, d.Event)
		}
	}
	return out
}

// Reset drops recorded deliveries but keeps scope membership.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = nil
}
