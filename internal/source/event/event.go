package event

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
)

// Type is the name of a synthetic event
type Type string

const (
	Load  Type = "load"
	Error Type = "error"
)

// Event is delivered to listeners registered on the target node
type Event struct {
	Type   Type
	Target *html.Node
	Time   time.Time
}

// Listener receives events for one node
type Listener func(Event)

// Emulator dispatches synthetic load/error events on reference nodes the way
// a browser does for a single <link> or <script>: every listener registered
// on the target is called, in registration order, on the dispatching
// goroutine. Listeners must not block.
type Emulator struct {
	logger *zap.Logger

	mu        sync.RWMutex
	listeners map[*html.Node][]Listener

	pending sync.WaitGroup
}

// NewEmulator creates an emulator with no listeners
func NewEmulator(logger *zap.Logger) *Emulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emulator{
		logger:    logger,
		listeners: make(map[*html.Node][]Listener),
	}
}

// On registers a listener for events targeting n
func (e *Emulator) On(n *html.Node, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[n] = append(e.listeners[n], l)
}

// Off drops every listener registered on n
func (e *Emulator) Off(n *html.Node) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, n)
}

// DispatchLoad fires a load event on n
func (e *Emulator) DispatchLoad(n *html.Node) {
	e.dispatch(Event{Type: Load, Target: n, Time: time.Now()})
}

// DispatchError fires an error event on n
func (e *Emulator) DispatchError(n *html.Node) {
	e.dispatch(Event{Type: Error, Target: n, Time: time.Now()})
}

// Defer runs fn after the caller has returned, on its own goroutine. It
// stands in for the browser's "next tick" scheduling.
func (e *Emulator) Defer(fn func()) {
	e.pending.Add(1)
	go func() {
		defer e.pending.Done()
		fn()
	}()
}

// Wait blocks until every deferred function has run
func (e *Emulator) Wait() {
	e.pending.Wait()
}

func (e *Emulator) dispatch(ev Event) {
	if ev.Target == nil {
		return
	}

	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners[ev.Target]...)
	e.mu.RUnlock()

	e.logger.Debug("dispatching event",
		zap.String("type", string(ev.Type)),
		zap.String("tag", ev.Target.Data),
		zap.Int("listeners", len(listeners)),
	)

	for _, l := range listeners {
		e.call(l, ev)
	}
}

// call isolates a panicking listener from its siblings
func (e *Emulator) call(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				zap.String("type", string(ev.Type)),
				zap.Any("panic", r),
			)
		}
	}()
	l(ev)
}
