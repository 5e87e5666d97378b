package tracking

import (
	"errors"
	"sync"
)

// NoSource is the capability-absent position provider, used when the engine
// runs without any platform location feed. Start against it is always a
// no-op.
type NoSource struct{}

func (NoSource) Authorized() bool                { return false }
func (NoSource) Subscribe(func(Position)) error  { return errors.New("no position capability") }
func (NoSource) Unsubscribe()                    {}

// FeedSource is a position provider fed by the hosting process: the platform
// layer pushes raw readings in, and the location grant is recorded
// explicitly before tracking can start.
type FeedSource struct {
	mu      sync.Mutex
	granted bool
	fn      func(Position)
}

func NewFeedSource() *FeedSource {
	return &FeedSource{}
}

// SetAuthorized records the outcome of the platform permission request.
func (f *FeedSource) SetAuthorized(granted bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.granted = granted
}

func (f *FeedSource) Authorized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.granted
}

func (f *FeedSource) Subscribe(fn func(Position)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.granted {
		return errors.New("location access not granted")
	}
	f.fn = fn
	return nil
}

func (f *FeedSource) Unsubscribe() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fn = nil
}

// Push delivers one raw reading to the subscriber, if any.
func (f *FeedSource) Push(pos Position) {
	f.mu.Lock()
	fn := f.fn
	f.mu.Unlock()
	if fn != nil {
		fn(pos)
	}
}
