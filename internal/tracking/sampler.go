package tracking

import (
	"sync"
	"time"

	"github.com/Ravenshaw3/recollect/internal/shared/geo"
)

// Position is a raw reading from the platform's position provider.
type Position struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
}

// PositionSource abstracts the platform geolocation feed. Authorized reports
// whether the caller holds a location-access grant; Subscribe registers the
// callback invoked for every raw reading until Unsubscribe.
type PositionSource interface {
	Authorized() bool
	Subscribe(fn func(Position)) error
	Unsubscribe()
}

type State int

const (
	Stopped State = iota
	Tracking
	Paused
)

func (s State) String() string {
	switch s {
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

const (
	DefaultMinInterval  = 10 * time.Second
	DefaultMinDistanceM = 20.0
)

// Sampler filters the raw position stream into throttled waypoint captures:
// a reading is accepted only when both the minimum interval and the minimum
// great-circle displacement since the last accepted reading have passed. The
// first reading after Start is always accepted.
type Sampler struct {
	source      PositionSource
	sink        func(Position)
	minInterval time.Duration
	minDistance float64

	mu      sync.Mutex
	state   State
	hasLast bool
	last    Position
}

func NewSampler(source PositionSource, sink func(Position)) *Sampler {
	return &Sampler{
		source:      source,
		sink:        sink,
		minInterval: DefaultMinInterval,
		minDistance: DefaultMinDistanceM,
	}
}

// SetThrottle overrides the default 10 s / 20 m thresholds. Non-positive
// values keep the defaults.
func (s *Sampler) SetThrottle(minInterval time.Duration, minDistanceM float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if minInterval > 0 {
		s.minInterval = minInterval
	}
	if minDistanceM > 0 {
		s.minDistance = minDistanceM
	}
}

// Start subscribes to the position feed. It is a no-op returning false when
// the location grant is absent or tracking is already running; permission
// denial is not an error.
func (s *Sampler) Start() bool {
	s.mu.Lock()
	if s.state != Stopped {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	if !s.source.Authorized() {
		return false
	}
	if err := s.source.Subscribe(s.handle); err != nil {
		return false
	}

	s.mu.Lock()
	s.state = Tracking
	s.mu.Unlock()
	return true
}

// Pause suppresses sample acceptance without tearing down the subscription
// or resetting the throttle baseline.
func (s *Sampler) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Tracking {
		s.state = Paused
	}
}

func (s *Sampler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == Paused {
		s.state = Tracking
	}
}

// Stop unsubscribes and clears all throttle state.
func (s *Sampler) Stop() {
	s.mu.Lock()
	if s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopped
	s.hasLast = false
	s.last = Position{}
	s.mu.Unlock()

	s.source.Unsubscribe()
}

func (s *Sampler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Sampler) handle(pos Position) {
	if pos.Timestamp.IsZero() {
		pos.Timestamp = time.Now()
	}

	s.mu.Lock()
	if s.state != Tracking {
		s.mu.Unlock()
		return
	}
	if s.hasLast {
		elapsed := pos.Timestamp.Sub(s.last.Timestamp)
		dist := geo.HaversineM(s.last.Lat, s.last.Lng, pos.Lat, pos.Lng)
		if elapsed < s.minInterval || dist < s.minDistance {
			s.mu.Unlock()
			return
		}
	}
	s.last = pos
	s.hasLast = true
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink(pos)
	}
}
