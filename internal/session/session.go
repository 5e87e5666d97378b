package session

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/Ravenshaw3/recollect/internal/adventure"
	"github.com/Ravenshaw3/recollect/internal/shared/geo"
	"github.com/Ravenshaw3/recollect/internal/store"
	"github.com/Ravenshaw3/recollect/internal/stream"
)

const defaultName = "Unnamed Adventure"

// Change is the payload broadcast on the session topic whenever the
// current-adventure slot changes.
type Change struct {
	Kind        string `json:"kind"`
	AdventureID int64  `json:"adventure_id"`
	Name        string `json:"name,omitempty"`
}

// Session owns the single current-adventure slot. It is the only shared
// mutable state in the engine: every mutation goes through a method here and
// fires exactly one change notification.
type Session struct {
	store *store.Store
	hub   *stream.Hub

	mu      sync.Mutex
	current adventure.Adventure
	saved   []adventure.Adventure
}

func New(st *store.Store, hub *stream.Hub) *Session {
	return &Session{store: st, hub: hub}
}

// StartNew replaces the slot with a fresh, not-yet-persisted adventure and
// resets the persisted marker.
func (s *Session) StartNew(ctx context.Context, name string) (adventure.Adventure, error) {
	if strings.TrimSpace(name) == "" {
		name = defaultName
	}

	s.mu.Lock()
	s.current = adventure.Adventure{Name: name}
	adv := s.current
	s.mu.Unlock()

	if err := s.store.SetCurrentAdventureID(ctx, 0); err != nil {
		return adventure.Adventure{}, err
	}
	s.notify("start", adv)
	return adv, nil
}

// SetCurrent swaps the slot to an existing adventure and persists its id as
// the marker.
func (s *Session) SetCurrent(ctx context.Context, adv adventure.Adventure) error {
	s.mu.Lock()
	s.current = adv
	s.mu.Unlock()

	if err := s.store.SetCurrentAdventureID(ctx, adv.ID); err != nil {
		return err
	}
	s.notify("set", adv)
	return nil
}

func (s *Session) Current() adventure.Adventure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Session) HasCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.HasName()
}

// Rename updates the slot's display name; blank names are ignored. Already
// persisted adventures are saved through the store.
func (s *Session) Rename(ctx context.Context, name string) error {
	if strings.TrimSpace(name) == "" {
		return nil
	}

	s.mu.Lock()
	s.current.Name = name
	adv := s.current
	s.mu.Unlock()

	if adv.ID > 0 {
		if err := s.store.SaveAdventure(ctx, &adv); err != nil {
			return err
		}
		s.mu.Lock()
		s.current.UpdatedAt = adv.UpdatedAt
		s.mu.Unlock()
	}
	s.notify("rename", adv)
	return nil
}

// SaveCurrent persists the slot when it has a usable name, then reloads the
// saved-adventures list. The first save assigns the local id and records it
// as the marker so a restart restores the same adventure.
func (s *Session) SaveCurrent(ctx context.Context) error {
	s.mu.Lock()
	adv := s.current
	s.mu.Unlock()

	if !adv.HasName() {
		return nil
	}

	firstSave := adv.ID == 0
	if err := s.store.SaveAdventure(ctx, &adv); err != nil {
		return err
	}

	s.mu.Lock()
	s.current.ID = adv.ID
	s.current.CreatedAt = adv.CreatedAt
	s.current.UpdatedAt = adv.UpdatedAt
	s.mu.Unlock()

	if firstSave {
		if err := s.store.SetCurrentAdventureID(ctx, adv.ID); err != nil {
			return err
		}
		s.notify("save", adv)
	}
	return s.ReloadSaved(ctx)
}

// AddWaypoint appends a captured waypoint to the current adventure,
// persisting the adventure itself first if it has never been saved.
func (s *Session) AddWaypoint(ctx context.Context, lat, lng float64, note, mediaURI *string) (adventure.Waypoint, error) {
	s.mu.Lock()
	needsSave := s.current.ID == 0
	s.mu.Unlock()

	if needsSave {
		if err := s.SaveCurrent(ctx); err != nil {
			return adventure.Waypoint{}, err
		}
	}

	s.mu.Lock()
	wp := adventure.Waypoint{
		AdventureID: s.current.ID,
		Lat:         lat,
		Lng:         lng,
		Note:        note,
		MediaURI:    mediaURI,
	}
	s.mu.Unlock()

	// A nameless slot cannot be persisted; keep the waypoint in memory only,
	// as the capture page does before the adventure is named.
	if wp.AdventureID > 0 {
		if err := s.store.SaveWaypoint(ctx, &wp); err != nil {
			return adventure.Waypoint{}, err
		}
	}

	s.mu.Lock()
	s.current.Waypoints = append(s.current.Waypoints, wp)
	s.mu.Unlock()
	return wp, nil
}

// Restore re-hydrates the slot from the persisted marker. A marker that no
// longer resolves to a saved adventure leaves the slot untouched.
func (s *Session) Restore(ctx context.Context) error {
	if err := s.ReloadSaved(ctx); err != nil {
		return err
	}
	id, err := s.store.CurrentAdventureID(ctx)
	if err != nil {
		return err
	}
	if id == 0 {
		return nil
	}

	s.mu.Lock()
	var found *adventure.Adventure
	for i := range s.saved {
		if s.saved[i].ID == id {
			found = &s.saved[i]
			break
		}
	}
	if found == nil {
		s.mu.Unlock()
		return nil
	}
	s.current = *found
	adv := s.current
	s.mu.Unlock()

	s.notify("restore", adv)
	return nil
}

// Delete removes an adventure and its dependents. Deleting the current
// adventure clears the slot and the marker.
func (s *Session) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteAdventure(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	wasCurrent := s.current.ID == id && id != 0
	if wasCurrent {
		s.current = adventure.Adventure{}
	}
	s.mu.Unlock()

	if wasCurrent {
		if err := s.store.SetCurrentAdventureID(ctx, 0); err != nil {
			return err
		}
		s.notify("delete", adventure.Adventure{ID: id})
	}
	return s.ReloadSaved(ctx)
}

// Clear empties the slot without touching stored rows.
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.current = adventure.Adventure{}
	s.mu.Unlock()

	if err := s.store.SetCurrentAdventureID(ctx, 0); err != nil {
		return err
	}
	s.notify("clear", adventure.Adventure{})
	return nil
}

func (s *Session) Saved() []adventure.Adventure {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved
}

func (s *Session) ReloadSaved(ctx context.Context) error {
	advs, err := s.store.Adventures(ctx)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.saved = advs
	s.mu.Unlock()
	return nil
}

// Summary describes the current adventure for review screens.
type Summary struct {
	AdventureID   int64   `json:"adventure_id"`
	Name          string  `json:"name"`
	WaypointCount int     `json:"waypoint_count"`
	DistanceKm    float64 `json:"distance_km"`
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := 0.0
	wps := s.current.Waypoints
	for i := 1; i < len(wps); i++ {
		total += geo.HaversineKm(wps[i-1].Lat, wps[i-1].Lng, wps[i].Lat, wps[i].Lng)
	}
	return Summary{
		AdventureID:   s.current.ID,
		Name:          s.current.Name,
		WaypointCount: len(wps),
		DistanceKm:    total,
	}
}

func (s *Session) notify(kind string, adv adventure.Adventure) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(Change{Kind: kind, AdventureID: adv.ID, Name: adv.Name})
	s.hub.Broadcast(stream.TopicSession, payload)
}
