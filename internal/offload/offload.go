package offload

import (
	"context"
	"fmt"

	"github.com/Ravenshaw3/recollect/internal/store"
	"github.com/Ravenshaw3/recollect/internal/stream"
)

// Manager reclaims local media payloads after a confirmed upload. It is only
// ever invoked on explicit request: offload is destructive and never runs
// automatically.
type Manager struct {
	store *store.Store
	hub   *stream.Hub
}

func NewManager(st *store.Store, hub *stream.Hub) *Manager {
	return &Manager{store: st, hub: hub}
}

// Offload deletes the adventure's local media files, clears their path
// pointers, and reports the number of files actually removed as a terminal
// status message.
func (m *Manager) Offload(ctx context.Context, adventureID int64) (int, error) {
	count, err := m.store.OffloadMedia(ctx, adventureID)
	if err != nil {
		return count, err
	}
	if m.hub != nil {
		m.hub.Broadcast(stream.TopicUpload, []byte(fmt.Sprintf("offloaded %d file(s)", count)))
	}
	return count, nil
}
