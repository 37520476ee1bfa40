// Package thread implements the ThreadManager (spec C2): a thin policy
// layer over the ThreadStore that generates thread ids, hands out
// Event-sourced history, and notifies in-process subscribers of newly
// appended events over the event bus.
package thread

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/store"
	"github.com/opencode-ai/lace/pkg/types"
)

// Manager is the ThreadManager: id generation plus a thin façade over
// the ThreadStore, publishing thread.created and thread.event_appended
// notifications as a side effect of each write.
type Manager struct {
	store *store.ThreadStore
	bus   *event.Bus
}

// New creates a Manager backed by st, publishing notifications on bus.
// A nil bus falls back to the package-level global bus.
func New(st *store.ThreadStore, bus *event.Bus) *Manager {
	return &Manager{store: st, bus: bus}
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.PublishSync(e)
		return
	}
	event.PublishSync(e)
}

// CreateThread generates a fresh root thread id and persists it.
func (m *Manager) CreateThread(ctx context.Context, sessionID string, metadata types.ThreadMetadata) (*types.Thread, error) {
	id := generateThreadId()
	th, err := m.store.CreateThread(ctx, id, "", sessionID, metadata)
	if err != nil {
		return nil, err
	}
	log.Info().Str("thread", id).Str("session", sessionID).Msg("thread created")
	m.publish(event.Event{Type: event.ThreadCreated, Data: event.ThreadCreatedData{Thread: th}})
	return th, nil
}

// CreateDelegateThread allocates the next ".N" suffix under parentID and
// persists the new delegate thread under sessionID. GetMainAndDelegateEvents
// folds it into the root transcript by its id prefix.
func (m *Manager) CreateDelegateThread(ctx context.Context, parentID, sessionID string, metadata types.ThreadMetadata) (*types.Thread, error) {
	id, err := generateDelegateThreadId(ctx, m.store, parentID)
	if err != nil {
		return nil, fmt.Errorf("allocate delegate thread id under %s: %w", parentID, err)
	}
	if existing, err := m.store.GetThread(ctx, id); err == nil {
		return existing, nil
	} else if err != store.ErrNotFound {
		return nil, err
	}
	th, err := m.store.CreateThread(ctx, id, parentID, sessionID, metadata)
	if err != nil {
		return nil, err
	}
	log.Info().Str("thread", id).Str("parent", parentID).Msg("delegate thread created")
	m.publish(event.Event{Type: event.ThreadCreated, Data: event.ThreadCreatedData{Thread: th}})
	return th, nil
}

// GetThread loads a thread record by id.
func (m *Manager) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	return m.store.GetThread(ctx, id)
}

// UpdateMetadata shallow-merges patch onto the thread's existing metadata.
func (m *Manager) UpdateMetadata(ctx context.Context, id string, patch types.ThreadMetadata) (*types.Thread, error) {
	return m.store.UpdateMetadata(ctx, id, patch)
}

// AddEvent appends an event to threadID and notifies subscribers.
func (m *Manager) AddEvent(ctx context.Context, threadID string, typ types.EventType, data types.EventData) (*types.Event, error) {
	ev, err := m.store.AppendEvent(ctx, threadID, typ, data)
	if err != nil {
		return nil, err
	}
	m.publish(event.Event{
		Type: event.ThreadEventAppended,
		Data: event.ThreadEventAppendedData{ThreadID: threadID, Event: *ev},
	})
	return ev, nil
}

// GetEvents returns threadID's events in insertion order, optionally only
// those after sinceSeq.
func (m *Manager) GetEvents(ctx context.Context, threadID string, sinceSeq *int64) ([]types.Event, error) {
	return m.store.ListEvents(ctx, threadID, sinceSeq)
}

// GetMainAndDelegateEvents returns the union of rootID's events and every
// descendant delegate thread's events, timestamp-sorted per spec §4.2/§5.
func (m *Manager) GetMainAndDelegateEvents(ctx context.Context, rootID string) ([]types.Event, error) {
	return m.store.ListMainAndDelegateEvents(ctx, rootID)
}

// Close releases any resources held by the manager. The file-based
// ThreadStore has none today; Close exists so callers can rely on a
// stable lifecycle contract regardless of backend.
func (m *Manager) Close() error {
	return nil
}
