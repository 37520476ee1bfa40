package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/opencode-ai/lace/pkg/types"
)

// ThreadStore is the durable, transactional store for threads, events and
// tasks (spec C1). It serializes writes per thread and hands back
// snapshot-consistent reads, backed by the file-based backend in
// backend.go.
type ThreadStore struct {
	backend *backend

	mu        sync.Mutex             // guards seqNext and threadLox
	seqNext   map[string]int64       // next seq to assign, per thread
	threadLox map[string]*sync.Mutex // per-thread append serialization
}

// New creates a ThreadStore rooted at basePath on disk.
func New(basePath string) *ThreadStore {
	return &ThreadStore{
		backend:   newBackend(basePath),
		seqNext:   make(map[string]int64),
		threadLox: make(map[string]*sync.Mutex),
	}
}

func (s *ThreadStore) threadLock(threadID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.threadLox[threadID]
	if !ok {
		l = &sync.Mutex{}
		s.threadLox[threadID] = l
	}
	return l
}

// eventKey zero-pads seq so lexical and numeric directory-listing order
// agree, which backend.Scan's key-ordered iteration relies on.
func eventKey(seq int64) string {
	return fmt.Sprintf("%020d", seq)
}

func parseEventKey(key string) (int64, error) {
	return strconv.ParseInt(key, 10, 64)
}

// CreateThread persists a new thread record.
func (s *ThreadStore) CreateThread(ctx context.Context, id, parentID, sessionID string, metadata types.ThreadMetadata) (*types.Thread, error) {
	th := &types.Thread{
		ID:        id,
		ParentID:  parentID,
		SessionID: sessionID,
		CreatedAt: time.Now().UnixMilli(),
		Metadata:  metadata,
	}
	if err := s.backend.Put(ctx, []string{"thread", id}, th); err != nil {
		return nil, fmt.Errorf("%w: create thread %s: %v", ErrStorage, id, err)
	}
	return th, nil
}

// GetThread loads a thread record by id.
func (s *ThreadStore) GetThread(ctx context.Context, id string) (*types.Thread, error) {
	var th types.Thread
	if err := s.backend.Get(ctx, []string{"thread", id}, &th); err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: get thread %s: %v", ErrStorage, id, err)
	}
	return &th, nil
}

// UpdateMetadata shallow-merges patch onto the thread's existing metadata.
func (s *ThreadStore) UpdateMetadata(ctx context.Context, id string, patch types.ThreadMetadata) (*types.Thread, error) {
	lock := s.threadLock(id)
	lock.Lock()
	defer lock.Unlock()

	th, err := s.GetThread(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Name != "" {
		th.Metadata.Name = patch.Name
	}
	if patch.ProviderInstanceID != "" {
		th.Metadata.ProviderInstanceID = patch.ProviderInstanceID
	}
	if patch.ModelID != "" {
		th.Metadata.ModelID = patch.ModelID
	}
	if patch.Extra != nil {
		if th.Metadata.Extra == nil {
			th.Metadata.Extra = make(map[string]any, len(patch.Extra))
		}
		for k, v := range patch.Extra {
			th.Metadata.Extra[k] = v
		}
	}
	if err := s.backend.Put(ctx, []string{"thread", id}, th); err != nil {
		return nil, fmt.Errorf("%w: update thread %s: %v", ErrStorage, id, err)
	}
	return th, nil
}

// AppendEvent atomically assigns the next sequence number within threadID
// and persists the event.
func (s *ThreadStore) AppendEvent(ctx context.Context, threadID string, typ types.EventType, data types.EventData) (*types.Event, error) {
	lock := s.threadLock(threadID)
	lock.Lock()
	defer lock.Unlock()

	seq, err := s.nextSeqLocked(ctx, threadID)
	if err != nil {
		return nil, err
	}

	ev := &types.Event{
		ID:        seq,
		ThreadID:  threadID,
		Type:      typ,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
	if err := s.backend.Put(ctx, []string{"event", threadID, eventKey(seq)}, ev); err != nil {
		return nil, fmt.Errorf("%w: append event to %s: %v", ErrStorage, threadID, err)
	}
	s.mu.Lock()
	s.seqNext[threadID] = seq + 1
	s.mu.Unlock()
	return ev, nil
}

// nextSeqLocked returns the next seq to assign for threadID. Caller must
// hold threadLock(threadID). The in-memory cursor is seeded by scanning
// the on-disk event keys the first time a thread is touched.
func (s *ThreadStore) nextSeqLocked(ctx context.Context, threadID string) (int64, error) {
	s.mu.Lock()
	next, ok := s.seqNext[threadID]
	s.mu.Unlock()
	if ok {
		return next, nil
	}

	keys, err := s.backend.List(ctx, []string{"event", threadID})
	if err != nil {
		return 0, fmt.Errorf("%w: scan events for %s: %v", ErrStorage, threadID, err)
	}
	var max int64 = -1
	for _, k := range keys {
		n, err := parseEventKey(k)
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	next = max + 1
	s.mu.Lock()
	s.seqNext[threadID] = next
	s.mu.Unlock()
	return next, nil
}

// ListEvents returns events in threadID in insertion order. If sinceSeq
// is non-nil, only events with seq > *sinceSeq are returned.
func (s *ThreadStore) ListEvents(ctx context.Context, threadID string, sinceSeq *int64) ([]types.Event, error) {
	var events []types.Event
	err := s.backend.Scan(ctx, []string{"event", threadID}, func(key string, raw json.RawMessage) error {
		var ev types.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return err
		}
		if sinceSeq != nil && ev.ID <= *sinceSeq {
			return nil
		}
		events = append(events, ev)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: list events for %s: %v", ErrStorage, threadID, err)
	}
	sort.Slice(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

// ListMainAndDelegateEvents returns the union of listEvents for rootID and
// every descendant thread (ids equal to rootID or prefixed "rootID."),
// sorted by (timestamp, threadId, seq).
func (s *ThreadStore) ListMainAndDelegateEvents(ctx context.Context, rootID string) ([]types.Event, error) {
	threadIDs, err := s.backend.List(ctx, []string{"thread"})
	if err != nil {
		return nil, fmt.Errorf("%w: list threads: %v", ErrStorage, err)
	}

	var all []types.Event
	for _, id := range threadIDs {
		if id != rootID && !strings.HasPrefix(id, rootID+".") {
			continue
		}
		evs, err := s.ListEvents(ctx, id, nil)
		if err != nil {
			return nil, err
		}
		all = append(all, evs...)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Timestamp != all[j].Timestamp {
			return all[i].Timestamp < all[j].Timestamp
		}
		if all[i].ThreadID != all[j].ThreadID {
			return all[i].ThreadID < all[j].ThreadID
		}
		return all[i].ID < all[j].ID
	})
	return all, nil
}

// ---- Tasks ----

// SaveTask persists a new task.
func (s *ThreadStore) SaveTask(ctx context.Context, t *types.Task) error {
	if err := s.backend.Put(ctx, []string{"task", t.ID}, t); err != nil {
		return fmt.Errorf("%w: save task %s: %v", ErrStorage, t.ID, err)
	}
	return nil
}

// LoadTask loads a task by id.
func (s *ThreadStore) LoadTask(ctx context.Context, id string) (*types.Task, error) {
	var t types.Task
	if err := s.backend.Get(ctx, []string{"task", id}, &t); err != nil {
		if err == ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: load task %s: %v", ErrStorage, id, err)
	}
	return &t, nil
}

// UpdateTask applies patch to a task, bumping UpdatedAt. id, ThreadID,
// CreatedBy and CreatedAt are never touched by patch per spec §4.7.
func (s *ThreadStore) UpdateTask(ctx context.Context, id string, patch types.TaskPatch) (*types.Task, error) {
	t, err := s.LoadTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		t.Title = *patch.Title
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Prompt != nil {
		t.Prompt = *patch.Prompt
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.AssignedTo != nil {
		t.AssignedTo = *patch.AssignedTo
	}
	t.UpdatedAt = time.Now().UnixMilli()
	if err := s.SaveTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// AddNote appends a note to a task and bumps UpdatedAt.
func (s *ThreadStore) AddNote(ctx context.Context, taskID string, note types.TaskNote) (*types.Task, error) {
	t, err := s.LoadTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.Notes = append(t.Notes, note)
	t.UpdatedAt = time.Now().UnixMilli()
	if err := s.SaveTask(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// LoadTasksByThread returns every task whose ThreadID (owning session)
// matches sessionID.
func (s *ThreadStore) LoadTasksByThread(ctx context.Context, sessionID string) ([]types.Task, error) {
	return s.scanTasks(ctx, func(t *types.Task) bool { return t.ThreadID == sessionID })
}

// LoadTasksByAssignee returns every task assigned to assignee.
func (s *ThreadStore) LoadTasksByAssignee(ctx context.Context, assignee string) ([]types.Task, error) {
	return s.scanTasks(ctx, func(t *types.Task) bool { return t.AssignedTo == assignee })
}

func (s *ThreadStore) scanTasks(ctx context.Context, match func(*types.Task) bool) ([]types.Task, error) {
	var out []types.Task
	err := s.backend.Scan(ctx, []string{"task"}, func(key string, raw json.RawMessage) error {
		var t types.Task
		if err := json.Unmarshal(raw, &t); err != nil {
			return err
		}
		if match(&t) {
			out = append(out, t)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scan tasks: %v", ErrStorage, err)
	}
	return out, nil
}
