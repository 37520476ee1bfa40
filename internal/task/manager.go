// Package task implements the TaskManager (spec C7): session-scoped task
// CRUD over the ThreadStore, assignment-triggered agent spawning, and
// event emission on every mutation.
package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/opencode-ai/lace/internal/event"
	"github.com/opencode-ai/lace/internal/store"
	"github.com/opencode-ai/lace/pkg/types"
)

// spawnPrefix marks an AssignedTo value as a delegation spec per spec §4.9,
// e.g. "new:anthropic/claude-sonnet-4-20250514".
const spawnPrefix = "new:"

// Spawner spawns a child agent for a "new:provider/model" assignment and
// returns the id of the delegate thread it was given. TaskManager depends
// on this narrow interface rather than importing internal/agent directly,
// keeping task CRUD independent of turn-execution machinery.
type Spawner interface {
	Spawn(ctx context.Context, task *types.Task, spec string) (threadID string, err error)
}

// ActorContext carries the identity performing a TaskManager call, used
// for createdBy/assignedTo bookkeeping and listTasks scoping.
type ActorContext struct {
	Actor string
}

// Manager is the TaskManager: session-scoped task operations over a
// ThreadStore, publishing task.created/task.updated/task.note_added.
type Manager struct {
	store   *store.ThreadStore
	bus     *event.Bus
	spawner Spawner
}

// New creates a Manager backed by st, publishing notifications on bus and
// delegating "new:" assignments to spawner. Either bus or spawner may be
// nil; a nil bus falls back to the package-level global bus, and a nil
// spawner causes "new:" assignments to fail with an explicit error.
func New(st *store.ThreadStore, bus *event.Bus, spawner Spawner) *Manager {
	return &Manager{store: st, bus: bus, spawner: spawner}
}

func (m *Manager) publish(e event.Event) {
	if m.bus != nil {
		m.bus.PublishSync(e)
		return
	}
	event.PublishSync(e)
}

// CreateRequest is the input to CreateTask.
type CreateRequest struct {
	Title       string
	Description string
	Prompt      string
	Priority    types.TaskPriority
	AssignedTo  string
}

// CreateTask validates and persists a new task, spawning a delegate agent
// first if AssignedTo names a "new:" spec.
func (m *Manager) CreateTask(ctx context.Context, sessionID string, req CreateRequest, actor ActorContext) (*types.Task, error) {
	title := strings.TrimSpace(req.Title)
	prompt := strings.TrimSpace(req.Prompt)
	if title == "" {
		return nil, fmt.Errorf("task title must not be empty")
	}
	if prompt == "" {
		return nil, fmt.Errorf("task prompt must not be empty")
	}

	priority := req.Priority
	if priority == "" {
		priority = types.PriorityMedium
	}

	now := time.Now().UnixMilli()
	t := &types.Task{
		ID:          generateTaskId(),
		Title:       title,
		Description: req.Description,
		Prompt:      prompt,
		Status:      types.TaskPending,
		Priority:    priority,
		AssignedTo:  req.AssignedTo,
		CreatedBy:   actor.Actor,
		ThreadID:    sessionID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if spec, ok := spawnSpec(t.AssignedTo); ok {
		threadID, err := m.spawn(ctx, t, spec)
		if err != nil {
			return nil, err
		}
		t.AssignedTo = threadID
		t.Status = types.TaskInProgress
	}

	if err := m.store.SaveTask(ctx, t); err != nil {
		return nil, err
	}
	log.Info().Str("task", t.ID).Str("session", sessionID).Msg("task created")
	m.publish(event.Event{Type: event.TaskCreated, Data: event.TaskCreatedData{Task: t}})
	return t, nil
}

func (m *Manager) spawn(ctx context.Context, t *types.Task, spec string) (string, error) {
	if m.spawner == nil {
		return "", fmt.Errorf("task %s assigned %q but no spawner is configured", t.ID, spawnPrefix+spec)
	}
	return m.spawner.Spawn(ctx, t, spec)
}

func spawnSpec(assignedTo string) (string, bool) {
	if !strings.HasPrefix(assignedTo, spawnPrefix) {
		return "", false
	}
	return strings.TrimPrefix(assignedTo, spawnPrefix), true
}

// GetTasks returns sessionID's tasks matching filter, sorted by
// createdAt descending.
func (m *Manager) GetTasks(ctx context.Context, sessionID string, filter types.TaskFilter) ([]types.Task, error) {
	tasks, err := m.store.LoadTasksByThread(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	out := tasks[:0]
	for _, t := range tasks {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && t.Priority != filter.Priority {
			continue
		}
		if filter.AssignedTo != "" && t.AssignedTo != filter.AssignedTo {
			continue
		}
		if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, nil
}

// GetTaskByID returns the task if it belongs to sessionID, or nil if it
// does not exist or belongs to a different session.
func (m *Manager) GetTaskByID(ctx context.Context, sessionID, id string) (*types.Task, error) {
	t, err := m.store.LoadTask(ctx, id)
	if err != nil {
		if err == store.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	if t.ThreadID != sessionID {
		return nil, nil
	}
	return t, nil
}

// UpdateTask applies patch to a task, forbidding changes to immutable
// fields. A "new:" AssignedTo patch triggers spawning before the patch is
// applied, same as CreateTask.
func (m *Manager) UpdateTask(ctx context.Context, sessionID, id string, patch types.TaskPatch) (*types.Task, error) {
	existing, err := m.GetTaskByID(ctx, sessionID, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrNotFound
	}

	if patch.AssignedTo != nil {
		if spec, ok := spawnSpec(*patch.AssignedTo); ok {
			threadID, err := m.spawn(ctx, existing, spec)
			if err != nil {
				return nil, err
			}
			resolved := threadID
			patch.AssignedTo = &resolved
			inProgress := types.TaskInProgress
			patch.Status = &inProgress
		}
	}

	t, err := m.store.UpdateTask(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	m.publish(event.Event{Type: event.TaskUpdated, Data: event.TaskUpdatedData{Task: t}})
	return t, nil
}

// AddNote appends a note to a task and emits task.note_added.
func (m *Manager) AddNote(ctx context.Context, sessionID, taskID, author, content string) (*types.Task, error) {
	existing, err := m.GetTaskByID(ctx, sessionID, taskID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, store.ErrNotFound
	}

	note := types.TaskNote{
		ID:        generateNoteId(),
		Author:    author,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
	}
	t, err := m.store.AddNote(ctx, taskID, note)
	if err != nil {
		return nil, err
	}
	m.publish(event.Event{Type: event.TaskNoteAdded, Data: event.TaskNoteAddedData{TaskID: taskID, Note: note}})
	return t, nil
}

// DeleteTask soft-archives a task by setting status=archived.
func (m *Manager) DeleteTask(ctx context.Context, sessionID, id string) error {
	archived := types.TaskArchived
	_, err := m.UpdateTask(ctx, sessionID, id, types.TaskPatch{Status: &archived})
	return err
}

// GetTaskSummary counts sessionID's tasks by status.
func (m *Manager) GetTaskSummary(ctx context.Context, sessionID string) (types.TaskSummary, error) {
	tasks, err := m.store.LoadTasksByThread(ctx, sessionID)
	if err != nil {
		return types.TaskSummary{}, err
	}
	var s types.TaskSummary
	for _, t := range tasks {
		switch t.Status {
		case types.TaskPending:
			s.Pending++
		case types.TaskInProgress:
			s.InProgress++
		case types.TaskBlocked:
			s.Blocked++
		case types.TaskCompleted:
			s.Completed++
		case types.TaskArchived:
			s.Archived++
		}
	}
	return s, nil
}

// ListTasks returns tasks visible to actor under scope, including completed
// tasks only when includeCompleted is true (archived tasks are always
// included), sorted by
// (priority ascending: high<medium<low, createdAt descending).
func (m *Manager) ListTasks(ctx context.Context, sessionID string, scope types.TaskListScope, includeCompleted bool, actor ActorContext) ([]types.Task, error) {
	var (
		tasks []types.Task
		err   error
	)
	switch scope {
	case types.ScopeMine:
		tasks, err = m.store.LoadTasksByAssignee(ctx, actor.Actor)
	case types.ScopeCreated:
		all, loadErr := m.store.LoadTasksByThread(ctx, sessionID)
		err = loadErr
		for _, t := range all {
			if t.CreatedBy == actor.Actor {
				tasks = append(tasks, t)
			}
		}
	case types.ScopeThread, types.ScopeAll, "":
		tasks, err = m.store.LoadTasksByThread(ctx, sessionID)
	default:
		return nil, fmt.Errorf("unknown task list scope %q", scope)
	}
	if err != nil {
		return nil, err
	}

	out := tasks[:0]
	for _, t := range tasks {
		if t.Status == types.TaskCompleted && !includeCompleted {
			continue
		}
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool {
		ri, rj := types.PriorityRank(out[i].Priority), types.PriorityRank(out[j].Priority)
		if ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt > out[j].CreatedAt
	})
	return out, nil
}
