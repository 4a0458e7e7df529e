// Package todo owns the in-memory task list and mediates every change to it
// against the task store.
package todo

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/tgienger/tdl/internal/models"
)

// Store is the task store service the controller talks to
type Store interface {
	List(ctx context.Context) ([]models.Task, error)
	Create(ctx context.Context, t models.NewTask) (models.Task, error)
	Update(ctx context.Context, id int64, patch models.TaskPatch) (models.Task, error)
	Delete(ctx context.Context, id int64) error
}

// EditSession is the draft of a task being edited
type EditSession struct {
	TaskID int64
	Draft  models.Draft
}

// Snapshot is a copy of the controller state, safe to read without locking
type Snapshot struct {
	Tasks         []models.Task
	Loading       bool
	Compose       models.Draft
	Edit          *EditSession
	PendingDelete *int64
	Dragged       *int64
	HoverIndex    int // -1 when nothing is hovered
}

// Controller owns the task list. All mutations are serialized by mu; network
// calls are made with mu released so other operations can run meanwhile.
type Controller struct {
	store  Store
	logger *log.Logger

	mu            sync.Mutex
	tasks         []models.Task
	loading       bool
	compose       models.Draft
	edit          *EditSession
	pendingDelete *int64

	// drag state
	dragged    *int64
	hoverIndex int

	// clock numbers every update and load in issue order. applied holds the
	// number of the newest response applied per task id; responses at or
	// below it are dropped.
	clock   uint64
	applied map[int64]uint64
	loadSeq uint64
}

// NewController creates a controller backed by store. A nil logger discards output.
func NewController(store Store, logger *log.Logger) *Controller {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Controller{
		store:      store,
		logger:     logger,
		compose:    models.NewDraft(),
		hoverIndex: -1,
		applied:    make(map[int64]uint64),
	}
}

// Snapshot returns a copy of the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Tasks:      slices.Clone(c.tasks),
		Loading:    c.loading,
		Compose:    c.compose,
		HoverIndex: c.hoverIndex,
	}
	if c.edit != nil {
		e := *c.edit
		s.Edit = &e
	}
	if c.pendingDelete != nil {
		id := *c.pendingDelete
		s.PendingDelete = &id
	}
	if c.dragged != nil {
		id := *c.dragged
		s.Dragged = &id
	}
	return s
}

// Tasks returns a copy of the task list in display order
func (c *Controller) Tasks() []models.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tasks)
}

// Load replaces the list with the store's contents. A task already updated by
// a request issued after the load started keeps its local copy. On failure the
// list is left empty. The loading flag is cleared either way.
func (c *Controller) Load(ctx context.Context) error {
	c.mu.Lock()
	c.loading = true
	seq := c.nextSeq()
	c.loadSeq = seq
	c.mu.Unlock()

	tasks, err := c.store.List(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.loadSeq {
		return ErrStaleResponse
	}
	c.loading = false
	if err != nil {
		c.tasks = nil
		c.logger.Error("fetching tasks", "err", err)
		return err
	}
	next := slices.Clone(tasks)
	for i := range next {
		id := next[i].ID
		if c.applied[id] > seq {
			// an update issued after this load already landed
			if j := c.indexOf(id); j >= 0 {
				next[i] = c.tasks[j]
			}
			continue
		}
		c.applied[id] = seq
	}
	c.tasks = next
	c.logger.Debug("tasks loaded", "count", len(tasks))
	return nil
}

// Compose returns the new-task input fields
func (c *Controller) Compose() models.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.compose
}

// SetCompose replaces the new-task input fields
func (c *Controller) SetCompose(d models.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.compose = d
}

// Create sends a new task to the store and appends the stored task on success.
// The input fields are reset only when the store accepts it.
func (c *Controller) Create(ctx context.Context, d models.Draft) (models.Task, error) {
	if !d.HasTitle() {
		return models.Task{}, ErrEmptyTitle
	}

	task, err := c.store.Create(ctx, models.NewTaskFrom(d))
	if err != nil {
		c.logger.Error("adding task", "title", d.Title, "err", err)
		return models.Task{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(task.ID) >= 0 {
		// already present from a concurrent load
		c.replace(task)
	} else {
		c.tasks = append(slices.Clone(c.tasks), task)
	}
	c.compose = models.NewDraft()
	c.logger.Debug("task added", "id", task.ID)
	return task, nil
}

// ToggleComplete flips the completion state of a task through the store.
func (c *Controller) ToggleComplete(ctx context.Context, id int64) (models.Task, error) {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return models.Task{}, TaskNotFoundError{ID: id}
	}
	completed := !c.tasks[i].Completed
	seq := c.nextSeq()
	c.mu.Unlock()

	task, err := c.store.Update(ctx, id, models.TaskPatch{Completed: &completed})
	if err != nil {
		c.logger.Error("updating task", "id", id, "err", err)
		return models.Task{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept(id, seq) {
		c.logger.Debug("dropping stale response", "id", id)
		return task, ErrStaleResponse
	}
	c.replace(task)

	if c.edit != nil && c.edit.TaskID == id {
		if task.Completed {
			c.edit = nil
		} else {
			c.edit.Draft = models.DraftFrom(task)
		}
	}
	return task, nil
}

// BeginEdit opens an edit session seeded from t. Completed tasks are refused.
func (c *Controller) BeginEdit(t models.Task) error {
	if t.Completed {
		return ErrTaskCompleted
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = &EditSession{TaskID: t.ID, Draft: models.DraftFrom(t)}
	return nil
}

// EditSession returns a copy of the open session, or nil
func (c *Controller) EditSession() *EditSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit == nil {
		return nil
	}
	e := *c.edit
	return &e
}

// SetEditDraft replaces the draft of the open session
func (c *Controller) SetEditDraft(d models.Draft) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.edit != nil {
		c.edit.Draft = d
	}
}

// SaveEdit sends the draft of the open session for id. Blank deadline fields
// are sent as null, clearing them. The session stays open if the store fails.
func (c *Controller) SaveEdit(ctx context.Context, id int64) (models.Task, error) {
	c.mu.Lock()
	if c.edit == nil || c.edit.TaskID != id {
		c.mu.Unlock()
		return models.Task{}, ErrNoEditSession
	}
	draft := c.edit.Draft
	if !draft.HasTitle() {
		c.mu.Unlock()
		return models.Task{}, ErrEmptyTitle
	}
	seq := c.nextSeq()
	c.mu.Unlock()

	task, err := c.store.Update(ctx, id, models.PatchFrom(draft))
	if err != nil {
		c.logger.Error("updating task", "id", id, "err", err)
		return models.Task{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.accept(id, seq) {
		c.logger.Debug("dropping stale response", "id", id)
		return task, ErrStaleResponse
	}
	c.replace(task)
	if c.edit != nil && c.edit.TaskID == id {
		c.edit = nil
	}
	return task, nil
}

// CancelEdit discards the open session
func (c *Controller) CancelEdit() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edit = nil
}

// RequestDelete marks id as awaiting confirmation
func (c *Controller) RequestDelete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = &id
}

// CancelDelete clears the pending confirmation
func (c *Controller) CancelDelete() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingDelete = nil
}

// PendingDelete returns the id awaiting confirmation
func (c *Controller) PendingDelete() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingDelete == nil {
		return 0, false
	}
	return *c.pendingDelete, true
}

// ConfirmDelete deletes the pending task. The confirmation is dismissed
// whether or not the store succeeds; the task is removed only on success.
func (c *Controller) ConfirmDelete(ctx context.Context) error {
	c.mu.Lock()
	if c.pendingDelete == nil {
		c.mu.Unlock()
		return ErrNoPendingDelete
	}
	id := *c.pendingDelete
	c.mu.Unlock()

	err := c.store.Delete(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pendingDelete != nil && *c.pendingDelete == id {
		c.pendingDelete = nil
	}
	if err != nil {
		c.logger.Error("deleting task", "id", id, "err", err)
		return err
	}

	if i := c.indexOf(id); i >= 0 {
		c.tasks = slices.Delete(slices.Clone(c.tasks), i, i+1)
	}
	if c.edit != nil && c.edit.TaskID == id {
		c.edit = nil
	}
	if c.dragged != nil && *c.dragged == id {
		c.dragged = nil
		c.hoverIndex = -1
	}
	delete(c.applied, id)
	return nil
}

// Reorder moves the task to toIndex, shifting the tasks in between. It never
// touches the store; the order is lost on the next Load. Reports whether the
// list changed.
func (c *Controller) Reorder(id int64, toIndex int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reorder(id, toIndex)
}

func (c *Controller) reorder(id int64, toIndex int) bool {
	from := c.indexOf(id)
	if from < 0 || len(c.tasks) == 0 {
		return false
	}
	toIndex = max(0, min(toIndex, len(c.tasks)-1))
	if from == toIndex {
		return false
	}

	next := slices.Clone(c.tasks)
	t := next[from]
	next = slices.Delete(next, from, from+1)
	next = slices.Insert(next, toIndex, t)
	c.tasks = next
	return true
}

// DragStart records the task being dragged
func (c *Controller) DragStart(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexOf(id) < 0 {
		return
	}
	c.dragged = &id
	c.hoverIndex = c.indexOf(id)
}

// DragEnter records index as the prospective drop target
func (c *Controller) DragEnter(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragged == nil {
		return
	}
	c.hoverIndex = index
}

// Drop moves the dragged task to index and clears the drag state.
func (c *Controller) Drop(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	moved := false
	if c.dragged != nil {
		moved = c.reorder(*c.dragged, index)
	}
	c.dragged = nil
	c.hoverIndex = -1
	return moved
}

// DragEnd clears the drag state without moving anything
func (c *Controller) DragEnd() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dragged = nil
	c.hoverIndex = -1
}

func (c *Controller) indexOf(id int64) int {
	return slices.IndexFunc(c.tasks, func(t models.Task) bool { return t.ID == id })
}

// replace swaps in the authoritative copy of a task. Tasks removed locally
// in the meantime stay removed.
func (c *Controller) replace(t models.Task) {
	i := c.indexOf(t.ID)
	if i < 0 {
		return
	}
	next := slices.Clone(c.tasks)
	next[i] = t
	c.tasks = next
}

func (c *Controller) nextSeq() uint64 {
	c.clock++
	return c.clock
}

// accept records seq as applied for id unless a newer response for id has
// already been applied. Failed requests never reach it.
func (c *Controller) accept(id int64, seq uint64) bool {
	if seq <= c.applied[id] {
		return false
	}
	c.applied[id] = seq
	return true
}

// Ignorable reports whether err needs no further handling by a caller that
// only wants to know whether to re-render.
func Ignorable(err error) bool {
	return err == nil || IsNoOp(err) || errors.Is(err, ErrStaleResponse)
}
