package todo

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/tdl/internal/models"
)

var errBackend = errors.New("backend unavailable")

// fakeStore is an in-memory Store that records calls and can be told to fail.
type fakeStore struct {
	mu      sync.Mutex
	tasks   []models.Task
	nextID  int64
	fail    bool
	calls   []string
	patches []models.TaskPatch
	created []models.NewTask

	// when set, Update blocks on the channel for the call with that index
	gates map[int]chan struct{}
	// Update calls with these indexes fail
	failAt map[int]bool
	// when set, List blocks on it after reading the tasks
	listGate chan struct{}
}

func newFakeStore(tasks ...models.Task) *fakeStore {
	s := &fakeStore{nextID: 100, gates: map[int]chan struct{}{}, failAt: map[int]bool{}}
	s.tasks = append(s.tasks, tasks...)
	return s
}

func (s *fakeStore) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func (s *fakeStore) List(_ context.Context) ([]models.Task, error) {
	s.record("list")
	s.mu.Lock()
	if s.fail {
		s.mu.Unlock()
		return nil, errBackend
	}
	out := make([]models.Task, len(s.tasks))
	copy(out, s.tasks)
	gate := s.listGate
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return out, nil
}

func (s *fakeStore) count(call string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (s *fakeStore) Create(_ context.Context, nt models.NewTask) (models.Task, error) {
	s.record("create")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, nt)
	if s.fail {
		return models.Task{}, errBackend
	}
	s.nextID++
	t := models.Task{
		ID:           s.nextID,
		Title:        nt.Title,
		Completed:    nt.Completed,
		DeadlineDate: nt.DeadlineDate,
		DeadlineTime: nt.DeadlineTime,
		Priority:     nt.Priority,
	}
	s.tasks = append(s.tasks, t)
	return t, nil
}

func (s *fakeStore) Update(_ context.Context, id int64, patch models.TaskPatch) (models.Task, error) {
	s.mu.Lock()
	idx := len(s.patches)
	s.patches = append(s.patches, patch)
	s.calls = append(s.calls, "update")
	gate := s.gates[idx]
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.failAt[idx] {
		return models.Task{}, errBackend
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			patch.Apply(&s.tasks[i])
			return s.tasks[i], nil
		}
	}
	return models.Task{}, errors.New("not found")
}

func (s *fakeStore) Delete(_ context.Context, id int64) error {
	s.record("delete")
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errBackend
	}
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func sampleTasks(n int) []models.Task {
	out := make([]models.Task, n)
	for i := range out {
		out[i] = models.Task{ID: int64(i + 1), Title: string(rune('A' + i)), Priority: models.PriorityMedium}
	}
	return out
}

func loaded(t *testing.T, store *fakeStore) *Controller {
	t.Helper()
	c := NewController(store, nil)
	require.NoError(t, c.Load(context.Background()))
	return c
}

func ids(tasks []models.Task) []int64 {
	out := make([]int64, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestLoad(t *testing.T) {
	store := newFakeStore(sampleTasks(3)...)
	c := NewController(store, nil)

	assert.False(t, c.Snapshot().Loading)
	require.NoError(t, c.Load(context.Background()))

	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Tasks))
}

func TestLoadFailureLeavesListEmpty(t *testing.T) {
	store := newFakeStore(sampleTasks(3)...)
	c := loaded(t, store)

	store.fail = true
	err := c.Load(context.Background())
	assert.ErrorIs(t, err, errBackend)

	s := c.Snapshot()
	assert.False(t, s.Loading)
	assert.Empty(t, s.Tasks)
}

func TestCreate(t *testing.T) {
	store := newFakeStore()
	c := loaded(t, store)

	draft := models.Draft{Title: "Buy milk", DeadlineDate: "2024-05-01", DeadlineTime: "14:30", Priority: models.PriorityHigh}
	c.SetCompose(draft)

	task, err := c.Create(context.Background(), draft)
	require.NoError(t, err)

	tasks := c.Tasks()
	require.Len(t, tasks, 1)
	got := tasks[0]
	assert.Equal(t, task, got)
	assert.NotZero(t, got.ID)
	assert.Equal(t, "Buy milk", got.Title)
	assert.Equal(t, "2024-05-01", *got.DeadlineDate)
	assert.Equal(t, "14:30", *got.DeadlineTime)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.False(t, got.Completed)

	// input fields reset
	assert.Equal(t, models.NewDraft(), c.Compose())

	require.Len(t, store.created, 1)
	assert.False(t, store.created[0].Completed)
}

func TestCreateAppendsToEnd(t *testing.T) {
	store := newFakeStore(sampleTasks(2)...)
	c := loaded(t, store)

	_, err := c.Create(context.Background(), models.Draft{Title: "third"})
	require.NoError(t, err)

	tasks := c.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, "third", tasks[2].Title)
	assert.Equal(t, models.PriorityMedium, tasks[2].Priority)
	assert.Nil(t, tasks[2].DeadlineDate)
	assert.Nil(t, tasks[2].DeadlineTime)
}

func TestCreateRejectsBlankTitle(t *testing.T) {
	for _, title := range []string{"", "   "} {
		store := newFakeStore(sampleTasks(1)...)
		c := loaded(t, store)
		before := store.callCount()

		_, err := c.Create(context.Background(), models.Draft{Title: title})
		assert.ErrorIs(t, err, ErrEmptyTitle)
		assert.True(t, IsNoOp(err))
		assert.Equal(t, before, store.callCount(), "no request for %q", title)
		assert.Len(t, c.Tasks(), 1)
	}
}

func TestCreateFailureKeepsState(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	draft := models.Draft{Title: "lost", Priority: models.PriorityLow}
	c.SetCompose(draft)

	store.fail = true
	_, err := c.Create(context.Background(), draft)
	assert.ErrorIs(t, err, errBackend)
	assert.Len(t, c.Tasks(), 1)
	assert.Equal(t, draft, c.Compose())
}

func TestToggleComplete(t *testing.T) {
	date := "2024-05-01"
	orig := models.Task{ID: 7, Title: "walk dog", DeadlineDate: &date, Priority: models.PriorityLow}
	store := newFakeStore(orig)
	c := loaded(t, store)

	got, err := c.ToggleComplete(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, got.Completed)

	want := orig
	want.Completed = true
	assert.Equal(t, []models.Task{want}, c.Tasks())

	require.Len(t, store.patches, 1)
	require.NotNil(t, store.patches[0].Completed)
	assert.True(t, *store.patches[0].Completed)
	assert.Nil(t, store.patches[0].Title)

	got, err = c.ToggleComplete(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestToggleCompleteFailureKeepsState(t *testing.T) {
	store := newFakeStore(sampleTasks(2)...)
	c := loaded(t, store)

	store.fail = true
	_, err := c.ToggleComplete(context.Background(), 1)
	assert.ErrorIs(t, err, errBackend)
	assert.False(t, c.Tasks()[0].Completed)
}

func TestToggleCompleteUnknownTask(t *testing.T) {
	c := loaded(t, newFakeStore())
	_, err := c.ToggleComplete(context.Background(), 42)
	assert.Equal(t, TaskNotFoundError{ID: 42}, err)
}

func TestToggleCompleteClosesEditOfCompletedTask(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))

	_, err := c.ToggleComplete(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, c.EditSession())
}

func TestBeginEditRefusesCompleted(t *testing.T) {
	c := loaded(t, newFakeStore(models.Task{ID: 1, Title: "done", Completed: true}))

	err := c.BeginEdit(c.Tasks()[0])
	assert.ErrorIs(t, err, ErrTaskCompleted)
	assert.Nil(t, c.EditSession())
}

func TestBeginEditSeedsDraft(t *testing.T) {
	tm := "08:15"
	c := loaded(t, newFakeStore(models.Task{ID: 3, Title: "call", DeadlineTime: &tm}))

	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	e := c.EditSession()
	require.NotNil(t, e)
	assert.Equal(t, int64(3), e.TaskID)
	assert.Equal(t, models.Draft{Title: "call", DeadlineTime: "08:15", Priority: models.PriorityMedium}, e.Draft)
}

func TestSaveEdit(t *testing.T) {
	date := "2024-01-01"
	store := newFakeStore(models.Task{ID: 1, Title: "old", DeadlineDate: &date, Priority: models.PriorityLow})
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))

	c.SetEditDraft(models.Draft{Title: "new", DeadlineTime: "10:00", Priority: models.PriorityHigh})
	got, err := c.SaveEdit(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "new", got.Title)
	assert.Nil(t, got.DeadlineDate, "blank date clears the field")
	assert.Equal(t, "10:00", *got.DeadlineTime)
	assert.Equal(t, models.PriorityHigh, got.Priority)
	assert.Equal(t, []models.Task{got}, c.Tasks())
	assert.Nil(t, c.EditSession())

	require.Len(t, store.patches, 1)
	p := store.patches[0]
	assert.True(t, p.DeadlineDate.Set)
	assert.Nil(t, p.DeadlineDate.Value)
	assert.Nil(t, p.Completed)
}

func TestSaveEditBlankTitle(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	c.SetEditDraft(models.Draft{Title: "  ", Priority: models.PriorityHigh})
	before := store.callCount()

	_, err := c.SaveEdit(context.Background(), 1)
	assert.ErrorIs(t, err, ErrEmptyTitle)
	assert.Equal(t, before, store.callCount())
	assert.Equal(t, sampleTasks(1), c.Tasks())

	e := c.EditSession()
	require.NotNil(t, e)
	assert.Equal(t, "  ", e.Draft.Title)
}

func TestSaveEditFailureKeepsSession(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	c.SetEditDraft(models.Draft{Title: "retry me"})

	store.fail = true
	_, err := c.SaveEdit(context.Background(), 1)
	assert.ErrorIs(t, err, errBackend)
	require.NotNil(t, c.EditSession())
	assert.Equal(t, "A", c.Tasks()[0].Title)

	store.fail = false
	_, err = c.SaveEdit(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "retry me", c.Tasks()[0].Title)
}

func TestSaveEditWithoutSession(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(2)...))
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))

	_, err := c.SaveEdit(context.Background(), 2)
	assert.ErrorIs(t, err, ErrNoEditSession)
}

func TestCancelEdit(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	before := store.callCount()

	c.CancelEdit()
	assert.Nil(t, c.EditSession())
	assert.Equal(t, before, store.callCount())
}

func TestDeleteCancel(t *testing.T) {
	store := newFakeStore(sampleTasks(3)...)
	c := loaded(t, store)

	c.RequestDelete(2)
	id, ok := c.PendingDelete()
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	c.CancelDelete()
	_, ok = c.PendingDelete()
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, ids(c.Tasks()))
}

func TestDeleteConfirm(t *testing.T) {
	store := newFakeStore(sampleTasks(3)...)
	c := loaded(t, store)

	c.RequestDelete(2)
	require.NoError(t, c.ConfirmDelete(context.Background()))

	_, ok := c.PendingDelete()
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 3}, ids(c.Tasks()))
}

func TestDeleteFailureStillDismissesConfirmation(t *testing.T) {
	store := newFakeStore(sampleTasks(3)...)
	c := loaded(t, store)

	store.fail = true
	c.RequestDelete(2)
	err := c.ConfirmDelete(context.Background())
	assert.ErrorIs(t, err, errBackend)

	_, ok := c.PendingDelete()
	assert.False(t, ok)
	assert.Equal(t, []int64{1, 2, 3}, ids(c.Tasks()))
}

func TestConfirmDeleteWithoutRequest(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)
	before := store.callCount()

	assert.ErrorIs(t, c.ConfirmDelete(context.Background()), ErrNoPendingDelete)
	assert.Equal(t, before, store.callCount())
}

func TestReorder(t *testing.T) {
	store := newFakeStore(sampleTasks(5)...)
	c := loaded(t, store)
	before := store.callCount()

	assert.True(t, c.Reorder(1, 2))
	assert.Equal(t, []int64{2, 3, 1, 4, 5}, ids(c.Tasks()))
	assert.Equal(t, before, store.callCount(), "reorder never contacts the store")

	assert.True(t, c.Reorder(5, 0))
	assert.Equal(t, []int64{5, 2, 3, 1, 4}, ids(c.Tasks()))

	assert.True(t, c.Reorder(5, 99), "index past the end is clamped")
	assert.Equal(t, []int64{2, 3, 1, 4, 5}, ids(c.Tasks()))
}

func TestReorderSameIndexIsNoOp(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(4)...))
	before := c.Tasks()

	assert.False(t, c.Reorder(3, 2))
	assert.Equal(t, before, c.Tasks())
	assert.False(t, c.Reorder(99, 0), "unknown id")
	assert.Equal(t, before, c.Tasks())
}

func TestReorderIsLostOnReload(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(3)...))
	c.Reorder(3, 0)
	require.NoError(t, c.Load(context.Background()))
	assert.Equal(t, []int64{1, 2, 3}, ids(c.Tasks()))
}

func TestDragAndDrop(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(5)...))

	c.DragStart(1)
	s := c.Snapshot()
	require.NotNil(t, s.Dragged)
	assert.Equal(t, int64(1), *s.Dragged)

	c.DragEnter(3)
	assert.Equal(t, 3, c.Snapshot().HoverIndex)

	assert.True(t, c.Drop(3))
	s = c.Snapshot()
	assert.Nil(t, s.Dragged)
	assert.Equal(t, -1, s.HoverIndex)
	assert.Equal(t, []int64{2, 3, 4, 1, 5}, ids(s.Tasks))
}

func TestDropAtSamePositionClearsDragState(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(3)...))

	c.DragStart(2)
	c.DragEnter(1)
	assert.False(t, c.Drop(1))

	s := c.Snapshot()
	assert.Nil(t, s.Dragged)
	assert.Equal(t, -1, s.HoverIndex)
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Tasks))
}

func TestDragEndWithoutDrop(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(3)...))

	c.DragStart(3)
	c.DragEnter(0)
	c.DragEnd()

	s := c.Snapshot()
	assert.Nil(t, s.Dragged)
	assert.Equal(t, -1, s.HoverIndex)
	assert.Equal(t, []int64{1, 2, 3}, ids(s.Tasks))

	assert.False(t, c.Drop(0), "drop with nothing dragged")
}

func TestStaleUpdateResponseIsDiscarded(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	first := make(chan struct{})
	store.gates[0] = first
	c := loaded(t, store)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.ToggleComplete(context.Background(), 1)
	}()

	// wait until the first request reached the store
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.patches) == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	c.SetEditDraft(models.Draft{Title: "renamed", Priority: models.PriorityHigh})
	_, err := c.SaveEdit(context.Background(), 1)
	require.NoError(t, err)

	close(first)
	wg.Wait()

	assert.ErrorIs(t, firstErr, ErrStaleResponse)
	assert.True(t, Ignorable(firstErr))
	got := c.Tasks()[0]
	assert.Equal(t, "renamed", got.Title)
}

func TestEarlierUpdateAppliesAfterLaterFailure(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	first := make(chan struct{})
	store.gates[0] = first
	store.failAt[1] = true
	c := loaded(t, store)

	var wg sync.WaitGroup
	var firstErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.ToggleComplete(context.Background(), 1)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.patches) == 1
	}, time.Second, time.Millisecond)

	_, err := c.ToggleComplete(context.Background(), 1)
	require.ErrorIs(t, err, errBackend)

	close(first)
	wg.Wait()

	require.NoError(t, firstErr)
	assert.True(t, store.tasks[0].Completed)
	assert.True(t, c.Tasks()[0].Completed, "local copy matches the store")
}

func TestSaveAppliesAfterLaterToggleFailure(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	first := make(chan struct{})
	store.gates[0] = first
	store.failAt[1] = true
	c := loaded(t, store)
	require.NoError(t, c.BeginEdit(c.Tasks()[0]))
	c.SetEditDraft(models.Draft{Title: "renamed", Priority: models.PriorityLow})

	var wg sync.WaitGroup
	var saveErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, saveErr = c.SaveEdit(context.Background(), 1)
	}()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.patches) == 1
	}, time.Second, time.Millisecond)

	_, err := c.ToggleComplete(context.Background(), 1)
	require.ErrorIs(t, err, errBackend)

	close(first)
	wg.Wait()

	require.NoError(t, saveErr)
	assert.Equal(t, "renamed", c.Tasks()[0].Title)
	assert.Nil(t, c.EditSession(), "session closes once the save lands")
}

func TestLoadKeepsUpdateIssuedWhileLoading(t *testing.T) {
	store := newFakeStore(sampleTasks(2)...)
	c := loaded(t, store)

	gate := make(chan struct{})
	store.mu.Lock()
	store.listGate = gate
	store.mu.Unlock()

	var wg sync.WaitGroup
	var loadErr error
	wg.Add(1)
	go func() {
		defer wg.Done()
		loadErr = c.Load(context.Background())
	}()

	// the load has read the tasks before the toggle reaches the store
	require.Eventually(t, func() bool { return store.count("list") == 2 }, time.Second, time.Millisecond)

	_, err := c.ToggleComplete(context.Background(), 1)
	require.NoError(t, err)

	close(gate)
	wg.Wait()

	require.NoError(t, loadErr)
	tasks := c.Tasks()
	assert.Equal(t, []int64{1, 2}, ids(tasks))
	assert.True(t, tasks[0].Completed, "toggle issued after the load started survives it")
	assert.False(t, tasks[1].Completed)
}

func TestLoadOverwritesUpdateIssuedBeforeIt(t *testing.T) {
	store := newFakeStore(sampleTasks(1)...)
	c := loaded(t, store)

	_, err := c.ToggleComplete(context.Background(), 1)
	require.NoError(t, err)

	store.mu.Lock()
	store.tasks[0].Title = "changed elsewhere"
	store.mu.Unlock()

	require.NoError(t, c.Load(context.Background()))
	got := c.Tasks()[0]
	assert.Equal(t, "changed elsewhere", got.Title)
	assert.True(t, got.Completed)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := loaded(t, newFakeStore(sampleTasks(2)...))
	s := c.Snapshot()
	s.Tasks[0].Title = "mutated"
	assert.Equal(t, "A", c.Tasks()[0].Title)
}
