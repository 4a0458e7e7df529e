package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tgienger/tdl/internal/api"
	"github.com/tgienger/tdl/internal/models"
	"github.com/tgienger/tdl/internal/todo"
	"github.com/tgienger/tdl/internal/ui/keys"
	"github.com/tgienger/tdl/internal/ui/styles"
)

// clamp returns val clamped between minVal and maxVal
func clamp(val, minVal, maxVal int) int {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

// Each task item is 2 lines (title + details) + 1 margin
const rowHeight = 3

// Mode is what the keyboard currently drives
type Mode int

const (
	ModeList Mode = iota
	ModeCompose
	ModeEdit
)

type op string

const (
	opLoad   op = "load"
	opCreate op = "create"
	opToggle op = "toggle"
	opSave   op = "save"
	opDelete op = "delete"
)

// opDoneMsg reports the outcome of a controller call made off the UI loop
type opDoneMsg struct {
	op  op
	err error
}

// ServerStatusMsg carries the result of a task store health check
type ServerStatusMsg struct {
	Status api.Status
	Err    error
}

// TaskListView renders the controller state and turns input into controller calls
type TaskListView struct {
	ctx    context.Context
	ctrl   *todo.Controller
	styles *styles.Styles
	keys   keys.KeyMap
	help   help.Model

	width  int
	height int

	snap    todo.Snapshot
	loaded  bool
	cursor  int
	scrollY int
	mode    Mode
	form    taskForm

	// a delete has been confirmed and is in flight
	deleting bool

	// last health check result, empty until one arrives
	server string

	// a left button press started a drag
	mouseDrag bool

	// Help popup
	showHelpPopup bool
}

// NewTaskListView creates a view over ctrl. Store calls run with ctx.
func NewTaskListView(ctx context.Context, ctrl *todo.Controller) *TaskListView {
	return &TaskListView{
		ctx:    ctx,
		ctrl:   ctrl,
		styles: styles.NewStyles(),
		keys:   keys.DefaultKeyMap(),
		help:   help.New(),
		form:   newTaskForm(),
		snap:   ctrl.Snapshot(),
	}
}

// Init starts the initial load
func (v *TaskListView) Init() tea.Cmd {
	return v.run(opLoad, v.ctrl.Load)
}

// Mode returns what the keyboard currently drives
func (v *TaskListView) Mode() Mode {
	return v.mode
}

// run calls fn outside the update loop and reports back with an opDoneMsg
func (v *TaskListView) run(o op, fn func(context.Context) error) tea.Cmd {
	ctx := v.ctx
	return func() tea.Msg {
		return opDoneMsg{op: o, err: fn(ctx)}
	}
}

// refresh re-reads the controller state and keeps the cursor in range
func (v *TaskListView) refresh() {
	v.snap = v.ctrl.Snapshot()
	v.cursor = clamp(v.cursor, 0, max(0, len(v.snap.Tasks)-1))
	if v.mode == ModeEdit && v.snap.Edit == nil {
		v.mode = ModeList
	}
	v.ensureVisible()
}

func (v *TaskListView) selected() (models.Task, bool) {
	if v.cursor < 0 || v.cursor >= len(v.snap.Tasks) {
		return models.Task{}, false
	}
	return v.snap.Tasks[v.cursor], true
}

func (v *TaskListView) grabbing() bool {
	return v.snap.Dragged != nil
}

func (v *TaskListView) confirmingDelete() bool {
	return v.snap.PendingDelete != nil
}

// Update handles messages
func (v *TaskListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		v.width = msg.Width
		v.height = msg.Height
		v.help.Width = styles.ContentWidth(v.width)
		v.form.setWidth(clamp(styles.ContentWidth(v.width)-6, 20, 50))
		v.ensureVisible()
		return v, nil

	case opDoneMsg:
		v.handleDone(msg)
		return v, nil

	case ServerStatusMsg:
		if msg.Err != nil {
			v.server = "offline"
		} else {
			v.server = msg.Status.Status
		}
		return v, nil

	case tea.MouseMsg:
		if v.mode != ModeList || v.confirmingDelete() || v.showHelpPopup {
			return v, nil
		}
		v.updateMouse(msg)
		return v, nil

	case tea.KeyMsg:
		// Help popup first - any key closes it
		if v.showHelpPopup {
			v.showHelpPopup = false
			return v, nil
		}

		if v.confirmingDelete() {
			return v.updateConfirmDelete(msg)
		}

		if v.mode == ModeCompose || v.mode == ModeEdit {
			return v.updateForm(msg)
		}

		if v.grabbing() {
			return v.updateGrabbing(msg)
		}

		return v.updateNormal(msg)
	}

	// cursor blink and friends
	if v.mode != ModeList {
		return v, v.form.update(msg)
	}
	return v, nil
}

func (v *TaskListView) handleDone(msg opDoneMsg) {
	v.refresh()

	switch msg.op {
	case opLoad:
		v.loaded = true
	case opDelete:
		v.deleting = false
	}

	// Failures are logged by the controller; the list simply does not advance.
	if msg.err != nil {
		return
	}
	switch {
	case msg.op == opCreate && v.mode == ModeCompose:
		v.mode = ModeList
		v.form.blur()
		v.cursor = len(v.snap.Tasks) - 1
		v.ensureVisible()
	case msg.op == opSave && v.mode == ModeEdit:
		v.mode = ModeList
		v.form.blur()
	case msg.op == opToggle && v.mode == ModeEdit && v.snap.Edit != nil:
		// the toggle re-seeded the open draft
		v.form.fill(v.snap.Edit.Draft)
	}
}

func (v *TaskListView) updateNormal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		return v, tea.Quit

	case key.Matches(msg, v.keys.Up):
		if v.cursor > 0 {
			v.cursor--
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.Down):
		if v.cursor < len(v.snap.Tasks)-1 {
			v.cursor++
			v.ensureVisible()
		}
		return v, nil

	case key.Matches(msg, v.keys.New):
		v.mode = ModeCompose
		v.form.load(v.ctrl.Compose())
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Edit):
		task, ok := v.selected()
		if !ok {
			return v, nil
		}
		if err := v.ctrl.BeginEdit(task); err != nil {
			return v, nil
		}
		v.refresh()
		v.mode = ModeEdit
		v.form.load(v.snap.Edit.Draft)
		return v, textinput.Blink

	case key.Matches(msg, v.keys.Toggle):
		task, ok := v.selected()
		if !ok {
			return v, nil
		}
		id := task.ID
		return v, v.run(opToggle, func(ctx context.Context) error {
			_, err := v.ctrl.ToggleComplete(ctx, id)
			return err
		})

	case key.Matches(msg, v.keys.Delete):
		if task, ok := v.selected(); ok {
			v.ctrl.RequestDelete(task.ID)
			v.refresh()
		}
		return v, nil

	case key.Matches(msg, v.keys.Grab):
		if task, ok := v.selected(); ok {
			v.ctrl.DragStart(task.ID)
			v.refresh()
		}
		return v, nil

	case key.Matches(msg, v.keys.Reload):
		return v, v.run(opLoad, v.ctrl.Load)

	case key.Matches(msg, v.keys.Help):
		v.showHelpPopup = true
		return v, nil
	}

	return v, nil
}

func (v *TaskListView) updateConfirmDelete(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if v.deleting {
		return v, nil
	}
	switch msg.String() {
	case "y", "Y":
		v.deleting = true
		return v, v.run(opDelete, v.ctrl.ConfirmDelete)
	case "n", "N", "esc":
		v.ctrl.CancelDelete()
		v.refresh()
	}
	return v, nil
}

func (v *TaskListView) updateGrabbing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	last := len(v.snap.Tasks) - 1
	switch {
	case key.Matches(msg, v.keys.Up):
		v.ctrl.DragEnter(clamp(v.snap.HoverIndex-1, 0, last))
	case key.Matches(msg, v.keys.Down):
		v.ctrl.DragEnter(clamp(v.snap.HoverIndex+1, 0, last))
	case key.Matches(msg, v.keys.Enter), key.Matches(msg, v.keys.Grab):
		target := v.snap.HoverIndex
		if v.ctrl.Drop(target) {
			v.cursor = target
		}
	case key.Matches(msg, v.keys.Back):
		v.ctrl.DragEnd()
	case key.Matches(msg, v.keys.Quit):
		v.ctrl.DragEnd()
		return v, tea.Quit
	}
	v.refresh()
	if v.grabbing() {
		v.scrollTo(v.snap.HoverIndex)
	}
	return v, nil
}

func (v *TaskListView) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.Type == tea.KeyCtrlC:
		return v, tea.Quit

	case key.Matches(msg, v.keys.Back):
		if v.mode == ModeEdit {
			v.ctrl.CancelEdit()
		}
		v.mode = ModeList
		v.form.blur()
		v.refresh()
		return v, nil

	case key.Matches(msg, v.keys.Save):
		return v, v.submitForm()

	case key.Matches(msg, v.keys.Tab):
		v.form.setFocus(v.form.focus + 1)
		return v, nil

	case key.Matches(msg, v.keys.ShiftTab):
		v.form.setFocus(v.form.focus - 1)
		return v, nil

	case key.Matches(msg, v.keys.Enter):
		if v.form.focus == fieldSave {
			return v, v.submitForm()
		}
		v.form.setFocus(v.form.focus + 1)
		return v, nil
	}

	if v.form.focus == fieldPriority {
		switch {
		case key.Matches(msg, v.keys.Left):
			v.form.priority = v.form.priority.Prev()
		case key.Matches(msg, v.keys.Right), msg.String() == " ":
			v.form.priority = v.form.priority.Next()
		}
		v.syncForm()
		return v, nil
	}

	cmd := v.form.update(msg)
	v.syncForm()
	return v, cmd
}

// syncForm pushes the form fields into the controller
func (v *TaskListView) syncForm() {
	switch v.mode {
	case ModeCompose:
		v.ctrl.SetCompose(v.form.draft())
	case ModeEdit:
		v.ctrl.SetEditDraft(v.form.draft())
	}
}

func (v *TaskListView) submitForm() tea.Cmd {
	v.syncForm()
	d := v.form.draft()
	if !d.HasTitle() {
		return nil
	}

	if v.mode == ModeCompose {
		return v.run(opCreate, func(ctx context.Context) error {
			_, err := v.ctrl.Create(ctx, d)
			return err
		})
	}

	session := v.ctrl.EditSession()
	if session == nil {
		v.mode = ModeList
		return nil
	}
	id := session.TaskID
	return v.run(opSave, func(ctx context.Context) error {
		_, err := v.ctrl.SaveEdit(ctx, id)
		return err
	})
}

// listTop is the screen row of the first task item
func (v *TaskListView) listTop() int {
	return lipgloss.Height(v.renderHeader()) + 1
}

// rowAt maps a screen row to a task index, or -1
func (v *TaskListView) rowAt(y int) int {
	rel := y - v.listTop()
	if rel < 0 {
		return -1
	}
	i := v.scrollY + rel/rowHeight
	if i >= len(v.snap.Tasks) || i >= v.scrollY+v.visibleItems() {
		return -1
	}
	return i
}

// updateMouse drives the controller's drag operations from the pointer
func (v *TaskListView) updateMouse(msg tea.MouseMsg) {
	switch msg.Action {
	case tea.MouseActionPress:
		switch msg.Button {
		case tea.MouseButtonWheelUp:
			v.scrollY = max(0, v.scrollY-1)
			return
		case tea.MouseButtonWheelDown:
			v.scrollY = clamp(v.scrollY+1, 0, max(0, len(v.snap.Tasks)-v.visibleItems()))
			return
		case tea.MouseButtonLeft:
		default:
			return
		}
		i := v.rowAt(msg.Y)
		if i < 0 {
			return
		}
		v.cursor = i
		v.ctrl.DragStart(v.snap.Tasks[i].ID)
		v.mouseDrag = true

	case tea.MouseActionMotion:
		if !v.mouseDrag {
			return
		}
		if i := v.rowAt(msg.Y); i >= 0 {
			v.ctrl.DragEnter(i)
		}

	case tea.MouseActionRelease:
		if !v.mouseDrag {
			return
		}
		v.mouseDrag = false
		i := v.rowAt(msg.Y)
		if i < 0 {
			v.ctrl.DragEnd()
			break
		}
		if v.ctrl.Drop(i) {
			v.cursor = i
		}
	}
	v.refresh()
}

func (v *TaskListView) visibleItems() int {
	availableHeight := max(v.height-12, rowHeight)
	return max(availableHeight/rowHeight, 1)
}

func (v *TaskListView) ensureVisible() {
	v.scrollTo(v.cursor)
}

func (v *TaskListView) scrollTo(i int) {
	visible := v.visibleItems()
	if i < v.scrollY {
		v.scrollY = i
	} else if i >= v.scrollY+visible {
		v.scrollY = i - visible + 1
	}
	v.scrollY = clamp(v.scrollY, 0, max(0, len(v.snap.Tasks)-1))
}

// View renders the view
func (v *TaskListView) View() string {
	if v.showHelpPopup {
		return v.renderHelpPopup()
	}

	if v.confirmingDelete() {
		return v.renderDeleteConfirm()
	}

	if v.mode == ModeCompose || v.mode == ModeEdit {
		return v.renderForm()
	}

	var b strings.Builder

	b.WriteString(v.renderHeader())
	b.WriteString("\n\n")

	b.WriteString(v.renderTaskList())

	b.WriteString("\n")
	b.WriteString(v.renderHelp())

	return styles.CenterView(b.String(), v.width, v.height)
}

func (v *TaskListView) renderHeader() string {
	s := v.styles

	done := 0
	for _, t := range v.snap.Tasks {
		if t.Completed {
			done++
		}
	}
	stats := fmt.Sprintf("%d tasks • %d done", len(v.snap.Tasks), done)
	if v.snap.Loading {
		stats = "loading…"
	}
	if v.server != "" {
		stats += " • server " + v.server
	}
	return lipgloss.JoinHorizontal(lipgloss.Center,
		s.Title.Render("To-Do"), "  ", s.TitleMuted.Render(stats),
	)
}

func (v *TaskListView) renderTaskList() string {
	s := v.styles

	if len(v.snap.Tasks) == 0 {
		if !v.loaded || v.snap.Loading {
			return s.TitleMuted.Render("Loading tasks…")
		}
		return s.TitleMuted.Render("No tasks. Press 'n' to create one.")
	}

	var items []string
	endIdx := min(v.scrollY+v.visibleItems(), len(v.snap.Tasks))
	for i := v.scrollY; i < endIdx; i++ {
		items = append(items, v.renderTaskItem(i, v.snap.Tasks[i]))
	}

	return lipgloss.JoinVertical(lipgloss.Left, items...)
}

func (v *TaskListView) renderTaskItem(i int, task models.Task) string {
	s := v.styles
	width := max(styles.ContentWidth(v.width)-4, 20)

	dragged := v.snap.Dragged != nil && *v.snap.Dragged == task.ID
	target := v.snap.Dragged != nil && !dragged && v.snap.HoverIndex == i

	marker := "  "
	if target {
		marker = s.TaskDropTarget.Render("▸ ")
	}

	bar := lipgloss.NewStyle().Foreground(styles.PriorityColor(task.Priority)).Render("▌")
	check := "[ ]"
	title := task.Title
	if task.Completed {
		check = "[x]"
		title = s.TaskCompleted.Render(title)
	}
	titleLine := marker + bar + " " + check + " " + title

	badge := s.Badge.Background(styles.PriorityColor(task.Priority)).Render(styles.PriorityLabel(task.Priority))
	detailLine := "      " + badge
	if d := todo.FormatDeadline(task.DeadlineDate, task.DeadlineTime); !d.IsZero() {
		detailLine += "  " + s.Deadline.Render("⏰ "+d.String())
	}

	itemStyle := s.ListItem
	switch {
	case dragged:
		itemStyle = s.TaskDragging.Padding(0, 1)
	case i == v.cursor && !v.grabbing():
		itemStyle = s.ListSelected
	}
	itemStyle = itemStyle.Width(width)

	return lipgloss.JoinVertical(lipgloss.Left,
		itemStyle.Render(titleLine),
		itemStyle.Render(detailLine),
	) + "\n"
}

func (v *TaskListView) renderHelp() string {
	s := v.styles

	if v.grabbing() {
		return s.Help.Render(
			fmt.Sprintf("%s move • %s drop • %s cancel",
				s.HelpKey.Render("↑↓"),
				s.HelpKey.Render("↵"),
				s.HelpKey.Render("esc"),
			),
		)
	}

	// At narrow widths, show hint to press ? for help
	contentWidth := styles.ContentWidth(v.width)
	if contentWidth > 0 && contentWidth < 50 {
		return s.Help.Render(s.HelpKey.Render("?") + " help")
	}
	return s.Help.Render(v.help.ShortHelpView(v.keys.ShortHelp()))
}

func (v *TaskListView) renderHelpPopup() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	content := lipgloss.JoinVertical(lipgloss.Left,
		s.Title.Render("Keyboard Shortcuts"),
		"",
		v.help.FullHelpView(v.keys.FullHelp()),
		"",
		s.TitleMuted.Render("Drag a task with the mouse to reorder it"),
		s.TitleMuted.Render("Press any key to close"),
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Modal.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderDeleteConfirm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	name := ""
	for _, t := range v.snap.Tasks {
		if t.ID == *v.snap.PendingDelete {
			name = t.Title
			break
		}
	}

	buttons := lipgloss.JoinHorizontal(lipgloss.Center,
		s.ButtonPrimary.Render(" Y - Yes "),
		"  ",
		s.Button.Render(" N - No "),
	)
	if v.deleting {
		buttons = s.TitleMuted.Render("Deleting…")
	}

	content := lipgloss.JoinVertical(lipgloss.Center,
		s.Title.Foreground(styles.Current.Error).Render("Delete Task?"),
		"",
		s.TitleMuted.Render(fmt.Sprintf("%q will be removed.", name)),
		"",
		buttons,
	)

	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		s.Modal.Render(content),
	)
	return styles.CenterView(centered, v.width, v.height)
}

func (v *TaskListView) renderForm() string {
	s := v.styles
	contentWidth := styles.ContentWidth(v.width)

	formTitle := "New Task"
	if v.mode == ModeEdit {
		formTitle = "Edit Task"
	}

	inputStyle := func(field int) lipgloss.Style {
		if v.form.focus == field {
			return s.InputFocused
		}
		return s.Input
	}
	btnStyle := s.Button
	if v.form.focus == fieldSave {
		btnStyle = s.ButtonFocused
	}

	inputWidth := v.form.width
	priority := lipgloss.NewStyle().
		Foreground(styles.PriorityColor(v.form.priority)).
		Render("‹ " + styles.PriorityLabel(v.form.priority) + " ›")

	lines := []string{
		s.Title.Render(formTitle),
		"",
		"Title:",
		inputStyle(fieldTitle).Width(inputWidth).Render(v.form.title.View()),
		"",
		"Deadline date:",
		inputStyle(fieldDate).Width(inputWidth).Render(v.form.date.View()),
		"",
		"Deadline time:",
		inputStyle(fieldTime).Width(inputWidth).Render(v.form.clock.View()),
		"",
		"Priority:",
		inputStyle(fieldPriority).Width(14).Render(priority),
		"",
		btnStyle.Render(" Save "),
	}
	lines = append(lines, "",
		s.TitleMuted.Render("Tab: next • ←→: priority • Ctrl+S: save • Esc: cancel"),
	)

	form := lipgloss.JoinVertical(lipgloss.Left, lines...)

	// Center within content width, then center that in terminal
	centered := lipgloss.Place(contentWidth, v.height,
		lipgloss.Center, lipgloss.Center,
		form,
	)
	return styles.CenterView(centered, v.width, v.height)
}
