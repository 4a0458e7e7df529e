package views

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tgienger/tdl/internal/models"
)

// Form fields, in tab order
const (
	fieldTitle = iota
	fieldDate
	fieldTime
	fieldPriority
	fieldSave
	fieldCount
)

// taskForm holds the inputs shared by the new-task and edit forms
type taskForm struct {
	title    textinput.Model
	date     textinput.Model
	clock    textinput.Model
	priority models.Priority
	focus    int
	width    int
}

func newTaskForm() taskForm {
	title := textinput.New()
	title.Placeholder = "Task title"
	title.CharLimit = 200

	date := textinput.New()
	date.Placeholder = "YYYY-MM-DD"
	date.CharLimit = 10

	clock := textinput.New()
	clock.Placeholder = "HH:MM"
	clock.CharLimit = 5

	return taskForm{
		title:    title,
		date:     date,
		clock:    clock,
		priority: models.PriorityMedium,
		width:    50,
	}
}

// load fills the inputs from d and focuses the title
func (f *taskForm) load(d models.Draft) {
	f.fill(d)
	f.setFocus(fieldTitle)
}

// fill replaces the input values, keeping focus where it is
func (f *taskForm) fill(d models.Draft) {
	for _, in := range []struct {
		m *textinput.Model
		v string
	}{{&f.title, d.Title}, {&f.date, d.DeadlineDate}, {&f.clock, d.DeadlineTime}} {
		in.m.SetValue(in.v)
		in.m.CursorEnd()
	}
	f.priority = d.Priority.OrDefault()
}

func (f taskForm) draft() models.Draft {
	return models.Draft{
		Title:        f.title.Value(),
		DeadlineDate: f.date.Value(),
		DeadlineTime: f.clock.Value(),
		Priority:     f.priority,
	}
}

// setFocus moves focus to field i, wrapping around
func (f *taskForm) setFocus(i int) {
	f.focus = (i + fieldCount) % fieldCount
	f.blur()
	switch f.focus {
	case fieldTitle:
		f.title.Focus()
	case fieldDate:
		f.date.Focus()
	case fieldTime:
		f.clock.Focus()
	}
}

func (f *taskForm) blur() {
	f.title.Blur()
	f.date.Blur()
	f.clock.Blur()
}

func (f *taskForm) setWidth(w int) {
	f.width = w
	// leave room for the border and padding
	f.title.Width = w - 4
	f.date.Width = w - 4
	f.clock.Width = w - 4
}

// update routes msg to the focused input
func (f *taskForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	switch f.focus {
	case fieldTitle:
		f.title, cmd = f.title.Update(msg)
	case fieldDate:
		f.date, cmd = f.date.Update(msg)
	case fieldTime:
		f.clock, cmd = f.clock.Update(msg)
	}
	return cmd
}
