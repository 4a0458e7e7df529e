package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Priority is the urgency of a task
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists every valid priority, lowest first
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// IsValid reports whether p is one of low, medium, high
func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// OrDefault returns medium for an unset priority
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// Next cycles low -> medium -> high -> low
func (p Priority) Next() Priority {
	switch p.OrDefault() {
	case PriorityLow:
		return PriorityMedium
	case PriorityMedium:
		return PriorityHigh
	default:
		return PriorityLow
	}
}

// Prev cycles in the opposite direction of Next
func (p Priority) Prev() Priority {
	return p.Next().Next()
}

// ParsePriority parses a priority name, case-insensitively
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("invalid priority: %s (valid: low, medium, high)", s)
	}
	return p, nil
}

// Task represents a single to-do entry as the task store returns it
type Task struct {
	ID           int64    `json:"id"`
	Title        string   `json:"title"`
	Completed    bool     `json:"completed"`
	DeadlineDate *string  `json:"deadline_date"`
	DeadlineTime *string  `json:"deadline_time"`
	Priority     Priority `json:"priority"`
}

// Draft holds the editable fields of a task. Empty strings mean "not set".
type Draft struct {
	Title        string
	DeadlineDate string
	DeadlineTime string
	Priority     Priority
}

// DraftFrom seeds a draft from an existing task
func DraftFrom(t Task) Draft {
	return Draft{
		Title:        t.Title,
		DeadlineDate: deref(t.DeadlineDate),
		DeadlineTime: deref(t.DeadlineTime),
		Priority:     t.Priority.OrDefault(),
	}
}

// NewDraft returns an empty draft with the default priority
func NewDraft() Draft {
	return Draft{Priority: PriorityMedium}
}

// HasTitle reports whether the draft title has any non-space content
func (d Draft) HasTitle() bool {
	return strings.TrimSpace(d.Title) != ""
}

// NewTask is the creation request body
type NewTask struct {
	Title        string   `json:"title"`
	DeadlineDate *string  `json:"deadline_date"`
	DeadlineTime *string  `json:"deadline_time"`
	Priority     Priority `json:"priority"`
	Completed    bool     `json:"completed"`
}

// NewTaskFrom builds a creation request from a draft. Blank deadlines are sent as null.
func NewTaskFrom(d Draft) NewTask {
	return NewTask{
		Title:        d.Title,
		DeadlineDate: nullIfBlank(d.DeadlineDate),
		DeadlineTime: nullIfBlank(d.DeadlineTime),
		Priority:     d.Priority.OrDefault(),
		Completed:    false,
	}
}

// Nullable is a JSON field that may be absent, null, or set
type Nullable struct {
	Set   bool
	Value *string
}

// Null returns a present-but-null field
func Null() Nullable { return Nullable{Set: true} }

// Value returns a present field holding s
func Value(s string) Nullable { return Nullable{Set: true, Value: &s} }

// TaskPatch is a partial update. Nil pointers and unset Nullables are not sent.
type TaskPatch struct {
	Title        *string
	Completed    *bool
	Priority     *Priority
	DeadlineDate Nullable
	DeadlineTime Nullable
}

// PatchFrom builds a full field-edit patch from a draft. Blank deadlines clear the field.
func PatchFrom(d Draft) TaskPatch {
	title := d.Title
	priority := d.Priority.OrDefault()
	return TaskPatch{
		Title:        &title,
		Priority:     &priority,
		DeadlineDate: nullableFrom(d.DeadlineDate),
		DeadlineTime: nullableFrom(d.DeadlineTime),
	}
}

// IsEmpty reports whether the patch carries no fields
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Completed == nil && p.Priority == nil &&
		!p.DeadlineDate.Set && !p.DeadlineTime.Set
}

// Apply writes the present fields of the patch onto t
func (p TaskPatch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Completed != nil {
		t.Completed = *p.Completed
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DeadlineDate.Set {
		t.DeadlineDate = p.DeadlineDate.Value
	}
	if p.DeadlineTime.Set {
		t.DeadlineTime = p.DeadlineTime.Value
	}
}

func (p TaskPatch) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, 5)
	if p.Title != nil {
		m["title"] = *p.Title
	}
	if p.Completed != nil {
		m["completed"] = *p.Completed
	}
	if p.Priority != nil {
		m["priority"] = *p.Priority
	}
	if p.DeadlineDate.Set {
		m["deadline_date"] = p.DeadlineDate.Value
	}
	if p.DeadlineTime.Set {
		m["deadline_time"] = p.DeadlineTime.Value
	}
	return json.Marshal(m)
}

func (p *TaskPatch) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = TaskPatch{}

	if v, ok := raw["title"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("title: %w", err)
		}
		p.Title = &s
	}
	if v, ok := raw["completed"]; ok {
		var b bool
		if err := json.Unmarshal(v, &b); err != nil {
			return fmt.Errorf("completed: %w", err)
		}
		p.Completed = &b
	}
	if v, ok := raw["priority"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("priority: %w", err)
		}
		pr := Priority(s)
		p.Priority = &pr
	}
	if v, ok := raw["deadline_date"]; ok {
		n, err := decodeNullable(v)
		if err != nil {
			return fmt.Errorf("deadline_date: %w", err)
		}
		p.DeadlineDate = n
	}
	if v, ok := raw["deadline_time"]; ok {
		n, err := decodeNullable(v)
		if err != nil {
			return fmt.Errorf("deadline_time: %w", err)
		}
		p.DeadlineTime = n
	}
	return nil
}

func decodeNullable(v json.RawMessage) (Nullable, error) {
	var s *string
	if err := json.Unmarshal(v, &s); err != nil {
		return Nullable{}, err
	}
	return Nullable{Set: true, Value: s}, nil
}

func nullableFrom(s string) Nullable {
	if strings.TrimSpace(s) == "" {
		return Null()
	}
	return Value(s)
}

func nullIfBlank(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
