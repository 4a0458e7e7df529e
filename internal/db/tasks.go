package db

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/tgienger/tdl/internal/models"
)

const taskColumns = `id, title, completed, deadline_date, deadline_time, priority`

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (models.Task, error) {
	var t models.Task
	var date, clock sql.NullString
	var priority string
	if err := s.Scan(&t.ID, &t.Title, &t.Completed, &date, &clock, &priority); err != nil {
		return models.Task{}, err
	}
	if date.Valid {
		t.DeadlineDate = &date.String
	}
	if clock.Valid {
		t.DeadlineTime = &clock.String
	}
	t.Priority = models.Priority(priority)
	return t, nil
}

// CreateTask creates a new, not yet completed task
func (db *DB) CreateTask(nt models.NewTask) (*models.Task, error) {
	result, err := db.Exec(`
		INSERT INTO tasks (title, completed, deadline_date, deadline_time, priority) VALUES (?, 0, ?, ?, ?)
	`, nt.Title, nt.DeadlineDate, nt.DeadlineTime, string(nt.Priority.OrDefault()))
	if err != nil {
		return nil, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return db.GetTask(id)
}

// GetTask retrieves a task by ID
func (db *DB) GetTask(id int64) (*models.Task, error) {
	t, err := scanTask(db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTasks returns all tasks in creation order
func (db *DB) ListTasks() ([]models.Task, error) {
	rows, err := db.Query(`SELECT ` + taskColumns + ` FROM tasks ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies the fields present in patch and returns the stored task
func (db *DB) UpdateTask(id int64, patch models.TaskPatch) (*models.Task, error) {
	var sets []string
	var args []any

	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *patch.Completed)
	}
	if patch.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*patch.Priority))
	}
	if patch.DeadlineDate.Set {
		sets = append(sets, "deadline_date = ?")
		args = append(args, patch.DeadlineDate.Value)
	}
	if patch.DeadlineTime.Set {
		sets = append(sets, "deadline_time = ?")
		args = append(args, patch.DeadlineTime.Value)
	}

	if len(sets) > 0 {
		sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
		args = append(args, id)
		result, err := db.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return nil, err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, ErrNotFound
		}
	}

	return db.GetTask(id)
}

// DeleteTask deletes a task
func (db *DB) DeleteTask(id int64) error {
	result, err := db.Exec("DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskCount returns the number of tasks
func (db *DB) TaskCount() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM tasks").Scan(&count)
	return count, err
}

const seededKey = "seeded"

// SeedTasks inserts the sample tasks the first time a database is opened.
// Later calls are no-ops, so deleted samples stay deleted.
func (db *DB) SeedTasks() error {
	seeded, err := db.GetSetting(seededKey)
	if err != nil {
		return err
	}
	if seeded != "" {
		return nil
	}

	samples := []models.NewTask{
		{Title: "TODO LIST", Priority: models.PriorityMedium},
		{Title: "BACKEND go, FRONTEND bubbletea", Priority: models.PriorityLow},
	}
	for _, s := range samples {
		if _, err := db.CreateTask(s); err != nil {
			return err
		}
	}
	return db.SetSetting(seededKey, "1")
}
