package ui

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tgienger/tdl/internal/api"
	"github.com/tgienger/tdl/internal/db"
	"github.com/tgienger/tdl/internal/server"
	"github.com/tgienger/tdl/internal/todo"
)

func TestAppStartsAgainstServer(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "tdl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.SeedTasks())

	srv := httptest.NewServer(server.NewHandler(database, nil).Routes())
	t.Cleanup(srv.Close)

	client := api.NewClient(srv.URL, 0)
	ctrl := todo.NewController(client, nil)
	app := NewApp(context.Background(), ctrl, client)
	app.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	batch, ok := app.Init()().(tea.BatchMsg)
	require.True(t, ok)
	for _, cmd := range batch {
		if cmd != nil {
			app.Update(cmd())
		}
	}

	out := app.View()
	assert.Contains(t, out, "server running")
	assert.Contains(t, out, "TODO LIST")
	assert.Len(t, ctrl.Tasks(), 2)
}

func TestAppWithoutClientOnlyLoads(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "tdl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	srv := httptest.NewServer(server.NewHandler(database, nil).Routes())
	t.Cleanup(srv.Close)

	ctrl := todo.NewController(api.NewClient(srv.URL, 0), nil)
	app := NewApp(context.Background(), ctrl, nil)
	app.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	app.Update(app.Init()())

	assert.Contains(t, app.View(), "No tasks")
	assert.NotContains(t, app.View(), "server")
}
