package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/tgienger/tdl/internal/api"
	"github.com/tgienger/tdl/internal/todo"
	"github.com/tgienger/tdl/internal/ui/views"
)

type App struct {
	ctx      context.Context
	client   *api.Client
	taskList *views.TaskListView
}

// Creates a new application. client is only used for the health check and may be nil.
func NewApp(ctx context.Context, ctrl *todo.Controller, client *api.Client) *App {
	return &App{
		ctx:      ctx,
		client:   client,
		taskList: views.NewTaskListView(ctx, ctrl),
	}
}

func (a *App) Init() tea.Cmd {
	if a.client == nil {
		return a.taskList.Init()
	}
	return tea.Batch(a.taskList.Init(), a.checkServer)
}

func (a *App) checkServer() tea.Msg {
	status, err := a.client.Status(a.ctx)
	return views.ServerStatusMsg{Status: status, Err: err}
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	_, cmd := a.taskList.Update(msg)
	return a, cmd
}

func (a *App) View() string {
	return a.taskList.View()
}
