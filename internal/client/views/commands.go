package views

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/sync/errgroup"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/models"
)

// Results carry the session epoch they were requested under; Update drops
// any whose epoch is no longer current.

type restoredMsg struct{}

type authDoneMsg struct {
	err error
}

type loggedOutMsg struct{}

type projectsMsg struct {
	epoch uint64
	items []models.Project
	err   error
}

type tasksMsg struct {
	epoch uint64
	items []models.Task
	err   error
}

type bugsMsg struct {
	epoch uint64
	items []models.Bug
	err   error
}

type statsMsg struct {
	epoch    uint64
	stats    *models.DashboardStats
	projects []models.Project
	err      error
}

type savedMsg struct {
	epoch  uint64
	screen screen
	what   string
	err    error
}

type eventMsg struct {
	env models.Envelope
}

const requestTimeout = 15 * time.Second

func (a App) reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(a.ctx, requestTimeout)
}

func (a App) restoreCmd() tea.Cmd {
	return func() tea.Msg {
		a.sess.Restore(a.ctx)
		return restoredMsg{}
	}
}

func (a App) loginCmd(email, password string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		_, err := a.sess.Login(ctx, email, password)
		return authDoneMsg{err: err}
	}
}

func (a App) registerCmd(email, username, password string, role models.Role) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		_, err := a.sess.Register(ctx, email, username, password, role)
		return authDoneMsg{err: err}
	}
}

func (a App) logoutCmd() tea.Cmd {
	return func() tea.Msg {
		a.sess.Logout(a.ctx)
		return loggedOutMsg{}
	}
}

func (a App) fetchProjects() tea.Cmd {
	epoch := a.epoch()
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		items, err := a.backend.ListProjects(ctx)
		return projectsMsg{epoch: epoch, items: items, err: err}
	}
}

func (a App) fetchTasks() tea.Cmd {
	epoch := a.epoch()
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		items, err := a.backend.ListTasks(ctx, api.TaskFilter{})
		return tasksMsg{epoch: epoch, items: items, err: err}
	}
}

func (a App) fetchBugs() tea.Cmd {
	epoch := a.epoch()
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		items, err := a.backend.ListBugs(ctx, api.BugFilter{})
		return bugsMsg{epoch: epoch, items: items, err: err}
	}
}

// fetchStats loads the counters and the project list side by side.
func (a App) fetchStats() tea.Cmd {
	epoch := a.epoch()
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()

		var (
			stats    *models.DashboardStats
			projects []models.Project
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			stats, err = a.backend.Dashboard(gctx)
			return err
		})
		g.Go(func() error {
			var err error
			projects, err = a.backend.ListProjects(gctx)
			return err
		})
		err := g.Wait()
		return statsMsg{epoch: epoch, stats: stats, projects: projects, err: err}
	}
}

func (a App) save(s screen, what string, fn func(ctx context.Context) error) tea.Cmd {
	epoch := a.epoch()
	return func() tea.Msg {
		ctx, cancel := a.reqCtx()
		defer cancel()
		return savedMsg{epoch: epoch, screen: s, what: what, err: fn(ctx)}
	}
}

// waitEvent blocks until the broker hands over the next push event.
func (a App) waitEvent() tea.Cmd {
	ch := a.events
	return func() tea.Msg {
		select {
		case env, ok := <-ch:
			if !ok {
				return nil
			}
			return eventMsg{env: env}
		case <-a.ctx.Done():
			return nil
		}
	}
}
