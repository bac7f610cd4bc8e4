// Package views is the terminal UI. The bubbletea loop is the only owner
// of view state; network calls run as commands and come back as messages.
package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/events"
	"github.com/atinyakov/devtrack/internal/models"
)

// Session is the part of the session store the views drive.
type Session interface {
	Restore(ctx context.Context)
	Snapshot() models.Snapshot
	Current(epoch uint64) bool
	Login(ctx context.Context, email, password string) (models.Identity, error)
	Register(ctx context.Context, email, username, password string, role models.Role) (models.Identity, error)
	Logout(ctx context.Context)
}

// Backend is the set of API calls the screens make.
type Backend interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, in models.ProjectInput) (*models.Project, error)
	UpdateProject(ctx context.Context, id int64, patch models.ProjectPatch) (*models.Project, error)
	ListTasks(ctx context.Context, f api.TaskFilter) ([]models.Task, error)
	CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id int64, patch models.TaskPatch) (*models.Task, error)
	ListBugs(ctx context.Context, f api.BugFilter) ([]models.Bug, error)
	CreateBug(ctx context.Context, in models.BugInput) (*models.Bug, error)
	UpdateBug(ctx context.Context, id int64, patch models.BugPatch) (*models.Bug, error)
	Dashboard(ctx context.Context) (*models.DashboardStats, error)
}

type screen int

const (
	screenLoading screen = iota
	screenLogin
	screenRegister
	screenDashboard
	screenProjects
	screenTasks
	screenBugs
	screenAnalytics
)

var tabs = []struct {
	screen screen
	name   string
}{
	{screenDashboard, "Dashboard"},
	{screenProjects, "Projects"},
	{screenTasks, "Tasks"},
	{screenBugs, "Bugs"},
	{screenAnalytics, "Analytics"},
}

// DemoAccount is a seeded account offered on the login screen.
type DemoAccount struct {
	Label    string
	Email    string
	Password string
}

var DemoAccounts = []DemoAccount{
	{"Admin", "admin@devtrack.com", "admin123"},
	{"Manager", "manager@devtrack.com", "manager123"},
	{"Developer", "developer@devtrack.com", "dev123"},
	{"Tester", "tester@devtrack.com", "test123"},
}

const eventBuffer = 32

// App is the root model.
type App struct {
	ctx     context.Context
	sess    Session
	backend Backend
	styles  Styles
	events  chan models.Envelope
	sub     *events.Subscription

	screen screen
	width  int
	height int

	login     form
	register  form
	editor    *form
	editorFor screen
	editID    int64 // row being edited; zero while creating

	projects []models.Project
	tasks    []models.Task
	bugs     []models.Bug
	stats    *models.DashboardStats

	projectTable table.Model
	taskTable    table.Model
	bugTable     table.Model

	loading bool
	err     string
	notice  string
}

// New builds the root model and subscribes to live events. Call Close
// once the program has exited.
func New(ctx context.Context, sess Session, backend Backend, broker *events.Broker) App {
	a := App{
		ctx:          ctx,
		sess:         sess,
		backend:      backend,
		styles:       DefaultStyles(),
		events:       make(chan models.Envelope, eventBuffer),
		screen:       screenLoading,
		login:        newLoginForm(),
		register:     newRegisterForm(),
		projectTable: newTable(projectColumns),
		taskTable:    newTable(taskColumns),
		bugTable:     newTable(bugColumns),
	}
	if broker != nil {
		ch := a.events
		a.sub = broker.SubscribeAll(func(env models.Envelope) {
			select {
			case ch <- env:
			default:
				// UI is behind; a later event triggers the same refetch
			}
		})
	}
	return a
}

// Close stops live event delivery.
func (a App) Close() {
	if a.sub != nil {
		a.sub.Unsubscribe()
	}
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.restoreCmd(), a.waitEvent(), textinput.Blink)
}

func (a App) epoch() uint64 { return a.sess.Snapshot().Epoch }

func (a App) stale(epoch uint64) bool { return !a.sess.Current(epoch) }

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
		a.resizeTables()
		return a, nil

	case restoredMsg, loggedOutMsg:
		return a.afterAuthChange()

	case authDoneMsg:
		if msg.err != nil {
			return a.authFailed(msg.err), nil
		}
		return a.afterAuthChange()

	case eventMsg:
		return a.onEvent(msg.env)

	case projectsMsg:
		if a.stale(msg.epoch) {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			return a.failed(msg.err)
		}
		a.err = ""
		a.projects = msg.items
		a.projectTable.SetRows(projectRows(a.projects))
		return a, nil

	case tasksMsg:
		if a.stale(msg.epoch) {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			return a.failed(msg.err)
		}
		a.err = ""
		a.tasks = msg.items
		a.taskTable.SetRows(taskRows(a.tasks))
		return a, nil

	case bugsMsg:
		if a.stale(msg.epoch) {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			return a.failed(msg.err)
		}
		a.err = ""
		a.bugs = msg.items
		a.bugTable.SetRows(bugRows(a.bugs))
		return a, nil

	case statsMsg:
		if a.stale(msg.epoch) {
			return a, nil
		}
		a.loading = false
		if msg.err != nil {
			return a.failed(msg.err)
		}
		a.err = ""
		a.stats = msg.stats
		a.projects = msg.projects
		a.projectTable.SetRows(projectRows(a.projects))
		return a, nil

	case savedMsg:
		if a.stale(msg.epoch) {
			return a, nil
		}
		if msg.err != nil {
			if a.editor != nil {
				a.editor.busy = false
				a.editor.err = msg.err.Error()
				return a, nil
			}
			return a.failed(msg.err)
		}
		a.editor = nil
		a.err = ""
		a.notice = msg.what
		if msg.screen != a.screen {
			return a, nil
		}
		cmd := a.refresh()
		return a, cmd

	case tea.KeyMsg:
		return a.onKey(msg)
	}
	return a, nil
}

func (a App) afterAuthChange() (tea.Model, tea.Cmd) {
	snap := a.sess.Snapshot()
	a.clearData()
	switch {
	case snap.Loading:
		a.screen = screenLoading
		return a, nil
	case !snap.Authenticated():
		a.screen = screenLogin
		a.login.busy = false
		a.register = newRegisterForm()
		return a, nil
	}
	a.login = newLoginForm()
	a.screen = screenDashboard
	cmd := a.refresh()
	return a, cmd
}

func (a App) authFailed(err error) App {
	switch a.screen {
	case screenRegister:
		a.register.busy = false
		a.register.err = err.Error()
	default:
		a.screen = screenLogin
		a.login.busy = false
		a.login.err = err.Error()
	}
	a.clearData()
	return a
}

func (a *App) clearData() {
	a.projects, a.tasks, a.bugs, a.stats = nil, nil, nil, nil
	a.projectTable.SetRows(nil)
	a.taskTable.SetRows(nil)
	a.bugTable.SetRows(nil)
	a.editor = nil
	a.loading = false
	a.err = ""
	a.notice = ""
}

// failed shows err; an expired credential signs the user out.
func (a App) failed(err error) (tea.Model, tea.Cmd) {
	if api.IsUnauthorized(err) {
		a.login.err = "Session expired, please sign in again"
		return a, a.logoutCmd()
	}
	a.err = err.Error()
	return a, nil
}

func (a App) onEvent(env models.Envelope) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{a.waitEvent()}
	if !a.sess.Snapshot().Authenticated() {
		return a, tea.Batch(cmds...)
	}
	a.notice = "Live update: " + strings.ReplaceAll(string(env.Type), "_", " ")
	if a.affectedBy(env.Type) && a.editor == nil {
		cmds = append(cmds, a.refresh())
	}
	return a, tea.Batch(cmds...)
}

func (a App) affectedBy(t models.EventType) bool {
	switch a.screen {
	case screenDashboard, screenAnalytics:
		return true
	case screenProjects:
		return t.Resource() == "projects"
	case screenTasks:
		return t.Resource() == "tasks"
	case screenBugs:
		return t.Resource() == "bugs"
	}
	return false
}

// refresh refetches whatever the current screen shows.
func (a *App) refresh() tea.Cmd {
	var cmd tea.Cmd
	switch a.screen {
	case screenDashboard, screenAnalytics:
		cmd = a.fetchStats()
	case screenProjects:
		cmd = a.fetchProjects()
	case screenTasks:
		cmd = a.fetchTasks()
	case screenBugs:
		cmd = a.fetchBugs()
	default:
		return nil
	}
	a.loading = true
	return cmd
}

func (a App) onKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.String() == "ctrl+c" {
		return a, tea.Quit
	}

	switch a.screen {
	case screenLoading:
		if key.String() == "q" {
			return a, tea.Quit
		}
		return a, nil
	case screenLogin:
		return a.onLoginKey(key)
	case screenRegister:
		return a.onRegisterKey(key)
	}

	if a.editor != nil {
		return a.onEditorKey(key)
	}

	switch key.String() {
	case "q":
		return a, tea.Quit
	case "1", "2", "3", "4", "5":
		return a.switchTo(tabs[key.String()[0]-'1'].screen)
	case "tab":
		return a.switchTo(a.nextTab())
	case "r":
		cmd := a.refresh()
		return a, cmd
	case "n":
		return a.openEditor()
	case "e":
		return a.openEdit()
	case "s":
		return a.advanceStatus()
	case "L":
		return a, a.logoutCmd()
	}

	var cmd tea.Cmd
	switch a.screen {
	case screenProjects, screenDashboard:
		a.projectTable, cmd = a.projectTable.Update(key)
	case screenTasks:
		a.taskTable, cmd = a.taskTable.Update(key)
	case screenBugs:
		a.bugTable, cmd = a.bugTable.Update(key)
	}
	return a, cmd
}

func (a App) switchTo(s screen) (tea.Model, tea.Cmd) {
	a.screen = s
	a.err = ""
	cmd := a.refresh()
	return a, cmd
}

func (a App) nextTab() screen {
	for i, t := range tabs {
		if t.screen == a.screen {
			return tabs[(i+1)%len(tabs)].screen
		}
	}
	return screenDashboard
}

func (a App) View() string {
	st := a.styles
	switch a.screen {
	case screenLoading:
		return st.Box.Render(st.Title.Render("DevTrack") + "\n" + st.Subtitle.Render("Loading session..."))
	case screenLogin:
		return a.loginView()
	case screenRegister:
		return a.registerView()
	}

	var b strings.Builder
	b.WriteString(a.header())
	b.WriteString("\n\n")
	if a.editor != nil {
		b.WriteString(a.editor.view(st))
		b.WriteString(st.Help.Render("enter save • tab next field • esc cancel"))
		return b.String()
	}

	switch a.screen {
	case screenDashboard:
		b.WriteString(a.dashboardView())
	case screenProjects:
		b.WriteString(a.listView("Projects", a.projectTable, len(a.projects)))
	case screenTasks:
		b.WriteString(a.listView("Tasks", a.taskTable, len(a.tasks)))
	case screenBugs:
		b.WriteString(a.listView("Bugs", a.bugTable, len(a.bugs)))
	case screenAnalytics:
		b.WriteString(a.analyticsView())
	}
	b.WriteString("\n")
	if a.err != "" {
		b.WriteString(st.Error.Render(a.err))
		b.WriteString("\n")
	}
	if a.notice != "" {
		b.WriteString(st.Notice.Render(a.notice))
		b.WriteString("\n")
	}
	b.WriteString(st.Help.Render(a.help()))
	return b.String()
}

func (a App) header() string {
	st := a.styles
	parts := make([]string, 0, len(tabs)+1)
	for i, t := range tabs {
		label := fmt.Sprintf("%d %s", i+1, t.name)
		if t.screen == a.screen {
			parts = append(parts, st.TabOn.Render(label))
		} else {
			parts = append(parts, st.Tab.Render(label))
		}
	}
	if id := a.sess.Snapshot().Identity; id != nil {
		parts = append(parts, st.Subtitle.Render(fmt.Sprintf("  %s (%s)", id.Username, id.Role)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (a App) help() string {
	keys := "1-5/tab switch • r refresh"
	switch a.screen {
	case screenProjects:
		keys += " • n new project • e edit"
	case screenTasks:
		keys += " • n new task • e edit • s advance status"
	case screenBugs:
		keys += " • n report bug • e edit • s advance status"
	}
	return keys + " • L sign out • q quit"
}
