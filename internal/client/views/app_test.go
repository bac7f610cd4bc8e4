package views

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/client/events"
	"github.com/atinyakov/devtrack/internal/client/session"
	"github.com/atinyakov/devtrack/internal/client/storage"
	"github.com/atinyakov/devtrack/internal/models"
)

var accounts = map[string]models.Identity{
	"admin@devtrack.com":     {ID: 1, Email: "admin@devtrack.com", Username: "admin", Role: models.RoleAdmin},
	"developer@devtrack.com": {ID: 3, Email: "developer@devtrack.com", Username: "developer", Role: models.RoleDeveloper},
}

type fakeAuth struct{}

func (fakeAuth) Login(_ context.Context, email, password string) (*models.AuthResult, error) {
	id, ok := accounts[email]
	if !ok || password == "wrong" {
		return nil, errors.New("Incorrect email or password")
	}
	return &models.AuthResult{AccessToken: "jwt-" + id.Username, User: id}, nil
}

func (fakeAuth) Register(_ context.Context, reg models.Registration) (*models.AuthResult, error) {
	return &models.AuthResult{AccessToken: "jwt-new", User: models.Identity{ID: 9, Email: reg.Email, Username: reg.Username, Role: reg.Role}}, nil
}

type fakeBackend struct {
	mu          sync.Mutex
	projects    []models.Project
	tasks       []models.Task
	bugs        []models.Bug
	listErr     error
	listTasks   int
	taskUpdates []models.TaskPatch
	bugUpdates  []models.BugPatch

	projectUpdates []models.ProjectPatch
}

func (f *fakeBackend) ListProjects(context.Context) ([]models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, f.listErr
}

func (f *fakeBackend) CreateProject(_ context.Context, in models.ProjectInput) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := models.Project{ID: int64(len(f.projects) + 1), Name: in.Name, IsActive: true}
	f.projects = append(f.projects, p)
	return &p, nil
}

func (f *fakeBackend) UpdateProject(_ context.Context, id int64, patch models.ProjectPatch) (*models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projectUpdates = append(f.projectUpdates, patch)
	return &models.Project{ID: id}, nil
}

func (f *fakeBackend) ListTasks(context.Context, api.TaskFilter) ([]models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listTasks++
	return f.tasks, f.listErr
}

func (f *fakeBackend) CreateTask(_ context.Context, in models.TaskInput) (*models.Task, error) {
	return &models.Task{ID: 99, Title: in.Title, ProjectID: in.ProjectID}, nil
}

func (f *fakeBackend) UpdateTask(_ context.Context, id int64, patch models.TaskPatch) (*models.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskUpdates = append(f.taskUpdates, patch)
	return &models.Task{ID: id}, nil
}

func (f *fakeBackend) ListBugs(context.Context, api.BugFilter) ([]models.Bug, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bugs, f.listErr
}

func (f *fakeBackend) CreateBug(_ context.Context, in models.BugInput) (*models.Bug, error) {
	return &models.Bug{ID: 50, Title: in.Title}, nil
}

func (f *fakeBackend) UpdateBug(_ context.Context, id int64, patch models.BugPatch) (*models.Bug, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bugUpdates = append(f.bugUpdates, patch)
	return &models.Bug{ID: id}, nil
}

func (f *fakeBackend) Dashboard(context.Context) (*models.DashboardStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return &models.DashboardStats{TotalProjects: len(f.projects), TotalTasks: 4, CompletedTasks: 1, CompletionRate: 25, TotalBugs: 2, OpenBugs: 1}, nil
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	return session.New(fakeAuth{}, storage.NewFileSlots(filepath.Join(t.TempDir(), "s.json")), nil)
}

// exec runs cmd and returns the messages it produced. Commands that block
// (the live event wait) are abandoned after a short grace period.
func exec(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(100 * time.Millisecond):
		return nil
	}

	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, exec(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// step feeds msg to a and settles every resulting command, depth first.
func step(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, cmd := a.Update(msg)
	a = m.(App)
	for _, next := range exec(cmd) {
		if _, ok := next.(tea.QuitMsg); ok {
			continue
		}
		a = step(t, a, next)
	}
	return a
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "f1":
		return tea.KeyMsg{Type: tea.KeyF1}
	case "f3":
		return tea.KeyMsg{Type: tea.KeyF3}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func typeText(t *testing.T, a App, s string) App {
	for _, r := range s {
		a = step(t, a, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return a
}

func started(t *testing.T, store *session.Store, backend Backend, broker *events.Broker) App {
	t.Helper()
	a := New(t.Context(), store, backend, broker)
	t.Cleanup(a.Close)
	assert.Contains(t, a.View(), "Loading session")
	return step(t, a, a.restoreCmd()())
}

func TestLogin_DemoAccount(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{projects: []models.Project{{ID: 1, Name: "Apollo", IsActive: true}}}
	a := started(t, store, backend, nil)

	require.Equal(t, screenLogin, a.screen)
	view := a.View()
	assert.Contains(t, view, "Sign in")
	assert.Contains(t, view, "F1 Admin")
	assert.Contains(t, view, "F4 Tester")

	a = step(t, a, key("f1"))

	assert.Equal(t, screenDashboard, a.screen)
	assert.Equal(t, "jwt-admin", store.Token())
	view = a.View()
	assert.Contains(t, view, "Total Projects")
	assert.Contains(t, view, "admin (admin)")
	assert.Contains(t, view, "Apollo")
}

func TestLogin_TypedCredentials(t *testing.T) {
	store := newStore(t)
	a := started(t, store, &fakeBackend{}, nil)

	a = typeText(t, a, "developer@devtrack.com")
	a = step(t, a, key("tab"))
	a = typeText(t, a, "dev123")
	a = step(t, a, key("enter"))

	assert.Equal(t, screenDashboard, a.screen)
	require.NotNil(t, store.Identity())
	assert.Equal(t, models.RoleDeveloper, store.Identity().Role)
}

func TestLogin_Errors(t *testing.T) {
	store := newStore(t)
	a := started(t, store, &fakeBackend{}, nil)

	a = step(t, a, key("enter"))
	assert.Contains(t, a.View(), "Email and password are required")

	a = typeText(t, a, "admin@devtrack.com")
	a = step(t, a, key("tab"))
	a = typeText(t, a, "wrong")
	a = step(t, a, key("enter"))

	assert.Equal(t, screenLogin, a.screen)
	assert.Contains(t, a.View(), "Incorrect email or password")
	assert.False(t, store.Snapshot().Authenticated())
}

func TestRegister(t *testing.T) {
	store := newStore(t)
	a := started(t, store, &fakeBackend{}, nil)

	a = step(t, a, key("ctrl+r"))
	require.Equal(t, screenRegister, a.screen)
	assert.Contains(t, a.View(), "Create account")

	a = typeText(t, a, "new@devtrack.com")
	a = step(t, a, key("tab"))
	a = typeText(t, a, "newbie")
	a = step(t, a, key("tab"))
	a = typeText(t, a, "pw")
	a = step(t, a, key("tab"))
	a = typeText(t, a, "pilot")
	a = step(t, a, key("enter"))
	assert.Contains(t, a.View(), `Unknown role "pilot"`)

	// clear the role so the default applies
	for range "pilot" {
		a = step(t, a, tea.KeyMsg{Type: tea.KeyBackspace})
	}
	a = step(t, a, key("enter"))

	assert.Equal(t, screenDashboard, a.screen)
	require.NotNil(t, store.Identity())
	assert.Equal(t, models.RoleDeveloper, store.Identity().Role)
}

func TestLogoutClearsData(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{tasks: []models.Task{{ID: 1, Title: "Write docs", Status: models.TaskTodo, ProjectID: 1}}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("3"))
	require.Contains(t, a.View(), "Write docs")

	a = step(t, a, key("L"))

	assert.Equal(t, screenLogin, a.screen)
	assert.Nil(t, a.tasks)
	assert.NotContains(t, a.View(), "Write docs")
	assert.Empty(t, store.Token())
}

func TestStaleResultsDiscarded(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{projects: []models.Project{{ID: 1, Name: "Secret admin project"}}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a.screen = screenProjects

	// request issued as admin, answered after the admin signed out
	pending := a.fetchProjects()
	store.Logout(t.Context())
	a = step(t, a, loggedOutMsg{})
	_, err := store.Login(t.Context(), "developer@devtrack.com", "dev123")
	require.NoError(t, err)

	a = step(t, a, pending())
	assert.Nil(t, a.projects)
}

func TestAdvanceTaskStatus(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{tasks: []models.Task{
		{ID: 1, Title: "Write docs", Status: models.TaskTodo, ProjectID: 1},
		{ID: 2, Title: "Ship", Status: models.TaskDone, ProjectID: 1},
	}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("3"))

	a = step(t, a, key("s"))
	require.Len(t, backend.taskUpdates, 1)
	assert.Equal(t, models.TaskInProgress, *backend.taskUpdates[0].Status)
	assert.Contains(t, a.View(), "Task 1 moved to in_progress")

	a = step(t, a, tea.KeyMsg{Type: tea.KeyDown})
	a = step(t, a, key("s"))
	assert.Len(t, backend.taskUpdates, 1)
	assert.Contains(t, a.View(), "Task is already done")
}

func TestAdvanceBugStatus(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{bugs: []models.Bug{{ID: 7, Title: "Crash", Status: models.BugOpen, Severity: models.PriorityHigh}}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("4"))

	a = step(t, a, key("s"))
	require.Len(t, backend.bugUpdates, 1)
	assert.Equal(t, models.BugInProgress, *backend.bugUpdates[0].Status)
}

func TestEditTask(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{tasks: []models.Task{
		{ID: 1, Title: "Write docs", Status: models.TaskTodo, Priority: models.PriorityMedium, ProjectID: 1},
		{ID: 2, Title: "Ship", Description: "v1", Status: models.TaskReview, Priority: models.PriorityLow, ProjectID: 1},
	}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("3"))
	assert.Contains(t, a.View(), "e edit")

	a = step(t, a, tea.KeyMsg{Type: tea.KeyDown})
	a = step(t, a, key("e"))
	require.NotNil(t, a.editor)
	assert.Equal(t, "Ship", a.editor.value(0))
	assert.Equal(t, "v1", a.editor.value(1))
	assert.Equal(t, "low", a.editor.value(2))

	a.editor.setValue(0, "Ship it")
	a.editor.setValue(2, "HIGH")
	a = step(t, a, key("enter"))

	assert.Nil(t, a.editor)
	require.Len(t, backend.taskUpdates, 1)
	patch := backend.taskUpdates[0]
	assert.Equal(t, "Ship it", *patch.Title)
	assert.Equal(t, "v1", *patch.Description)
	assert.Equal(t, models.PriorityHigh, *patch.Priority)
	assert.Nil(t, patch.Status)
	assert.Contains(t, a.View(), "Task 2 updated")

	// the next n opens an empty create form
	a = step(t, a, key("n"))
	require.NotNil(t, a.editor)
	assert.Empty(t, a.editor.value(0))
	assert.Zero(t, a.editID)
}

func TestEditBug(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{bugs: []models.Bug{{ID: 7, Title: "Crash", Status: models.BugOpen, Severity: models.PriorityHigh}}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("4"))

	a = step(t, a, key("e"))
	require.NotNil(t, a.editor)
	assert.Equal(t, "high", a.editor.value(2))
	a.editor.setValue(2, "critical")
	a = step(t, a, key("enter"))

	require.Len(t, backend.bugUpdates, 1)
	assert.Equal(t, "Crash", *backend.bugUpdates[0].Title)
	assert.Equal(t, models.PriorityCritical, *backend.bugUpdates[0].Severity)
	assert.Nil(t, backend.bugUpdates[0].Status)
	assert.Contains(t, a.View(), "Bug 7 updated")
}

func TestEditProject_OwnerOnly(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{projects: []models.Project{
		{ID: 1, Name: "Admin's", OwnerID: 1, IsActive: true},
		{ID: 2, Name: "Dev's", OwnerID: 3, IsActive: true},
	}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f3"))
	a = step(t, a, key("2"))

	a = step(t, a, key("e"))
	assert.Nil(t, a.editor)
	assert.Contains(t, a.View(), "Not enough permissions")

	a = step(t, a, tea.KeyMsg{Type: tea.KeyDown})
	a = step(t, a, key("e"))
	require.NotNil(t, a.editor)
	assert.Equal(t, "Dev's", a.editor.value(0))
	assert.Equal(t, "yes", a.editor.value(2))

	a.editor.setValue(2, "maybe")
	a = step(t, a, key("enter"))
	require.NotNil(t, a.editor)
	assert.Contains(t, a.View(), "Active must be yes or no")
	assert.Empty(t, backend.projectUpdates)

	a.editor.setValue(2, "no")
	a = step(t, a, key("enter"))
	assert.Nil(t, a.editor)
	require.Len(t, backend.projectUpdates, 1)
	assert.Equal(t, "Dev's", *backend.projectUpdates[0].Name)
	assert.False(t, *backend.projectUpdates[0].IsActive)
	assert.Contains(t, a.View(), "Project 2 updated")
}

func TestCreateProject_BlankNameSendsNothing(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posts.Add(1)
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	store := newStore(t)
	client, err := api.New(srv.URL, api.WithTokenSource(store))
	require.NoError(t, err)

	a := started(t, store, client, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("2"))
	a = step(t, a, key("n"))
	require.NotNil(t, a.editor)

	a = typeText(t, a, "   ")
	a = step(t, a, key("enter"))

	require.NotNil(t, a.editor)
	assert.Contains(t, a.View(), "Project name is required")
	assert.Zero(t, posts.Load())
}

func TestCreateTask(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{projects: []models.Project{{ID: 4, Name: "Apollo"}}}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("3"))
	a = step(t, a, key("n"))
	require.NotNil(t, a.editor)
	assert.Equal(t, "4", a.editor.value(2))

	a = typeText(t, a, "Write docs")
	a = step(t, a, key("enter"))

	assert.Nil(t, a.editor)
	assert.Contains(t, a.View(), "Task created")
}

func TestDeveloperCannotCreateProject(t *testing.T) {
	store := newStore(t)
	a := started(t, store, &fakeBackend{}, nil)
	a = step(t, a, key("f3"))
	require.Equal(t, screenDashboard, a.screen)

	a = step(t, a, key("2"))
	a = step(t, a, key("n"))
	assert.Nil(t, a.editor)
	assert.Contains(t, a.View(), "Not enough permissions")
}

func TestLiveEventTriggersRefetch(t *testing.T) {
	store := newStore(t)
	broker := events.NewBroker(nil)
	backend := &fakeBackend{}
	a := started(t, store, backend, broker)
	a = step(t, a, key("f1"))
	a = step(t, a, key("3"))
	before := backend.listTasks

	broker.Publish(models.Envelope{Type: models.EventTaskUpdated})
	a = step(t, a, a.waitEvent()())

	assert.Equal(t, before+1, backend.listTasks)
	assert.Contains(t, a.View(), "Live update: task updated")

	// bug events leave the tasks screen alone
	a = step(t, a, eventMsg{env: models.Envelope{Type: models.EventBugCreated}})
	assert.Equal(t, before+1, backend.listTasks)
	assert.Contains(t, a.View(), "Live update: bug created")
}

func TestUnauthorizedSignsOut(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))

	backend.listErr = &api.Error{Op: "list tasks", Status: http.StatusUnauthorized, Detail: "Could not validate credentials"}
	a = step(t, a, key("3"))

	assert.Equal(t, screenLogin, a.screen)
	assert.Contains(t, a.View(), "Session expired")
	assert.False(t, store.Snapshot().Authenticated())
}

func TestListErrorShown(t *testing.T) {
	store := newStore(t)
	backend := &fakeBackend{}
	a := started(t, store, backend, nil)
	a = step(t, a, key("f1"))

	backend.listErr = &api.Error{Op: "list bugs", Status: http.StatusInternalServerError}
	a = step(t, a, key("4"))
	assert.Contains(t, a.View(), "Failed to load bugs")
}

func TestAnalytics(t *testing.T) {
	an := analyticsFrom(models.DashboardStats{TotalProjects: 2, TotalTasks: 4, CompletedTasks: 1, TotalBugs: 3, OpenBugs: 1, CompletionRate: 25})
	assert.Equal(t, []Breakdown{{"Completed", 1}, {"Remaining", 3}}, an.Tasks)
	assert.Equal(t, []Breakdown{{"Open", 1}, {"Closed", 2}}, an.Bugs)
	assert.Equal(t, []Breakdown{{"Projects", 2}, {"Tasks", 4}, {"Bugs", 3}}, an.Overview)

	// inconsistent counters never go negative
	an = analyticsFrom(models.DashboardStats{TotalTasks: 1, CompletedTasks: 3})
	assert.Equal(t, 0, an.Tasks[1].Value)

	assert.Equal(t, "[█████░░░░░] 50%", bar(50, 100, 10))
	assert.Equal(t, "[░░░░░░░░░░] 0%", bar(0, 0, 10))
}

func TestAnalyticsScreen(t *testing.T) {
	store := newStore(t)
	a := started(t, store, &fakeBackend{}, nil)
	a = step(t, a, key("f1"))
	a = step(t, a, key("5"))

	view := a.View()
	assert.Contains(t, view, "Analytics Dashboard")
	assert.Contains(t, view, "Task Completion Status")
	assert.Contains(t, view, "25.0%")
}
