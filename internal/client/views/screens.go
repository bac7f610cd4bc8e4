package views

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/atinyakov/devtrack/internal/models"
)

var (
	projectColumns = []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Name", Width: 28},
		{Title: "Description", Width: 40},
		{Title: "Active", Width: 7},
	}
	taskColumns = []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Title", Width: 32},
		{Title: "Status", Width: 12},
		{Title: "Priority", Width: 10},
		{Title: "Project", Width: 8},
		{Title: "Assignee", Width: 9},
	}
	bugColumns = []table.Column{
		{Title: "ID", Width: 5},
		{Title: "Title", Width: 32},
		{Title: "Severity", Width: 10},
		{Title: "Status", Width: 12},
		{Title: "Project", Width: 8},
		{Title: "Reporter", Width: 9},
	}
)

func newTable(cols []table.Column) table.Model {
	return table.New(
		table.WithColumns(cols),
		table.WithFocused(true),
		table.WithHeight(12),
	)
}

func (a *App) resizeTables() {
	h := a.height - 10
	if h < 5 {
		h = 5
	}
	a.projectTable.SetHeight(h)
	a.taskTable.SetHeight(h)
	a.bugTable.SetHeight(h)
}

func optID(id *int64) string {
	if id == nil {
		return "-"
	}
	return strconv.FormatInt(*id, 10)
}

func projectRows(items []models.Project) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, p := range items {
		active := "yes"
		if !p.IsActive {
			active = "no"
		}
		rows = append(rows, table.Row{strconv.FormatInt(p.ID, 10), p.Name, p.Description, active})
	}
	return rows
}

func taskRows(items []models.Task) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, t := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(t.ID, 10),
			t.Title,
			string(t.Status),
			string(t.Priority),
			strconv.FormatInt(t.ProjectID, 10),
			optID(t.AssignedTo),
		})
	}
	return rows
}

func bugRows(items []models.Bug) []table.Row {
	rows := make([]table.Row, 0, len(items))
	for _, b := range items {
		rows = append(rows, table.Row{
			strconv.FormatInt(b.ID, 10),
			b.Title,
			string(b.Severity),
			string(b.Status),
			strconv.FormatInt(b.ProjectID, 10),
			strconv.FormatInt(b.ReportedBy, 10),
		})
	}
	return rows
}

func (a App) listView(title string, t table.Model, n int) string {
	st := a.styles
	var b strings.Builder
	b.WriteString(st.Title.Render(title))
	b.WriteString("\n")
	switch {
	case a.loading && n == 0:
		b.WriteString(st.Subtitle.Render("Loading..."))
	case n == 0:
		b.WriteString(st.Subtitle.Render("Nothing here yet."))
	default:
		b.WriteString(t.View())
	}
	b.WriteString("\n")
	return b.String()
}

// nextBugStatus walks open -> in_progress -> fixed -> closed.
func nextBugStatus(s models.BugStatus) models.BugStatus {
	switch s {
	case models.BugOpen:
		return models.BugInProgress
	case models.BugInProgress:
		return models.BugFixed
	case models.BugFixed, models.BugClosed:
		return models.BugClosed
	}
	return models.BugOpen
}

func (a App) advanceStatus() (tea.Model, tea.Cmd) {
	switch a.screen {
	case screenTasks:
		i := a.taskTable.Cursor()
		if i < 0 || i >= len(a.tasks) {
			return a, nil
		}
		t := a.tasks[i]
		next := t.Status.Next()
		if next == t.Status {
			a.notice = "Task is already done"
			return a, nil
		}
		return a, a.save(screenTasks, fmt.Sprintf("Task %d moved to %s", t.ID, next), func(ctx context.Context) error {
			_, err := a.backend.UpdateTask(ctx, t.ID, models.TaskPatch{Status: &next})
			return err
		})
	case screenBugs:
		i := a.bugTable.Cursor()
		if i < 0 || i >= len(a.bugs) {
			return a, nil
		}
		bug := a.bugs[i]
		next := nextBugStatus(bug.Status)
		if next == bug.Status {
			a.notice = "Bug is already closed"
			return a, nil
		}
		return a, a.save(screenBugs, fmt.Sprintf("Bug %d moved to %s", bug.ID, next), func(ctx context.Context) error {
			_, err := a.backend.UpdateBug(ctx, bug.ID, models.BugPatch{Status: &next})
			return err
		})
	}
	return a, nil
}

func (a App) openEditor() (tea.Model, tea.Cmd) {
	var f form
	switch a.screen {
	case screenProjects:
		id := a.sess.Snapshot().Identity
		if id == nil || !id.Role.CanManageProjects() {
			a.err = "Not enough permissions"
			return a, nil
		}
		f = newForm("New project",
			fieldSpec{label: "Name"},
			fieldSpec{label: "Description"},
		)
	case screenTasks:
		f = newForm("New task",
			fieldSpec{label: "Title"},
			fieldSpec{label: "Description"},
			fieldSpec{label: "Project ID", value: a.defaultProject()},
			fieldSpec{label: "Priority", placeholder: string(models.PriorityMedium)},
		)
	case screenBugs:
		f = newForm("Report bug",
			fieldSpec{label: "Title"},
			fieldSpec{label: "Description"},
			fieldSpec{label: "Project ID", value: a.defaultProject()},
			fieldSpec{label: "Severity", placeholder: string(models.PriorityMedium)},
		)
	default:
		return a, nil
	}
	a.editor = &f
	a.editorFor = a.screen
	a.editID = 0
	a.err = ""
	return a, nil
}

// openEdit opens a form pre-filled from the selected row. Projects are
// editable by managers and by their owner.
func (a App) openEdit() (tea.Model, tea.Cmd) {
	var (
		f  form
		id int64
	)
	switch a.screen {
	case screenProjects:
		i := a.projectTable.Cursor()
		if i < 0 || i >= len(a.projects) {
			return a, nil
		}
		p := a.projects[i]
		who := a.sess.Snapshot().Identity
		if who == nil || (!who.Role.CanManageProjects() && p.OwnerID != who.ID) {
			a.err = "Not enough permissions"
			return a, nil
		}
		id = p.ID
		f = newForm(fmt.Sprintf("Edit project %d", p.ID),
			fieldSpec{label: "Name", value: p.Name},
			fieldSpec{label: "Description", value: p.Description},
			fieldSpec{label: "Active", placeholder: "yes/no", value: yesNo(p.IsActive)},
		)
	case screenTasks:
		i := a.taskTable.Cursor()
		if i < 0 || i >= len(a.tasks) {
			return a, nil
		}
		t := a.tasks[i]
		id = t.ID
		f = newForm(fmt.Sprintf("Edit task %d", t.ID),
			fieldSpec{label: "Title", value: t.Title},
			fieldSpec{label: "Description", value: t.Description},
			fieldSpec{label: "Priority", value: string(t.Priority)},
		)
	case screenBugs:
		i := a.bugTable.Cursor()
		if i < 0 || i >= len(a.bugs) {
			return a, nil
		}
		bug := a.bugs[i]
		id = bug.ID
		f = newForm(fmt.Sprintf("Edit bug %d", bug.ID),
			fieldSpec{label: "Title", value: bug.Title},
			fieldSpec{label: "Description", value: bug.Description},
			fieldSpec{label: "Severity", value: string(bug.Severity)},
		)
	default:
		return a, nil
	}
	a.editor = &f
	a.editorFor = a.screen
	a.editID = id
	a.err = ""
	return a, nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func parseYesNo(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "yes", "y", "true":
		return true, true
	case "no", "n", "false":
		return false, true
	}
	return false, false
}

func (a App) defaultProject() string {
	if len(a.projects) == 1 {
		return strconv.FormatInt(a.projects[0].ID, 10)
	}
	return ""
}

func (a App) onEditorKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.editor.busy {
		return a, nil
	}
	switch key.String() {
	case "esc":
		a.editor = nil
		return a, nil
	case "enter":
		return a.submitEditor()
	}
	f, cmd := a.editor.update(key)
	a.editor = &f
	return a, cmd
}

func (a App) submitEditor() (tea.Model, tea.Cmd) {
	f := *a.editor
	f.busy = true
	f.err = ""
	a.editor = &f

	if a.editID != 0 {
		return a.submitEdit(f)
	}

	switch a.editorFor {
	case screenProjects:
		in := models.ProjectInput{Name: f.value(0), Description: f.value(1)}
		return a, a.save(screenProjects, "Project created", func(ctx context.Context) error {
			_, err := a.backend.CreateProject(ctx, in)
			return err
		})
	case screenTasks:
		projectID, _ := strconv.ParseInt(f.value(2), 10, 64)
		in := models.TaskInput{
			Title:       f.value(0),
			Description: f.value(1),
			ProjectID:   projectID,
			Priority:    models.Priority(strings.ToLower(f.value(3))),
		}
		return a, a.save(screenTasks, "Task created", func(ctx context.Context) error {
			_, err := a.backend.CreateTask(ctx, in)
			return err
		})
	case screenBugs:
		projectID, _ := strconv.ParseInt(f.value(2), 10, 64)
		in := models.BugInput{
			Title:       f.value(0),
			Description: f.value(1),
			ProjectID:   projectID,
			Severity:    models.Priority(strings.ToLower(f.value(3))),
		}
		return a, a.save(screenBugs, "Bug reported", func(ctx context.Context) error {
			_, err := a.backend.CreateBug(ctx, in)
			return err
		})
	}
	a.editor = nil
	return a, nil
}

// submitEdit sends every field of the edit form as a partial update.
func (a App) submitEdit(f form) (tea.Model, tea.Cmd) {
	id := a.editID
	title, desc := f.value(0), f.value(1)
	switch a.editorFor {
	case screenProjects:
		active, ok := parseYesNo(f.value(2))
		if !ok {
			f.busy = false
			f.err = "Active must be yes or no"
			a.editor = &f
			return a, nil
		}
		patch := models.ProjectPatch{Name: &title, Description: &desc, IsActive: &active}
		return a, a.save(screenProjects, fmt.Sprintf("Project %d updated", id), func(ctx context.Context) error {
			_, err := a.backend.UpdateProject(ctx, id, patch)
			return err
		})
	case screenTasks:
		priority := models.Priority(strings.ToLower(f.value(2)))
		patch := models.TaskPatch{Title: &title, Description: &desc, Priority: &priority}
		return a, a.save(screenTasks, fmt.Sprintf("Task %d updated", id), func(ctx context.Context) error {
			_, err := a.backend.UpdateTask(ctx, id, patch)
			return err
		})
	case screenBugs:
		severity := models.Priority(strings.ToLower(f.value(2)))
		patch := models.BugPatch{Title: &title, Description: &desc, Severity: &severity}
		return a, a.save(screenBugs, fmt.Sprintf("Bug %d updated", id), func(ctx context.Context) error {
			_, err := a.backend.UpdateBug(ctx, id, patch)
			return err
		})
	}
	a.editor = nil
	return a, nil
}

type card struct {
	title string
	value string
	color lipgloss.Color
}

func (a App) cards(cs []card) string {
	st := a.styles
	rendered := make([]string, 0, len(cs))
	for _, c := range cs {
		body := st.CardNum.Foreground(c.color).Render(c.value) + "\n" + st.Subtitle.Render(c.title)
		rendered = append(rendered, st.Card.BorderForeground(c.color).Render(body))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (a App) dashboardView() string {
	st := a.styles
	var b strings.Builder
	b.WriteString(st.Title.Render("Dashboard"))
	b.WriteString("\n")
	b.WriteString(st.Subtitle.Render("Monitor your development progress and team performance"))
	b.WriteString("\n\n")
	if a.stats == nil {
		if a.loading {
			b.WriteString(st.Subtitle.Render("Loading dashboard analytics..."))
		}
		return b.String()
	}

	s := a.stats
	b.WriteString(a.cards([]card{
		{"Total Projects", strconv.Itoa(s.TotalProjects), colorPrimary},
		{"Total Tasks", strconv.Itoa(s.TotalTasks), colorSuccess},
		{"Total Bugs", strconv.Itoa(s.TotalBugs), colorDanger},
		{"Open Bugs", strconv.Itoa(s.OpenBugs), colorViolet},
		{"Completed Tasks", strconv.Itoa(s.CompletedTasks), colorSuccess},
	}))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Completion rate %s\n\n", bar(s.CompletionRate, 100, 30))

	if len(a.projects) > 0 {
		b.WriteString(st.Subtitle.Render("Recent projects"))
		b.WriteString("\n")
		for _, p := range recentProjects(a.projects, 5) {
			fmt.Fprintf(&b, "  #%d %s\n", p.ID, p.Name)
		}
	}
	return b.String()
}

// recentProjects returns up to n projects, newest first.
func recentProjects(items []models.Project, n int) []models.Project {
	out := slices.Clone(items)
	slices.SortStableFunc(out, func(x, y models.Project) int { return y.CreatedAt.Compare(x.CreatedAt) })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Breakdown is one labelled slice of an analytics chart.
type Breakdown struct {
	Label string
	Value int
}

// Analytics derives the chart series shown on the analytics screen.
type Analytics struct {
	Overview       []Breakdown
	Tasks          []Breakdown
	Bugs           []Breakdown
	CompletionRate float64
}

func analyticsFrom(s models.DashboardStats) Analytics {
	return Analytics{
		Overview: []Breakdown{
			{"Projects", s.TotalProjects},
			{"Tasks", s.TotalTasks},
			{"Bugs", s.TotalBugs},
		},
		Tasks: []Breakdown{
			{"Completed", s.CompletedTasks},
			{"Remaining", max(s.TotalTasks-s.CompletedTasks, 0)},
		},
		Bugs: []Breakdown{
			{"Open", s.OpenBugs},
			{"Closed", max(s.TotalBugs-s.OpenBugs, 0)},
		},
		CompletionRate: s.CompletionRate,
	}
}

func bar(v, total float64, width int) string {
	filled := 0
	if total > 0 {
		filled = int(v / total * float64(width))
	}
	filled = min(max(filled, 0), width)
	return "[" + strings.Repeat("█", filled) + strings.Repeat("░", width-filled) + fmt.Sprintf("] %.0f%%", v/max(total, 1)*100)
}

func (a App) breakdown(title string, parts []Breakdown) string {
	st := a.styles
	total := 0
	for _, p := range parts {
		total += p.Value
	}
	var b strings.Builder
	b.WriteString(st.Subtitle.Render(title))
	b.WriteString("\n")
	for _, p := range parts {
		fmt.Fprintf(&b, "  %-10s %4d %s\n", p.Label, p.Value, bar(float64(p.Value), float64(total), 20))
	}
	return b.String()
}

func (a App) analyticsView() string {
	st := a.styles
	var b strings.Builder
	b.WriteString(st.Title.Render("Analytics Dashboard"))
	b.WriteString("\n")
	if a.stats == nil {
		if a.loading {
			b.WriteString(st.Subtitle.Render("Loading..."))
		}
		return b.String()
	}
	an := analyticsFrom(*a.stats)
	b.WriteString(a.breakdown("Project Overview", an.Overview))
	b.WriteString("\n")
	b.WriteString(a.breakdown("Task Completion Status", an.Tasks))
	b.WriteString("\n")
	b.WriteString(a.breakdown("Bug Status", an.Bugs))
	b.WriteString("\n")
	b.WriteString(a.cards([]card{
		{"Total Projects", strconv.Itoa(a.stats.TotalProjects), colorPrimary},
		{"Completed Tasks", strconv.Itoa(a.stats.CompletedTasks), colorSuccess},
		{"Open Bugs", strconv.Itoa(a.stats.OpenBugs), colorDanger},
		{"Completion Rate", fmt.Sprintf("%.1f%%", an.CompletionRate), colorWarning},
	}))
	return b.String()
}
