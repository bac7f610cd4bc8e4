package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atinyakov/devtrack/internal/client/api"
	"github.com/atinyakov/devtrack/internal/models"
)

// resourceCmd builds the parent for list/get/create/update.
func (c *cli) resourceCmd(use, short string, asJSON *bool, subs ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, args); err != nil {
				return err
			}
			return c.requireLogin()
		},
	}
	cmd.PersistentFlags().BoolVar(asJSON, "json", false, "print JSON instead of a table")
	cmd.AddCommand(subs...)
	return cmd
}

func (c *cli) projectsCmd() *cobra.Command {
	var asJSON bool

	list := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			projects, err := c.client.ListProjects(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), projects)
			}
			t := newTable(cmd.OutOrStdout(), "ID\tNAME\tACTIVE\tOWNER\tCREATED")
			for _, p := range projects {
				t.row("%d\t%s\t%t\t%d\t%s", p.ID, p.Name, p.IsActive, p.OwnerID, day(p.CreatedAt))
			}
			return t.flush()
		},
	}

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := c.client.GetProject(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), p)
		},
	}

	var in models.ProjectInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a project (admin or manager)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := c.client.CreateProject(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d created\n", p.ID)
			return nil
		},
	}
	create.Flags().StringVar(&in.Name, "name", "", "project name")
	create.Flags().StringVar(&in.Description, "description", "", "project description")

	var name, desc string
	var active bool
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change a project; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch models.ProjectPatch
			f := cmd.Flags()
			if f.Changed("name") {
				patch.Name = &name
			}
			if f.Changed("description") {
				patch.Description = &desc
			}
			if f.Changed("active") {
				patch.IsActive = &active
			}
			p, err := c.client.UpdateProject(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Project %d updated\n", p.ID)
			return nil
		},
	}
	update.Flags().StringVar(&name, "name", "", "new name")
	update.Flags().StringVar(&desc, "description", "", "new description")
	update.Flags().BoolVar(&active, "active", true, "mark the project active or archived")

	return c.resourceCmd("projects", "Manage projects", &asJSON, list, get, create, update)
}

func (c *cli) tasksCmd() *cobra.Command {
	var asJSON bool

	var filter api.TaskFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tasks, err := c.client.ListTasks(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), tasks)
			}
			t := newTable(cmd.OutOrStdout(), "ID\tTITLE\tSTATUS\tPRIORITY\tPROJECT\tASSIGNEE\tCREATED")
			for _, x := range tasks {
				t.row("%d\t%s\t%s\t%s\t%d\t%s\t%s",
					x.ID, x.Title, x.Status, x.Priority, x.ProjectID, assignee(x.AssignedTo), day(x.CreatedAt))
			}
			return t.flush()
		},
	}
	list.Flags().Int64Var(&filter.ProjectID, "project", 0, "only tasks of this project")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			task, err := c.client.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), task)
		},
	}

	var in models.TaskInput
	var newAssignee int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("assignee") {
				in.AssignedTo = &newAssignee
			}
			task, err := c.client.CreateTask(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d created\n", task.ID)
			return nil
		},
	}
	cf := create.Flags()
	cf.StringVar(&in.Title, "title", "", "task title")
	cf.StringVar(&in.Description, "description", "", "task description")
	cf.Int64Var(&in.ProjectID, "project", 0, "owning project id")
	cf.StringVar((*string)(&in.Priority), "priority", "", "low, medium, high or critical")
	cf.StringVar((*string)(&in.Status), "status", "", "todo, in_progress, review or done")
	cf.Int64Var(&newAssignee, "assignee", 0, "assigned user id")

	var (
		title, desc string
		status      models.TaskStatus
		priority    models.Priority
		assignTo    int64
	)
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change a task; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch models.TaskPatch
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &desc
			}
			if f.Changed("status") {
				patch.Status = &status
			}
			if f.Changed("priority") {
				patch.Priority = &priority
			}
			if f.Changed("assignee") {
				patch.AssignedTo = &assignTo
			}
			task, err := c.client.UpdateTask(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d is %s\n", task.ID, task.Status)
			return nil
		},
	}
	uf := update.Flags()
	uf.StringVar(&title, "title", "", "new title")
	uf.StringVar(&desc, "description", "", "new description")
	uf.StringVar((*string)(&status), "status", "", "todo, in_progress, review or done")
	uf.StringVar((*string)(&priority), "priority", "", "low, medium, high or critical")
	uf.Int64Var(&assignTo, "assignee", 0, "assigned user id")

	return c.resourceCmd("tasks", "Manage tasks", &asJSON, list, get, create, update)
}

func (c *cli) bugsCmd() *cobra.Command {
	var asJSON bool

	var filter api.BugFilter
	list := &cobra.Command{
		Use:   "list",
		Short: "List bug reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bugs, err := c.client.ListBugs(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), bugs)
			}
			t := newTable(cmd.OutOrStdout(), "ID\tTITLE\tSTATUS\tSEVERITY\tPROJECT\tASSIGNEE\tREPORTED")
			for _, b := range bugs {
				t.row("%d\t%s\t%s\t%s\t%d\t%s\t%s",
					b.ID, b.Title, b.Status, b.Severity, b.ProjectID, assignee(b.AssignedTo), day(b.CreatedAt))
			}
			return t.flush()
		},
	}
	list.Flags().Int64Var(&filter.ProjectID, "project", 0, "only bugs of this project")

	get := &cobra.Command{
		Use:   "get ID",
		Short: "Show one bug report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			bug, err := c.client.GetBug(cmd.Context(), id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), bug)
		},
	}

	var in models.BugInput
	var newAssignee int64
	create := &cobra.Command{
		Use:   "create",
		Short: "Report a bug",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("assignee") {
				in.AssignedTo = &newAssignee
			}
			bug, err := c.client.CreateBug(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bug %d reported\n", bug.ID)
			return nil
		},
	}
	cf := create.Flags()
	cf.StringVar(&in.Title, "title", "", "bug title")
	cf.StringVar(&in.Description, "description", "", "steps to reproduce")
	cf.Int64Var(&in.ProjectID, "project", 0, "owning project id")
	cf.StringVar((*string)(&in.Severity), "severity", "", "low, medium, high or critical")
	cf.Int64Var(&newAssignee, "assignee", 0, "assigned user id")

	var (
		title, desc string
		status      models.BugStatus
		severity    models.Priority
		assignTo    int64
	)
	update := &cobra.Command{
		Use:   "update ID",
		Short: "Change a bug report; only the given flags are sent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var patch models.BugPatch
			f := cmd.Flags()
			if f.Changed("title") {
				patch.Title = &title
			}
			if f.Changed("description") {
				patch.Description = &desc
			}
			if f.Changed("status") {
				patch.Status = &status
			}
			if f.Changed("severity") {
				patch.Severity = &severity
			}
			if f.Changed("assignee") {
				patch.AssignedTo = &assignTo
			}
			bug, err := c.client.UpdateBug(cmd.Context(), id, patch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bug %d is %s\n", bug.ID, bug.Status)
			return nil
		},
	}
	uf := update.Flags()
	uf.StringVar(&title, "title", "", "new title")
	uf.StringVar(&desc, "description", "", "new description")
	uf.StringVar((*string)(&status), "status", "", "open, in_progress, fixed or closed")
	uf.StringVar((*string)(&severity), "severity", "", "low, medium, high or critical")
	uf.Int64Var(&assignTo, "assignee", 0, "assigned user id")

	return c.resourceCmd("bugs", "Manage bug reports", &asJSON, list, get, create, update)
}

func (c *cli) analyticsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show dashboard totals",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, args); err != nil {
				return err
			}
			return c.requireLogin()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := c.client.Dashboard(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			t := newTable(cmd.OutOrStdout(), "METRIC\tVALUE")
			t.row("Projects\t%d", stats.TotalProjects)
			t.row("Tasks\t%d", stats.TotalTasks)
			t.row("Completed tasks\t%d", stats.CompletedTasks)
			t.row("Remaining tasks\t%d", max(stats.TotalTasks-stats.CompletedTasks, 0))
			t.row("Bugs\t%d", stats.TotalBugs)
			t.row("Open bugs\t%d", stats.OpenBugs)
			t.row("Completion rate\t%.1f%%", stats.CompletionRate)
			return t.flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
