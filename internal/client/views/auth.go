package views

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/atinyakov/devtrack/internal/models"
)

const (
	loginEmail = iota
	loginPassword
)

const (
	regEmail = iota
	regUsername
	regPassword
	regRole
)

func newLoginForm() form {
	return newForm("Sign in",
		fieldSpec{label: "Email", placeholder: "you@devtrack.com"},
		fieldSpec{label: "Password", secret: true},
	)
}

func newRegisterForm() form {
	return newForm("Create account",
		fieldSpec{label: "Email", placeholder: "you@devtrack.com"},
		fieldSpec{label: "Username"},
		fieldSpec{label: "Password", secret: true},
		fieldSpec{label: "Role", placeholder: string(models.DefaultRole)},
	)
}

func (a App) onLoginKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.login.busy {
		return a, nil
	}
	switch key.String() {
	case "enter":
		return a.submitLogin(a.login.value(loginEmail), a.login.raw(loginPassword))
	case "ctrl+r":
		a.screen = screenRegister
		a.register = newRegisterForm()
		return a, nil
	case "f1", "f2", "f3", "f4":
		demo := DemoAccounts[key.String()[1]-'1']
		a.login.setValue(loginEmail, demo.Email)
		a.login.setValue(loginPassword, demo.Password)
		return a.submitLogin(demo.Email, demo.Password)
	}
	var cmd tea.Cmd
	a.login, cmd = a.login.update(key)
	return a, cmd
}

func (a App) submitLogin(email, password string) (tea.Model, tea.Cmd) {
	if email == "" || password == "" {
		a.login.err = "Email and password are required"
		return a, nil
	}
	a.login.err = ""
	a.login.busy = true
	return a, a.loginCmd(email, password)
}

func (a App) onRegisterKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.register.busy {
		return a, nil
	}
	switch key.String() {
	case "esc":
		a.screen = screenLogin
		return a, nil
	case "enter":
		email := a.register.value(regEmail)
		username := a.register.value(regUsername)
		password := a.register.raw(regPassword)
		role := models.Role(strings.ToLower(a.register.value(regRole)))
		if email == "" || username == "" || password == "" {
			a.register.err = "Email, username and password are required"
			return a, nil
		}
		if role != "" && !role.Valid() {
			a.register.err = fmt.Sprintf("Unknown role %q", role)
			return a, nil
		}
		a.register.err = ""
		a.register.busy = true
		return a, a.registerCmd(email, username, password, role)
	}
	var cmd tea.Cmd
	a.register, cmd = a.register.update(key)
	return a, cmd
}

func (a App) loginView() string {
	st := a.styles
	var b strings.Builder
	b.WriteString(st.Title.Render("DevTrack"))
	b.WriteString("\n")
	b.WriteString(a.login.view(st))
	b.WriteString("\n")
	b.WriteString(st.Subtitle.Render("Quick demo login:"))
	b.WriteString("\n")
	for i, d := range DemoAccounts {
		fmt.Fprintf(&b, "  F%d %s", i+1, d.Label)
	}
	b.WriteString("\n")
	b.WriteString(st.Help.Render("enter sign in • tab next field • ctrl+r register • ctrl+c quit"))
	return st.Box.Render(b.String())
}

func (a App) registerView() string {
	st := a.styles
	var b strings.Builder
	b.WriteString(st.Title.Render("DevTrack"))
	b.WriteString("\n")
	b.WriteString(a.register.view(st))
	b.WriteString(st.Subtitle.Render("Roles: admin, manager, developer, tester"))
	b.WriteString("\n")
	b.WriteString(st.Help.Render("enter register • tab next field • esc back to sign in"))
	return st.Box.Render(b.String())
}
