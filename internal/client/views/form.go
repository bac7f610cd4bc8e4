package views

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type fieldSpec struct {
	label       string
	placeholder string
	value       string
	secret      bool
}

// form is a column of text inputs with one focused at a time.
type form struct {
	title  string
	labels []string
	inputs []textinput.Model
	focus  int
	err    string
	busy   bool
}

func newForm(title string, specs ...fieldSpec) form {
	f := form{title: title}
	for _, s := range specs {
		in := textinput.New()
		in.Placeholder = s.placeholder
		in.CharLimit = 256
		in.Width = 40
		in.SetValue(s.value)
		if s.secret {
			in.EchoMode = textinput.EchoPassword
			in.EchoCharacter = '•'
		}
		f.labels = append(f.labels, s.label)
		f.inputs = append(f.inputs, in)
	}
	if len(f.inputs) > 0 {
		f.inputs[0].Focus()
	}
	return f
}

func (f form) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

// raw returns the value without trimming; passwords keep their spaces.
func (f form) raw(i int) string {
	return f.inputs[i].Value()
}

func (f *form) setValue(i int, v string) {
	f.inputs[i].SetValue(v)
}

func (f *form) move(delta int) {
	if len(f.inputs) == 0 {
		return
	}
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	f.inputs[f.focus].Focus()
}

// update handles focus movement and forwards everything else to the
// focused input.
func (f form) update(msg tea.Msg) (form, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "tab", "down":
			f.move(1)
			return f, nil
		case "shift+tab", "up":
			f.move(-1)
			return f, nil
		}
	}
	if len(f.inputs) == 0 {
		return f, nil
	}
	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f form) view(st Styles) string {
	var b strings.Builder
	b.WriteString(st.Title.Render(f.title))
	b.WriteString("\n")
	for i, in := range f.inputs {
		label := st.Label.Render(f.labels[i])
		if i == f.focus {
			label = st.Label.Inherit(st.Focused).Render(f.labels[i])
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, label, in.View()))
		b.WriteString("\n")
	}
	if f.busy {
		b.WriteString(st.Subtitle.Render("Working..."))
		b.WriteString("\n")
	}
	if f.err != "" {
		b.WriteString(st.Error.Render(f.err))
		b.WriteString("\n")
	}
	return b.String()
}
