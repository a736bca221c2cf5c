package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/ffi-bridge/export"
)

// newObjectEntry is the pseudo symbol that creates an object from typed
// text, so that handles can be obtained without writing to memory first.
const newObjectEntry = "new Utf16Wrap from text"

type interactiveModel struct {
	err      error
	lib      *export.Library
	result   string
	funcs    []*export.Func
	inputs   []textinput.Model
	selected int
	focusIdx int
	state    modelState
}

type modelState int

const (
	stateSelectFunc modelState = iota
	stateInputArgs
	stateShowResult
)

type callResultMsg struct {
	err    error
	result string
}

func newInteractiveModel(lib *export.Library) *interactiveModel {
	funcs := append([]*export.Func{{
		Name:       newObjectEntry,
		ParamNames: []string{"text"},
		Params:     []api.ValueType{0},
	}}, lib.Funcs()...)
	return &interactiveModel{
		lib:   lib,
		funcs: funcs,
		state: stateSelectFunc,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return nil
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.state != stateInputArgs || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}

		case "up", "k":
			if m.state == stateSelectFunc && m.selected > 0 {
				m.selected--
			}

		case "down", "j":
			if m.state == stateSelectFunc && m.selected < len(m.funcs)-1 {
				m.selected++
			}

		case "enter":
			switch m.state {
			case stateSelectFunc:
				m.prepareInputs()
				if len(m.inputs) == 0 {
					return m, m.callFunction
				}
				m.state = stateInputArgs
				return m, nil

			case stateInputArgs:
				return m, m.callFunction

			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}

		case "tab":
			if m.state == stateInputArgs && len(m.inputs) > 1 {
				m.inputs[m.focusIdx].Blur()
				m.focusIdx = (m.focusIdx + 1) % len(m.inputs)
				m.inputs[m.focusIdx].Focus()
			}

		case "esc":
			switch m.state {
			case stateInputArgs:
				m.state = stateSelectFunc
				m.inputs = nil
			case stateShowResult:
				m.state = stateSelectFunc
				m.result = ""
				m.err = nil
			}
		}

	case callResultMsg:
		m.result = msg.result
		m.err = msg.err
		m.state = stateShowResult
	}

	if m.state == stateInputArgs {
		var cmds []tea.Cmd
		for i := range m.inputs {
			var cmd tea.Cmd
			m.inputs[i], cmd = m.inputs[i].Update(msg)
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m *interactiveModel) prepareInputs() {
	f := m.funcs[m.selected]
	m.inputs = make([]textinput.Model, len(f.Params))
	for i := range f.Params {
		ti := textinput.New()
		ti.Placeholder = typeName(f, i)
		ti.Prompt = f.ParamNames[i] + ": "
		ti.Width = 40
		if i == 0 {
			ti.Focus()
		}
		m.inputs[i] = ti
	}
	m.focusIdx = 0
}

func (m *interactiveModel) callFunction() tea.Msg {
	return m.call(context.Background())
}

// call runs the selected entry with the current inputs. Panics from the
// panic violation policy are reported like errors.
func (m *interactiveModel) call(ctx context.Context) (msg callResultMsg) {
	defer func() {
		if r := recover(); r != nil {
			msg = callResultMsg{err: fmt.Errorf("violation: %v", r)}
		}
	}()

	f := m.funcs[m.selected]
	if f.Name == newObjectEntry {
		w, err := m.lib.Objects().FromString(m.inputs[0].Value())
		if err != nil {
			return callResultMsg{err: err}
		}
		return callResultMsg{result: fmt.Sprintf("self = %d  %s", uint64(w.Handle()), w.DebugString())}
	}

	params := make([]uint64, len(m.inputs))
	for i, input := range m.inputs {
		v, err := strconv.ParseUint(strings.TrimSpace(input.Value()), 0, 64)
		if err != nil {
			return callResultMsg{err: fmt.Errorf("%s: %w", f.ParamNames[i], err)}
		}
		params[i] = v
	}

	results, err := m.lib.Call(ctx, f.Name, params...)
	if err != nil {
		return callResultMsg{err: err}
	}
	if len(results) == 0 {
		return callResultMsg{result: "ok"}
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("%s = %d (0x%x)", f.ResultNames[i], r, r)
	}
	return callResultMsg{result: strings.Join(parts, "\n")}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ffi-bridge"))
	b.WriteString(" ")
	b.WriteString(m.lib.Config().Module.Name)
	b.WriteString(fmt.Sprintf("  %d live objects\n\n", m.lib.Objects().Len()))

	switch m.state {
	case stateSelectFunc:
		b.WriteString("Select a symbol to call:\n\n")
		for i, f := range m.funcs {
			if i == m.selected {
				b.WriteString(selectedStyle.Render("> " + m.formatFunc(f)))
			} else {
				b.WriteString("  " + m.formatFunc(f))
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("↑/↓ select • enter call • q quit"))

	case stateInputArgs:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Calling %s\n\n", funcStyle.Render(f.Name)))
		for i, input := range m.inputs {
			b.WriteString(input.View())
			b.WriteString(" ")
			b.WriteString(typeStyle.Render(typeName(f, i)))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpStyle.Render("tab next field • enter call • esc back"))

	case stateShowResult:
		f := m.funcs[m.selected]
		b.WriteString(fmt.Sprintf("Result of %s:\n\n", funcStyle.Render(f.Name)))
		if m.err != nil {
			b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		} else {
			b.WriteString(resultStyle.Render(m.result))
		}
		b.WriteString("\n\n")
		b.WriteString(helpStyle.Render("enter continue • q quit"))
	}

	return b.String()
}

func (m *interactiveModel) formatFunc(f *export.Func) string {
	params := make([]string, len(f.Params))
	for i := range f.Params {
		params[i] = f.ParamNames[i] + ": " + typeStyle.Render(typeName(f, i))
	}
	result := ""
	if len(f.Results) > 0 {
		result = " -> " + typeStyle.Render(api.ValueTypeName(f.Results[0]))
	} else if f.Returns != "" {
		result = " => " + typeStyle.Render(f.Returns)
	}
	return funcStyle.Render(f.Name) + "(" + strings.Join(params, ", ") + ")" + result
}

// typeName returns the display type of parameter i.
func typeName(f *export.Func, i int) string {
	if f.Name == newObjectEntry {
		return "string"
	}
	return api.ValueTypeName(f.Params[i])
}

func newInteractiveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Call exported symbols from a terminal UI",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := a.newLibrary(cmd.Context())
			if err != nil {
				return err
			}
			defer lib.Close(cmd.Context())

			p := tea.NewProgram(newInteractiveModel(lib), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
