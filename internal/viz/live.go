package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/AnthonyZalev/gridtrace/internal/cpf"
)

type lambdaMsg float64

type doneMsg struct{ res *cpf.Result }

// LiveModel shows a continuation trace as it runs. The trace itself stays
// single-threaded; it runs on one background goroutine and reports each
// step's lambda through the driver's observer callback.
type LiveModel struct {
	caseName string
	run      func(observer func(float64)) *cpf.Result
	updates  chan tea.Msg
	lambdas  []float64
	res      *cpf.Result
	done     bool
}

func NewLive(caseName string, run func(observer func(float64)) *cpf.Result) LiveModel {
	return LiveModel{
		caseName: caseName,
		run:      run,
		updates:  make(chan tea.Msg, 64),
	}
}

func (m LiveModel) Init() tea.Cmd {
	updates := m.updates
	run := m.run
	go func() {
		res := run(func(lam float64) {
			updates <- lambdaMsg(lam)
		})
		updates <- doneMsg{res: res}
	}()
	return m.wait()
}

func (m LiveModel) wait() tea.Cmd {
	return func() tea.Msg { return <-m.updates }
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case lambdaMsg:
		m.lambdas = append(m.lambdas, float64(msg))
		return m, m.wait()
	case doneMsg:
		m.res = msg.res
		m.done = true
	}
	return m, nil
}

func (m LiveModel) View() string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(m.caseName)) + "\n")

	status := "TRACING"
	if m.done && m.res != nil {
		status = strings.ToUpper(m.res.State.String())
	}
	s.WriteString(status + "\n")

	if len(m.lambdas) > 1 {
		chart := asciigraph.Plot(m.lambdas,
			asciigraph.Height(12),
			asciigraph.Width(70),
			asciigraph.Caption("lambda"),
		)
		s.WriteString(graphStyle.Render(chart) + "\n")
	}

	lam := 0.0
	if len(m.lambdas) > 0 {
		lam = m.lambdas[len(m.lambdas)-1]
	}
	s.WriteString(labelStyle.Render("Step") + valueStyle.Render(fmt.Sprintf("%d", len(m.lambdas))) + "\n")
	s.WriteString(labelStyle.Render("Lambda") + valueStyle.Render(fmt.Sprintf("%.6f", lam)) + "\n")
	if m.done && m.res != nil {
		s.WriteString(labelStyle.Render("Max lambda") + noseStyle.Render(fmt.Sprintf("%.6f", m.res.MaxLambda)) + "\n")
		s.WriteString("\npress q to quit\n")
	}
	return s.String()
}
