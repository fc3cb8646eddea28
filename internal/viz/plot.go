// Package viz renders continuation traces in the terminal.
package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true).MarginBottom(1)
	graphStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(14)
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noseStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
)

// RenderLambda plots the loading parameter against the continuation step.
func RenderLambda(lambdas []float64) string {
	if len(lambdas) < 2 {
		return "(not enough points to plot)"
	}
	graph := asciigraph.Plot(lambdas,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption("lambda vs continuation step"),
	)
	return graphStyle.Render(graph)
}

// RenderPV plots the voltage magnitude of one bus over the trace, the PV
// curve traced down through the nose.
func RenderPV(vm []float64, busName string) string {
	if len(vm) < 2 {
		return "(not enough points to plot)"
	}
	graph := asciigraph.Plot(vm,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("|V| at %s vs continuation step", busName)),
	)
	return graphStyle.Render(graph)
}

// RenderSummary formats the header block shown above the plots.
func RenderSummary(caseName, state string, maxLambda, marginMVA float64, steps int) string {
	var s strings.Builder
	s.WriteString(headerStyle.Render(strings.ToUpper(caseName)) + "\n")
	s.WriteString(labelStyle.Render("State") + valueStyle.Render(state) + "\n")
	s.WriteString(labelStyle.Render("Max lambda") + noseStyle.Render(fmt.Sprintf("%.6f", maxLambda)) + "\n")
	s.WriteString(labelStyle.Render("Margin") + valueStyle.Render(fmt.Sprintf("%.1f MVA", marginMVA)) + "\n")
	s.WriteString(labelStyle.Render("Steps") + valueStyle.Render(fmt.Sprintf("%d", steps)) + "\n")
	return s.String()
}
