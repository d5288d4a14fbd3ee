// Package render draws the local console panel for a measurement
// snapshot: one row per channel with the raw and offset-corrected values,
// plus the flow and reference lines.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/isoflux/isoflux/pkg/measure"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	panelStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// Panel formats one snapshot as a bordered console panel.
func Panel(snap measure.Snapshot) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", snap.ID, snap.Timestamp.Format("15:04:05"))))
	b.WriteByte('\n')

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"%-12s %10s %9s %9s %9s", "channel", "R [Ohm]", "T [degC]", "P [W]", "off [W]")))
	b.WriteByte('\n')

	for i := range snap.Info {
		line := fmt.Sprintf("%-12s %10.3f %9.3f %9.4f %9.4f",
			snap.Info[i],
			snap.Resistance[i],
			snap.Temperature[i],
			snap.Power[i],
			snap.PowerOffset[i])
		if i == 0 {
			// reference channel carries no power of its own
			line = fmt.Sprintf("%-12s %10.3f %9.3f %9s %9s",
				snap.Info[i], snap.Resistance[i], snap.Temperature[i], "-", "-")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString(dimStyle.Render(fmt.Sprintf(
		"flow %.4f l/s (%.4f kg/s)   ref %.3f degC",
		snap.FlowLiterSec, snap.FlowKgSec, snap.RefTemperature)))

	return panelStyle.Render(b.String())
}

// Print writes the panel to stdout, preceded by a blank line so
// interleaved log output stays readable.
func Print(snap measure.Snapshot) {
	fmt.Println()
	fmt.Println(Panel(snap))
}
