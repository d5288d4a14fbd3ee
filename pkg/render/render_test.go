package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/isoflux/isoflux/pkg/measure"
)

func TestPanel(t *testing.T) {
	snap := measure.Snapshot{
		ID:        "cal0",
		Timestamp: time.Date(2024, 5, 17, 12, 30, 45, 0, time.UTC),

		Info:        []string{"reference", "cell-1", "cell-2"},
		Resistance:  []float64{1000.0, 1000.5, 999.8},
		Temperature: []float64{20.0, 20.2, 19.9},
		Power:       []float64{0, 0.1234, -0.0567},
		PowerOffset: []float64{0, 0.01, 0},

		FlowLiterSec:   0.0123,
		FlowKgSec:      0.0122,
		RefTemperature: 20.0,
	}

	out := Panel(snap)

	assert.Contains(t, out, "cal0")
	assert.Contains(t, out, "12:30:45")
	assert.Contains(t, out, "cell-1")
	assert.Contains(t, out, "cell-2")
	assert.Contains(t, out, "0.1234")
	assert.Contains(t, out, "0.0122")
	// reference row renders no power column
	assert.Contains(t, out, "reference")
}

func TestPanelEmptySnapshot(t *testing.T) {
	out := Panel(measure.Snapshot{ID: "cal0"})
	assert.Contains(t, out, "cal0")
}
