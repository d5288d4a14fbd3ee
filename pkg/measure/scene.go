package measure

import (
	"fmt"
	"math"

	"github.com/isoflux/isoflux/pkg/config"
)

// SyntheticCounts computes mock converter counts that make every configured
// channel solve to the requested temperature and the flow channel to the
// requested sensor voltage. Used by tests and by mock operation without
// hardware. Temperatures must be non-negative: the forward Callendar model
// here omits the sub-zero cubic term.
func SyntheticCounts(cfg *config.Config, temps map[string]float64, flowVolts float64) (map[byte]int32, error) {
	const u0 = 400000.0 // effective reference leg reading in digits

	counts := map[byte]int32{
		config.MuxAddr(cfg.Reference.Mux, cfg.ADC.CommonMux): round32(u0 + cfg.Reference.Offset),
	}
	if cfg.Flow.Mode == config.FlowModeVoltage {
		counts[config.MuxAddr(cfg.Flow.Mux, cfg.ADC.CommonMux)] =
			round32(flowVolts/cfg.VPerDigit() + cfg.Flow.Offset)
	}

	for i, name := range cfg.FlowSequence {
		ch, err := cfg.Channel(name)
		if err != nil {
			return nil, err
		}
		t, ok := temps[name]
		if !ok {
			return nil, fmt.Errorf("no temperature given for channel %q", name)
		}
		if t < 0 {
			return nil, fmt.Errorf("channel %q: synthetic scene supports t >= 0, got %g", name, t)
		}
		rRaw := callendar(t, ch.BaseResistance) + ch.ResistanceOffset

		// Every channel but the last is sampled as an upstream leg against
		// the fixed reference.
		if i < len(cfg.FlowSequence)-1 {
			ud := bridgeDifferential(rRaw, u0, cfg.Reference.NRef, ch.SeriesResistance)
			counts[config.MuxAddr(ch.Mux, cfg.Reference.Mux)] = round32(ud + ch.Offset)
		}

		// Every channel but the first is sampled as a downstream leg
		// against its upstream neighbour, whose trimmed resistance sets
		// the dynamic reference ratio.
		if i > 0 {
			up, err := cfg.Channel(cfg.FlowSequence[i-1])
			if err != nil {
				return nil, err
			}
			tUp := temps[cfg.FlowSequence[i-1]]
			upRaw := callendar(tUp, up.BaseResistance) + up.ResistanceOffset
			upTrimmed := upRaw - up.ResistanceOffset

			udUp := bridgeDifferential(upRaw, u0, cfg.Reference.NRef, up.SeriesResistance)
			nRefDown := up.SeriesResistance / upTrimmed
			ud := bridgeDifferential(rRaw, u0+udUp, nRefDown, ch.SeriesResistance)
			counts[config.MuxAddr(ch.Mux, up.Mux)] = round32(ud + ch.Offset)
		}
	}
	return counts, nil
}

// callendar is the forward RTD model for non-negative temperatures.
func callendar(tempC, r0 float64) float64 {
	return r0 * (1 + 3.9083e-3*tempC - 5.775e-7*tempC*tempC)
}

// bridgeDifferential inverts the Wheatstone solver: the differential
// reading that makes a bridge with reference reading u0, ratio nref and
// series resistance rs solve to resistance r.
func bridgeDifferential(r, u0, nref, rs float64) float64 {
	return u0 * (r*nref - rs) / (rs + r)
}

func round32(v float64) int32 {
	return int32(math.Round(v))
}
