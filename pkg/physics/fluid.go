package physics

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// Fluid bundles the temperature-dependent coolant properties needed for the
// heat balance: density for volumetric-to-mass flow conversion and specific
// heat capacity for the power calculation.
type Fluid struct {
	Name string
	// Density returns the coolant density in kg/liter at temp degC.
	Density func(tempC float64) float64
	// SpecificHeat returns c_p in J/(kg*K) at temp degC.
	SpecificHeat func(tempC float64) float64
}

// FluidByName returns the property table for a supported working fluid.
// Known names: "water", "glycol60" (60% by volume ethylene glycol).
func FluidByName(name string) (Fluid, error) {
	switch name {
	case "water":
		return Fluid{Name: name, Density: rhoWater, SpecificHeat: cThWater}, nil
	case "glycol60":
		return Fluid{Name: name, Density: rhoGlycol60, SpecificHeat: cThGlycol60}, nil
	default:
		return Fluid{}, fmt.Errorf("unknown working fluid %q", name)
	}
}

// rhoWater is the density of water in kg/liter as a rational polynomial of
// the ITS-90 temperature in degC.
//
// Source: Bettin, H., "Die Dichte des Wassers als Funktion der Temperatur
// nach Einfuehrung der Internationalen Temperaturskala von 1990",
// PTB Mitteilungen 100(3) 1990, pg. 195-196. Result scaled from g/cm^3.
func rhoWater(tempC float64) float64 {
	num := polyval([]float64{
		-2.8103006e-10, 1.0584601e-7, -4.6241757e-5,
		-7.9905127e-3, 1.6952577e+1, 9.9983952e+2,
	}, tempC)
	denom := polyval([]float64{1.6887200e+1, 1000.0}, tempC)
	// g/cm^3 == kg/liter
	return num / denom
}

// cThWater interpolates the specific heat capacity of liquid water in
// J/(kg*K) between 0 degC and 100 degC.
var cThWater = mustTable(
	[]float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
	[]float64{4217.7, 4192.2, 4181.9, 4178.5, 4178.6, 4180.7,
		4184.4, 4189.6, 4196.4, 4205.1, 4216.0},
)

// rhoGlycol60 interpolates the density in kg/liter of a 60% by volume
// ethylene glycol / water mixture between -40 degC and 110 degC.
//
// Source: graph data, BASF "GLYSANTIN Graphs", September 2016, page 3.
var rhoGlycol60 = mustTable(
	[]float64{-40, -30, -20, -10, 0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110},
	[]float64{1.120010, 1.114359, 1.108554, 1.102760, 1.096879, 1.090945,
		1.085007, 1.078812, 1.072367, 1.065847, 1.059047, 1.051983,
		1.044773, 1.037459, 1.030002, 1.022522},
)

// cThGlycol60 interpolates the specific heat capacity in J/(kg*K) of a 60%
// by volume ethylene glycol / water mixture between -40 degC and 105 degC.
//
// Source: graph data, BASF "GLYSANTIN Graphs", September 2016, page 5.
var cThGlycol60 = mustTable(
	[]float64{-40, -35, -30, -25, -20, -15, -10, -5, 0, 5, 10, 15, 20, 25,
		30, 35, 40, 45, 50, 55, 60, 65, 70, 75, 80, 85, 90, 95, 100, 105},
	[]float64{2703.30, 2749.60, 2793.74, 2838.47, 2879.21, 2919.42, 2955.72,
		2992.30, 3026.66, 3059.85, 3092.32, 3122.75, 3152.32, 3181.33,
		3208.28, 3234.92, 3259.96, 3285.54, 3309.36, 3331.49, 3354.35,
		3375.35, 3396.78, 3415.90, 3435.59, 3454.44, 3471.16, 3487.49,
		3503.92, 3517.87},
)

// mustTable fits a piecewise-linear interpolant over a fixed calibration
// table. Queries outside the table domain clamp to the end values.
func mustTable(xs, ys []float64) func(float64) float64 {
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		panic(fmt.Sprintf("invalid property table: %v", err))
	}
	lo, hi := xs[0], xs[len(xs)-1]
	return func(x float64) float64 {
		if x < lo {
			x = lo
		} else if x > hi {
			x = hi
		}
		return pl.Predict(x)
	}
}
