package physics

import (
	"errors"
	"fmt"
	"math"
)

// Callendar coefficients for platinum RTDs (ITS-90, DIN EN 60751).
const (
	ptA = 3.9083e-3
	ptB = -5.775e-7
)

// ErrDomain is returned when a resistance ratio has no physical temperature
// solution (negative discriminant in the quadratic inversion).
var ErrDomain = errors.New("resistance ratio outside RTD domain")

// negCorrection holds the coefficients, highest order first, of a fifth-order
// polynomial fit of the deviation of the numerically inverted Callendar-Van
// Dusen equation (with the C coefficient active below 0 degC) from the
// second-order inversion without it. Evaluated in terms of r_norm = r_x/r_0.
var negCorrection = [6]float64{
	1.51892983e+00, -2.85842067e+00, -5.34227299e+00,
	1.80282972e+01, -1.61875985e+01, 4.84112370e+00,
}

// Wheatstone returns the unknown resistance of a deflection-type bridge.
//
//	ud:   bridge differential reading
//	u0:   reference leg absolute reading
//	nref: reference leg resistance ratio (rs0/r0)
//	rs1:  measurement leg series resistance
//
//	  _______
//	  |      |
//	 rs1    rs0       nref = rs0/r0
//	  |--ud->|..u0
//	  r1     r0
//	  |      |
//	  _______ ..0V
//
// Readings may be in any unit proportional to voltage (ADC digits included)
// as long as ud and u0 share it.
func Wheatstone(ud, u0, nref, rs1 float64) float64 {
	return rs1 * (u0 + ud) / (u0*nref - ud)
}

// PtRTDTemperature returns the temperature in degC (ITS-90) of a platinum
// RTD with resistance rx and base (0 degC) resistance r0.
//
// For rx >= r0 this is the exact quadratic inversion of the Callendar
// polynomial. Below r0 the standard equation carries an additional cubic
// term; its effect is restored by adding a fixed fifth-order polynomial
// correction to the quadratic estimate.
func PtRTDTemperature(rx, r0 float64) (float64, error) {
	rNorm := rx / r0
	disc := ptA*ptA - 4*ptB*(1-rNorm)
	if disc < 0 {
		return 0, fmt.Errorf("r_x=%g r_0=%g: %w", rx, r0, ErrDomain)
	}
	theta := (-ptA + math.Sqrt(disc)) / (2 * ptB)
	if rNorm < 1.0 {
		theta += polyval(negCorrection[:], rNorm)
	}
	return theta, nil
}

// polyval evaluates a polynomial with coefficients ordered highest power
// first at x, using Horner's scheme.
func polyval(coeffs []float64, x float64) float64 {
	var y float64
	for _, c := range coeffs {
		y = y*x + c
	}
	return y
}
