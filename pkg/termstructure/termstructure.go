// Package termstructure provides the Vasicek bond-volatility loading b(kappa, tau)
// and its definite integrals.
//
// The loading is the sensitivity of the log zero-coupon bond price to the short
// rate, b(kappa, tau) = (1 - exp(-kappa*tau)) / kappa, with the limit b = tau when
// kappa approaches zero. All functions are pure.
package termstructure

import (
	"math"

	"github.com/iwvelando/robust-portfolio/pkg/constants"
	"github.com/iwvelando/robust-portfolio/pkg/mathutil"
	"gonum.org/v1/gonum/integrate/quad"
)

// Calculator evaluates the loading and its integrals with configurable
// numerical settings. The zero value is not usable; start from Default.
type Calculator struct {
	// KappaTolerance is the mean-reversion speed at or below which the
	// kappa -> 0 limit is used.
	KappaTolerance float64
	// SeriesThreshold is the kappa*tau below which integrals use their
	// power series instead of the cancellation-prone closed form.
	SeriesThreshold float64
	// Nodes is the number of Gauss-Legendre nodes per panel used by Integrate.
	Nodes int
	// Panels is the number of equal subintervals Integrate splits a range into.
	Panels int
}

// Default holds the settings used by the package-level functions.
var Default = Calculator{
	KappaTolerance:  constants.KappaTolerance,
	SeriesThreshold: constants.SeriesThreshold,
	Nodes:           constants.QuadratureNodes,
	Panels:          constants.QuadraturePanels,
}

// WithKappaTolerance returns a copy of c using the given kappa tolerance.
func (c Calculator) WithKappaTolerance(tol float64) Calculator {
	if tol >= 0 {
		c.KappaTolerance = tol
	}
	return c
}

// WithNodes returns a copy of c using n quadrature nodes.
func (c Calculator) WithNodes(n int) Calculator {
	if n > 0 {
		c.Nodes = n
	}
	return c
}

// B returns the Vasicek loading b(kappa, tau).
func (c Calculator) B(kappa, tau float64) float64 {
	if mathutil.IsZero(kappa, c.KappaTolerance) {
		return tau
	}
	return -math.Expm1(-kappa*tau) / kappa
}

// IntegralB returns the integral of b(kappa, T-u) for u from t to T.
// It is zero when t >= T.
func (c Calculator) IntegralB(kappa, t, T float64) float64 {
	tau := T - t
	if tau <= 0 {
		return 0
	}
	x := c.scaled(kappa, tau)
	if x < c.SeriesThreshold {
		return tau * tau * seriesIntegralB(x)
	}
	return (tau - c.B(kappa, tau)) / kappa
}

// IntegralBSquared returns the integral of b(kappa, T-u)^2 for u from t to T.
// It is zero when t >= T.
func (c Calculator) IntegralBSquared(kappa, t, T float64) float64 {
	tau := T - t
	if tau <= 0 {
		return 0
	}
	x := c.scaled(kappa, tau)
	if x < c.SeriesThreshold {
		return tau * tau * tau * seriesIntegralBSquared(x)
	}
	return (tau - 2*c.B(kappa, tau) + c.B(2*kappa, tau)) / (kappa * kappa)
}

// Integrate applies composite fixed Gauss-Legendre quadrature to f over [a, b].
func (c Calculator) Integrate(f func(float64) float64, a, b float64) float64 {
	if a == b {
		return 0
	}
	n := c.Nodes
	if n <= 0 {
		n = constants.QuadratureNodes
	}
	panels := c.Panels
	if panels <= 0 {
		panels = 1
	}
	width := (b - a) / float64(panels)
	sum := 0.0
	for i := 0; i < panels; i++ {
		lo := a + float64(i)*width
		hi := lo + width
		if i == panels-1 {
			hi = b
		}
		sum += quad.Fixed(f, lo, hi, n, quad.Legendre{}, 0)
	}
	return sum
}

func (c Calculator) scaled(kappa, tau float64) float64 {
	if mathutil.IsZero(kappa, c.KappaTolerance) {
		return 0
	}
	return kappa * tau
}

// seriesIntegralB evaluates (x - 1 + exp(-x)) / x^2 = sum_{n>=0} (-x)^n / (n+2)!.
func seriesIntegralB(x float64) float64 {
	term := 0.5
	sum := term
	for n := 1; n < 40; n++ {
		term *= -x / float64(n+2)
		sum += term
		if math.Abs(term) <= 1e-17*math.Abs(sum) {
			break
		}
	}
	return sum
}

// seriesIntegralBSquared evaluates (x - 2(1-exp(-x)) + (1-exp(-2x))/2) / x^3
// = sum_{n>=3} (2^(n-1) - 2) (-x)^(n-3) / n!.
func seriesIntegralBSquared(x float64) float64 {
	p := 1.0 / 6.0 // (-x)^(n-3) / n!
	pow2 := 4.0    // 2^(n-1)
	sum := (pow2 - 2) * p
	for n := 4; n < 60; n++ {
		p *= -x / float64(n)
		pow2 *= 2
		term := (pow2 - 2) * p
		sum += term
		if math.Abs(term) <= 1e-17*math.Abs(sum) {
			break
		}
	}
	return sum
}

// B returns the Vasicek loading using Default settings.
func B(kappa, tau float64) float64 {
	return Default.B(kappa, tau)
}

// IntegralB integrates b(kappa, T-u) over [t, T] using Default settings.
func IntegralB(kappa, t, T float64) float64 {
	return Default.IntegralB(kappa, t, T)
}

// IntegralBSquared integrates b(kappa, T-u)^2 over [t, T] using Default settings.
func IntegralBSquared(kappa, t, T float64) float64 {
	return Default.IntegralBSquared(kappa, t, T)
}

// Integrate applies Gauss-Legendre quadrature using Default settings.
func Integrate(f func(float64) float64, a, b float64) float64 {
	return Default.Integrate(f, a, b)
}
