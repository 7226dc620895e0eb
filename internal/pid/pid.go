// Package pid implements the PI loop used to track a commanded heading rate.
package pid

// Controller is a proportional-integral controller with a clamped integral
// and a saturated output. The derivative gain is stored but not applied.
type Controller struct {
	pGain float64
	iGain float64
	dGain float64

	satLow, satHigh float64
	intLow, intHigh float64

	integral float64
}

// New returns a controller with output and integral limits of [-100, 100].
func New(pGain, iGain, dGain float64) *Controller {
	return &Controller{
		pGain:   pGain,
		iGain:   iGain,
		dGain:   dGain,
		satLow:  -100,
		satHigh: 100,
		intLow:  -100,
		intHigh: 100,
	}
}

// SetSaturation bounds the output. Reversed bounds are swapped.
func (c *Controller) SetSaturation(lower, upper float64) {
	c.satLow, c.satHigh = ordered(lower, upper)
}

// Saturation returns the output bounds.
func (c *Controller) Saturation() (float64, float64) {
	return c.satLow, c.satHigh
}

// SetIntegralLimits bounds the accumulated integral. Reversed bounds are swapped.
func (c *Controller) SetIntegralLimits(lower, upper float64) {
	c.intLow, c.intHigh = ordered(lower, upper)
	c.integral = clamp(c.integral, c.intLow, c.intHigh)
}

// IntegralLimits returns the integral bounds.
func (c *Controller) IntegralLimits() (float64, float64) {
	return c.intLow, c.intHigh
}

// SetGains replaces the gains without touching the integral.
func (c *Controller) SetGains(pGain, iGain, dGain float64) {
	c.pGain, c.iGain, c.dGain = pGain, iGain, dGain
}

// Gains returns the proportional, integral and derivative gains.
func (c *Controller) Gains() (float64, float64, float64) {
	return c.pGain, c.iGain, c.dGain
}

// Integral returns the accumulated integral term, gain included.
func (c *Controller) Integral() float64 {
	return c.integral
}

// Reset clears the integral.
func (c *Controller) Reset() {
	c.integral = 0
}

// Update advances the integral by err over dt and returns the saturated output.
func (c *Controller) Update(err, dt float64) float64 {
	c.integral = clamp(c.integral+dt*err*c.iGain, c.intLow, c.intHigh)
	return clamp(err*c.pGain+c.integral, c.satLow, c.satHigh)
}

func ordered(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
