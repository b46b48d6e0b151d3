// Package variogram provides the stationary covariance models used by the
// kriging solver, together with a precomputed covariance lookup for grids.
package variogram

import (
	"fmt"
	"math"
	"strings"
)

// Type selects the 1D correlation function of a variogram
type Type int

const (
	Constant Type = iota
	Exponential
	Spherical
	Gaussian
	GeneralExponential
	Matern32
	Matern52
	Matern72
)

var typeNames = map[Type]string{
	Constant:           "constant",
	Exponential:        "exponential",
	Spherical:          "spherical",
	Gaussian:           "gaussian",
	GeneralExponential: "genexp",
	Matern32:           "matern32",
	Matern52:           "matern52",
	Matern72:           "matern72",
}

// String returns the name used for the type in configuration files
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType converts a configuration name into a Type
func ParseType(name string) (Type, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	switch key {
	case "exp":
		return Exponential, nil
	case "sph":
		return Spherical, nil
	case "gauss":
		return Gaussian, nil
	case "general exponential", "generalexponential":
		return GeneralExponential, nil
	}
	for t, n := range typeNames {
		if n == key {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown variogram type %q", name)
}

// Params holds the parameters of a variogram
type Params struct {
	// RangeX and RangeY are the correlation ranges along the main axes
	RangeX float64
	RangeY float64

	// Azimuth rotates the main axes, in radians
	Azimuth float64

	// StdDev is the standard deviation of the field
	StdDev float64

	// Power is the exponent of the general exponential model
	Power float64
}

// Variogram is an anisotropic stationary covariance model.
// Distances are normalized so that a normalized distance of 1 corresponds to
// the range along the rotated axes.
type Variogram struct {
	typ    Type
	params Params

	// anisotropy factors of the normalized distance
	txx, tyy, txy float64
}

// New creates a variogram of the given type
func New(typ Type, params Params) (*Variogram, error) {
	if _, ok := typeNames[typ]; !ok {
		return nil, fmt.Errorf("unknown variogram type %d", int(typ))
	}
	if params.RangeX <= 0 || params.RangeY <= 0 {
		return nil, fmt.Errorf("ranges must be positive, got %g and %g", params.RangeX, params.RangeY)
	}
	if params.StdDev < 0 {
		return nil, fmt.Errorf("standard deviation must be non-negative, got %g", params.StdDev)
	}
	if typ == GeneralExponential && (params.Power <= 0 || params.Power > 2) {
		return nil, fmt.Errorf("general exponential power must be in (0, 2], got %g", params.Power)
	}

	v := &Variogram{typ: typ, params: params}
	v.estimateFactors()
	return v, nil
}

// MustNew is like New but panics on invalid parameters
func MustNew(typ Type, params Params) *Variogram {
	v, err := New(typ, params)
	if err != nil {
		panic(err)
	}
	return v
}

// Isotropic creates a unit variance variogram with equal ranges
func Isotropic(typ Type, rng float64) (*Variogram, error) {
	return New(typ, Params{RangeX: rng, RangeY: rng, StdDev: 1, Power: 1})
}

func (v *Variogram) estimateFactors() {
	cosRot := math.Cos(v.params.Azimuth)
	sinRot := math.Sin(v.params.Azimuth)
	fac1 := 1.0 / (v.params.RangeX * v.params.RangeX)
	fac2 := 1.0 / (v.params.RangeY * v.params.RangeY)

	v.txx = cosRot*cosRot*fac1 + sinRot*sinRot*fac2
	v.tyy = sinRot*sinRot*fac1 + cosRot*cosRot*fac2
	v.txy = 2 * (cosRot*sinRot*fac1 - sinRot*cosRot*fac2)
}

// Type returns the correlation function type
func (v *Variogram) Type() Type { return v.typ }

// RangeX returns the range along the first axis
func (v *Variogram) RangeX() float64 { return v.params.RangeX }

// RangeY returns the range along the second axis
func (v *Variogram) RangeY() float64 { return v.params.RangeY }

// StdDev returns the standard deviation of the field
func (v *Variogram) StdDev() float64 { return v.params.StdDev }

// Distance returns the anisotropic normalized distance of the lag (dx, dy)
func (v *Variogram) Distance(dx, dy float64) float64 {
	return math.Sqrt(v.txx*dx*dx + v.tyy*dy*dy + v.txy*dx*dy)
}

// Corr returns the correlation between two points separated by (dx, dy)
func (v *Variogram) Corr(dx, dy float64) float64 {
	return v.corr(v.Distance(dx, dy))
}

// Corr1D returns the correlation along the first axis at lag dx
func (v *Variogram) Corr1D(dx float64) float64 {
	return v.corr(math.Sqrt(v.txx * dx * dx))
}

// Cov returns the covariance between two points separated by (dx, dy)
func (v *Variogram) Cov(dx, dy float64) float64 {
	return v.params.StdDev * v.params.StdDev * v.Corr(dx, dy)
}

// Semivariance returns the variogram value at lag (dx, dy)
func (v *Variogram) Semivariance(dx, dy float64) float64 {
	return v.params.StdDev * v.params.StdDev * (1 - v.Corr(dx, dy))
}

// corr evaluates the correlation function at a normalized distance
func (v *Variogram) corr(dist float64) float64 {
	switch v.typ {
	case Constant:
		return 1.0
	case Exponential:
		return math.Exp(-3.0 * dist)
	case Spherical:
		if dist < 1.0 {
			return 1.0 - dist*(1.5-0.5*dist*dist)
		}
		return 0.0
	case Gaussian:
		return math.Exp(-3.0 * dist * dist)
	case GeneralExponential:
		return math.Exp(-3.0 * math.Pow(dist, v.params.Power))
	case Matern32:
		sd := 4.744 * dist
		return math.Exp(-sd) * (1.0 + sd)
	case Matern52:
		sd := 5.918 * dist
		return math.Exp(-sd) * (1.0 + sd + sd*sd/3.0)
	case Matern72:
		sd := 6.877 * dist
		return math.Exp(-sd) * (1.0 + sd + 2.0/5.0*sd*sd + sd*sd*sd/15.0)
	default:
		panic("illegal variogram type")
	}
}
