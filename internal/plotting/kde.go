package plotting

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// GridSize is the number of points the density is evaluated at.
	GridSize = 200
	// Cut extends the evaluation grid this many bandwidths past the data range.
	Cut = 3.0
	// BandwidthAdjust scales the Scott bandwidth.
	BandwidthAdjust = 1.0
)

// Curve is a density curve evaluated on an evenly spaced grid.
type Curve struct {
	X []float64
	Y []float64
}

// ScottBandwidth returns the Gaussian kernel bandwidth for n samples with
// sample standard deviation sd.
func ScottBandwidth(sd float64, n int) float64 {
	return BandwidthAdjust * sd * math.Pow(float64(n), -1.0/5.0)
}

// KDE estimates the density of values with a Gaussian kernel.
// Missing values are ignored. It returns false when no curve can be drawn:
// fewer than two values or zero variance.
func KDE(values []float64) (Curve, bool) {
	present := finite(values)
	if len(present) < 2 {
		return Curve{}, false
	}

	sd := stat.StdDev(present, nil)
	if sd == 0 || math.IsNaN(sd) {
		return Curve{}, false
	}
	bw := ScottBandwidth(sd, len(present))

	lo := floats.Min(present) - Cut*bw
	hi := floats.Max(present) + Cut*bw
	xs := floats.Span(make([]float64, GridSize), lo, hi)

	kernels := make([]distuv.Normal, len(present))
	for i, v := range present {
		kernels[i] = distuv.Normal{Mu: v, Sigma: bw}
	}

	ys := make([]float64, len(xs))
	n := float64(len(present))
	for i, x := range xs {
		var sum float64
		for _, k := range kernels {
			sum += k.Prob(x)
		}
		ys[i] = sum / n
	}
	return Curve{X: xs, Y: ys}, true
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
