package fit

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sweepVg = []float64{0, -0.5, -1, -1.5, -2, -2.5, -3, -3.2, -3.4, -3.5}
	sweepId = []float64{10, 6, 3, 1.2, 0.4, 0.1, 0.02, 0.01, 0.005, 0.001}
)

func TestLinearFitExact(t *testing.T) {
	slope, intercept, err := LinearFit([]float64{0, 1, 2, 3}, []float64{0, 2, 4, 6})
	require.NoError(t, err)
	assert.Equal(t, 2.0, slope)
	assert.Equal(t, 0.0, intercept)
}

func TestLinearFitDegenerate(t *testing.T) {
	_, _, err := LinearFit([]float64{1, 1, 1}, []float64{1, 2, 3})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, _, err = LinearFit([]float64{1}, []float64{1})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, _, err = LinearFit([]float64{1, 2}, []float64{1})
	assert.Error(t, err)
}

func TestCutoffErrorExactQuadratic(t *testing.T) {
	x := []float64{-1.5, -1, -0.5}
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = 3 * (v + 2) * (v + 2)
	}
	e, err := CutoffError(-2, x, y)
	require.NoError(t, err)
	assert.InDelta(t, 0, e, 1e-18)
}

func TestCutoffErrorDomain(t *testing.T) {
	_, err := CutoffError(-1, []float64{-0.5, -1.5}, []float64{1, 1})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFitDomain))
	var de *DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, 1, de.Index)

	_, err = CutoffError(-5, []float64{-1, -2}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrFitDomain)
}

func syntheticQuadratic() (x, y []float64) {
	for i := 0; i < 8; i++ {
		v := -1.9 + 0.1*float64(i)
		x = append(x, v)
		y = append(y, (v+2)*(v+2))
	}
	return x, y
}

func TestRefineCutoffRecoversQuadraticRoot(t *testing.T) {
	x, y := syntheticQuadratic()
	x0, err := RefineCutoff(x[0]-0.01, x, y, 0.01, 1000)
	require.NoError(t, err)
	assert.InDelta(t, -2.0, x0, 0.01)
}

func TestRefineCutoffStepLimit(t *testing.T) {
	x, y := syntheticQuadratic()
	_, err := RefineCutoff(x[0]-0.01, x, y, 0.01, 3)
	assert.ErrorIs(t, err, ErrNoConvergence)
}

func TestInitialCutoff(t *testing.T) {
	assert.InDelta(t, -3.51, InitialCutoff(-3.5, 0.01), 1e-12)
	assert.InDelta(t, -3.31, InitialCutoff(-3.3, 0.01), 1e-12)
	assert.InDelta(t, -0.78, InitialCutoff(-0.77, 0.01), 1e-12)
}

func TestComputeSweep(t *testing.T) {
	p, err := Compute(sweepVg, sweepId, DefaultOptions())
	require.NoError(t, err)

	assert.InDelta(t, 3.1671428571, p.Yfs, 1e-9)
	assert.InDelta(t, 7.7107142857, p.Idss, 1e-9)
	assert.InDelta(t, -3.51, p.Voff, 1e-9)
	assert.InDelta(t, 2.1508073974, p.Vsat, 1e-9)

	r := p.Rounded()
	assert.Equal(t, Params{Idss: 7.71, Voff: -3.51, Yfs: 3.17, Vsat: 2.15}, r)
}

func TestComputeRejectsBadInput(t *testing.T) {
	_, err := Compute(sweepVg, sweepId[:9], DefaultOptions())
	assert.Error(t, err)

	_, err = Compute(sweepVg[:5], sweepId[:5], DefaultOptions())
	assert.ErrorIs(t, err, ErrDegenerate)

	opts := DefaultOptions()
	opts.Step = 0
	_, err = Compute(sweepVg, sweepId, opts)
	assert.Error(t, err)
}

func TestComputeDomainFailure(t *testing.T) {
	id := append([]float64(nil), sweepId...)
	id[5] = 0
	_, err := Compute(sweepVg, id, DefaultOptions())
	assert.ErrorIs(t, err, ErrFitDomain)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 1.23, Round2(1.234))
	assert.Equal(t, -3.51, Round2(-3.5100000000000002))
	assert.False(t, math.IsNaN(Round2(0)))
}
