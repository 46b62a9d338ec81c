package standardize

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestZScoreUntrainedNormalizesPerImage(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	img := make([]float64, 2000)
	for i := 200; i < len(img); i++ {
		img[i] = 500 + rng.NormFloat64()*80
		if img[i] <= 0 {
			img[i] = 1
		}
	}

	z := NewZScore(false)
	require.False(t, z.Trained())
	out, err := z.Transform(img)
	require.NoError(t, err)

	var fg []float64
	for i, v := range img {
		if v > 0 {
			fg = append(fg, out[i])
		} else {
			assert.Zero(t, out[i])
		}
	}
	assert.InDelta(t, 0.0, stat.Mean(fg, nil), 1e-6)
	assert.InDelta(t, 1.0, stat.PopStdDev(fg, nil), 1e-3)

	// The per-image fallback must not mark the model trained.
	assert.False(t, z.Trained())
}

func TestZScoreTrainedUsesGlobalStatistics(t *testing.T) {
	a := []float64{0, 10, 20, 30}
	b := []float64{0, 40, 50, 60}

	z := NewZScore(false)
	require.NoError(t, z.Train([][]float64{a, b}))
	require.True(t, z.Trained())

	// Pooled foreground is 10..60, mean 35, popstd sqrt(291.666...).
	center := 35.0
	scale := stat.PopStdDev([]float64{10, 20, 30, 40, 50, 60}, nil)

	img := []float64{0, 35, 60}
	out, err := z.Transform(img)
	require.NoError(t, err)
	assert.Zero(t, out[0])
	assert.InDelta(t, (35.0-center)/(scale+epsilon), out[1], 1e-12)
	assert.InDelta(t, (60.0-center)/(scale+epsilon), out[2], 1e-12)
}

func TestZScoreRobustStatistics(t *testing.T) {
	// Median 30, absolute deviations {20, 10, 0, 10, 970}, MAD 10.
	img := []float64{10, 20, 30, 40, 1000}

	z := NewZScore(true)
	require.NoError(t, z.Train([][]float64{img}))

	p := z.Parameters()
	assert.Equal(t, 30.0, p.Center)
	assert.InDelta(t, 10*madScale, p.Scale, 1e-12)
	assert.True(t, p.Robust)

	// The outlier barely moves the robust center, unlike the mean.
	out, err := z.Transform([]float64{30})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out[0], 1e-12)
}

func TestZScoreAllBackground(t *testing.T) {
	z := NewZScore(false)
	out, err := z.Transform(make([]float64, 50))
	require.NoError(t, err)
	for _, v := range out {
		assert.Zero(t, v)
	}

	require.Error(t, z.Train([][]float64{make([]float64, 50)}))
}

func TestZScoreParameterRoundTrip(t *testing.T) {
	z := NewZScore(true)
	require.NoError(t, z.Train([][]float64{{0, 5, 9, 14, 22}}))

	path := filepath.Join(t.TempDir(), "zscore.json")
	require.NoError(t, SaveParameters(z.Parameters(), path))

	params, err := LoadParameters(path)
	require.NoError(t, err)
	restored, err := FromParameters(params)
	require.NoError(t, err)
	require.True(t, restored.Trained())

	probe := []float64{0, 3, 8, 17}
	want, err := z.Transform(probe)
	require.NoError(t, err)
	got, err := restored.Transform(probe)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
