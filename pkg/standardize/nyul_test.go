package standardize

import (
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrireg/pkg/fault"
)

// rampImage builds an image whose foreground is an even ramp over
// [low, high], with the first background voxels left at zero.
func rampImage(n, background int, low, high float64) []float64 {
	img := make([]float64, n)
	fg := n - background
	for i := 0; i < fg; i++ {
		img[background+i] = low + (high-low)*float64(i)/float64(fg-1)
	}
	return img
}

func TestNyulTransformBeforeTrainFails(t *testing.T) {
	n := NewNyul()
	_, err := n.Transform([]float64{1, 2, 3})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Execution))
	assert.Contains(t, err.Error(), "not trained")
	assert.False(t, n.Trained())
}

func TestNyulTrainRequiresImages(t *testing.T) {
	n := NewNyul()
	require.Error(t, n.Train(nil))

	// An all-background image cannot contribute landmarks.
	require.Error(t, n.Train([][]float64{make([]float64, 100)}))
}

func TestNyulExtremesMapToScaleBounds(t *testing.T) {
	images := [][]float64{
		rampImage(1000, 100, 5, 900),
		rampImage(1000, 50, 10, 1200),
		rampImage(1000, 200, 1, 700),
	}

	n := NewNyul()
	require.NoError(t, n.Train(images))
	require.True(t, n.Trained())

	out, err := n.Transform(images[0])
	require.NoError(t, err)
	require.Len(t, out, len(images[0]))

	// The top foreground voxel sits at the 100th percentile landmark
	// and must map to the upper scale bound exactly.
	topIdx := len(images[0]) - 1
	assert.InDelta(t, 100.0, out[topIdx], 1e-9)

	// The lowest foreground voxel sits at the 0th percentile landmark
	// and must map to the lower bound.
	assert.InDelta(t, 0.0, out[100], 1e-9)

	// Everything stays inside the standard scale.
	for _, v := range out {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}

	// Background voxels stay background.
	for i := 0; i < 100; i++ {
		assert.Zero(t, out[i])
	}
}

func TestNyulCustomScale(t *testing.T) {
	n := NewNyul(WithStandardScale(0, 255))
	require.NoError(t, n.Train([][]float64{rampImage(500, 20, 1, 300)}))

	out, err := n.Transform(rampImage(500, 20, 2, 250))
	require.NoError(t, err)
	assert.InDelta(t, 255.0, out[499], 1e-9)
}

func TestNyulMonotonic(t *testing.T) {
	n := NewNyul()
	require.NoError(t, n.Train([][]float64{rampImage(800, 40, 1, 500)}))

	rng := rand.New(rand.NewSource(7))
	img := make([]float64, 600)
	for i := range img {
		img[i] = 1 + rng.Float64()*400
	}
	out, err := n.Transform(img)
	require.NoError(t, err)

	// The piecewise-linear map must preserve intensity ordering.
	for i := 0; i < len(img); i++ {
		for j := i + 1; j < i+10 && j < len(img); j++ {
			if img[i] < img[j] {
				assert.LessOrEqual(t, out[i], out[j])
			}
		}
	}
}

func TestNyulConstantForegroundMapsToTop(t *testing.T) {
	n := NewNyul()
	require.NoError(t, n.Train([][]float64{rampImage(500, 20, 1, 300)}))

	// Every landmark of a constant image collapses to the same value,
	// so all foreground voxels hit the at-or-above-top rule.
	img := make([]float64, 100)
	for i := 10; i < 100; i++ {
		img[i] = 42
	}
	out, err := n.Transform(img)
	require.NoError(t, err)
	for i := 10; i < 100; i++ {
		assert.Equal(t, 100.0, out[i])
	}
	for i := 0; i < 10; i++ {
		assert.Zero(t, out[i])
	}
}

func TestNyulRetrainReplacesParameters(t *testing.T) {
	n := NewNyul()
	require.NoError(t, n.Train([][]float64{rampImage(500, 20, 1, 300)}))
	first := n.Parameters()

	require.NoError(t, n.Train([][]float64{rampImage(500, 20, 50, 5000)}))
	second := n.Parameters()

	// The landmark positions are fixed by construction; re-training
	// must keep the model trained and consistent.
	assert.Equal(t, first.LandmarkPercentiles, second.LandmarkPercentiles)
	assert.True(t, n.Trained())
}

func TestNyulParameterRoundTrip(t *testing.T) {
	images := [][]float64{
		rampImage(1000, 100, 5, 900),
		rampImage(1000, 50, 10, 1200),
	}
	n := NewNyul()
	require.NoError(t, n.Train(images))

	path := filepath.Join(t.TempDir(), "nyul.json")
	require.NoError(t, SaveParameters(n.Parameters(), path))

	params, err := LoadParameters(path)
	require.NoError(t, err)
	restored, err := FromParameters(params)
	require.NoError(t, err)
	require.True(t, restored.Trained())

	probe := rampImage(700, 30, 3, 800)
	want, err := n.Transform(probe)
	require.NoError(t, err)
	got, err := restored.Transform(probe)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestFromParametersRejectsUnknownMethod(t *testing.T) {
	_, err := FromParameters(Parameters{Method: "histogram"})
	require.Error(t, err)
	assert.True(t, fault.IsKind(err, fault.Configuration))
}
