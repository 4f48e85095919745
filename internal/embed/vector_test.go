package embed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeProducesUnitNorm(t *testing.T) {
	v := Normalize([]float32{3, 4})

	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-6)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)
	assert.InDelta(t, 0.8, float64(v[1]), 1e-6)
}

func TestNormalizeZeroVectorUnchanged(t *testing.T) {
	v := Normalize([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, v)
}

func TestCosineIdentity(t *testing.T) {
	x := Normalize([]float32{0.3, -1.2, 2.5, 0.01})

	score, err := Cosine(x, x)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, float64(score), 1e-6)
}

func TestCosineOrthogonal(t *testing.T) {
	score, err := Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, float64(score), 1e-6)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 0}, []float32{1, 0, 0})
	assert.Error(t, err)
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeGeneral, ParseMode("general"))
	assert.Equal(t, ModeGeneral, ParseMode(""))
	assert.Equal(t, ModeFace, ParseMode("face"))
	// Any unrecognized mode string falls through to the face backend.
	assert.Equal(t, ModeFace, ParseMode("fingerprint"))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "general", ModeGeneral.String())
	assert.Equal(t, "face", ModeFace.String())
}
