package network

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/netsim/sim"
)

func newSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, 0)
}

func TestUniformLatency_StaysInHalfOpenRange(t *testing.T) {
	m, err := NewLatencyModel(sim.LatencyConfig{Distribution: sim.LatencyUniform, Base: 30, Mean: 150}, newSource(1))
	require.NoError(t, err)

	seen := make(map[int64]bool)
	for i := 0; i < 5000; i++ {
		d := m.Draw()
		require.GreaterOrEqual(t, d, int64(30))
		require.Less(t, d, int64(180))
		seen[d] = true
	}
	assert.Greater(t, len(seen), 100, "draws should spread over the range")
}

func TestUniformLatency_ZeroMeanIsBase(t *testing.T) {
	m, err := NewLatencyModel(sim.LatencyConfig{Base: 12}, newSource(1))
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		assert.Equal(t, int64(12), m.Draw())
	}
}

func TestPoissonLatency_MeanIsNearLambda(t *testing.T) {
	m, err := NewLatencyModel(sim.LatencyConfig{Distribution: sim.LatencyPoisson, Base: 0, Mean: 100}, newSource(3))
	require.NoError(t, err)

	const n = 20000
	var sum int64
	for i := 0; i < n; i++ {
		d := m.Draw()
		require.GreaterOrEqual(t, d, int64(0))
		sum += d
	}
	assert.InDelta(t, 100.0, float64(sum)/n, 2.0)
}

func TestFixedLatency(t *testing.T) {
	m, err := NewLatencyModel(sim.LatencyConfig{Distribution: sim.LatencyFixed, Base: 5, Mean: 99}, newSource(1))
	require.NoError(t, err)
	assert.Equal(t, int64(5), m.Draw())
}

func TestNewLatencyModel_RejectsInvalidConfig(t *testing.T) {
	tests := []sim.LatencyConfig{
		{Distribution: "lognormal", Mean: 10},
		{Distribution: sim.LatencyPoisson, Mean: 0},
		{Distribution: sim.LatencyUniform, Base: -1, Mean: 10},
	}
	for _, cfg := range tests {
		_, err := NewLatencyModel(cfg, newSource(1))
		assert.Error(t, err, "config %+v", cfg)
	}
}

func TestLatencyModel_DeterministicForSameSeed(t *testing.T) {
	cfg := sim.LatencyConfig{Distribution: sim.LatencyPoisson, Base: 10, Mean: 40}
	a, err := NewLatencyModel(cfg, newSource(9))
	require.NoError(t, err)
	b, err := NewLatencyModel(cfg, newSource(9))
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.Draw(), b.Draw())
	}
}
