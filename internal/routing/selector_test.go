package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

func makeCandidate(rule uint, weight int) *Candidate {
	return &Candidate{
		RuleID:   rule,
		Weight:   weight,
		Priority: 1,
	}
}

func TestSelector_EmptyAndSingle(t *testing.T) {
	selector := NewSelectorWithSeed(1)

	assert.Nil(t, selector.Pick(nil, models.SelectionPolicyWeightedRandom))

	only := makeCandidate(1, 100)
	picked := selector.Pick([]*Candidate{only}, models.SelectionPolicyWeightedRandom)
	assert.Same(t, only, picked)
}

// 加权随机的长期分布应接近权重比例
func TestSelector_WeightedDistribution(t *testing.T) {
	selector := NewSelectorWithSeed(42)

	heavy := makeCandidate(1, 75)
	light := makeCandidate(2, 25)
	candidates := []*Candidate{heavy, light}

	const rounds = 10000
	counts := map[uint]int{}
	for i := 0; i < rounds; i++ {
		picked := selector.Pick(candidates, models.SelectionPolicyWeightedRandom)
		require.NotNil(t, picked)
		counts[picked.RuleID]++
	}

	heavyRatio := float64(counts[1]) / float64(rounds)
	assert.InDelta(t, 0.75, heavyRatio, 0.03)
	assert.Equal(t, rounds, counts[1]+counts[2])
}

// 权重为 0 的候选在加权随机下不应被选中
func TestSelector_ZeroWeightSkipped(t *testing.T) {
	selector := NewSelectorWithSeed(7)

	zero := makeCandidate(1, 0)
	normal := makeCandidate(2, 50)

	for i := 0; i < 200; i++ {
		picked := selector.Pick([]*Candidate{zero, normal}, models.SelectionPolicyWeightedRandom)
		assert.Same(t, normal, picked)
	}
}

// 所有权重为 0 时退化为均匀随机，每个候选都应被选到
func TestSelector_AllZeroWeightsUniform(t *testing.T) {
	selector := NewSelectorWithSeed(13)

	a := makeCandidate(1, 0)
	b := makeCandidate(2, 0)
	candidates := []*Candidate{a, b}

	counts := map[uint]int{}
	for i := 0; i < 500; i++ {
		picked := selector.Pick(candidates, models.SelectionPolicyWeightedRandom)
		counts[picked.RuleID]++
	}
	assert.Greater(t, counts[1], 0)
	assert.Greater(t, counts[2], 0)
}

func TestSelector_LatencyFirst(t *testing.T) {
	selector := NewSelectorWithSeed(3)

	slow := makeCandidate(1, 100)
	slow.AvgLatencyMs = 800
	slow.HasLatency = true

	fast := makeCandidate(2, 1)
	fast.AvgLatencyMs = 120
	fast.HasLatency = true

	noSample := makeCandidate(3, 100)

	picked := selector.Pick([]*Candidate{slow, fast, noSample}, models.SelectionPolicyLatencyFirst)
	assert.Same(t, fast, picked)
}

// 延迟优先但全部候选无样本时，回落到首位候选
func TestSelector_LatencyFirstNoSamples(t *testing.T) {
	selector := NewSelectorWithSeed(3)

	first := makeCandidate(1, 100)
	second := makeCandidate(2, 100)

	picked := selector.Pick([]*Candidate{first, second}, models.SelectionPolicyLatencyFirst)
	assert.Same(t, first, picked)
}

// 权重全部相等时，加权随机策略改用延迟决胜
func TestSelector_EqualWeightsLatencyTieBreak(t *testing.T) {
	selector := NewSelectorWithSeed(9)

	slow := makeCandidate(1, 50)
	slow.AvgLatencyMs = 600
	slow.HasLatency = true

	fast := makeCandidate(2, 50)
	fast.AvgLatencyMs = 90
	fast.HasLatency = true

	for i := 0; i < 50; i++ {
		picked := selector.Pick([]*Candidate{slow, fast}, models.SelectionPolicyWeightedRandom)
		assert.Same(t, fast, picked)
	}
}

// 权重相等且完全无延迟样本时仍走加权随机，两者都能被选中
func TestSelector_EqualWeightsNoLatencyFallsBackToRandom(t *testing.T) {
	selector := NewSelectorWithSeed(21)

	a := makeCandidate(1, 50)
	b := makeCandidate(2, 50)

	counts := map[uint]int{}
	for i := 0; i < 500; i++ {
		picked := selector.Pick([]*Candidate{a, b}, models.SelectionPolicyWeightedRandom)
		counts[picked.RuleID]++
	}
	assert.Greater(t, counts[1], 0)
	assert.Greater(t, counts[2], 0)
}
