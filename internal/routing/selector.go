package routing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/models"
)

// Selector 候选选择器
// 默认加权随机摊开负载，避免总是压在单一最优供应商上；
// 权重全部相等时退化为低延迟优先的决胜
type Selector struct {
	mu     sync.Mutex
	random *rand.Rand
}

// NewSelector 创建选择器
func NewSelector() *Selector {
	return &Selector{
		random: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NewSelectorWithSeed 使用指定种子创建选择器（测试用）
func NewSelectorWithSeed(seed int64) *Selector {
	return &Selector{
		random: rand.New(rand.NewSource(seed)),
	}
}

// Pick 按策略从候选集中选出主候选
func (s *Selector) Pick(candidates []*Candidate, policy string) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	if policy == models.SelectionPolicyLatencyFirst {
		return s.pickByLatency(candidates)
	}

	// 权重相等时加权随机退化为均匀随机，此时延迟决胜更有意义
	if equalWeights(candidates) {
		if picked := s.pickByLatency(candidates); picked != nil && picked.HasLatency {
			return picked
		}
	}

	return s.pickByWeight(candidates)
}

// pickByWeight 加权随机选择
func (s *Selector) pickByWeight(candidates []*Candidate) *Candidate {
	totalWeight := 0
	for _, candidate := range candidates {
		if candidate.Weight > 0 {
			totalWeight += candidate.Weight
		}
	}

	if totalWeight == 0 {
		// 所有权重为 0，均匀随机
		s.mu.Lock()
		index := s.random.Intn(len(candidates))
		s.mu.Unlock()
		return candidates[index]
	}

	s.mu.Lock()
	randomValue := s.random.Intn(totalWeight)
	s.mu.Unlock()

	currentWeight := 0
	for _, candidate := range candidates {
		if candidate.Weight > 0 {
			currentWeight += candidate.Weight
			if randomValue < currentWeight {
				return candidate
			}
		}
	}

	// 兜底返回最后一个有权重的候选
	for i := len(candidates) - 1; i >= 0; i-- {
		if candidates[i].Weight > 0 {
			return candidates[i]
		}
	}
	return candidates[0]
}

// pickByLatency 选择平均延迟最低的候选
// 无延迟样本的候选排在有样本的之后，依赖回退顺序兜底
func (s *Selector) pickByLatency(candidates []*Candidate) *Candidate {
	var best *Candidate
	for _, candidate := range candidates {
		if !candidate.HasLatency {
			continue
		}
		if best == nil || candidate.AvgLatencyMs < best.AvgLatencyMs {
			best = candidate
		}
	}

	if best == nil {
		return candidates[0]
	}
	return best
}

// equalWeights 判断所有候选权重是否相等
func equalWeights(candidates []*Candidate) bool {
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Weight != candidates[0].Weight {
			return false
		}
	}
	return true
}
