// Package scoring 定义打分协作方的接口与各个后端实现。
package scoring

import (
	"context"
	"sort"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

// Opportunity 机会分与置信度
type Opportunity struct {
	Score      float64 `json:"score"`
	Confidence float64 `json:"confidence"`
}

// Label 分类标签及其相关度
type Label struct {
	Name      string  `json:"name"`
	Relevance float64 `json:"relevance"`
}

// OpportunityScorer 定义机会分打分接口，Score ∈ [-1,1]，Confidence ∈ [0,1]
type OpportunityScorer interface {
	ScoreOpportunity(ctx context.Context, text string) (Opportunity, error)
}

// Classifier 定义零样本分类接口
//
// multiLabel 为 false 时返回的相关度之和为 1；为 true 时每个标签独立打分。
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]Label, error)
}

// Backend 同时提供打分与分类的后端实现
type Backend interface {
	OpportunityScorer
	Classifier
	Name() string
}

// Prober 可选接口：后端可在启动时探测自身是否可用
type Prober interface {
	Probe(ctx context.Context) error
}

// 降级模式下的默认值
const (
	NeutralScore      = 0.0
	NeutralConfidence = 0.5
)

// Neutral 降级后端：固定返回中性分，标签均匀分布
type Neutral struct{}

var _ Backend = Neutral{}

func (Neutral) Name() string { return "neutral" }

func (Neutral) ScoreOpportunity(context.Context, string) (Opportunity, error) {
	return Opportunity{Score: NeutralScore, Confidence: NeutralConfidence}, nil
}

func (Neutral) Classify(_ context.Context, _ string, labels []string, _ bool) ([]Label, error) {
	return Uniform(labels), nil
}

// Uniform 按候选顺序返回均匀分布的标签
func Uniform(labels []string) []Label {
	if len(labels) == 0 {
		return nil
	}
	w := 1.0 / float64(len(labels))
	out := make([]Label, len(labels))
	for i, name := range labels {
		out[i] = Label{Name: name, Relevance: w}
	}
	return out
}

// ClampOpportunity 把协作方的输出限制在合法区间
func ClampOpportunity(o Opportunity) Opportunity {
	return Opportunity{
		Score:      model.Clamp(o.Score, -1, 1),
		Confidence: model.Clamp(o.Confidence, 0, 1),
	}
}

// NormalizeLabels 整理分类结果：去重、限制相关度范围并按相关度降序。
// 单标签模式下丢弃候选集以外的标签并重新归一化使总和为 1；
// 多标签模式保留协作方给出的全部标签，候选集以外的排在同分候选之后。结果为空时退化为均匀分布。
func NormalizeLabels(got []Label, candidates []string, multiLabel bool) []Label {
	order := make(map[string]int, len(candidates))
	for i, c := range candidates {
		order[c] = i
	}

	best := make(map[string]float64, len(got))
	for _, l := range got {
		if _, ok := order[l.Name]; !ok {
			if !multiLabel || l.Name == "" {
				continue
			}
			order[l.Name] = len(order)
		}
		r := model.Clamp(l.Relevance, 0, 1)
		if prev, ok := best[l.Name]; !ok || r > prev {
			best[l.Name] = r
		}
	}
	if len(best) == 0 {
		return Uniform(candidates)
	}

	out := make([]Label, 0, len(best))
	var sum float64
	for name, r := range best {
		out = append(out, Label{Name: name, Relevance: r})
		sum += r
	}

	if !multiLabel {
		if sum == 0 {
			return Uniform(candidates)
		}
		for i := range out {
			out[i].Relevance /= sum
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Relevance != out[j].Relevance {
			return out[i].Relevance > out[j].Relevance
		}
		return order[out[i].Name] < order[out[j].Name]
	})
	return out
}
