// Package indicator 从一次运行的事件列表生成三类分析视图：
// 全国动态指标、经营环境指标、风险/机会洞察。
//
// 三个生成函数都是纯函数，互不依赖，可以并发执行。
package indicator

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

const (
	nationalTopIndustries    = 3
	operationalTopIndustries = 5
	insightTopIndustries     = 3
)

// NationalIndicator 全国动态指标
type NationalIndicator struct {
	ID                    string       `json:"id"`
	Timestamp             string       `json:"timestamp"`
	Source                model.Source `json:"source"`
	Headline              string       `json:"headline"`
	ThematicCategory      string       `json:"thematic_category"`
	TopIndustriesAffected []string     `json:"top_industries_affected"`
	ImpactScore           float64      `json:"impact_score"`
}

// OperationalIndicator 经营环境指标
type OperationalIndicator struct {
	ID                      string       `json:"id"`
	Timestamp               string       `json:"timestamp"`
	Source                  model.Source `json:"source"`
	Signal                  string       `json:"signal"`
	ThematicCategory        string       `json:"thematic_category"`
	AffectedIndustriesCount int          `json:"affected_industries_count"`
	TopAffectedIndustries   []string     `json:"top_affected_industries"`
	OverallImpact           float64      `json:"overall_impact"`
}

// Insight 风险/机会洞察。RiskScore 与 OpportunityScore 至多一个大于 0
type Insight struct {
	ID                     string       `json:"id"`
	Timestamp              string       `json:"timestamp"`
	Source                 model.Source `json:"source"`
	Headline               string       `json:"headline"`
	ThematicCategory       string       `json:"thematic_category"`
	RiskScore              float64      `json:"risk_score"`
	RiskCategory           string       `json:"risk_category"`
	RiskExplanation        string       `json:"risk_explanation"`
	OpportunityScore       float64      `json:"opportunity_score"`
	OpportunityCategory    string       `json:"opportunity_category"`
	OpportunityExplanation string       `json:"opportunity_explanation"`
	TopAffectedIndustries  []string     `json:"top_affected_industries"`
}

// Views 一次运行生成的三类视图
type Views struct {
	GeneratedAt string
	National    []NationalIndicator
	Operational []OperationalIndicator
	Insights    []Insight
}

// Generate 并发生成三类视图
func Generate(ctx context.Context, events []model.Event, policy Policy, now time.Time) (*Views, error) {
	views := &Views{GeneratedAt: now.UTC().Format(model.TimeLayout)}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		views.National = National(events, policy)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		views.Operational = Operational(events, policy)
		return nil
	})
	g.Go(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		views.Insights = RiskOpportunity(events, policy)
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// National 筛选全国动态指标，按 |impact_score| 降序
func National(events []model.Event, policy Policy) []NationalIndicator {
	out := make([]NationalIndicator, 0)
	for _, e := range events {
		if e.Source == model.SourceWeather {
			continue
		}
		if !isNational(e, policy) {
			continue
		}
		out = append(out, NationalIndicator{
			ID:                    e.ID,
			Timestamp:             e.Timestamp,
			Source:                e.Source,
			Headline:              truncate(e.Text, policy.HeadlineLimit),
			ThematicCategory:      e.ThematicCategory,
			TopIndustriesAffected: industries(e.Impacts, nationalTopIndustries),
			ImpactScore:           e.OpportunityScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].ImpactScore) > math.Abs(out[j].ImpactScore)
	})
	return out
}

// isNational 主题分类在全国性集合内，或关键词命中足够多。
// 命中 MinKeywordHits 个立即接受；否则命中 FallbackKeywordHits 个也接受
func isNational(e model.Event, policy Policy) bool {
	for _, c := range policy.NationalCategories {
		if e.ThematicCategory == c {
			return true
		}
	}

	text := strings.ToLower(e.Text)
	hits := 0
	for _, group := range policy.NationalKeywords {
		for _, term := range group.Terms {
			if !strings.Contains(text, term) {
				continue
			}
			hits++
			if hits >= policy.MinKeywordHits {
				return true
			}
		}
	}
	return hits >= policy.FallbackKeywordHits && hits > 0
}

// Operational 筛选经营环境指标，按受影响行业数降序
func Operational(events []model.Event, policy Policy) []OperationalIndicator {
	out := make([]OperationalIndicator, 0)
	for _, e := range events {
		if e.Source == model.SourceWeather {
			continue
		}
		if len(e.Impacts) < policy.OperationalMinImpacts && !matchesAny(e.Text, policy.OperationalKeywords) {
			continue
		}

		count := 0
		for _, imp := range e.Impacts {
			if math.Abs(imp.Score) > policy.BreadthThreshold {
				count++
			}
		}
		out = append(out, OperationalIndicator{
			ID:                      e.ID,
			Timestamp:               e.Timestamp,
			Source:                  e.Source,
			Signal:                  truncate(e.Text, policy.HeadlineLimit),
			ThematicCategory:        e.ThematicCategory,
			AffectedIndustriesCount: count,
			TopAffectedIndustries:   industries(e.Impacts, operationalTopIndustries),
			OverallImpact:           e.OpportunityScore,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].AffectedIndustriesCount > out[j].AffectedIndustriesCount
	})
	return out
}

func matchesAny(text string, groups []KeywordGroup) bool {
	text = strings.ToLower(text)
	for _, group := range groups {
		for _, term := range group.Terms {
			if strings.Contains(text, term) {
				return true
			}
		}
	}
	return false
}

// RiskOpportunity 为每个事件（含天气）生成风险/机会洞察，
// 按 max(risk, opportunity) 降序，不区分方向
func RiskOpportunity(events []model.Event, policy Policy) []Insight {
	out := make([]Insight, 0, len(events))
	for _, e := range events {
		var risk, opp float64
		switch {
		case e.OpportunityScore < 0:
			risk = -e.OpportunityScore
		case e.OpportunityScore > 0:
			opp = e.OpportunityScore
		}
		rl := riskLabels[policy.RiskTiers.tier(risk)]
		ol := opportunityLabels[policy.OpportunityTiers.tier(opp)]

		out = append(out, Insight{
			ID:                     e.ID,
			Timestamp:              e.Timestamp,
			Source:                 e.Source,
			Headline:               truncate(e.Text, policy.HeadlineLimit),
			ThematicCategory:       e.ThematicCategory,
			RiskScore:              model.Round4(risk),
			RiskCategory:           rl.Category,
			RiskExplanation:        rl.Explanation,
			OpportunityScore:       model.Round4(opp),
			OpportunityCategory:    ol.Category,
			OpportunityExplanation: ol.Explanation,
			TopAffectedIndustries:  topByMagnitude(e.Impacts, insightTopIndustries),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Max(out[i].RiskScore, out[i].OpportunityScore) > math.Max(out[j].RiskScore, out[j].OpportunityScore)
	})
	return out
}

// industries 取前 n 个影响的行业名，impacts 已按 |score| 降序
func industries(impacts []model.Impact, n int) []string {
	if len(impacts) < n {
		n = len(impacts)
	}
	names := make([]string, 0, n)
	for _, imp := range impacts[:n] {
		names = append(names, imp.Industry)
	}
	return names
}

func topByMagnitude(impacts []model.Impact, n int) []string {
	sorted := make([]model.Impact, len(impacts))
	copy(sorted, impacts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Score) > math.Abs(sorted[j].Score)
	})
	return industries(sorted, n)
}

// truncate 按字符截断，limit <= 0 时不截断
func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
