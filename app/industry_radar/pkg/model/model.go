package model

import "math"

// Source 事件来源
type Source string

const (
	SourceNews       Source = "news"
	SourceGovernment Source = "government"
	SourceWeather    Source = "weather"
)

// ImpactType 行业影响类型
type ImpactType string

const (
	ImpactOpportunity   ImpactType = "Opportunity"
	ImpactThreat        ImpactType = "Threat"
	ImpactNeutral       ImpactType = "Neutral"
	ImpactWeatherReport ImpactType = "Weather Report"
)

// 固定的特殊分类与行业名
const (
	CategoryWeather = "Weather"
	IndustryWeather = "Weather"
	IndustryOther   = "Other"
)

// Impact 一条事件对单个行业的影响
type Impact struct {
	Industry   string     `json:"industry"`
	Score      float64    `json:"score"`
	ImpactType ImpactType `json:"impact_type"`
	Relevance  float64    `json:"relevance"`
}

// Event 经过打分和行业标注的事件
type Event struct {
	ID                    string   `json:"id"`
	Timestamp             string   `json:"timestamp"`
	Source                Source   `json:"source"`
	Place                 string   `json:"place,omitempty"`
	Text                  string   `json:"text"`
	ThematicCategory      string   `json:"thematic_category"`
	OpportunityScore      float64  `json:"opportunity_score"`
	OpportunityConfidence float64  `json:"opportunity_confidence"`
	Impacts               []Impact `json:"impacts"`
}

// Snapshot 一次流水线运行的完整结果
type Snapshot struct {
	SnapshotID   string  `json:"snapshot_id"`
	RunTimestamp string  `json:"run_timestamp"`
	OverallScore float64 `json:"overall_score"`
	EventsCount  int     `json:"events_count"`
	Events       []Event `json:"events"`
}

// TimeLayout 所有输出时间戳使用的格式（UTC，秒精度）
const TimeLayout = "2006-01-02T15:04:05Z"

// Round4 保留 4 位小数
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Clamp 将 v 限制在 [lo, hi]，NaN 视为 0
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(lo, math.Min(hi, v))
}

// OverallScore 计算事件机会分的平均值，无事件时为 0
func OverallScore(events []Event) float64 {
	if len(events) == 0 {
		return 0
	}
	var sum float64
	for _, e := range events {
		sum += e.OpportunityScore
	}
	return Round4(sum / float64(len(events)))
}
