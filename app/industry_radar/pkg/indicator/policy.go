package indicator

// KeywordGroup 一组同主题的关键词
type KeywordGroup struct {
	Name  string   `yaml:"name"`
	Terms []string `yaml:"terms"`
}

// Tiers 分档阈值：大于 High 为高，大于 Medium 为中，大于 0 为低
type Tiers struct {
	High   float64 `yaml:"high"`
	Medium float64 `yaml:"medium"`
}

// Policy 指标生成使用的业务规则，全部可由配置覆盖
type Policy struct {
	// NationalCategories 天然属于全国性事件的主题分类
	NationalCategories []string       `yaml:"national_categories"`
	NationalKeywords   []KeywordGroup `yaml:"national_keywords"`
	// MinKeywordHits 达到该命中数立即判定为全国性事件
	MinKeywordHits int `yaml:"min_keyword_hits"`
	// FallbackKeywordHits 未达到 MinKeywordHits 时的兜底命中数。
	// 默认 1，即单个关键词也算，偏向召回
	FallbackKeywordHits int `yaml:"fallback_keyword_hits"`

	OperationalKeywords   []KeywordGroup `yaml:"operational_keywords"`
	OperationalMinImpacts int            `yaml:"operational_min_impacts"`
	// BreadthThreshold 计入受影响行业数的最小 |score|
	BreadthThreshold float64 `yaml:"breadth_threshold"`

	HeadlineLimit    int   `yaml:"headline_limit"`
	RiskTiers        Tiers `yaml:"risk_tiers"`
	OpportunityTiers Tiers `yaml:"opportunity_tiers"`
}

// DefaultPolicy 默认规则
func DefaultPolicy() Policy {
	return Policy{
		NationalCategories: []string{
			"Social/Political Issues",
			"Security & Defense",
			"Regulatory & Governance",
			"Extreme Weather Events",
			"Infrastructure & Development",
		},
		NationalKeywords: []KeywordGroup{
			{Name: "political", Terms: []string{"election", "government", "parliament", "minister", "president",
				"policy", "law", "legislation", "vote", "political", "coalition", "cabinet"}},
			{Name: "economic", Terms: []string{"economy", "gdp", "inflation", "trade", "export", "import",
				"debt", "imf", "budget", "fiscal", "economic growth", "recession"}},
			{Name: "disasters", Terms: []string{"cyclone", "flood", "landslide", "drought", "disaster",
				"emergency", "warning", "alert", "evacuation", "storm", "earthquake"}},
			{Name: "public", Terms: []string{"protest", "strike", "demonstration", "rally", "public",
				"nationwide", "crisis", "unrest", "movement"}},
		},
		MinKeywordHits:      2,
		FallbackKeywordHits: 1,
		OperationalKeywords: []KeywordGroup{
			{Name: "supply_chain", Terms: []string{"supply", "shortage", "stock", "inventory", "logistics",
				"transport", "delivery", "distribution", "import restriction"}},
			{Name: "utilities", Terms: []string{"power cut", "electricity", "fuel", "gas", "water",
				"blackout", "outage", "energy crisis", "power failure"}},
			{Name: "market", Terms: []string{"price", "cost", "inflation", "market", "consumer", "retail",
				"sale", "demand", "spending", "purchasing"}},
			{Name: "business", Terms: []string{"business", "company", "sector", "operations", "productivity"}},
		},
		OperationalMinImpacts: 3,
		BreadthThreshold:      0.1,
		HeadlineLimit:         200,
		RiskTiers:             Tiers{High: 0.5, Medium: 0.2},
		OpportunityTiers:      Tiers{High: 0.5, Medium: 0.2},
	}
}

// tierLabel 风险/机会档位的名称与说明
type tierLabel struct {
	Category    string
	Explanation string
}

var (
	riskLabels = [4]tierLabel{
		{"High Risk", "Significant negative impact detected across multiple sectors."},
		{"Medium Risk", "Moderate negative impact with potential operational challenges."},
		{"Low Risk", "Minor negative signals, monitoring recommended."},
		{"No Significant Risk", "No immediate risk indicators detected."},
	}
	opportunityLabels = [4]tierLabel{
		{"High Opportunity", "Strong positive signals indicating significant growth potential."},
		{"Medium Opportunity", "Moderate positive indicators suggesting favorable conditions."},
		{"Low Opportunity", "Minor positive signals, potential for small gains."},
		{"No Significant Opportunity", "No immediate opportunity indicators detected."},
	}
)

// tier 返回分数所在档位的下标，0 为最高
func (t Tiers) tier(v float64) int {
	switch {
	case v > t.High:
		return 0
	case v > t.Medium:
		return 1
	case v > 0:
		return 2
	default:
		return 3
	}
}
