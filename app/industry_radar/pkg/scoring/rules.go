package scoring

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/taxonomy"
)

// ------------------------------------------------------------------
// 基于关键词的离线后端，不依赖模型服务或 LLM，结果确定。
// ------------------------------------------------------------------

// 正向 / 负向关键词及权重（小写）
var positiveWords = map[string]float64{
	"growth": 0.4, "recovery": 0.5, "surge": 0.6, "boost": 0.5,
	"expansion": 0.4, "investment": 0.4, "profit": 0.3, "record high": 0.7,
	"agreement": 0.3, "approved": 0.3, "upgrade": 0.5, "relief": 0.4,
	"increase in exports": 0.6, "exports rise": 0.6, "strong": 0.4,
	"stable": 0.3, "improve": 0.4, "improved": 0.4, "launch": 0.3,
}

var negativeWords = map[string]float64{
	"crisis": 0.7, "shortage": 0.6, "inflation": 0.6, "flood": 0.6,
	"floods": 0.6, "cyclone": 0.7, "landslide": 0.6, "storm": 0.5,
	"heavy rain": 0.5, "disaster": 0.8, "drought": 0.6, "strike": 0.5,
	"protest": 0.4, "decline": 0.5, "loss": 0.4, "fraud": 0.8,
	"scam": 0.8, "corruption": 0.7, "bribe": 0.6, "power cut": 0.6,
	"outage": 0.5, "default": 0.7, "warning": 0.5, "slump": 0.6,
	"crash": 0.8, "price increase": 0.6, "prices increased": 0.6,
	"cost rise": 0.6, "debt": 0.3, "unrest": 0.6,
}

// 出现这些词时，负面事件被视为正在被处理，负向权重计入正向
var countermeasureWords = []string{
	"action against", "fight", "combat", "crackdown", "arrest", "arrested",
	"seize", "seized", "prevent", "reduce", "control", "tackle", "eliminate",
	"eradicate", "investigate", "probe", "caught", "busted", "raid",
}

// 分类标签对应的关键词。行业额外使用 taxonomy 中的业务范围描述
var labelTerms = map[string][]string{
	"Macro/Economic Policy":     {"central bank", "interest rate", "interest rates", "monetary", "fiscal", "budget", "tax", "imf", "gdp", "inflation", "economy", "debt", "rupee"},
	"Extreme Weather Events":    {"cyclone", "flood", "floods", "landslide", "storm", "heavy rain", "drought", "monsoon", "weather", "warning"},
	"Trade & Foreign Relations": {"export", "exports", "import", "imports", "trade", "tariff", "bilateral", "foreign", "embassy", "agreement"},
	"Corporate/Company News":    {"company", "plc", "profit", "revenue", "shares", "ceo", "acquisition", "quarter", "board"},
	"Regulatory & Governance":   {"regulation", "regulatory", "law", "act", "gazette", "court", "commission", "cabinet", "approval", "licence", "license"},
	"ICT & Digital Services":    {"digital", "software", "internet", "telecom", "ict", "technology", "mobile", "cyber", "online"},
	"Market Trends":             {"market", "price", "prices", "demand", "supply", "stock", "index", "trading", "consumer"},
	"Social/Political Issues":   {"protest", "strike", "election", "parliament", "minister", "president", "union", "political", "public"},

	"Tourism & Hospitality":      {"tourist", "tourists", "tourism", "hotel", "hotels", "travel", "visitor", "visitors", "resort", "airline", "airlines"},
	"Financial Services":         {"bank", "banks", "insurance", "loan", "loans", "interest rate", "stock market", "cse", "finance", "credit"},
	"IT & Telecommunications":    {"software", "telecom", "bpo", "digital", "internet", "mobile", "ict", "technology"},
	"Transportation & Logistics": {"port", "shipping", "cargo", "logistics", "transport", "freight", "container", "fuel", "transshipment"},
	"Textiles & Apparel":         {"apparel", "garment", "garments", "textile", "textiles", "clothing"},
	"Processing of Commodities":  {"processing", "rubber products", "coconut oil", "tea factory", "value addition"},
	"Construction":               {"construction", "housing", "infrastructure", "cement", "road", "roads", "building"},
	"Tea":                        {"tea"},
	"Rubber":                     {"rubber"},
	"Coconut":                    {"coconut", "coconuts", "copra", "coir"},
	"Gem & Jewellery":            {"gem", "gems", "sapphire", "sapphires", "jewellery", "jewelry"},
	"Foreign Employment":         {"remittance", "remittances", "migrant", "foreign employment", "workers abroad", "slbfe"},
}

// Rules 关键词规则后端，始终可用
type Rules struct{}

var _ Backend = Rules{}

func (Rules) Name() string { return "rules" }

// ScoreOpportunity 按正负关键词的权重计算净分
func (Rules) ScoreOpportunity(_ context.Context, text string) (Opportunity, error) {
	padded := padWords(text)

	countered := false
	for _, w := range countermeasureWords {
		if hasTerm(padded, w) {
			countered = true
			break
		}
	}

	pos, neg := 0.0, 0.0
	matches := 0
	for w, weight := range positiveWords {
		if hasTerm(padded, w) {
			pos += weight
			matches++
		}
	}
	for w, weight := range negativeWords {
		if hasTerm(padded, w) {
			if countered {
				pos += weight
			} else {
				neg += weight
			}
			matches++
		}
	}

	total := pos + neg
	if matches == 0 || total == 0 {
		return Opportunity{Score: 0, Confidence: 0.1}, nil
	}

	// 净分按总权重缩放，单个弱关键词不会直接给出 ±1
	score := (pos - neg) / total * math.Min(total, 1)
	confidence := math.Min(float64(matches)*0.15+0.2, 0.85)
	return Opportunity{Score: score, Confidence: confidence}, nil
}

// Classify 按关键词命中数给每个候选标签打分
func (Rules) Classify(_ context.Context, text string, labels []string, multiLabel bool) ([]Label, error) {
	padded := padWords(text)

	out := make([]Label, 0, len(labels))
	for _, name := range labels {
		hits := 0
		for _, term := range termsFor(name) {
			if hasTerm(padded, term) {
				hits++
			}
		}
		var rel float64
		if multiLabel {
			rel = 1 - math.Pow(0.5, float64(hits))
		} else {
			rel = float64(hits)
		}
		out = append(out, Label{Name: name, Relevance: rel})
	}
	return NormalizeLabels(out, labels, multiLabel), nil
}

// termsFor 标签的关键词，没有预置时从标签名和行业描述中拆词
func termsFor(label string) []string {
	if terms, ok := labelTerms[label]; ok {
		return terms
	}
	src := label
	if ind, ok := taxonomy.Lookup(label); ok {
		src += " " + ind.Focus
	}
	var terms []string
	for _, w := range strings.Fields(normalize(src)) {
		if len(w) >= 4 && !stopWords[w] {
			terms = append(terms, w)
		}
	}
	return terms
}

var stopWords = map[string]bool{
	"and": true, "the": true, "with": true, "from": true, "other": true,
	"both": true, "services": true, "news": true, "issues": true,
}

// normalize 转小写，非字母数字替换为空格并折叠
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func padWords(s string) string {
	return " " + normalize(s) + " "
}

// hasTerm 按整词匹配
func hasTerm(padded, term string) bool {
	return strings.Contains(padded, " "+normalize(term)+" ")
}
