// Package taxonomy 定义行业分类体系（Sector -> Industry）和主题分类列表，运行期只读。
package taxonomy

// Industry 行业及其业务范围描述
type Industry struct {
	Name         string
	Sector       string
	Focus        string
	Contribution string
}

// Sector 行业大类
type Sector struct {
	Name       string
	Industries []Industry
}

var sectors = []Sector{
	{Name: "Services", Industries: []Industry{
		{Name: "Tourism & Hospitality", Focus: "Hotels, resorts, travel agencies, transport services, eco-tourism", Contribution: "Largest contributor to GDP"},
		{Name: "Financial Services", Focus: "Banking (Commercial & Central), Insurance, Real Estate, Stock Market", Contribution: "Significant support for other industries"},
		{Name: "IT & Telecommunications", Focus: "Software development, IT Enabled Services (ITES), Business Process Outsourcing (BPO), Telecommunication infrastructure", Contribution: "Fast-growing export revenue earner"},
		{Name: "Transportation & Logistics", Focus: "Port services (Port of Colombo as a transshipment hub), air cargo, maritime services", Contribution: "Critical due to strategic geographic location"},
	}},
	{Name: "Industry", Industries: []Industry{
		{Name: "Textiles & Apparel", Focus: "Manufacturing and export of high-quality clothing", Contribution: "Dominant manufacturing industry"},
		{Name: "Processing of Commodities", Focus: "Value addition to rubber, coconut, and tea products", Contribution: "Link between agriculture and industry"},
		{Name: "Construction", Focus: "Infrastructure development, housing, commercial projects, real estate", Contribution: "Important for domestic growth"},
	}},
	{Name: "Agriculture", Industries: []Industry{
		{Name: "Tea", Focus: "Cultivation, processing, and export of Ceylon Tea", Contribution: "Major traditional export commodity"},
		{Name: "Rubber", Focus: "Cultivation and sourcing for local/exported rubber products", Contribution: "Important raw material source"},
		{Name: "Coconut", Focus: "Production of desiccated coconut, coir, copra, and coconut oil", Contribution: "Significant for both domestic use and export"},
	}},
	{Name: "Other", Industries: []Industry{
		{Name: "Gem & Jewellery", Focus: "Mining and export of precious stones, especially sapphires", Contribution: "Niche but high-value export"},
		{Name: "Foreign Employment", Focus: "Earnings sent back by Sri Lankans working abroad", Contribution: "Crucial source of foreign currency"},
	}},
}

var thematicCategories = []string{
	"Macro/Economic Policy",
	"Extreme Weather Events",
	"Trade & Foreign Relations",
	"Corporate/Company News",
	"Regulatory & Governance",
	"ICT & Digital Services",
	"Market Trends",
	"Social/Political Issues",
}

// Sectors 返回行业体系的副本
func Sectors() []Sector {
	out := make([]Sector, len(sectors))
	for i, s := range sectors {
		inds := make([]Industry, len(s.Industries))
		for j, ind := range s.Industries {
			ind.Sector = s.Name
			inds[j] = ind
		}
		out[i] = Sector{Name: s.Name, Industries: inds}
	}
	return out
}

// Industries 按体系顺序展开的全部行业
func Industries() []Industry {
	var out []Industry
	for _, s := range Sectors() {
		out = append(out, s.Industries...)
	}
	return out
}

// IndustryNames 行业名列表，用作多标签分类的候选标签
func IndustryNames() []string {
	inds := Industries()
	names := make([]string, len(inds))
	for i, ind := range inds {
		names[i] = ind.Name
	}
	return names
}

// ThematicCategories 主题分类列表，用作单标签分类的候选标签
func ThematicCategories() []string {
	return append([]string(nil), thematicCategories...)
}

// Lookup 按名称查找行业
func Lookup(name string) (Industry, bool) {
	for _, ind := range Industries() {
		if ind.Name == name {
			return ind, true
		}
	}
	return Industry{}, false
}
