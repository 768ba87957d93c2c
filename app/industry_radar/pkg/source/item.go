package source

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

// Item 三种输入形态的联合类型：NewsItem、GovernmentItem、WeatherRecord
type Item interface {
	Source() model.Source
}

// NewsItem 新闻条目。原始数据可能是对象，也可能是一个裸字符串
type NewsItem struct {
	Title       string
	Headline    string
	Summary     string
	Description string
	Content     string
	Text        string
	Published   string

	// Extra 其余字符串字段，按文档顺序
	Extra []string
	// Bare 原始条目为裸字符串（或其他标量）时的文本
	Bare string
}

// Source 实现 Item
func (NewsItem) Source() model.Source { return model.SourceNews }

// GovernmentItem 政府公告，结构与新闻相同
type GovernmentItem struct {
	NewsItem
}

// Source 实现 Item
func (GovernmentItem) Source() model.Source { return model.SourceGovernment }

// WeatherRecord 某地的天气记录
type WeatherRecord struct {
	Place       string
	Description string
	Main        string
	Temperature string
	Humidity    string
	HasWarnings bool

	// Structured 为 false 时记录值是标量，内容在 Scalar 中
	Structured bool
	Scalar     string
}

// Source 实现 Item
func (WeatherRecord) Source() model.Source { return model.SourceWeather }

// Text 生成天气事件的文本
func (w WeatherRecord) Text() string {
	if !w.Structured {
		return strings.TrimSpace(fmt.Sprintf("%s: %s", w.Place, w.Scalar))
	}

	desc := w.Description
	if desc == "" {
		desc = w.Main
	}
	var extras []string
	if w.Temperature != "" {
		extras = append(extras, fmt.Sprintf("Temp %s°C", w.Temperature))
	}
	if w.Humidity != "" {
		extras = append(extras, fmt.Sprintf("Humidity %s%%", w.Humidity))
	}
	if w.HasWarnings {
		extras = append(extras, "Warnings present")
	}
	return strings.TrimSpace(fmt.Sprintf("%s: %s. %s", w.Place, desc, strings.Join(extras, " ")))
}

type field struct {
	key   string
	value json.RawMessage
}

// decodeObject 按文档顺序解出 JSON 对象的键值
func decodeObject(raw json.RawMessage) ([]field, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var fields []field
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		fields = append(fields, field{key: key, value: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return fields, nil
}

// scalarText 字符串、数字、布尔值返回其文本形式，其余返回 false
func scalarText(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '{', '[':
		return "", false
	case 'n':
		return "", false
	default:
		return string(raw), true
	}
}

// truthy 按 JSON 值的真假判断：非空数组/对象/字符串、true、非零数字
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch raw[0] {
	case '[':
		var v []json.RawMessage
		return json.Unmarshal(raw, &v) == nil && len(v) > 0
	case '{':
		var v map[string]json.RawMessage
		return json.Unmarshal(raw, &v) == nil && len(v) > 0
	case '"':
		var s string
		return json.Unmarshal(raw, &s) == nil && s != ""
	case 't':
		return true
	case 'f', 'n':
		return false
	default:
		var f float64
		return json.Unmarshal(raw, &f) == nil && f != 0
	}
}

func decodeNewsItem(raw json.RawMessage) NewsItem {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		s, _ := scalarText(trimmed)
		return NewsItem{Bare: s}
	}

	fields, err := decodeObject(trimmed)
	if err != nil {
		return NewsItem{}
	}

	var item NewsItem
	for _, f := range fields {
		s, ok := scalarText(f.value)
		if !ok {
			continue
		}
		switch f.key {
		case "title":
			item.Title = s
		case "headline":
			item.Headline = s
		case "summary":
			item.Summary = s
		case "description":
			item.Description = s
		case "content":
			item.Content = s
		case "text":
			item.Text = s
		default:
			if f.key == "published" {
				item.Published = s
			}
			if v := bytes.TrimSpace(f.value); len(v) > 0 && v[0] == '"' {
				item.Extra = append(item.Extra, s)
			}
		}
	}
	return item
}

func decodeWeather(place string, raw json.RawMessage) WeatherRecord {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		s, ok := scalarText(trimmed)
		if !ok {
			s = string(trimmed)
		}
		return WeatherRecord{Place: place, Scalar: s}
	}

	rec := WeatherRecord{Place: place, Structured: true}
	fields, err := decodeObject(trimmed)
	if err != nil {
		return rec
	}
	for _, f := range fields {
		switch f.key {
		case "weather_description":
			rec.Description, _ = scalarText(f.value)
		case "weather_main":
			rec.Main, _ = scalarText(f.value)
		case "temperature":
			rec.Temperature, _ = scalarText(f.value)
		case "humidity":
			rec.Humidity, _ = scalarText(f.value)
		case "warnings":
			rec.HasWarnings = truthy(f.value)
		}
	}
	return rec
}
