package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

// Paths 三个固定的输入文件
type Paths struct {
	News       string
	Government string
	Weather    string
}

// Batch 一次加载的全部条目
type Batch struct {
	News       []NewsItem
	Government []GovernmentItem
	Weather    []WeatherRecord

	// Absent 缺失或无法解析的来源
	Absent []model.Source
}

// Items 按 news、government、weather 的顺序返回全部条目
func (b *Batch) Items() []Item {
	items := make([]Item, 0, len(b.News)+len(b.Government)+len(b.Weather))
	for _, it := range b.News {
		items = append(items, it)
	}
	for _, it := range b.Government {
		items = append(items, it)
	}
	for _, it := range b.Weather {
		items = append(items, it)
	}
	return items
}

// Loader 严格白名单的输入加载器，只读取 Paths 中的三个文件
type Loader struct {
	paths Paths
}

// NewLoader 创建加载器
func NewLoader(paths Paths) *Loader {
	return &Loader{paths: paths}
}

// errAbsent 文件不存在
var errAbsent = errors.New("source absent")

// Load 加载三个来源。缺失或格式错误的来源记为 Absent，不会中断
func (l *Loader) Load() *Batch {
	b := &Batch{}

	if raw, err := readList(l.paths.News); err != nil {
		b.absent(model.SourceNews, l.paths.News, err)
	} else {
		for _, r := range raw {
			b.News = append(b.News, decodeNewsItem(r))
		}
	}

	if raw, err := readList(l.paths.Government); err != nil {
		b.absent(model.SourceGovernment, l.paths.Government, err)
	} else {
		for _, r := range raw {
			b.Government = append(b.Government, GovernmentItem{NewsItem: decodeNewsItem(r)})
		}
	}

	if fields, err := readMapping(l.paths.Weather); err != nil {
		b.absent(model.SourceWeather, l.paths.Weather, err)
	} else {
		for _, f := range fields {
			b.Weather = append(b.Weather, decodeWeather(f.key, f.value))
		}
	}

	return b
}

func (b *Batch) absent(src model.Source, path string, err error) {
	b.Absent = append(b.Absent, src)
	if errors.Is(err, errAbsent) {
		logger.Log.Infof("来源文件缺失，跳过 [%s]: %s", src, path)
		return
	}
	logger.Log.Warnf("来源文件无法读取或解析，跳过 [%s]: %v", src, err)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errAbsent
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readList(path string) ([]json.RawMessage, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	var list []json.RawMessage
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return list, nil
}

func readMapping(path string) ([]field, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse %s: invalid JSON", path)
	}
	fields, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fields, nil
}
