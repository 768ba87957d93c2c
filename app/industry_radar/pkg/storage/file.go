// Package storage 快照持久化：本地 JSON 文件与可选的 Postgres 镜像。
package storage

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/iWorld-y/industry_radar/app/industry_radar/internal/fsutil"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/indicator"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
)

// 输出文件名
const (
	LiveFile        = "live_output.json"
	HistoryFile     = "hourly_history.jsonl"
	NationalFile    = "national_activity_indicators.json"
	OperationalFile = "operational_environment_indicators.json"
	InsightsFile    = "risk_opportunity_insights.json"
)

// maxHistoryLine 单行历史记录的最大长度
const maxHistoryLine = 64 << 20

// FileStore 基于本地文件的快照存储
type FileStore struct {
	outputDir  string
	historyDir string
	mu         sync.Mutex
}

// NewFileStore 创建文件存储
func NewFileStore(outputDir, historyDir string) *FileStore {
	return &FileStore{outputDir: outputDir, historyDir: historyDir}
}

// EnsureDirs 创建输出目录与历史目录
func (s *FileStore) EnsureDirs() error {
	for _, dir := range []string{s.outputDir, s.historyDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// LivePath live 快照路径
func (s *FileStore) LivePath() string { return filepath.Join(s.outputDir, LiveFile) }

// HistoryPath 历史记录路径
func (s *FileStore) HistoryPath() string { return filepath.Join(s.historyDir, HistoryFile) }

// WriteLive 覆盖写入 live 快照
func (s *FileStore) WriteLive(snap *model.Snapshot) error {
	data, err := marshal(snap, true)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return fsutil.WriteAtomic(s.LivePath(), data)
}

// AppendHistory 追加一行快照到历史记录，文件不会被截断或重写
func (s *FileStore) AppendHistory(snap *model.Snapshot) error {
	data, err := marshal(snap, false)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.HistoryPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("append history: %w", err)
	}
	return f.Close()
}

type indicatorDoc[T any] struct {
	GeneratedAt     string `json:"generated_at"`
	TotalIndicators int    `json:"total_indicators"`
	Indicators      []T    `json:"indicators"`
}

type insightDoc struct {
	GeneratedAt   string              `json:"generated_at"`
	TotalInsights int                 `json:"total_insights"`
	Insights      []indicator.Insight `json:"insights"`
}

// WriteViews 写入三类指标视图，各文件独立写入，一个失败不影响其他
func (s *FileStore) WriteViews(views *indicator.Views) error {
	docs := []struct {
		name string
		doc  any
	}{
		{NationalFile, indicatorDoc[indicator.NationalIndicator]{
			GeneratedAt:     views.GeneratedAt,
			TotalIndicators: len(views.National),
			Indicators:      views.National,
		}},
		{OperationalFile, indicatorDoc[indicator.OperationalIndicator]{
			GeneratedAt:     views.GeneratedAt,
			TotalIndicators: len(views.Operational),
			Indicators:      views.Operational,
		}},
		{InsightsFile, insightDoc{
			GeneratedAt:   views.GeneratedAt,
			TotalInsights: len(views.Insights),
			Insights:      views.Insights,
		}},
	}

	var errs []error
	for _, d := range docs {
		data, err := marshal(d.doc, true)
		if err == nil {
			err = fsutil.WriteAtomic(filepath.Join(s.outputDir, d.name), data)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", d.name, err))
		}
	}
	return errors.Join(errs...)
}

// ReadHistory 读取历史记录中最近的 limit 条快照，limit <= 0 时全部返回。
// 无法解析的行会被跳过
func (s *FileStore) ReadHistory(limit int) ([]model.Snapshot, error) {
	f, err := os.Open(s.HistoryPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var out []model.Snapshot
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxHistoryLine)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var snap model.Snapshot
		if err := json.Unmarshal(b, &snap); err != nil {
			logger.Log.Warnf("历史记录第 %d 行无法解析，跳过: %v", line, err)
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) > limit {
			out = out[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}

// marshal 不转义 HTML 字符；indent 为 false 时输出单行并以换行结尾
func marshal(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
