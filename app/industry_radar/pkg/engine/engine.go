package engine

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/cache"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/indicator"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/source"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/taxonomy"
)

// CacheFile 去重缓存文件名，位于输出目录下
const CacheFile = "processed_cache.json"

// minTextLen 文本少于该字符数时跳过
const minTextLen = 5

// weatherWarningScore 天气带预警时的机会分
const weatherWarningScore = -0.5

// SnapshotWriter 快照与视图的落盘接口
type SnapshotWriter interface {
	WriteLive(snap *model.Snapshot) error
	AppendHistory(snap *model.Snapshot) error
	WriteViews(views *indicator.Views) error
}

// Mirror 可选的快照镜像存储（如数据库）
type Mirror interface {
	SaveSnapshot(ctx context.Context, snap *model.Snapshot) error
}

// Engine 核心处理引擎
type Engine struct {
	cfg    *config.Config
	loader *source.Loader
	guard  *scoring.Guard
	files  SnapshotWriter
	mirror Mirror

	// 分类候选标签
	themes     []string
	industries []string

	now func() time.Time

	mu        sync.Mutex
	lastStats RunStats
}

// NewEngine 创建引擎实例，mirror 可为 nil
func NewEngine(cfg *config.Config, guard *scoring.Guard, files SnapshotWriter, mirror Mirror) *Engine {
	return &Engine{
		cfg: cfg,
		loader: source.NewLoader(source.Paths{
			News:       cfg.Sources.News,
			Government: cfg.Sources.Government,
			Weather:    cfg.Sources.Weather,
		}),
		guard:      guard,
		files:      files,
		mirror:     mirror,
		themes:     taxonomy.ThematicCategories(),
		industries: taxonomy.IndustryNames(),
		now:        time.Now,
	}
}

// RunOptions 运行选项
type RunOptions struct {
	SaveHistory bool
}

// SourceStats 单个来源的处理统计
type SourceStats struct {
	New     int `json:"new"`
	Cached  int `json:"cached"`
	Skipped int `json:"skipped"`
}

// RunStats 一次运行的统计
type RunStats struct {
	Sources    map[model.Source]*SourceStats
	Absent     []model.Source
	CacheAdded int
	Events     int
}

func newRunStats() RunStats {
	return RunStats{Sources: map[model.Source]*SourceStats{
		model.SourceNews:       {},
		model.SourceGovernment: {},
		model.SourceWeather:    {},
	}}
}

// LastStats 最近一次运行的统计
func (e *Engine) LastStats() RunStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastStats
}

// Run 执行一次完整的流水线并返回快照
//
// 只要 ctx 在开始前没有被取消，总会返回一个结构完整的快照；
// 协作方失败会降级，落盘失败只记录日志。
func (e *Engine) Run(ctx context.Context, opts RunOptions) (*model.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	runAt := e.now().UTC()
	logger.Log.Infof("开始流水线运行: %s", runAt.Format(model.TimeLayout))

	batch := e.loader.Load()
	c := cache.Load(filepath.Join(e.cfg.Paths.OutputDir, CacheFile))

	stats := newRunStats()
	stats.Absent = batch.Absent

	events := make([]model.Event, 0, len(batch.News)+len(batch.Government)+len(batch.Weather))
	for _, item := range batch.Items() {
		if ev, ok := e.process(ctx, item, c, stats.Sources[item.Source()]); ok {
			events = append(events, ev)
		}
	}
	for _, src := range []model.Source{model.SourceNews, model.SourceGovernment, model.SourceWeather} {
		st := stats.Sources[src]
		if st.New > 0 || st.Cached > 0 {
			logger.Log.WithFields(logrus.Fields{
				"source":  src,
				"new":     st.New,
				"cached":  st.Cached,
				"skipped": st.Skipped,
			}).Info("来源处理完成")
		}
	}

	snap := &model.Snapshot{
		SnapshotID:   uuid.NewString(),
		RunTimestamp: runAt.Format(model.TimeLayout),
		OverallScore: model.OverallScore(events),
		EventsCount:  len(events),
		Events:       events,
	}
	stats.Events = len(events)

	stats.CacheAdded = c.Added()
	if wrote, err := c.Save(); err != nil {
		logger.Log.Errorf("保存去重缓存失败: %v", err)
	} else if wrote {
		logger.Log.Infof("[CACHE] 新增 %d 条指纹 (共 %d 条)", stats.CacheAdded, c.Len())
	}

	e.persist(ctx, snap, opts, runAt)

	e.mu.Lock()
	e.lastStats = stats
	e.mu.Unlock()

	logger.Log.Infof("流水线运行结束: %d 个事件, 总体得分 %.4f", snap.EventsCount, snap.OverallScore)
	return snap, nil
}

// persist 写入 live 快照、三类视图、历史与镜像。任何一步失败都只记录日志
func (e *Engine) persist(ctx context.Context, snap *model.Snapshot, opts RunOptions, runAt time.Time) {
	if err := e.files.WriteLive(snap); err != nil {
		logger.Log.Errorf("写入 live 快照失败: %v", err)
	}

	views, err := indicator.Generate(ctx, snap.Events, e.cfg.Policy, runAt)
	if err != nil {
		logger.Log.Errorf("生成指标视图失败: %v", err)
	} else {
		if err := e.files.WriteViews(views); err != nil {
			logger.Log.Errorf("写入指标视图失败: %v", err)
		}
		logger.Log.Infof("指标视图: 全国动态 %d 条, 经营环境 %d 条, 风险/机会 %d 条",
			len(views.National), len(views.Operational), len(views.Insights))
	}

	if opts.SaveHistory {
		if err := e.files.AppendHistory(snap); err != nil {
			logger.Log.Errorf("追加历史记录失败: %v", err)
		}
	}

	if e.mirror != nil {
		if err := e.mirror.SaveSnapshot(ctx, snap); err != nil {
			logger.Log.Errorf("快照写入数据库失败: %v", err)
		}
	}
}

// process 处理单个条目，返回是否产出事件
func (e *Engine) process(ctx context.Context, item source.Item, c *cache.Cache, st *SourceStats) (model.Event, bool) {
	var text, published string
	switch it := item.(type) {
	case source.NewsItem:
		text, published = source.ExtractText(it), it.Published
	case source.GovernmentItem:
		text, published = source.ExtractText(it.NewsItem), it.Published
	case source.WeatherRecord:
		text = source.CleanText(it.Text())
	}

	if utf8.RuneCountInString(text) < minTextLen || e.excluded(text) {
		st.Skipped++
		return model.Event{}, false
	}

	fp := cache.Fingerprint(text)
	if c.Contains(fp) {
		st.Cached++
		return model.Event{}, false
	}
	// 先记录指纹再打分，保证同一文本最多进入一次打分路径
	c.Add(fp)
	st.New++

	if w, ok := item.(source.WeatherRecord); ok {
		return e.weatherEvent(w, text), true
	}
	return e.scoreEvent(ctx, item.Source(), text, published), true
}

func (e *Engine) excluded(text string) bool {
	for _, ex := range e.cfg.Exclusions {
		if ex != "" && strings.Contains(text, ex) {
			return true
		}
	}
	return false
}

// scoreEvent 调用协作方为新闻/政府公告打分并标注行业影响
func (e *Engine) scoreEvent(ctx context.Context, src model.Source, text, published string) model.Event {
	opp := e.guard.ScoreOpportunity(ctx, text)

	category := ""
	if labels := e.guard.Classify(ctx, text, e.themes, false); len(labels) > 0 {
		category = labels[0].Name
	}

	impacts := e.impacts(opp.Score, e.guard.Classify(ctx, text, e.industries, true))

	return model.Event{
		ID:                    uuid.NewString(),
		Timestamp:             e.timestamp(published),
		Source:                src,
		Text:                  text,
		ThematicCategory:      category,
		OpportunityScore:      model.Round4(opp.Score),
		OpportunityConfidence: model.Round4(opp.Confidence),
		Impacts:               impacts,
	}
}

// impacts 相关度超过阈值的行业按 机会分×相关度 计分；都不超过时给出 Other 兜底
func (e *Engine) impacts(opportunity float64, labels []scoring.Label) []model.Impact {
	th := e.cfg.Impact

	var out []model.Impact
	for _, l := range labels {
		if l.Relevance <= th.RelevanceThreshold {
			continue
		}
		score := model.Clamp(opportunity*l.Relevance, -1, 1)
		out = append(out, model.Impact{
			Industry:   l.Name,
			Score:      model.Round4(score),
			ImpactType: impactType(score, th.TypeThreshold),
			Relevance:  model.Round4(l.Relevance),
		})
	}

	if len(out) == 0 {
		out = append(out, model.Impact{
			Industry:   model.IndustryOther,
			Score:      model.Round4(model.Clamp(opportunity*th.FallbackRelevance, -1, 1)),
			ImpactType: model.ImpactNeutral,
			Relevance:  th.FallbackRelevance,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Score) > math.Abs(out[j].Score)
	})
	return out
}

func impactType(score, threshold float64) model.ImpactType {
	switch {
	case score > threshold:
		return model.ImpactOpportunity
	case score < -threshold:
		return model.ImpactThreat
	default:
		return model.ImpactNeutral
	}
}

// weatherEvent 天气记录不调用协作方：有预警为 -0.5，否则为 0
func (e *Engine) weatherEvent(w source.WeatherRecord, text string) model.Event {
	score := 0.0
	if w.HasWarnings {
		score = weatherWarningScore
	}
	return model.Event{
		ID:                    uuid.NewString(),
		Timestamp:             e.now().UTC().Format(model.TimeLayout),
		Source:                model.SourceWeather,
		Place:                 w.Place,
		Text:                  text,
		ThematicCategory:      model.CategoryWeather,
		OpportunityScore:      score,
		OpportunityConfidence: 1,
		Impacts: []model.Impact{{
			Industry:   model.IndustryWeather,
			Score:      score,
			ImpactType: model.ImpactWeatherReport,
			Relevance:  1,
		}},
	}
}

// timestamp 优先使用来源提供的发布时间，统一为 UTC；无法解析时原样保留
func (e *Engine) timestamp(published string) string {
	published = strings.TrimSpace(published)
	if published == "" {
		return e.now().UTC().Format(model.TimeLayout)
	}
	t, err := dateparse.ParseIn(published, time.UTC)
	if err != nil {
		logger.Log.Debugf("发布时间无法解析，原样保留: %q", published)
		return published
	}
	return t.UTC().Format(model.TimeLayout)
}
