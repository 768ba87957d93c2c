package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/indicator"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/model"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/storage"
)

// fakeBackend 按文本返回预设结果
type fakeBackend struct {
	mu         sync.Mutex
	scores     map[string]scoring.Opportunity
	themes     map[string]string
	industries map[string][]scoring.Label
	err        error
	scoreCalls int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ScoreOpportunity(_ context.Context, text string) (scoring.Opportunity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreCalls++
	if f.err != nil {
		return scoring.Opportunity{}, f.err
	}
	return f.scores[text], nil
}

func (f *fakeBackend) Classify(_ context.Context, text string, _ []string, multiLabel bool) ([]scoring.Label, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if multiLabel {
		return f.industries[text], nil
	}
	if theme, ok := f.themes[text]; ok {
		return []scoring.Label{{Name: theme, Relevance: 1}}, nil
	}
	return nil, nil
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreCalls
}

type fakeMirror struct {
	saved []*model.Snapshot
	err   error
}

func (m *fakeMirror) SaveSnapshot(_ context.Context, snap *model.Snapshot) error {
	m.saved = append(m.saved, snap)
	return m.err
}

type failingWriter struct{}

func (failingWriter) WriteLive(*model.Snapshot) error     { return errors.New("disk full") }
func (failingWriter) AppendHistory(*model.Snapshot) error { return errors.New("disk full") }
func (failingWriter) WriteViews(*indicator.Views) error   { return errors.New("disk full") }

var fixedNow = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fixture struct {
	cfg     *config.Config
	store   *storage.FileStore
	backend *fakeBackend
	engine  *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(dir, "output")
	cfg.Paths.HistoryDir = filepath.Join(dir, "history")
	cfg.Sources.News = filepath.Join(dir, "news.json")
	cfg.Sources.Government = filepath.Join(dir, "government.json")
	cfg.Sources.Weather = filepath.Join(dir, "weather.json")

	store := storage.NewFileStore(cfg.Paths.OutputDir, cfg.Paths.HistoryDir)
	require.NoError(t, store.EnsureDirs())

	backend := &fakeBackend{
		scores:     map[string]scoring.Opportunity{},
		themes:     map[string]string{},
		industries: map[string][]scoring.Label{},
	}
	e := NewEngine(cfg, scoring.NewGuard(backend, backend, time.Second), store, nil)
	e.now = func() time.Time { return fixedNow }

	return &fixture{cfg: cfg, store: store, backend: backend, engine: e}
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func (f *fixture) run(t *testing.T) *model.Snapshot {
	t.Helper()
	snap, err := f.engine.Run(context.Background(), RunOptions{SaveHistory: true})
	require.NoError(t, err)
	return snap
}

func TestRun_CycloneWarning(t *testing.T) {
	f := newFixture(t)

	text := "Cyclone warning issued for coastal districts"
	f.backend.scores[text] = scoring.Opportunity{Score: -0.7, Confidence: 0.9}
	f.backend.themes[text] = "Extreme Weather Events"
	f.backend.industries[text] = []scoring.Label{{Name: "Fisheries", Relevance: 0.8}, {Name: "Tourism", Relevance: 0.3}}
	writeJSON(t, f.cfg.Sources.News, []any{map[string]string{"title": text}})

	snap := f.run(t)
	require.Equal(t, 1, snap.EventsCount)
	ev := snap.Events[0]
	assert.Equal(t, model.SourceNews, ev.Source)
	assert.Equal(t, text, ev.Text)
	assert.Equal(t, "Extreme Weather Events", ev.ThematicCategory)
	assert.InDelta(t, -0.7, ev.OpportunityScore, 1e-9)
	assert.InDelta(t, -0.7, snap.OverallScore, 1e-9)

	require.Len(t, ev.Impacts, 2)
	assert.Equal(t, "Fisheries", ev.Impacts[0].Industry)
	assert.Equal(t, model.ImpactThreat, ev.Impacts[0].ImpactType)
	assert.InDelta(t, -0.56, ev.Impacts[0].Score, 1e-9)
	assert.Equal(t, "Tourism", ev.Impacts[1].Industry)
	assert.Equal(t, model.ImpactThreat, ev.Impacts[1].ImpactType)

	national := indicator.National(snap.Events, f.cfg.Policy)
	require.Len(t, national, 1)
	assert.Equal(t, ev.ID, national[0].ID)
}

func TestRun_DuplicateTextScoredOnce(t *testing.T) {
	f := newFixture(t)
	text := "Central bank holds policy rates steady"
	writeJSON(t, f.cfg.Sources.News, []any{
		map[string]string{"title": text},
		map[string]string{"title": "  central bank holds   policy rates steady "},
	})

	snap := f.run(t)
	assert.Equal(t, 1, snap.EventsCount)
	assert.Equal(t, 1, f.backend.calls())

	stats := f.engine.LastStats()
	assert.Equal(t, 1, stats.CacheAdded)
	assert.Equal(t, 1, stats.Sources[model.SourceNews].New)
	assert.Equal(t, 1, stats.Sources[model.SourceNews].Cached)
}

func TestRun_DedupAcrossRuns(t *testing.T) {
	f := newFixture(t)
	writeJSON(t, f.cfg.Sources.News, []any{"Tea exports rise sharply in September"})

	first := f.run(t)
	assert.Equal(t, 1, first.EventsCount)

	second := f.run(t)
	assert.Equal(t, 0, second.EventsCount)
	assert.Equal(t, 0.0, second.OverallScore)
	assert.Equal(t, 1, f.backend.calls())
	assert.Equal(t, 0, f.engine.LastStats().CacheAdded)

	_, err := os.Stat(filepath.Join(f.cfg.Paths.OutputDir, CacheFile))
	assert.NoError(t, err)
}

func TestRun_Weather(t *testing.T) {
	f := newFixture(t)
	writeJSON(t, f.cfg.Sources.Weather, map[string]any{
		"Colombo": map[string]any{"warnings": []string{"High Wind"}},
		"Kandy":   map[string]any{"weather_description": "light rain", "temperature": 24.5},
	})

	snap := f.run(t)
	require.Equal(t, 2, snap.EventsCount)
	assert.Equal(t, 0, f.backend.calls(), "weather records are not scored by collaborators")

	colombo := snap.Events[0]
	assert.Equal(t, "Colombo", colombo.Place)
	assert.Equal(t, model.SourceWeather, colombo.Source)
	assert.Equal(t, -0.5, colombo.OpportunityScore)
	assert.Equal(t, 1.0, colombo.OpportunityConfidence)
	assert.Equal(t, model.CategoryWeather, colombo.ThematicCategory)
	assert.Equal(t, []model.Impact{{
		Industry:   model.IndustryWeather,
		Score:      -0.5,
		ImpactType: model.ImpactWeatherReport,
		Relevance:  1,
	}}, colombo.Impacts)
	assert.Equal(t, "2026-10-19T08:00:00Z", colombo.Timestamp)

	kandy := snap.Events[1]
	assert.Equal(t, "Kandy", kandy.Place)
	assert.Equal(t, 0.0, kandy.OpportunityScore)
	assert.Contains(t, kandy.Text, "light rain")

	assert.Empty(t, indicator.National(snap.Events, f.cfg.Policy))
	assert.Empty(t, indicator.Operational(snap.Events, f.cfg.Policy))
}

func TestRun_AllSourcesAbsent(t *testing.T) {
	f := newFixture(t)

	snap := f.run(t)
	assert.Equal(t, 0, snap.EventsCount)
	assert.Equal(t, 0.0, snap.OverallScore)
	assert.NotNil(t, snap.Events)
	assert.NotEmpty(t, snap.SnapshotID)
	assert.Equal(t, "2026-10-19T08:00:00Z", snap.RunTimestamp)
	assert.ElementsMatch(t,
		[]model.Source{model.SourceNews, model.SourceGovernment, model.SourceWeather},
		f.engine.LastStats().Absent)

	var live model.Snapshot
	data, err := os.ReadFile(f.store.LivePath())
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &live))
	assert.Equal(t, snap.SnapshotID, live.SnapshotID)

	for _, name := range []string{storage.NationalFile, storage.OperationalFile, storage.InsightsFile} {
		_, err := os.Stat(filepath.Join(f.cfg.Paths.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRun_ClampsCollaboratorOutput(t *testing.T) {
	f := newFixture(t)
	text := "Record tea auction prices lift estates"
	f.backend.scores[text] = scoring.Opportunity{Score: 3.2, Confidence: 7}
	f.backend.industries[text] = []scoring.Label{{Name: "Tea", Relevance: 1.8}}
	writeJSON(t, f.cfg.Sources.Government, []any{map[string]string{"headline": text}})

	snap := f.run(t)
	require.Equal(t, 1, snap.EventsCount)
	ev := snap.Events[0]
	assert.Equal(t, model.SourceGovernment, ev.Source)
	assert.Equal(t, 1.0, ev.OpportunityScore)
	assert.Equal(t, 1.0, ev.OpportunityConfidence)
	require.Len(t, ev.Impacts, 1)
	assert.Equal(t, 1.0, ev.Impacts[0].Score)
	assert.Equal(t, 1.0, ev.Impacts[0].Relevance)
	assert.Equal(t, model.ImpactOpportunity, ev.Impacts[0].ImpactType)
}

func TestRun_SkipsExcludedAndShortText(t *testing.T) {
	f := newFixture(t)
	writeJSON(t, f.cfg.Sources.News, []any{
		"Downloads: annual report PDF",
		"abc",
		map[string]int{"views": 12},
		"Port city investment zone opens",
	})

	snap := f.run(t)
	require.Equal(t, 1, snap.EventsCount)
	assert.Equal(t, "Port city investment zone opens", snap.Events[0].Text)
	assert.Equal(t, 3, f.engine.LastStats().Sources[model.SourceNews].Skipped)
}

func TestRun_FallbackAndDegradedCollaborator(t *testing.T) {
	f := newFixture(t)
	f.backend.err = errors.New("collaborator offline")
	writeJSON(t, f.cfg.Sources.News, []any{"Parliament debates the new budget"})

	snap := f.run(t)
	require.Equal(t, 1, snap.EventsCount)
	ev := snap.Events[0]
	assert.Equal(t, scoring.NeutralScore, ev.OpportunityScore)
	assert.Equal(t, scoring.NeutralConfidence, ev.OpportunityConfidence)
	assert.Equal(t, f.engine.themes[0], ev.ThematicCategory)

	// 均匀分布下 12 个行业的相关度都不超过阈值，落到 Other
	require.Len(t, ev.Impacts, 1)
	assert.Equal(t, model.Impact{
		Industry:   model.IndustryOther,
		Score:      0,
		ImpactType: model.ImpactNeutral,
		Relevance:  0.5,
	}, ev.Impacts[0])
}

func TestImpacts_FallbackCarriesOpportunity(t *testing.T) {
	f := newFixture(t)
	got := f.engine.impacts(-0.6, []scoring.Label{{Name: "Tea", Relevance: 0.05}})
	assert.Equal(t, []model.Impact{{
		Industry:   model.IndustryOther,
		Score:      -0.3,
		ImpactType: model.ImpactNeutral,
		Relevance:  0.5,
	}}, got)

	got = f.engine.impacts(0.4, []scoring.Label{
		{Name: "Tea", Relevance: 0.2},
		{Name: "Rubber", Relevance: 0.9},
		{Name: "Coconut", Relevance: 0.11},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Rubber", got[0].Industry)
	assert.Equal(t, "Tea", got[1].Industry)
	assert.Equal(t, model.ImpactOpportunity, got[1].ImpactType)
	assert.Equal(t, model.ImpactNeutral, got[2].ImpactType)
}

func TestTimestamp(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: "2026-10-19T08:00:00Z"},
		{in: "2026-10-18 21:15:00", want: "2026-10-18T21:15:00Z"},
		{in: "Mon, 19 Oct 2026 14:00:00 +0530", want: "2026-10-19T08:30:00Z"},
		{in: "unknown", want: "unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, f.engine.timestamp(tt.in), tt.in)
	}
}

func TestRun_HistoryAndMirror(t *testing.T) {
	f := newFixture(t)
	mirror := &fakeMirror{err: errors.New("connection refused")}
	f.engine.mirror = mirror

	_, err := f.engine.Run(context.Background(), RunOptions{SaveHistory: false})
	require.NoError(t, err)
	history, err := f.store.ReadHistory(0)
	require.NoError(t, err)
	assert.Empty(t, history)

	snap, err := f.engine.Run(context.Background(), RunOptions{SaveHistory: true})
	require.NoError(t, err)
	history, err = f.store.ReadHistory(0)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, snap.SnapshotID, history[0].SnapshotID)

	require.Len(t, mirror.saved, 2)
	assert.Same(t, snap, mirror.saved[1])
}

func TestRun_WriterFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	f.engine.files = failingWriter{}
	writeJSON(t, f.cfg.Sources.News, []any{"Colombo stock exchange closes higher"})

	snap, err := f.engine.Run(context.Background(), RunOptions{SaveHistory: true})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.EventsCount)
}

func TestRun_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snap, err := f.engine.Run(ctx, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, snap)
}

func TestRun_LogsSourceStatsAsFields(t *testing.T) {
	var buf bytes.Buffer
	old := logger.Log.Out
	logger.Log.SetOutput(&buf)
	t.Cleanup(func() { logger.Log.SetOutput(old) })

	f := newFixture(t)
	writeJSON(t, f.cfg.Sources.News, []any{"Fuel prices cut from midnight", "abc"})
	f.run(t)

	assert.Contains(t, buf.String(), "来源处理完成 cached=0 new=1 skipped=1 source=news")
}
