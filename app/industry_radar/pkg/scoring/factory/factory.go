package factory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/config"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/inference"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring"
)

// probeTimeout 启动时探测单个后端的最长时间
const probeTimeout = 5 * time.Second

var errUnknownBackend = errors.New("unknown scoring backend")

// NewBackend 按配置的回退链返回第一个可用的后端。
// 链上全部不可用时退化为 neutral。只在启动时调用一次
func NewBackend(ctx context.Context, cfg *config.Config) (scoring.Backend, error) {
	for _, name := range cfg.Scoring.Backends {
		b, err := newBackend(ctx, cfg, name)
		if errors.Is(err, errUnknownBackend) {
			return nil, err
		}
		if err != nil {
			logger.Log.Infof("打分后端 [%s] 不可用，尝试下一个: %v", name, err)
			continue
		}
		logger.Log.Infof("使用打分后端: %s", b.Name())
		return b, nil
	}

	logger.Log.Warnf("回退链 %v 中没有可用的打分后端，使用 neutral 降级模式", cfg.Scoring.Backends)
	return scoring.Neutral{}, nil
}

// NewGuard 解析后端并包装为带超时和降级的 Guard
func NewGuard(ctx context.Context, cfg *config.Config) (*scoring.Guard, scoring.Backend, error) {
	b, err := NewBackend(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return scoring.NewGuard(b, b, cfg.Scoring.CallTimeout), b, nil
}

func newBackend(ctx context.Context, cfg *config.Config, name string) (scoring.Backend, error) {
	switch name {
	case config.BackendInference:
		baseURL := cfg.Scoring.Inference.BaseURL
		if baseURL == "" {
			return nil, fmt.Errorf("inference base url is missing")
		}
		c := inference.NewClient(baseURL, cfg.Scoring.Inference.Timeout)
		if err := probe(ctx, c); err != nil {
			return nil, err
		}
		return c, nil

	case config.BackendLLM:
		return scoring.NewLLM(ctx, scoring.LLMOptions{
			BaseURL: cfg.Scoring.LLM.BaseURL,
			APIKey:  cfg.Scoring.LLM.APIKey,
			Model:   cfg.Scoring.LLM.Model,
			RPM:     cfg.Concurrency.RPM,
			QPS:     cfg.Concurrency.QPS,
		})

	case config.BackendRules:
		return scoring.Rules{}, nil

	case config.BackendNeutral:
		return scoring.Neutral{}, nil

	default:
		return nil, fmt.Errorf("%w: %s", errUnknownBackend, name)
	}
}

func probe(ctx context.Context, p scoring.Prober) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := p.Probe(ctx); err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	return nil
}
