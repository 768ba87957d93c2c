package scoring

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
)

// Guard 包装打分和分类后端：每次调用都有超时，出错或 panic 时退化为中性结果，
// 输出会被限制在合法区间。Guard 的方法不会返回错误。
type Guard struct {
	scorer     OpportunityScorer
	classifier Classifier
	timeout    time.Duration
	failures   atomic.Int64
}

// NewGuard 创建 Guard，timeout <= 0 时不设超时
func NewGuard(scorer OpportunityScorer, classifier Classifier, timeout time.Duration) *Guard {
	return &Guard{scorer: scorer, classifier: classifier, timeout: timeout}
}

// ScoreOpportunity 计算机会分，失败时返回 (0, 0.5)
func (g *Guard) ScoreOpportunity(ctx context.Context, text string) Opportunity {
	o, err := guarded(ctx, g.timeout, func(ctx context.Context) (Opportunity, error) {
		return g.scorer.ScoreOpportunity(ctx, text)
	})
	if err != nil {
		g.failures.Add(1)
		logger.Log.Warnf("机会分打分失败，使用中性分: %v", err)
		return Opportunity{Score: NeutralScore, Confidence: NeutralConfidence}
	}
	return ClampOpportunity(o)
}

// Classify 分类，失败时返回均匀分布的标签
func (g *Guard) Classify(ctx context.Context, text string, labels []string, multiLabel bool) []Label {
	got, err := guarded(ctx, g.timeout, func(ctx context.Context) ([]Label, error) {
		return g.classifier.Classify(ctx, text, labels, multiLabel)
	})
	if err != nil {
		g.failures.Add(1)
		logger.Log.Warnf("分类失败，使用均匀分布: %v", err)
		return Uniform(labels)
	}
	return NormalizeLabels(got, labels, multiLabel)
}

// Failures 累计的降级次数
func (g *Guard) Failures() int64 {
	return g.failures.Load()
}

type result[T any] struct {
	v   T
	err error
}

// guarded 在独立 goroutine 中执行 fn，超时或 ctx 取消时不再等待其返回
func guarded[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch := make(chan result[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- result[T]{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		ch <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("collaborator call aborted: %w", ctx.Err())
	}
}
