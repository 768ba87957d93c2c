package scoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/logger"
)

// LLMOptions LLM 后端配置
type LLMOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	RPM     int
	QPS     int
}

// LLM 通过 OpenAI 兼容的对话模型完成打分和分类
type LLM struct {
	cm         einomodel.BaseChatModel
	limiter    *rate.Limiter
	maxRetries int
	baseDelay  time.Duration
}

var _ Backend = (*LLM)(nil)

// ErrLLMNotConfigured 未配置模型名或 API Key
var ErrLLMNotConfigured = errors.New("llm model or api key not configured")

// NewLLM 创建 LLM 后端
func NewLLM(ctx context.Context, opts LLMOptions) (*LLM, error) {
	if opts.Model == "" || opts.APIKey == "" {
		return nil, ErrLLMNotConfigured
	}

	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: opts.BaseURL,
		APIKey:  opts.APIKey,
		Model:   opts.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("LLM 初始化失败: %w", err)
	}
	return NewLLMWithModel(cm, newLimiter(opts.RPM, opts.QPS)), nil
}

// NewLLMWithModel 使用已有的对话模型创建后端
func NewLLMWithModel(cm einomodel.BaseChatModel, limiter *rate.Limiter) *LLM {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &LLM{
		cm:         cm,
		limiter:    limiter,
		maxRetries: 3,
		baseDelay:  2 * time.Second,
	}
}

func newLimiter(rpm, qps int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	burst := qps
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
}

func (l *LLM) Name() string { return "llm" }

const scorePrompt = `你是一名斯里兰卡宏观经济与行业分析师。请判断下面这条新闻对当地企业经营环境的影响。
请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{"score": -0.6, "confidence": 0.8}
score 为 -1 到 1 之间的小数，负数表示风险，正数表示机会，0 表示无明显影响；confidence 为 0 到 1 之间的小数。

新闻：%s`

const classifySinglePrompt = `请从候选标签中为下面这条新闻选择最合适的分类，并给每个标签打分，所有分数之和为 1。
请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{"scores": {"标签名": 0.7}}
候选标签：%s

新闻：%s`

const classifyMultiPrompt = `请判断下面这条新闻与每个候选行业的相关程度，每个行业独立打分（0 到 1 之间），分数之和不需要为 1。
请务必严格按照以下 JSON 格式返回，不要包含任何 markdown 标记：
{"scores": {"行业名": 0.7}}
候选行业：%s

新闻：%s`

// ScoreOpportunity 计算机会分
func (l *LLM) ScoreOpportunity(ctx context.Context, text string) (Opportunity, error) {
	var o Opportunity
	if err := l.generateJSON(ctx, fmt.Sprintf(scorePrompt, text), &o); err != nil {
		return Opportunity{}, err
	}
	return o, nil
}

// Classify 分类
func (l *LLM) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]Label, error) {
	tpl := classifySinglePrompt
	if multiLabel {
		tpl = classifyMultiPrompt
	}
	candidates, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("marshal labels: %w", err)
	}

	var resp struct {
		Scores map[string]float64 `json:"scores"`
	}
	if err := l.generateJSON(ctx, fmt.Sprintf(tpl, candidates, text), &resp); err != nil {
		return nil, err
	}

	out := make([]Label, 0, len(resp.Scores))
	for _, name := range labels {
		if s, ok := resp.Scores[name]; ok {
			out = append(out, Label{Name: name, Relevance: s})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("llm returned no known labels")
	}
	return out, nil
}

// generateJSON 调用模型并把输出解析到 v。遇到 429 时指数退避重试，JSON 解析失败也会重试
func (l *LLM) generateJSON(ctx context.Context, prompt string, v any) error {
	var lastErr error

	for i := 0; i <= l.maxRetries; i++ {
		if err := l.limiter.Wait(ctx); err != nil {
			return err
		}

		messages := []*schema.Message{
			{Role: schema.System, Content: "你是一个 JSON 生成器。请只输出 JSON 字符串。"},
			{Role: schema.User, Content: prompt},
		}

		resp, err := l.cm.Generate(ctx, messages)
		if err != nil {
			if !isRateLimited(err) {
				return fmt.Errorf("llm generate: %w", err)
			}
			lastErr = err
			if i < l.maxRetries {
				delay := l.baseDelay * time.Duration(1<<i)
				logger.Log.Warnf("LLM 触发限流，%s 后重试 (%d/%d)", delay, i+1, l.maxRetries)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
			}
			continue
		}

		if err := json.Unmarshal([]byte(cleanJSON(resp.Content)), v); err != nil {
			lastErr = fmt.Errorf("json unmarshal: %w", err)
			logger.Log.Debugf("LLM 输出无法解析: %s", resp.Content)
			continue
		}
		return nil
	}
	return fmt.Errorf("failed after retries: %w", lastErr)
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

// cleanJSON 去掉模型输出中的 ```json 代码块标记
func cleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
