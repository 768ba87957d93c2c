// Package inference 模型推理服务客户端：机会分回归模型与零样本分类模型。
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/scoring"
)

// Client 推理服务 HTTP 客户端
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient 创建推理服务客户端，timeout 单位为秒，0 表示 30 秒
func NewClient(baseURL string, timeout int) *Client {
	t := time.Duration(timeout) * time.Second
	if t == 0 {
		t = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		timeout: t,
		client: &http.Client{
			Timeout: t,
		},
	}
}

// Ensure Client implements scoring.Backend
var (
	_ scoring.Backend = (*Client)(nil)
	_ scoring.Prober  = (*Client)(nil)
)

func (c *Client) Name() string { return "inference" }

type scoreRequest struct {
	Text string `json:"text"`
}

type classifyRequest struct {
	Text       string   `json:"text"`
	Labels     []string `json:"labels"`
	MultiLabel bool     `json:"multi_label"`
}

// classifyResponse 与 zero-shot pipeline 的输出一致：labels 与 scores 一一对应
type classifyResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// Probe 检查推理服务是否可用
func (c *Client) Probe(ctx context.Context) error {
	res, err := c.do(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return err
	}
	res.Body.Close()
	return nil
}

// ScoreOpportunity 调用机会分模型
func (c *Client) ScoreOpportunity(ctx context.Context, text string) (scoring.Opportunity, error) {
	res, err := c.do(ctx, http.MethodPost, "/score", scoreRequest{Text: text})
	if err != nil {
		return scoring.Opportunity{}, err
	}
	defer res.Body.Close()

	var o scoring.Opportunity
	if err := json.NewDecoder(res.Body).Decode(&o); err != nil {
		return scoring.Opportunity{}, fmt.Errorf("decode response failed: %w", err)
	}
	return o, nil
}

// Classify 调用零样本分类模型
func (c *Client) Classify(ctx context.Context, text string, labels []string, multiLabel bool) ([]scoring.Label, error) {
	res, err := c.do(ctx, http.MethodPost, "/classify", classifyRequest{Text: text, Labels: labels, MultiLabel: multiLabel})
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	var cr classifyResponse
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if len(cr.Labels) != len(cr.Scores) {
		return nil, fmt.Errorf("inference api returned %d labels and %d scores", len(cr.Labels), len(cr.Scores))
	}

	out := make([]scoring.Label, len(cr.Labels))
	for i, name := range cr.Labels {
		out[i] = scoring.Label{Name: name, Relevance: cr.Scores[i]}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	u = u.JoinPath(path)

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request failed: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		defer res.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, fmt.Errorf("inference api error (status %d): %s", res.StatusCode, string(msg))
	}
	return res, nil
}
