package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/iWorld-y/industry_radar/app/industry_radar/pkg/indicator"
)

// 支持的打分后端名称
const (
	BackendInference = "inference"
	BackendLLM       = "llm"
	BackendRules     = "rules"
	BackendNeutral   = "neutral"
)

// Config 项目配置结构体
type Config struct {
	Paths       PathsConfig       `yaml:"paths"`
	Sources     SourcesConfig     `yaml:"sources"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Scoring     ScoringConfig     `yaml:"scoring"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Impact      ImpactConfig      `yaml:"impact"`
	Policy      indicator.Policy  `yaml:"policy"`
	Exclusions  []string          `yaml:"exclusions"`
	Log         LogConfig         `yaml:"log"`
	DB          DBConfig          `yaml:"db"`
}

// PathsConfig 输出目录配置
type PathsConfig struct {
	OutputDir  string `yaml:"output_dir"`
	HistoryDir string `yaml:"history_dir"`
}

// SourcesConfig 三个固定输入文件，不会读取其他任何路径
type SourcesConfig struct {
	News       string `yaml:"news"`
	Government string `yaml:"government"`
	Weather    string `yaml:"weather"`
}

// SchedulerConfig 调度相关配置
type SchedulerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Poll     time.Duration `yaml:"poll"`
}

// ScoringConfig 打分协作方配置，Backends 为按优先级排列的回退链
type ScoringConfig struct {
	Backends    []string        `yaml:"backends"`
	CallTimeout time.Duration   `yaml:"call_timeout"`
	Inference   InferenceConfig `yaml:"inference"`
	LLM         LLMConfig       `yaml:"llm"`
}

// InferenceConfig 模型推理服务配置
type InferenceConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout int    `yaml:"timeout"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// ConcurrencyConfig 并发控制配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// ImpactConfig 行业影响阈值
type ImpactConfig struct {
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	TypeThreshold      float64 `yaml:"type_threshold"`
	FallbackRelevance  float64 `yaml:"fallback_relevance"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DBConfig 数据库相关配置，Host 为空时不启用
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Default 返回默认配置
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			OutputDir:  "output",
			HistoryDir: "history",
		},
		Sources: SourcesConfig{
			News:       "jsons/sri_lanka_news.json",
			Government: "jsons/government_news.json",
			Weather:    "jsons/srilanka_weather.json",
		},
		Scheduler: SchedulerConfig{
			Interval: time.Hour,
			Poll:     time.Second,
		},
		Scoring: ScoringConfig{
			Backends:    []string{BackendInference, BackendLLM, BackendRules, BackendNeutral},
			CallTimeout: 30 * time.Second,
			Inference:   InferenceConfig{Timeout: 30},
		},
		Concurrency: ConcurrencyConfig{QPS: 1, RPM: 60},
		Impact: ImpactConfig{
			RelevanceThreshold: 0.1,
			TypeThreshold:      0.05,
			FallbackRelevance:  0.5,
		},
		Policy:     indicator.DefaultPolicy(),
		Exclusions: []string{"Downloads"},
		Log:        LogConfig{Level: "info"},
		DB:         DBConfig{Port: 5432},
	}
}

// LoadConfig 从指定路径加载配置，文件不存在时返回默认配置
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be positive, got %s", c.Scheduler.Interval)
	}
	if c.Scheduler.Poll <= 0 {
		return fmt.Errorf("scheduler.poll must be positive, got %s", c.Scheduler.Poll)
	}
	if c.Scoring.CallTimeout <= 0 {
		return fmt.Errorf("scoring.call_timeout must be positive, got %s", c.Scoring.CallTimeout)
	}
	if len(c.Scoring.Backends) == 0 {
		return errors.New("scoring.backends is empty")
	}
	for _, b := range c.Scoring.Backends {
		switch b {
		case BackendInference, BackendLLM, BackendRules, BackendNeutral:
		default:
			return fmt.Errorf("unknown scoring backend: %s", b)
		}
	}
	if c.Sources.News == "" || c.Sources.Government == "" || c.Sources.Weather == "" {
		return errors.New("sources.news, sources.government and sources.weather are required")
	}
	if c.Paths.OutputDir == "" || c.Paths.HistoryDir == "" {
		return errors.New("paths.output_dir and paths.history_dir are required")
	}
	return nil
}
