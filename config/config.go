package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DatabaseURL   string
	OpsDBPath     string
	HTTPAddr      string
	UpstreamProxy string
	LogLevel      string
	Scheduler     SchedulerConfig
	Crawl         CrawlConfig
}

type SchedulerConfig struct {
	Interval time.Duration
	Cron     string
}

// CrawlConfig is the crawl plan: which index links to walk, how to build a
// detail URL from a code, and the pacing knobs. Throttle bounds and
// skip_unchanged are pointers so an explicit zero/false survives defaulting:
// omitting the throttle keys gets the stock window, writing zeros turns
// throttling off.
type CrawlConfig struct {
	Links             []string `yaml:"links"`
	DetailURLTemplate string   `yaml:"detail_url_template"`
	PageConcurrency   int      `yaml:"page_concurrency"`
	DetailConcurrency int      `yaml:"detail_concurrency"`
	SaveBatchSize     int      `yaml:"save_batch_size"`
	ThrottleMinMs     *int     `yaml:"throttle_min_ms"`
	ThrottleMaxMs     *int     `yaml:"throttle_max_ms"`
	SkipUnchanged     *bool    `yaml:"skip_unchanged"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		OpsDBPath:     getEnv("OPS_DB_PATH", "flatsync.db"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		UpstreamProxy: os.Getenv("UPSTREAM_PROXY"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		Scheduler: SchedulerConfig{
			Cron: os.Getenv("CRAWL_CRON"),
		},
	}

	if interval := os.Getenv("CRAWL_INTERVAL"); interval != "" {
		d, err := time.ParseDuration(interval)
		if err == nil {
			cfg.Scheduler.Interval = d
		}
	}

	crawlPath := getEnv("CRAWL_CONFIG", "config/crawl.yaml")
	if err := cfg.loadCrawlConfig(crawlPath); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadCrawlConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read crawl config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &c.Crawl); err != nil {
		return fmt.Errorf("parse crawl config %s: %w", path, err)
	}

	c.Crawl.applyDefaults()
	return c.Crawl.validate()
}

func (cc *CrawlConfig) applyDefaults() {
	if cc.PageConcurrency <= 0 {
		cc.PageConcurrency = 6
	}
	if cc.DetailConcurrency <= 0 {
		cc.DetailConcurrency = 32
	}
	if cc.SaveBatchSize <= 0 {
		cc.SaveBatchSize = 400
	}
	if cc.ThrottleMinMs == nil {
		v := 50
		cc.ThrottleMinMs = &v
	}
	if cc.ThrottleMaxMs == nil {
		v := 150
		cc.ThrottleMaxMs = &v
	}
	if *cc.ThrottleMinMs < 0 {
		*cc.ThrottleMinMs = 0
	}
	if *cc.ThrottleMaxMs < *cc.ThrottleMinMs {
		*cc.ThrottleMaxMs = *cc.ThrottleMinMs
	}
	if cc.SkipUnchanged == nil {
		t := true
		cc.SkipUnchanged = &t
	}
}

// ThrottleMin is the lower throttle bound; zero means throttling is off.
func (cc *CrawlConfig) ThrottleMin() time.Duration {
	if cc.ThrottleMinMs == nil {
		return 0
	}
	return time.Duration(*cc.ThrottleMinMs) * time.Millisecond
}

// ThrottleMax is the upper throttle bound; zero means throttling is off.
func (cc *CrawlConfig) ThrottleMax() time.Duration {
	if cc.ThrottleMaxMs == nil {
		return 0
	}
	return time.Duration(*cc.ThrottleMaxMs) * time.Millisecond
}

func (cc *CrawlConfig) validate() error {
	if len(cc.Links) == 0 {
		return fmt.Errorf("crawl config: no links configured")
	}
	if !strings.Contains(cc.DetailURLTemplate, "{code}") {
		return fmt.Errorf("crawl config: detail_url_template must contain {code}")
	}
	return nil
}

// SkipUnchangedEnabled reports the skip-unchanged flag with its default.
func (cc *CrawlConfig) SkipUnchangedEnabled() bool {
	return cc.SkipUnchanged == nil || *cc.SkipUnchanged
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
