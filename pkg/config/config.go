package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 服務整體設定
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	LLM         LLMConfig         `yaml:"llm"`
	News        NewsConfig        `yaml:"news"`
	Price       PriceConfig       `yaml:"price"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	DB          DBConfig          `yaml:"db"`
	Credits     CreditsConfig     `yaml:"credits"`
	Refresh     RefreshConfig     `yaml:"refresh"`
}

// ServerConfig HTTP 服務設定
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Timeout string `yaml:"timeout"`
}

// LLMConfig LLM 相關設定
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// NewsConfig 新聞抓取設定
type NewsConfig struct {
	Queries         []string `yaml:"queries"`           // 多主題查詢關鍵字
	QualityMin      int      `yaml:"quality_min"`       // 單來源最低可接受則數
	MaxTotal        int      `yaml:"max_total"`         // 彙整後上限則數
	MinTitleLen     int      `yaml:"min_title_len"`     // 標題最短字數
	PerQueryTimeout int      `yaml:"per_query_timeout"` // 單查詢逾時（秒）
	Proxies         []string `yaml:"proxies"`           // CORS 代理前綴，依序嘗試
	PolitenessMS    int      `yaml:"politeness_ms"`     // 連續查詢間的禮貌延遲
}

// SymbolConfig 單一商品的報價設定
type SymbolConfig struct {
	YahooURL   string  `yaml:"yahoo_url"`
	PageURL    string  `yaml:"page_url"`
	BasePrice  float64 `yaml:"base_price"`
	Volatility float64 `yaml:"volatility"`
	MinSane    float64 `yaml:"min_sane"` // 低於此值視為抓錯節點
	Currency   string  `yaml:"currency"`
	Unit       string  `yaml:"unit"`
}

// PriceConfig 商品報價設定
type PriceConfig struct {
	Gold          SymbolConfig `yaml:"gold"`
	Wheat         SymbolConfig `yaml:"wheat"`
	ProxyPrefix   string       `yaml:"proxy_prefix"`
	FetchTimeout  int          `yaml:"fetch_timeout"`  // 秒
	ScrapeTimeout int          `yaml:"scrape_timeout"` // 秒
}

// LogConfig 日誌設定
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 併發與限流設定
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// DBConfig 資料庫設定，Host 留空則停用持久化
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// CreditsConfig 點數額度設定
type CreditsConfig struct {
	MonthlyQuota float64 `yaml:"monthly_quota"`
}

// RefreshConfig 背景快照更新設定
type RefreshConfig struct {
	Enabled bool   `yaml:"enabled"`
	Spec    string `yaml:"spec"` // cron 表達式，例如 "@every 15m"
}

// LoadConfig 從指定路徑載入設定並套用環境變數覆寫
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// 機密一律允許以環境變數覆寫
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_BASE_URL"); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		cfg.DB.Password = v
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
	if c.News.QualityMin <= 0 {
		c.News.QualityMin = 3
	}
	if c.News.MaxTotal <= 0 {
		c.News.MaxTotal = 12
	}
	if c.News.MinTitleLen <= 0 {
		c.News.MinTitleLen = 15
	}
	if c.News.PerQueryTimeout <= 0 {
		c.News.PerQueryTimeout = 2
	}
	if c.News.PolitenessMS <= 0 {
		c.News.PolitenessMS = 500
	}
	if len(c.News.Queries) == 0 {
		c.News.Queries = []string{"台海 軍事", "兩岸 關係"}
	}
	if c.Price.FetchTimeout <= 0 {
		c.Price.FetchTimeout = 3
	}
	if c.Price.ScrapeTimeout <= 0 {
		c.Price.ScrapeTimeout = 10
	}
	if c.Price.Gold == (SymbolConfig{}) {
		c.Price.Gold = SymbolConfig{
			YahooURL:   "https://query1.finance.yahoo.com/v8/finance/chart/GC=F",
			PageURL:    "https://www.investing.com/commodities/gold",
			BasePrice:  2650,
			Volatility: 0.02,
			MinSane:    1000,
			Currency:   "USD",
			Unit:       "盎司",
		}
	}
	if c.Price.Wheat == (SymbolConfig{}) {
		c.Price.Wheat = SymbolConfig{
			YahooURL:   "https://query1.finance.yahoo.com/v8/finance/chart/ZW=F",
			PageURL:    "https://www.investing.com/commodities/us-wheat",
			BasePrice:  550,
			Volatility: 0.02,
			MinSane:    100,
			Currency:   "USD",
			Unit:       "蒲式耳",
		}
	}
	if c.Concurrency.QPS <= 0 {
		c.Concurrency.QPS = 1
	}
	if c.Concurrency.RPM <= 0 {
		c.Concurrency.RPM = 30
	}
	if c.Credits.MonthlyQuota <= 0 {
		c.Credits.MonthlyQuota = 1000
	}
	if c.Refresh.Spec == "" {
		c.Refresh.Spec = "@every 15m"
	}
	if c.ServerTimeout() <= 0 {
		c.Server.Timeout = "30s"
	}
}

// ServerTimeout 解析 HTTP 服務逾時
func (c *Config) ServerTimeout() time.Duration {
	d, err := time.ParseDuration(c.Server.Timeout)
	if err != nil {
		return 0
	}
	return d
}
