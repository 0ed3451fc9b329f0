// Package config loads the scraper configuration from config.yaml, DBD_*
// environment variables and built-in defaults.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dbd-scraper/internal/financial"
)

// Config holds the full application configuration.
type Config struct {
	Site       SiteConfig       `yaml:"site" mapstructure:"site"`
	Input      InputConfig      `yaml:"input" mapstructure:"input"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Processing ProcessingConfig `yaml:"processing" mapstructure:"processing"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Browser    BrowserConfig    `yaml:"browser" mapstructure:"browser"`
	Extraction ExtractionConfig `yaml:"extraction" mapstructure:"extraction"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// SiteConfig configures the registry site and the HTTP session.
type SiteConfig struct {
	BaseURL           string        `yaml:"base_url" mapstructure:"base_url"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent"`
	RequestTimeout    time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	HTTPRetries       int           `yaml:"http_retries" mapstructure:"http_retries"`
}

// InputConfig describes the company list.
type InputConfig struct {
	File          string `yaml:"file" mapstructure:"file"`
	CompanyColumn string `yaml:"company_column" mapstructure:"company_column"`
	RegColumn     string `yaml:"reg_column" mapstructure:"reg_column"`
	Sheet         string `yaml:"sheet" mapstructure:"sheet"`
	FilterThai    bool   `yaml:"filter_thai" mapstructure:"filter_thai"`
}

// OutputConfig names the result files and the batch directory.
type OutputConfig struct {
	RevenueFile    string `yaml:"revenue_file" mapstructure:"revenue_file"`
	NotFoundFile   string `yaml:"not_found_file" mapstructure:"not_found_file"`
	BatchDir       string `yaml:"batch_dir" mapstructure:"batch_dir"`
	ProgressFile   string `yaml:"progress_file" mapstructure:"progress_file"`
	ForceOverwrite bool   `yaml:"force_overwrite" mapstructure:"force_overwrite"`
}

// SearchConfig configures the search cascade.
type SearchConfig struct {
	MaxPages            int     `yaml:"max_pages" mapstructure:"max_pages"`
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// ProcessingConfig configures workers and batching.
type ProcessingConfig struct {
	Workers              int           `yaml:"workers" mapstructure:"workers"`
	BatchSize            int           `yaml:"batch_size" mapstructure:"batch_size"`
	DelayBetweenRequests time.Duration `yaml:"delay_between_requests" mapstructure:"delay_between_requests"`
	StartIndex           int           `yaml:"start_index" mapstructure:"start_index"`
}

// RetryConfig configures extraction retries.
type RetryConfig struct {
	MaxRetries        int           `yaml:"max_retries" mapstructure:"max_retries"`
	ExtraWaitPerRetry time.Duration `yaml:"extra_wait_per_retry" mapstructure:"extra_wait_per_retry"`
}

// BrowserConfig holds the settle waits applied after page actions.
type BrowserConfig struct {
	PageLoadWait  time.Duration `yaml:"page_load_wait" mapstructure:"page_load_wait"`
	TabClickWait  time.Duration `yaml:"tab_click_wait" mapstructure:"tab_click_wait"`
	TableLoadWait time.Duration `yaml:"table_load_wait" mapstructure:"table_load_wait"`
	ExtraWait     time.Duration `yaml:"extra_wait" mapstructure:"extra_wait"`
	PageTurnWait  time.Duration `yaml:"page_turn_wait" mapstructure:"page_turn_wait"`
}

// ExtractionConfig selects what is read from the financial tab.
type ExtractionConfig struct {
	Mode                  string   `yaml:"mode" mapstructure:"mode"`
	IncomeStatementFields []string `yaml:"income_statement_fields" mapstructure:"income_statement_fields"`
	IncludeBalanceSheet   bool     `yaml:"include_balance_sheet" mapstructure:"include_balance_sheet"`
	BalanceSheetFields    []string `yaml:"balance_sheet_fields" mapstructure:"balance_sheet_fields"`
}

// StoreConfig configures the optional result store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the result API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://datawarehouse.dbd.go.th")
	v.SetDefault("site.user_agent", "")
	v.SetDefault("site.request_timeout", 30*time.Second)
	v.SetDefault("site.requests_per_second", 1.0)
	v.SetDefault("site.http_retries", 3)
	v.SetDefault("input.file", "")
	v.SetDefault("input.company_column", "company_name")
	v.SetDefault("input.reg_column", "")
	v.SetDefault("input.sheet", "")
	v.SetDefault("input.filter_thai", true)
	v.SetDefault("output.revenue_file", "output/revenue.csv")
	v.SetDefault("output.not_found_file", "output/not_found.csv")
	v.SetDefault("output.batch_dir", "output/batches")
	v.SetDefault("output.progress_file", "output/progress.txt")
	v.SetDefault("output.force_overwrite", false)
	v.SetDefault("search.max_pages", 20)
	v.SetDefault("search.similarity_threshold", 0.95)
	v.SetDefault("processing.workers", 1)
	v.SetDefault("processing.batch_size", 20)
	v.SetDefault("processing.delay_between_requests", 3*time.Second)
	v.SetDefault("processing.start_index", 0)
	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.extra_wait_per_retry", 2*time.Second)
	v.SetDefault("browser.page_load_wait", 10*time.Second)
	v.SetDefault("browser.tab_click_wait", 4*time.Second)
	v.SetDefault("browser.table_load_wait", 6*time.Second)
	v.SetDefault("browser.extra_wait", 3*time.Second)
	v.SetDefault("browser.page_turn_wait", 3*time.Second)
	v.SetDefault("extraction.mode", "all")
	v.SetDefault("extraction.income_statement_fields", financial.DefaultIncomeStatementFields)
	v.SetDefault("extraction.include_balance_sheet", true)
	v.SetDefault("extraction.balance_sheet_fields", financial.DefaultBalanceSheetFields)
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from file and environment. An empty path looks
// for an optional config.yaml in the working directory; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("DBD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal defaults")
	}
	return &cfg, nil
}

// DefaultYAML renders the built-in configuration as a config.yaml document.
func DefaultYAML() ([]byte, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, eris.Wrap(err, "config: marshal defaults")
	}
	return out, nil
}

// Validate checks the settings a command relies on. mode is the command
// name: "scrape", "combine" or "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scrape":
		if c.Processing.Workers < 1 || c.Processing.Workers > 16 {
			problems = append(problems, "processing.workers must be between 1 and 16")
		}
		if c.Processing.BatchSize < 1 {
			problems = append(problems, "processing.batch_size must be > 0")
		}
		if c.Processing.StartIndex < 0 {
			problems = append(problems, "processing.start_index must be >= 0")
		}
		if c.Search.MaxPages < 1 {
			problems = append(problems, "search.max_pages must be > 0")
		}
		if c.Search.SimilarityThreshold <= 0 || c.Search.SimilarityThreshold > 1 {
			problems = append(problems, "search.similarity_threshold must be in (0, 1]")
		}
		if c.Retry.MaxRetries < 0 {
			problems = append(problems, "retry.max_retries must be >= 0")
		}
		switch c.Extraction.Mode {
		case "all", "revenue_only":
		default:
			problems = append(problems, fmt.Sprintf("extraction.mode %q must be all or revenue_only", c.Extraction.Mode))
		}
		if c.Output.BatchDir == "" {
			problems = append(problems, "output.batch_dir is required")
		}
	case "combine":
		if c.Output.BatchDir == "" {
			problems = append(problems, "output.batch_dir is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.Store.Driver == "" || c.Store.Driver == "none" {
			problems = append(problems, "store.driver is required to serve results")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "none", "sqlite":
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for postgres")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.driver %q must be none, sqlite or postgres", c.Store.Driver))
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
