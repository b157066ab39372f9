package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Log          Logger         `mapstructure:"logger"`
	DB           Database       `mapstructure:"database"`
	API          API            `mapstructure:"api"`
	Scheduler    Scheduler      `mapstructure:"scheduler"`
	Cache        Cache          `mapstructure:"cache"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
	Feishu       Feishu         `mapstructure:"feishu"`
	Github       Github         `mapstructure:"github"`
	Tushare      MarketData     `mapstructure:"tushare"`
	Eastmoney    MarketData     `mapstructure:"eastmoney"`
	YahooFinance MarketData     `mapstructure:"yahoo_finance"`
	Backtest     Backtest       `mapstructure:"backtest"`
}

type Logger struct {
	Level         string `mapstructure:"level"`
	Encoding      string `mapstructure:"encoding"`
	AlertMinLevel string `mapstructure:"alert_min_level"`
}

type Database struct {
	Enabled         bool   `mapstructure:"enabled"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"name"`
	SSLMode         string `mapstructure:"ssl_mode"`
	TimeZone        string `mapstructure:"time_zone"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime string `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

type Scheduler struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency"`
	TimeoutDuration time.Duration `mapstructure:"timeout_duration"`
}

type API struct {
	Port            int           `mapstructure:"port"`
	RateLimit       float64       `mapstructure:"rate_limit"`
	RateLimitBurst  int           `mapstructure:"rate_limit_burst"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type Cache struct {
	DefaultExpiration        time.Duration `mapstructure:"default_expiration"`
	CleanupInterval          time.Duration `mapstructure:"cleanup_interval"`
	SysParamExpDuration      time.Duration `mapstructure:"sys_param_exp_duration"`
	TelegramStateExpDuration time.Duration `mapstructure:"telegram_state_exp_duration"`
	ReportExpDuration        time.Duration `mapstructure:"report_exp_duration"`
}

type TelegramConfig struct {
	BotToken                  string        `mapstructure:"bot_token"`
	ChatID                    string        `mapstructure:"chat_id"`
	WebhookURL                string        `mapstructure:"webhook_url"`
	TimeoutDuration           time.Duration `mapstructure:"timeout_duration"`
	MaxGlobalRequestPerSecond int           `mapstructure:"max_global_request_per_second"`
	MaxUserRequestPerSecond   int           `mapstructure:"max_user_request_per_second"`
	MaxEditMessagePerSecond   int           `mapstructure:"max_edit_message_per_second"`
	RatelimitExpireDuration   time.Duration `mapstructure:"ratelimit_expire_duration"`
	RateLimitCleanupDuration  time.Duration `mapstructure:"rate_limit_cleanup_duration"`
}

type Feishu struct {
	BaseURL              string        `mapstructure:"base_url"`
	WebhookURL           string        `mapstructure:"webhook_url"`
	AppID                string        `mapstructure:"app_id"`
	AppSecret            string        `mapstructure:"app_secret"`
	ChatID               string        `mapstructure:"chat_id"`
	BitableAppToken      string        `mapstructure:"bitable_app_token"`
	BitableTableID       string        `mapstructure:"bitable_table_id"`
	VerificationToken    string        `mapstructure:"verification_token"`
	CallbackMode         string        `mapstructure:"callback_mode"`
	Timeout              time.Duration `mapstructure:"timeout"`
	MaxCallbackPerMinute int           `mapstructure:"max_callback_per_minute"`
}

type Github struct {
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	Owner    string        `mapstructure:"owner"`
	Repo     string        `mapstructure:"repo"`
	Workflow string        `mapstructure:"workflow_file"`
	Ref      string        `mapstructure:"ref"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type MarketData struct {
	BaseURL             string        `mapstructure:"base_url"`
	Token               string        `mapstructure:"token"`
	Timeout             time.Duration `mapstructure:"timeout"`
	MaxRequestPerMinute int           `mapstructure:"max_request_per_minute"`
}

type Backtest struct {
	Cash           float64       `mapstructure:"cash"`
	Commission     float64       `mapstructure:"commission"`
	Stake          int           `mapstructure:"stake"`
	TakeProfit     float64       `mapstructure:"take_profit"`
	StopLoss       float64       `mapstructure:"stop_loss"`
	MaxHoldDays    int           `mapstructure:"max_hold_days"`
	Datasource     string        `mapstructure:"datasource"`
	TaskDatasource string        `mapstructure:"task_datasource"`
	RunTimeout     time.Duration `mapstructure:"run_timeout"`
	TaskLimit      int           `mapstructure:"task_limit"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	RunURL         string        `mapstructure:"run_url"`
	RunID          string        `mapstructure:"run_id"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "json")
	v.SetDefault("logger.alert_min_level", "error")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "ashare_backtest")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.time_zone", "Asia/Shanghai")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.log_level", "Warn")

	v.SetDefault("api.port", 8080)
	v.SetDefault("api.rate_limit", 10.0)
	v.SetDefault("api.rate_limit_burst", 30)
	v.SetDefault("api.shutdown_timeout", 15*time.Second)

	v.SetDefault("scheduler.max_concurrency", 2)
	v.SetDefault("scheduler.timeout_duration", 10*time.Minute)

	v.SetDefault("cache.default_expiration", 10*time.Minute)
	v.SetDefault("cache.cleanup_interval", 15*time.Minute)
	v.SetDefault("cache.sys_param_exp_duration", 10*time.Minute)
	v.SetDefault("cache.telegram_state_exp_duration", 15*time.Minute)
	v.SetDefault("cache.report_exp_duration", 24*time.Hour)

	v.SetDefault("telegram.bot_token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.webhook_url", "")
	v.SetDefault("telegram.timeout_duration", 10*time.Second)
	v.SetDefault("telegram.max_global_request_per_second", 30)
	v.SetDefault("telegram.max_user_request_per_second", 1)
	v.SetDefault("telegram.max_edit_message_per_second", 1)
	v.SetDefault("telegram.ratelimit_expire_duration", 10*time.Minute)
	v.SetDefault("telegram.rate_limit_cleanup_duration", 5*time.Minute)

	v.SetDefault("feishu.base_url", "https://open.feishu.cn")
	v.SetDefault("feishu.webhook_url", "")
	v.SetDefault("feishu.app_id", "")
	v.SetDefault("feishu.app_secret", "")
	v.SetDefault("feishu.chat_id", "")
	v.SetDefault("feishu.bitable_app_token", "")
	v.SetDefault("feishu.bitable_table_id", "")
	v.SetDefault("feishu.verification_token", "")
	v.SetDefault("feishu.callback_mode", "dispatch")
	v.SetDefault("feishu.timeout", 10*time.Second)
	v.SetDefault("feishu.max_callback_per_minute", 6)

	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.workflow_file", "backtest.yml")
	v.SetDefault("github.ref", "main")
	v.SetDefault("github.timeout", 10*time.Second)

	v.SetDefault("tushare.base_url", "http://api.tushare.pro")
	v.SetDefault("tushare.token", "")
	v.SetDefault("tushare.timeout", 30*time.Second)
	v.SetDefault("tushare.max_request_per_minute", 200)

	v.SetDefault("eastmoney.base_url", "https://push2his.eastmoney.com")
	v.SetDefault("eastmoney.timeout", 30*time.Second)
	v.SetDefault("eastmoney.max_request_per_minute", 60)

	v.SetDefault("yahoo_finance.base_url", "https://query1.finance.yahoo.com/v8/finance/chart")
	v.SetDefault("yahoo_finance.timeout", 30*time.Second)
	v.SetDefault("yahoo_finance.max_request_per_minute", 30)

	v.SetDefault("backtest.cash", 100000.0)
	v.SetDefault("backtest.commission", 0.0003)
	v.SetDefault("backtest.stake", 100)
	v.SetDefault("backtest.take_profit", 0.03)
	v.SetDefault("backtest.stop_loss", -0.05)
	v.SetDefault("backtest.max_hold_days", 10)
	v.SetDefault("backtest.datasource", "auto")
	v.SetDefault("backtest.task_datasource", "tushare")
	v.SetDefault("backtest.run_timeout", 5*time.Minute)
	v.SetDefault("backtest.task_limit", 5)
	v.SetDefault("backtest.max_concurrency", 2)
	v.SetDefault("backtest.run_url", "")
	v.SetDefault("backtest.run_id", "")
}

// envAliases maps config keys to the plain environment names used by the CI
// workflow, next to the derived SECTION_KEY names.
var envAliases = map[string][]string{
	"feishu.webhook_url": {"FEISHU_WEBHOOK_URL", "FEISHU_WEBHOOK"},
	"backtest.run_url":   {"BACKTEST_RUN_URL", "RUN_URL"},
	"backtest.run_id":    {"BACKTEST_RUN_ID", "GITHUB_RUN_ID"},
	"github.token":       {"GITHUB_TOKEN", "GH_TOKEN"},
	"tushare.token":      {"TUSHARE_TOKEN"},
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file loaded:", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AddConfigPath(".")
	v.AutomaticEnv()
	setDefaults(v)

	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		fmt.Println("No config file loaded:", err)
	} else {
		fmt.Println("Config file loaded:", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
