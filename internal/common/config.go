package common

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Store      StoreConfig      `yaml:"store"`
	Mail       MailConfig       `yaml:"mail"`
	OCR        OCRConfig        `yaml:"ocr"`
	LLM        LLMConfig        `yaml:"llm"`
	Downstream DownstreamConfig `yaml:"downstream"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Retry      RetryConfig      `yaml:"retry"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Server     ServerConfig     `yaml:"server"`
}

// StoreConfig selects the object store backend by DSN scheme
// (memory://, badger:///path, postgres://...).
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// MailConfig holds email-transport configuration
type MailConfig struct {
	Provider string         `yaml:"provider"` // graph | maildrop
	Graph    GraphConfig    `yaml:"graph"`
	Maildrop MaildropConfig `yaml:"maildrop"`
}

type GraphConfig struct {
	BaseURL      string   `yaml:"base_url"`
	AuthorityURL string   `yaml:"authority_url"`
	TenantID     string   `yaml:"tenant_id"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AccessToken  string   `yaml:"access_token"`
	Mailbox      string   `yaml:"mailbox"` // empty -> /me
	Scopes       []string `yaml:"scopes"`
	PageSize     int      `yaml:"page_size"`
	MaxPages     int      `yaml:"max_pages"`
}

type MaildropConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Provider      string        `yaml:"provider"` // local | remote
	TessdataDir   string        `yaml:"tessdata_dir"`
	TesseractLang string        `yaml:"tesseract_lang"`
	Endpoint      string        `yaml:"endpoint"`
	APIKey        string        `yaml:"api_key"`
	Namespace     string        `yaml:"namespace"`
	Bucket        string        `yaml:"bucket"`
	CompartmentID string        `yaml:"compartment_id"`
	Timeout       time.Duration `yaml:"timeout"`
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	Provider    string        `yaml:"provider"` // openai | langchain
	Model       string        `yaml:"model"`
	APIKey      string        `yaml:"api_key"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float32       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

// DownstreamConfig holds system-of-record configuration
type DownstreamConfig struct {
	Kind              string         `yaml:"kind"` // http | postgres | sqlite
	URL               string         `yaml:"url"`
	Token             string         `yaml:"token"`
	RequireKnownOrder bool           `yaml:"require_known_order"`
	Database          DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string        `yaml:"dsn"`
	MaxConns         int32         `yaml:"max_conns"`
	MinConns         int32         `yaml:"min_conns"`
	MaxConnLifetime  time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `yaml:"dial_timeout"`
	StatementTimeout time.Duration `yaml:"statement_timeout"`
}

type SchedulerConfig struct {
	Interval        time.Duration `yaml:"interval"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	PassTimeout     time.Duration `yaml:"pass_timeout"`
	ItemConcurrency int           `yaml:"item_concurrency"`
	FileConcurrency int           `yaml:"file_concurrency"`
}

type RetryConfig struct {
	ExtractMaxAttempts int     `yaml:"extract_max_attempts"`
	OCRMaxAttempts     int     `yaml:"ocr_max_attempts"`
	BackoffBase        float64 `yaml:"backoff_base"`
}

type CheckpointConfig struct {
	MaxIDs int `yaml:"max_ids"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
}

// DefaultConfig returns the built-in defaults that file and env layers override.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Store:    StoreConfig{DSN: "badger://./data/store"},
		Mail: MailConfig{
			Provider: "graph",
			Graph: GraphConfig{
				BaseURL:      "https://graph.microsoft.com/v1.0",
				AuthorityURL: "https://login.microsoftonline.com",
				Scopes:       []string{"https://graph.microsoft.com/.default"},
				PageSize:     50,
				MaxPages:     10,
			},
			Maildrop: MaildropConfig{Dir: "./maildrop"},
		},
		OCR: OCRConfig{
			Provider:      "local",
			TesseractLang: "eng",
			Timeout:       2 * time.Minute,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o",
			BaseURL:  "https://api.openai.com/v1",
			Timeout:  60 * time.Second,
		},
		Downstream: DownstreamConfig{
			Kind: "http",
			Database: DatabaseConfig{
				MaxConns:        10,
				MinConns:        1,
				MaxConnLifetime: 30 * time.Minute,
				MaxConnIdleTime: 5 * time.Minute,
				DialTimeout:     3 * time.Second,
			},
		},
		Scheduler: SchedulerConfig{
			Interval:        30 * time.Second,
			Workers:         2,
			QueueSize:       4,
			ItemConcurrency: 4,
			FileConcurrency: 4,
		},
		Retry: RetryConfig{
			ExtractMaxAttempts: 5,
			OCRMaxAttempts:     3,
			BackoffBase:        2,
		},
		Checkpoint: CheckpointConfig{MaxIDs: 5000},
		Server:     ServerConfig{GRPCAddr: ":8080"},
	}
}

// LoadConfig layers defaults, an optional YAML file, then environment variables.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, NewAppError("CONFIG_ERROR", "read config file", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, NewAppError("CONFIG_ERROR", "parse config file", err)
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.LogLevel = strings.ToLower(getEnv("LOG_LEVEL", cfg.LogLevel))
	cfg.Store.DSN = getEnv("STORE_DSN", cfg.Store.DSN)

	m := &cfg.Mail
	m.Provider = getEnv("MAIL_PROVIDER", m.Provider)
	m.Graph.BaseURL = getEnv("GRAPH_BASE_URL", m.Graph.BaseURL)
	m.Graph.TenantID = getEnv("TENANT_ID", m.Graph.TenantID)
	m.Graph.ClientID = getEnv("CLIENT_ID", m.Graph.ClientID)
	m.Graph.ClientSecret = getEnv("CLIENT_SECRET", m.Graph.ClientSecret)
	m.Graph.AccessToken = getEnv("GRAPH_ACCESS_TOKEN", m.Graph.AccessToken)
	m.Graph.Mailbox = getEnv("MAILBOX", m.Graph.Mailbox)
	m.Graph.Scopes = getEnvAsStrings("SCOPES", m.Graph.Scopes)
	m.Maildrop.Dir = getEnv("MAILDROP_DIR", m.Maildrop.Dir)
	m.Maildrop.Watch = getEnvAsBool("MAILDROP_WATCH", m.Maildrop.Watch)

	o := &cfg.OCR
	o.Provider = getEnv("OCR_PROVIDER", o.Provider)
	o.TessdataDir = getEnv("TESSDATA_PREFIX", o.TessdataDir)
	o.TesseractLang = getEnv("TESSERACT_LANG", o.TesseractLang)
	o.Endpoint = getEnv("OCR_ENDPOINT", o.Endpoint)
	o.APIKey = getEnv("OCR_API_KEY", o.APIKey)
	o.Namespace = getEnv("NAMESPACE", o.Namespace)
	o.Bucket = getEnv("BUCKET_NAME", o.Bucket)
	o.CompartmentID = getEnv("COMPARTMENT_OCID", o.CompartmentID)
	o.Timeout = getEnvAsDuration("OCR_TIMEOUT", o.Timeout)

	l := &cfg.LLM
	l.Provider = getEnv("LLM_PROVIDER", l.Provider)
	l.Model = getEnv("OPENAI_MODEL", l.Model)
	l.APIKey = getEnv("OPENAI_API_KEY", l.APIKey)
	l.BaseURL = getEnv("OPENAI_BASE_URL", l.BaseURL)
	l.Temperature = getEnvAsFloat32("OPENAI_TEMPERATURE", l.Temperature)
	l.Timeout = getEnvAsDuration("OPENAI_TIMEOUT", l.Timeout)

	d := &cfg.Downstream
	d.Kind = getEnv("DOWNSTREAM_KIND", d.Kind)
	d.URL = getEnv("DOWNSTREAM_URL", d.URL)
	d.Token = getEnv("DOWNSTREAM_TOKEN", d.Token)
	d.RequireKnownOrder = getEnvAsBool("REQUIRE_KNOWN_ORDER", d.RequireKnownOrder)
	d.Database.DSN = getEnv("DB_URL", d.Database.DSN)
	d.Database.MaxConns = getEnvAsInt32("DB_MAX_CONNS", d.Database.MaxConns)
	d.Database.MinConns = getEnvAsInt32("DB_MIN_CONNS", d.Database.MinConns)
	d.Database.StatementTimeout = getEnvAsDuration("DB_STATEMENT_TIMEOUT", d.Database.StatementTimeout)

	s := &cfg.Scheduler
	s.Interval = getEnvAsDuration("PASS_INTERVAL", s.Interval)
	s.Workers = getEnvAsInt("PASS_WORKERS", s.Workers)
	s.QueueSize = getEnvAsInt("PASS_QUEUE_SIZE", s.QueueSize)
	s.PassTimeout = getEnvAsDuration("PASS_TIMEOUT", s.PassTimeout)
	s.ItemConcurrency = getEnvAsInt("ITEM_CONCURRENCY", s.ItemConcurrency)
	s.FileConcurrency = getEnvAsInt("FILE_CONCURRENCY", s.FileConcurrency)

	r := &cfg.Retry
	r.ExtractMaxAttempts = getEnvAsInt("EXTRACT_MAX_ATTEMPTS", r.ExtractMaxAttempts)
	r.OCRMaxAttempts = getEnvAsInt("OCR_MAX_ATTEMPTS", r.OCRMaxAttempts)
	r.BackoffBase = getEnvAsFloat64("BACKOFF_BASE", r.BackoffBase)

	cfg.Checkpoint.MaxIDs = getEnvAsInt("CHECKPOINT_MAX_IDS", cfg.Checkpoint.MaxIDs)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsStrings accepts either a JSON array (["Mail.Read","Mail.Send"]) or a
// comma separated list.
func getEnvAsStrings(key string, defaultValue []string) []string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var list []string
	if strings.HasPrefix(value, "[") {
		if err := json.Unmarshal([]byte(value), &list); err == nil {
			return list
		}
	}
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			list = append(list, p)
		}
	}
	return list
}

// Validate checks the settings each selected provider needs.
func (c *Config) Validate() error {
	v := NewValidator()
	v.Field("store.dsn", c.Store.DSN, Required)
	v.Field("log_level", c.LogLevel, OneOf("debug", "info", "warn", "error"))

	v.Field("mail.provider", c.Mail.Provider, OneOf("graph", "maildrop"))
	switch c.Mail.Provider {
	case "graph":
		if c.Mail.Graph.AccessToken == "" {
			v.Field("mail.graph.tenant_id", c.Mail.Graph.TenantID, Required)
			v.Field("mail.graph.client_id", c.Mail.Graph.ClientID, Required)
			v.Field("mail.graph.client_secret", c.Mail.Graph.ClientSecret, Required)
		}
	case "maildrop":
		v.Field("mail.maildrop.dir", c.Mail.Maildrop.Dir, Required)
	}

	v.Field("ocr.provider", c.OCR.Provider, OneOf("local", "remote"))
	if c.OCR.Provider == "remote" {
		v.Field("ocr.endpoint", c.OCR.Endpoint, Required)
	}

	v.Field("llm.provider", c.LLM.Provider, OneOf("openai", "langchain"))
	v.Field("llm.model", c.LLM.Model, Required)
	if c.LLM.Provider == "openai" {
		v.Field("llm.api_key", c.LLM.APIKey, Required)
	}

	v.Field("downstream.kind", c.Downstream.Kind, OneOf("http", "postgres", "sqlite"))
	switch c.Downstream.Kind {
	case "http":
		v.Field("downstream.url", c.Downstream.URL, Required)
	case "postgres", "sqlite":
		v.Field("downstream.database.dsn", c.Downstream.Database.DSN, Required)
	}

	v.Field("scheduler.interval", float64(c.Scheduler.Interval), Positive)
	v.Field("scheduler.workers", c.Scheduler.Workers, Positive)
	v.Field("retry.extract_max_attempts", c.Retry.ExtractMaxAttempts, Positive)
	v.Field("retry.ocr_max_attempts", c.Retry.OCRMaxAttempts, Positive)
	v.Field("retry.backoff_base", c.Retry.BackoffBase, Positive)
	return ValidateAndReturnError(v)
}

// String renders the config for startup logs with secrets masked.
func (c *Config) String() string {
	masked := *c
	masked.Mail.Graph.ClientSecret = mask(c.Mail.Graph.ClientSecret)
	masked.Mail.Graph.AccessToken = mask(c.Mail.Graph.AccessToken)
	masked.OCR.APIKey = mask(c.OCR.APIKey)
	masked.LLM.APIKey = mask(c.LLM.APIKey)
	masked.Downstream.Token = mask(c.Downstream.Token)
	masked.Downstream.Database.DSN = mask(c.Downstream.Database.DSN)
	return fmt.Sprintf("%+v", masked)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
