// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Agent() AgentConfig
	Memory() MemoryConfig

	// Browser setters
	SetBrowserHeadless(bool)
	SetBrowserCDPEndpoint(string)

	// Agent setters
	SetAgentMaxIterations(int)
}

// Config holds the entire application configuration. It uses private fields
// to enforce access through the Interface's getter methods; unmarshaling goes
// through the exported fileConfig shadow below.
type Config struct {
	logger  LoggerConfig
	browser BrowserConfig
	agent   AgentConfig
	memory  MemoryConfig
}

// fileConfig mirrors Config with exported fields so viper/mapstructure can
// populate it from files and environment variables.
type fileConfig struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Agent   AgentConfig   `mapstructure:"agent" yaml:"agent"`
	Memory  MemoryConfig  `mapstructure:"memory" yaml:"memory"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations ---

func (c *Config) Logger() LoggerConfig   { return c.logger }
func (c *Config) Browser() BrowserConfig { return c.browser }
func (c *Config) Agent() AgentConfig     { return c.agent }
func (c *Config) Memory() MemoryConfig   { return c.memory }

func (c *Config) SetBrowserHeadless(b bool)       { c.browser.Headless = b }
func (c *Config) SetBrowserCDPEndpoint(ep string) { c.browser.CDPEndpoint = ep }
func (c *Config) SetAgentMaxIterations(n int)     { c.agent.MaxIterations = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the driven Chrome instance.
type BrowserConfig struct {
	Headless bool     `mapstructure:"headless" yaml:"headless"`
	ExecPath string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args     []string `mapstructure:"args" yaml:"args"`
	// CDPEndpoint, when set, attaches to an already-running Chrome
	// (started with --remote-debugging-port) instead of launching one.
	CDPEndpoint       string        `mapstructure:"cdp_endpoint" yaml:"cdp_endpoint"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
)

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider          LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model             string        `mapstructure:"model" yaml:"model"`
	APIKey            string        `mapstructure:"api_key" yaml:"-"`
	Endpoint          string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout        time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP              float32       `mapstructure:"top_p" yaml:"top_p"`
	TopK              int           `mapstructure:"top_k" yaml:"top_k"`
	MaxTokens         int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	RequestsPerMinute float64       `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// AgentConfig holds settings for the conversation loop.
type AgentConfig struct {
	MaxIterations int            `mapstructure:"max_iterations" yaml:"max_iterations"`
	LLM           LLMModelConfig `mapstructure:"llm" yaml:"llm"`
}

// MemoryConfig tunes the bounded session memory.
type MemoryConfig struct {
	MaxMessages     int    `mapstructure:"max_messages" yaml:"max_messages"`
	MaxTasks        int    `mapstructure:"max_tasks" yaml:"max_tasks"`
	ContextMessages int    `mapstructure:"context_messages" yaml:"context_messages"`
	ContextTokens   int    `mapstructure:"context_tokens" yaml:"context_tokens"`
	TokenizerModel  string `mapstructure:"tokenizer_model" yaml:"tokenizer_model"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "webpilot")
	v.SetDefault("logger.log_file", "webpilot.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.viewport_width", 1440)
	v.SetDefault("browser.viewport_height", 900)
	v.SetDefault("browser.navigation_timeout", "50s")
	v.SetDefault("browser.action_timeout", "10s")
	v.SetDefault("browser.args", []string{
		"--disable-notifications",
		"--disable-extensions",
	})

	// -- Agent --
	v.SetDefault("agent.max_iterations", 50)
	v.SetDefault("agent.llm.provider", "gemini")
	v.SetDefault("agent.llm.model", "gemini-2.5-flash")
	v.SetDefault("agent.llm.api_timeout", "60s")
	v.SetDefault("agent.llm.temperature", 0.0)
	v.SetDefault("agent.llm.max_tokens", 2048)
	v.SetDefault("agent.llm.requests_per_minute", 30.0)

	// -- Memory --
	v.SetDefault("memory.max_messages", 100)
	v.SetDefault("memory.max_tasks", 100)
	v.SetDefault("memory.context_messages", 5)
	v.SetDefault("memory.context_tokens", 2000)
	v.SetDefault("memory.tokenizer_model", "gpt-4o")
}

// NewDefaultConfig creates a configuration struct populated with defaults.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		// Cannot happen with defaults alone, but fail loudly if it does.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return raw.toConfig()
}

func (fc fileConfig) toConfig() *Config {
	return &Config{
		logger:  fc.Logger,
		browser: fc.Browser,
		agent:   fc.Agent,
		memory:  fc.Memory,
	}
}

// NewConfigFromViper creates a configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("agent.llm.api_key", "WEBPILOT_LLM_API_KEY", "GEMINI_API_KEY")

	var raw fileConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg := raw.toConfig()

	// Unmarshal can miss env-only keys when nothing else populates the section.
	if cfg.agent.LLM.APIKey == "" {
		if key := os.Getenv("WEBPILOT_LLM_API_KEY"); key != "" {
			cfg.agent.LLM.APIKey = key
		} else {
			cfg.agent.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if c.browser.ViewportWidth <= 0 || c.browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport dimensions must be positive")
	}
	if c.browser.NavigationTimeout <= 0 {
		return fmt.Errorf("browser.navigation_timeout must be a positive duration")
	}
	if c.memory.MaxMessages <= 0 {
		return fmt.Errorf("memory.max_messages must be a positive integer")
	}
	if c.agent.LLM.Provider != ProviderGemini {
		return fmt.Errorf("unsupported LLM provider: '%s'. Supported: [%s]", c.agent.LLM.Provider, ProviderGemini)
	}
	return nil
}
