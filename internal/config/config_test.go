// File: internal/config/config_test.go
package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "console", cfg.Logger().Format)
	assert.Equal(t, "webpilot", cfg.Logger().ServiceName)

	assert.False(t, cfg.Browser().Headless)
	assert.Equal(t, 1440, cfg.Browser().ViewportWidth)
	assert.Equal(t, 900, cfg.Browser().ViewportHeight)
	assert.Equal(t, 50*time.Second, cfg.Browser().NavigationTimeout)
	assert.Equal(t, 10*time.Second, cfg.Browser().ActionTimeout)

	assert.Equal(t, 50, cfg.Agent().MaxIterations)
	assert.Equal(t, ProviderGemini, cfg.Agent().LLM.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Agent().LLM.Model)

	assert.Equal(t, 100, cfg.Memory().MaxMessages)
	assert.Equal(t, 5, cfg.Memory().ContextMessages)
}

func TestSetters(t *testing.T) {
	cfg := NewDefaultConfig()

	cfg.SetBrowserHeadless(true)
	assert.True(t, cfg.Browser().Headless)

	cfg.SetBrowserCDPEndpoint("ws://127.0.0.1:9222")
	assert.Equal(t, "ws://127.0.0.1:9222", cfg.Browser().CDPEndpoint)

	cfg.SetAgentMaxIterations(7)
	assert.Equal(t, 7, cfg.Agent().MaxIterations)
}

func TestNewConfigFromViperOverrides(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("browser.headless", true)
	v.Set("agent.max_iterations", 12)
	v.Set("agent.llm.api_key", "key-from-file")

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)

	assert.True(t, cfg.Browser().Headless)
	assert.Equal(t, 12, cfg.Agent().MaxIterations)
	assert.Equal(t, "key-from-file", cfg.Agent().LLM.APIKey)
}

func TestNewConfigFromViperReadsAPIKeyEnv(t *testing.T) {
	t.Setenv("WEBPILOT_LLM_API_KEY", "key-from-env")

	v := viper.New()
	SetDefaults(v)

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Agent().LLM.APIKey)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v *viper.Viper)
		wantErr string
	}{
		{
			name:    "non-positive iterations",
			mutate:  func(v *viper.Viper) { v.Set("agent.max_iterations", 0) },
			wantErr: "max_iterations",
		},
		{
			name:    "bad viewport",
			mutate:  func(v *viper.Viper) { v.Set("browser.viewport_width", -1) },
			wantErr: "viewport",
		},
		{
			name:    "bad navigation timeout",
			mutate:  func(v *viper.Viper) { v.Set("browser.navigation_timeout", "0s") },
			wantErr: "navigation_timeout",
		},
		{
			name:    "unknown provider",
			mutate:  func(v *viper.Viper) { v.Set("agent.llm.provider", "openai") },
			wantErr: "unsupported LLM provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			tt.mutate(v)

			_, err := NewConfigFromViper(v)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
