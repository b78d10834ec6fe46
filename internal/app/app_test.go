package app

import (
	"testing"

	"github.com/stretchr/testify/require"

	"atelier/pkg/config"
	"atelier/pkg/generate"
)

func effWith(mutate func(*config.Config)) config.EffectiveConfigResult {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Generation.Provider = "scripted"
	if mutate != nil {
		mutate(cfg)
	}
	return config.EffectiveConfigResult{Config: cfg, Addr: ":0", DBPath: "/tmp/db"}
}

func TestValidateConfig(t *testing.T) {
	require.NoError(t, validateConfig(effWith(nil)))

	noDB := effWith(nil)
	noDB.DBPath = ""
	require.Error(t, validateConfig(noDB))

	require.Error(t, validateConfig(effWith(func(c *config.Config) {
		c.Server.TLS.CertFile = "/certs/tls.crt"
	})))

	require.Error(t, validateConfig(effWith(func(c *config.Config) {
		c.Generation.Provider = "llama-at-home"
	})))
}

func TestBuildGenerator(t *testing.T) {
	g, err := buildGenerator(config.GenerationConfig{Provider: "scripted"})
	require.NoError(t, err)
	require.IsType(t, &generate.ScriptedGenerator{}, g)

	_, err = buildGenerator(config.GenerationConfig{Provider: "openai"})
	require.Error(t, err)

	g, err = buildGenerator(config.GenerationConfig{Provider: "openai", APIKey: "sk-test"})
	require.NoError(t, err)
	require.IsType(t, &generate.OpenAIGenerator{}, g)
}
