// Copyright 2026 © The Scribe Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads scribe settings from defaults, a YAML file with an
// optional profile overlay, SCRIBE_ environment variables and --set flags,
// in increasing order of precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides: SCRIBE_LLM_BASE_URL sets llm.base_url.
const EnvPrefix = "SCRIBE_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	LLM       LLMConfig       `koanf:"llm"`
	Search    SearchConfig    `koanf:"search"`
	Audit     AuditConfig     `koanf:"audit"`
	HTTP      HTTPConfig      `koanf:"http"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string            `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string            `koanf:"otlp_endpoint"`
	OTLPInsecure bool              `koanf:"otlp_insecure"`
	OTLPHeaders  map[string]string `koanf:"otlp_headers"`
}

type LLMConfig struct {
	Provider  string `koanf:"provider"` // ollama, scripted
	Model     string `koanf:"model"`
	BaseURL   string `koanf:"base_url"`
	MaxRounds int    `koanf:"max_rounds"`
}

type SearchConfig struct {
	Provider        string        `koanf:"provider"` // memory, qdrant
	Collection      string        `koanf:"collection"`
	QdrantAddr      string        `koanf:"qdrant_addr"`
	EmbedderBaseURL string        `koanf:"embedder_base_url"`
	EmbedderModel   string        `koanf:"embedder_model"`
	Seed            string        `koanf:"seed"` // JSON file of documents indexed at startup
	Timeout         time.Duration `koanf:"timeout"`
}

type AuditConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"` // sqlite file; ":memory:" keeps events in memory
	TextDeltas bool   `koanf:"text_deltas"`
	// Redact masks personal data in stored tool payloads and errors:
	// "mask", "hash" or "off".
	Redact string `koanf:"redact"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr"`
	Mode string `koanf:"mode"` // gin mode: debug, release, test
}

type MCPConfig struct {
	Name    string                     `koanf:"name"`
	Servers map[string]MCPServerConfig `koanf:"servers"`
}

// MCPServerConfig describes a remote MCP server whose tools are imported
// into the registry under "<name>_<tool>".
type MCPServerConfig struct {
	Transport string   `koanf:"transport"` // stdio, http
	Command   string   `koanf:"command"`
	Args      []string `koanf:"args"`
	Env       []string `koanf:"env"`
	URL       string   `koanf:"url"`
}

var defaults = map[string]any{
	"log.level":                "info",
	"log.format":               "text",
	"telemetry.exporter":       "none",
	"telemetry.otlp_endpoint":  "localhost:4317",
	"telemetry.otlp_insecure":  true,
	"llm.provider":             "ollama",
	"llm.model":                "qwen2.5:7b-instruct",
	"llm.base_url":             "http://localhost:11434",
	"llm.max_rounds":           6,
	"search.provider":          "memory",
	"search.collection":        "sessions",
	"search.qdrant_addr":       "localhost:6334",
	"search.embedder_base_url": "http://localhost:11434",
	"search.embedder_model":    "nomic-embed-text",
	"search.timeout":           "10s",
	"audit.enabled":            false,
	"audit.path":               "scribe-audit.db",
	"audit.redact":             "mask",
	"http.addr":                ":8080",
	"http.mode":                "release",
	"mcp.name":                 "scribe",
}

// Load reads defaults, the file at path (when not empty) and the environment.
func Load(path string) (*Config, error) {
	return load(options{path: path})
}

// LoadWithCLI is Load driven by command-line style arguments:
//
//	--config <path>   YAML file
//	--profile <name>  overlay config.<name>.yaml next to the file (alias --env)
//	--set key=value   override any key; JSON objects and arrays are decoded
//
// Unrecognized arguments are ignored so callers can share their argv.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	opts.sets = sets
	return load(opts)
}

type options struct {
	path    string
	profile string
	sets    map[string]any
}

func load(opts options) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if opts.path != "" {
		if err := k.Load(file.Provider(opts.path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", opts.path, err)
		}
		if overlay := profileConfigPath(opts.path, opts.profile); overlay != "" {
			if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("config: load %s: %w", overlay, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, value := range opts.sets {
		if err := k.Set(key, value); err != nil {
			return nil, fmt.Errorf("config: set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	return &cfg, nil
}

// envKey maps SCRIBE_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

// profileConfigPath returns config.<profile>.yaml beside base when it exists.
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	candidate := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(candidate); err != nil {
		return ""
	}
	return candidate
}

func parseCLIOverrides(args []string) (options, map[string]any, error) {
	var opts options
	sets := map[string]any{}
	for i := 0; i < len(args); i++ {
		name, value, hasValue := strings.Cut(args[i], "=")
		switch name {
		case "--config", "-config", "--profile", "-profile", "--env", "-env", "--set", "-set":
		default:
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("config: %s requires a value", name)
			}
			i++
			value = args[i]
		}
		switch strings.TrimLeft(name, "-") {
		case "config":
			opts.path = value
		case "profile", "env":
			opts.profile = value
		case "set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return opts, nil, fmt.Errorf("config: --set expects key=value, got %q", value)
			}
			sets[strings.TrimSpace(key)] = decodeValue(raw)
		}
	}
	return opts, sets, nil
}

func decodeValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var v any
		if err := json.Unmarshal([]byte(trimmed), &v); err == nil {
			return v
		}
	}
	return raw
}
