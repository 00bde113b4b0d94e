package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "DEEPRESEARCH_"

// Config holds settings loaded from deepresearch.yml, .env and the
// environment, in increasing order of precedence.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Research   ResearchConfig   `yaml:"research"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Log        LogConfig        `yaml:"log"`
	Server     ServerConfig     `yaml:"server"`
}

// ModelConfig selects the model provider.
type ModelConfig struct {
	Provider string `yaml:"provider,omitempty"` // static | gemini
	Name     string `yaml:"name,omitempty"`
	APIKey   string `yaml:"apiKey,omitempty"`
}

// ResearchConfig bounds the research loop.
type ResearchConfig struct {
	AllowClarification    bool          `yaml:"allowClarification"`
	MaxClarifications     int           `yaml:"maxClarifications,omitempty"`
	MaxSupervisorRounds   int           `yaml:"maxSupervisorRounds,omitempty"`
	MaxTopicsPerRound     int           `yaml:"maxTopicsPerRound,omitempty"`
	MaxConcurrentResearch int           `yaml:"maxConcurrentResearch,omitempty"`
	SubTaskTimeout        time.Duration `yaml:"subTaskTimeout,omitempty"`
	Researchers           []string      `yaml:"researchers,omitempty"`
	SingleAgent           bool          `yaml:"singleAgent,omitempty"`
}

// CheckpointConfig selects where session checkpoints are kept.
type CheckpointConfig struct {
	Backend   string `yaml:"backend,omitempty"` // memory | file | sqlite | postgres | kuzu
	Path      string `yaml:"path,omitempty"`
	DSN       string `yaml:"dsn,omitempty"`
	CacheSize int    `yaml:"cacheSize,omitempty"`
}

// ArtifactsConfig selects where final reports are published.
type ArtifactsConfig struct {
	Sink      string `yaml:"sink,omitempty"` // none | file | s3
	Dir       string `yaml:"dir,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	Region    string `yaml:"region,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	AccessKey string `yaml:"accessKey,omitempty"`
	SecretKey string `yaml:"secretKey,omitempty"`
	UseSSL    bool   `yaml:"useSSL,omitempty"`
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"` // json | console
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	HTTPAddr       string `yaml:"httpAddr,omitempty"`
	MCPAddr        string `yaml:"mcpAddr,omitempty"`
	ResearcherAddr string `yaml:"researcherAddr,omitempty"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Model: ModelConfig{Provider: "static"},
		Research: ResearchConfig{
			AllowClarification:    true,
			MaxClarifications:     3,
			MaxSupervisorRounds:   3,
			MaxTopicsPerRound:     5,
			MaxConcurrentResearch: 4,
			SubTaskTimeout:        5 * time.Minute,
		},
		Checkpoint: CheckpointConfig{Backend: "file", Path: ".deepresearch/sessions", CacheSize: 256},
		Artifacts:  ArtifactsConfig{Sink: "none", Dir: ".deepresearch/reports", Region: "us-east-1"},
		Log:        LogConfig{Level: "info", Format: "console"},
		Server:     ServerConfig{HTTPAddr: ":8080", MCPAddr: ":8090", ResearcherAddr: ":9100"},
	}
}

// Load reads deepresearch.yml or deepresearch.yaml from dir on top of the
// defaults, then applies .env and DEEPRESEARCH_* environment overrides. A
// missing config file is not an error.
func Load(dir string) (*Config, error) {
	cfg := Default()
	for _, name := range []string{"deepresearch.yml", "deepresearch.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		break
	}

	// Values already in the environment win over .env.
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.Model.Provider, "MODEL_PROVIDER")
	setString(&cfg.Model.Name, "MODEL_NAME")
	setString(&cfg.Model.APIKey, "MODEL_API_KEY")
	if cfg.Model.APIKey == "" {
		cfg.Model.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}

	if err := setBool(&cfg.Research.AllowClarification, "ALLOW_CLARIFICATION"); err != nil {
		return err
	}
	if err := setBool(&cfg.Research.SingleAgent, "SINGLE_AGENT"); err != nil {
		return err
	}
	for key, dst := range map[string]*int{
		"MAX_CLARIFICATIONS":      &cfg.Research.MaxClarifications,
		"MAX_SUPERVISOR_ROUNDS":   &cfg.Research.MaxSupervisorRounds,
		"MAX_TOPICS_PER_ROUND":    &cfg.Research.MaxTopicsPerRound,
		"MAX_CONCURRENT_RESEARCH": &cfg.Research.MaxConcurrentResearch,
		"CHECKPOINT_CACHE_SIZE":   &cfg.Checkpoint.CacheSize,
	} {
		if err := setInt(dst, key); err != nil {
			return err
		}
	}
	if v := lookup("SUBTASK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %sSUBTASK_TIMEOUT: %w", EnvPrefix, err)
		}
		cfg.Research.SubTaskTimeout = d
	}
	if v := lookup("RESEARCHERS"); v != "" {
		cfg.Research.Researchers = splitList(v)
	}

	setString(&cfg.Checkpoint.Backend, "CHECKPOINT_BACKEND")
	setString(&cfg.Checkpoint.Path, "CHECKPOINT_PATH")
	setString(&cfg.Checkpoint.DSN, "CHECKPOINT_DSN")

	setString(&cfg.Artifacts.Sink, "ARTIFACT_SINK")
	setString(&cfg.Artifacts.Dir, "ARTIFACT_DIR")
	setString(&cfg.Artifacts.Endpoint, "ARTIFACT_S3_ENDPOINT")
	setString(&cfg.Artifacts.Region, "ARTIFACT_S3_REGION")
	setString(&cfg.Artifacts.Bucket, "ARTIFACT_S3_BUCKET")
	setString(&cfg.Artifacts.AccessKey, "ARTIFACT_S3_ACCESS_KEY")
	setString(&cfg.Artifacts.SecretKey, "ARTIFACT_S3_SECRET_KEY")
	if err := setBool(&cfg.Artifacts.UseSSL, "ARTIFACT_S3_USE_SSL"); err != nil {
		return err
	}

	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")

	setString(&cfg.Server.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.Server.MCPAddr, "MCP_ADDR")
	setString(&cfg.Server.ResearcherAddr, "RESEARCHER_ADDR")
	return nil
}

func lookup(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

func setString(dst *string, key string) {
	if v := lookup(key); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := lookup(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := lookup(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
