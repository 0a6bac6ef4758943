// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package config loads schedex settings from a YAML file, a .env file and
// SCHEDEX_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/schedex/ai"
	"github.com/poiesic/schedex/core"
	"github.com/poiesic/schedex/jobs"
	"github.com/poiesic/schedex/reembed"
	"github.com/poiesic/schedex/search"
)

const EnvPrefix = "SCHEDEX_"

// Config is the full application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	HTTPAddr  string          `yaml:"http_addr"`
	AI        AIConfig        `yaml:"ai"`
	Search    SearchConfig    `yaml:"search"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Qdrant    QdrantConfig    `yaml:"qdrant"`
	NATS      NATSConfig      `yaml:"nats"`
}

// AIConfig configures the embedding provider. Semantic search and
// embedding jobs are unavailable when Enabled is false.
type AIConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Host              string        `yaml:"host"`
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	Dimensions        int           `yaml:"dimensions"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
}

type SearchConfig struct {
	TextWeight          float64       `yaml:"text_weight"`
	SemanticWeight      float64       `yaml:"semantic_weight"`
	SingleSourcePenalty float64       `yaml:"single_source_penalty"`
	ExactThreshold      float64       `yaml:"exact_threshold"`
	SemanticTimeout     time.Duration `yaml:"semantic_timeout"`
	TopK                int           `yaml:"top_k"`
	MinSimilarity       float64       `yaml:"min_similarity"`
}

type JobsConfig struct {
	Workers   int           `yaml:"workers"`
	Retention time.Duration `yaml:"retention"`
}

type EmbeddingConfig struct {
	BatchSize  int           `yaml:"batch_size"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
}

// QdrantConfig enables the external vector index when Addr is set.
type QdrantConfig struct {
	Addr       string `yaml:"addr"`
	Collection string `yaml:"collection"`
}

// NATSConfig enables job event publishing when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Default returns the built-in configuration.
func Default() *Config {
	aiDefaults := ai.DefaultConfig()
	searchDefaults := search.DefaultConfig()
	embedDefaults := reembed.DefaultConfig()
	return &Config{
		DataDir:  "./schedex-data",
		HTTPAddr: ":8080",
		AI: AIConfig{
			Enabled:           true,
			Host:              aiDefaults.EmbeddingHost,
			Model:             aiDefaults.EmbeddingModel,
			APIKey:            aiDefaults.APIKey,
			RequestsPerSecond: aiDefaults.RequestsPerSecond,
			Timeout:           aiDefaults.Timeout,
		},
		Search: SearchConfig{
			TextWeight:          searchDefaults.TextWeight,
			SemanticWeight:      searchDefaults.SemanticWeight,
			SingleSourcePenalty: searchDefaults.SingleSourcePenalty,
			ExactThreshold:      searchDefaults.ExactThreshold,
			SemanticTimeout:     searchDefaults.SemanticTimeout,
			TopK:                searchDefaults.TopK,
			MinSimilarity:       searchDefaults.MinSimilarity,
		},
		Jobs: JobsConfig{
			Workers:   jobs.DefaultWorkers,
			Retention: jobs.DefaultRetention,
		},
		Embedding: EmbeddingConfig{
			BatchSize:  embedDefaults.BatchSize,
			MaxRetries: embedDefaults.MaxRetries,
			RetryDelay: embedDefaults.RetryDelay,
		},
		Qdrant: QdrantConfig{Collection: "schedex_items"},
		NATS:   NATSConfig{Subject: "schedex.jobs"},
	}
}

// Load builds the configuration. path names an optional YAML file; a
// missing file is an error only when path was given explicitly. A .env file
// in the working directory is loaded without overriding variables already
// set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from SCHEDEX_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	vars := []struct {
		key string
		set func(string) error
	}{
		{"DATA_DIR", setString(&c.DataDir)},
		{"HTTP_ADDR", setString(&c.HTTPAddr)},
		{"AI_ENABLED", setBool(&c.AI.Enabled)},
		{"AI_HOST", setString(&c.AI.Host)},
		{"AI_MODEL", setString(&c.AI.Model)},
		{"AI_API_KEY", setString(&c.AI.APIKey)},
		{"AI_DIMENSIONS", setInt(&c.AI.Dimensions)},
		{"AI_RPS", setFloat(&c.AI.RequestsPerSecond)},
		{"AI_TIMEOUT", setDuration(&c.AI.Timeout)},
		{"SEARCH_TEXT_WEIGHT", setFloat(&c.Search.TextWeight)},
		{"SEARCH_SEMANTIC_WEIGHT", setFloat(&c.Search.SemanticWeight)},
		{"SEARCH_SINGLE_SOURCE_PENALTY", setFloat(&c.Search.SingleSourcePenalty)},
		{"SEARCH_EXACT_THRESHOLD", setFloat(&c.Search.ExactThreshold)},
		{"SEARCH_SEMANTIC_TIMEOUT", setDuration(&c.Search.SemanticTimeout)},
		{"SEARCH_TOP_K", setInt(&c.Search.TopK)},
		{"SEARCH_MIN_SIMILARITY", setFloat(&c.Search.MinSimilarity)},
		{"JOBS_WORKERS", setInt(&c.Jobs.Workers)},
		{"JOBS_RETENTION", setDuration(&c.Jobs.Retention)},
		{"EMBED_BATCH_SIZE", setInt(&c.Embedding.BatchSize)},
		{"EMBED_MAX_RETRIES", setInt(&c.Embedding.MaxRetries)},
		{"EMBED_RETRY_DELAY", setDuration(&c.Embedding.RetryDelay)},
		{"QDRANT_ADDR", setString(&c.Qdrant.Addr)},
		{"QDRANT_COLLECTION", setString(&c.Qdrant.Collection)},
		{"NATS_URL", setString(&c.NATS.URL)},
		{"NATS_SUBJECT", setString(&c.NATS.Subject)},
	}

	for _, v := range vars {
		raw, ok := lookup(EnvPrefix + v.key)
		if !ok {
			continue
		}
		if err := v.set(raw); err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, v.key, err)
		}
	}
	return nil
}

func setString(dst *string) func(string) error {
	return func(s string) error {
		*dst = s
		return nil
	}
}

func setBool(dst *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func setInt(dst *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func setFloat(dst *float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

func setDuration(dst *time.Duration) func(string) error {
	return func(s string) error {
		v, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		*dst = v
		return nil
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("config: data_dir is required")
	}
	if c.AI.Enabled {
		if err := c.AIConfig().Validate(); err != nil {
			return err
		}
	}
	if err := c.SearchConfig().Validate(); err != nil {
		return fmt.Errorf("config: search: %w", err)
	}
	if c.Jobs.Workers < 1 {
		return fmt.Errorf("config: jobs.workers must be positive, got %d", c.Jobs.Workers)
	}
	if c.Jobs.Retention < 0 {
		return fmt.Errorf("config: jobs.retention must not be negative, got %s", c.Jobs.Retention)
	}
	if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > core.MaxEmbedBatchSize {
		return fmt.Errorf("config: embedding.batch_size must be between 1 and %d, got %d", core.MaxEmbedBatchSize, c.Embedding.BatchSize)
	}
	if c.Embedding.MaxRetries < 1 {
		return fmt.Errorf("config: embedding.max_retries must be positive, got %d", c.Embedding.MaxRetries)
	}
	return nil
}

// AIConfig returns the embedding provider configuration.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.AI.Host),
		ai.WithEmbeddingModel(c.AI.Model),
		ai.WithAPIKey(c.AI.APIKey),
		ai.WithDimensions(c.AI.Dimensions),
		ai.WithRequestsPerSecond(c.AI.RequestsPerSecond),
		ai.WithTimeout(c.AI.Timeout),
	)
}

func (c *Config) SearchConfig() search.Config {
	return search.Config{
		TextWeight:          c.Search.TextWeight,
		SemanticWeight:      c.Search.SemanticWeight,
		SingleSourcePenalty: c.Search.SingleSourcePenalty,
		ExactThreshold:      c.Search.ExactThreshold,
		SemanticTimeout:     c.Search.SemanticTimeout,
		TopK:                c.Search.TopK,
		MinSimilarity:       c.Search.MinSimilarity,
	}
}

// EmbedConfig returns the embed stage configuration.
func (c *Config) EmbedConfig() *reembed.Config {
	cfg := reembed.DefaultConfig()
	cfg.BatchSize = c.Embedding.BatchSize
	cfg.MaxRetries = c.Embedding.MaxRetries
	cfg.RetryDelay = c.Embedding.RetryDelay
	cfg.Dimensions = c.AI.Dimensions
	return cfg
}
