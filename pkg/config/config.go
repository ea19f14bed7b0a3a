package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	ArchiveDSN string           `toml:"archive_dsn"`
	Search     SearchConfig     `toml:"search"`
	Fetch      FetchConfig      `toml:"fetch"`
	Politeness PolitenessConfig `toml:"politeness"`
	Analysis   AnalysisConfig   `toml:"analysis"`
	Logging    LoggingConfig    `toml:"logging"`
}

type SearchConfig struct {
	MaxResults int    `toml:"max_results"`
	UserAgent  string `toml:"user_agent"`
}

type FetchConfig struct {
	MaxFetch int    `toml:"max_fetch"`
	Workers  int    `toml:"workers"`
	Timeout  string `toml:"timeout"`
	Backoff  string `toml:"backoff"`
}

type PolitenessConfig struct {
	Delay         string `toml:"delay"`
	RobotsTimeout string `toml:"robots_timeout"`
}

type AnalysisConfig struct {
	MinWords       int    `toml:"min_words"`
	TopKeyphrases  int    `toml:"top_keyphrases"`
	TopTopics      int    `toml:"top_topics"`
	ReputationFile string `toml:"reputation_file"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Load reads a TOML config file. A missing file is not an error: the tool
// runs on defaults when no config is present.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func Default() *Config {
	return &Config{
		Search: SearchConfig{
			MaxResults: 15,
			UserAgent:  "deepsearch/1.0 (+https://github.com/devraulu/deepsearch)",
		},
		Fetch: FetchConfig{
			MaxFetch: 5,
			Workers:  4,
			Timeout:  "10s",
			Backoff:  "1s",
		},
		Politeness: PolitenessConfig{
			Delay:         "1s",
			RobotsTimeout: "5s",
		},
		Analysis: AnalysisConfig{
			MinWords:      20,
			TopKeyphrases: 6,
			TopTopics:     10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func (c *FetchConfig) GetTimeout() time.Duration {
	return parseDuration(c.Timeout, 10*time.Second)
}

func (c *FetchConfig) GetBackoff() time.Duration {
	return parseDuration(c.Backoff, 1*time.Second)
}

func (c *PolitenessConfig) GetDelay() time.Duration {
	return parseDuration(c.Delay, 1*time.Second)
}

func (c *PolitenessConfig) GetRobotsTimeout() time.Duration {
	return parseDuration(c.RobotsTimeout, 5*time.Second)
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
