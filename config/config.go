// Package config — .docxtrans.yaml configuration file support.
//
// When a .docxtrans.yaml file exists in the working directory, it supplies
// defaults for the translate command. Flags always win over the file;
// the file wins over built-in defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .docxtrans.yaml structure.
type File struct {
	// Provider is the default AI provider ID (google, groq, anthropic,
	// custom-openai, ollama).
	Provider string `yaml:"provider,omitempty"`
	// Model overrides the provider's default model.
	Model string `yaml:"model,omitempty"`
	// BaseURL overrides the provider's API base URL (custom-openai).
	BaseURL string `yaml:"base_url,omitempty"`
	// TargetLang is the default target language code.
	TargetLang string `yaml:"target_lang,omitempty"`
	// SourceLang is the source language code ("" = auto-detect).
	SourceLang string `yaml:"source_lang,omitempty"`
	// BatchSize is how many paragraphs to send per API call.
	BatchSize int `yaml:"batch_size,omitempty"`
	// Concurrency bounds parallel API calls.
	Concurrency int `yaml:"concurrency,omitempty"`
	// TimeoutSeconds is the per-request timeout.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
	// Proxy is an optional HTTP/HTTPS proxy URL.
	Proxy string `yaml:"proxy,omitempty"`
	// Prompt overrides the system prompt.
	Prompt string `yaml:"prompt,omitempty"`
}

// FileName is the config file name looked up in the working directory.
const FileName = ".docxtrans.yaml"

// Timeout returns the configured request timeout, zero when unset.
func (f *File) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads and validates .docxtrans.yaml from the given directory.
// Returns nil if no config file exists.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.BatchSize < 0 {
		return nil, fmt.Errorf("%s: batch_size must not be negative", path)
	}
	if f.Concurrency < 0 {
		return nil, fmt.Errorf("%s: concurrency must not be negative", path)
	}
	if f.TimeoutSeconds < 0 {
		return nil, fmt.Errorf("%s: timeout_seconds must not be negative", path)
	}

	return &f, nil
}
