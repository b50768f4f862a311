// Package memory implements a translation memory file — a YAML map from
// MD5 checksums of paragraph text to stored translations, per target
// language. Re-running a translation reuses stored results and only sends
// new or changed paragraphs to the AI provider, saving tokens and time.
package memory

import (
	"crypto/md5"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Version is the memory file format version.
const Version = 1

// File represents a translation memory file.
type File struct {
	Version int `yaml:"version"`
	// Languages maps target language -> text checksum -> translation.
	Languages map[string]map[string]string `yaml:"languages"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// Load reads a translation memory file.
// Returns an empty memory if the file doesn't exist.
func Load(path string) (*File, error) {
	f := &File{
		Version:   Version,
		Languages: make(map[string]map[string]string),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	f.path = path

	if f.Languages == nil {
		f.Languages = make(map[string]map[string]string)
	}
	return f, nil
}

// Save writes the memory file to disk.
func (f *File) Save() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.path == "" {
		return fmt.Errorf("memory file path not set")
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling translation memory: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", f.path, err)
	}
	return nil
}

// Path returns the memory file path.
func (f *File) Path() string {
	return f.path
}

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Get returns the stored translation for a paragraph text, if any.
func (f *File) Get(lang, text string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entries, ok := f.Languages[lang]
	if !ok {
		return "", false
	}
	out, ok := entries[Hash(text)]
	return out, ok
}

// Put records a translation for a paragraph text.
func (f *File) Put(lang, text, translated string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Languages[lang] == nil {
		f.Languages[lang] = make(map[string]string)
	}
	f.Languages[lang][Hash(text)] = translated
}

// Size returns how many translations are stored for a language.
func (f *File) Size(lang string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Languages[lang])
}
