package feeds

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// configFile represents the structure of the feeds configuration file.
type configFile struct {
	Feeds []Feed `json:"feeds" yaml:"feeds"`
}

// Feed declares one RSS source to poll.
type Feed struct {
	ID       string `json:"id" yaml:"id"`
	URL      string `json:"url" yaml:"url"`
	Category string `json:"category" yaml:"category"`
	Enabled  *bool  `json:"enabled" yaml:"enabled"`
}

// EnabledValue returns the enabled flag, defaulting to true.
func (f Feed) EnabledValue() bool {
	if f.Enabled == nil {
		return true
	}
	return *f.Enabled
}

// Registry holds the feed definitions loaded from a config file.
type Registry struct {
	mu    sync.RWMutex
	feeds []Feed
	idx   map[string]Feed
}

// LoadRegistry loads feed definitions from a YAML/JSON file. Environment
// variable references in the file are expanded before decoding.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("feeds file path is empty")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read feeds file: %w", err)
	}

	expanded := []byte(os.ExpandEnv(string(raw)))

	cfg, err := decodeFeedsFile(expanded, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(cfg.Feeds) == 0 {
		return nil, errors.New("feeds file contains no feed entries")
	}

	reg := &Registry{
		feeds: make([]Feed, len(cfg.Feeds)),
		idx:   make(map[string]Feed, len(cfg.Feeds)),
	}

	for i := range cfg.Feeds {
		feed := sanitizeFeed(cfg.Feeds[i])
		if err := validateFeed(feed); err != nil {
			return nil, fmt.Errorf("feeds[%d]: %w", i, err)
		}
		if _, exists := reg.idx[feed.ID]; exists {
			return nil, fmt.Errorf("duplicate feed id %q", feed.ID)
		}
		reg.feeds[i] = feed
		reg.idx[feed.ID] = feed
	}

	return reg, nil
}

// decodeFeedsFile attempts to decode the file content by extension.
func decodeFeedsFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	decoders := []struct {
		ext string
		fn  func([]byte, any) error
	}{
		{ext: ".yaml", fn: yaml.Unmarshal},
		{ext: ".yml", fn: yaml.Unmarshal},
		{ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		var cfg configFile
		if err := d.fn(data, &cfg); err == nil {
			return cfg, nil
		}
	}

	return configFile{}, errors.New("feeds file format not recognized (expected YAML or JSON)")
}

// sanitizeFeed trims and normalizes the feed fields.
func sanitizeFeed(f Feed) Feed {
	f.ID = strings.ToLower(strings.TrimSpace(f.ID))
	f.URL = strings.TrimSpace(f.URL)
	f.Category = strings.TrimSpace(f.Category)
	if f.Enabled == nil {
		def := true
		f.Enabled = &def
	}
	return f
}

// validateFeed checks that required fields are present and the URL is
// absolute.
func validateFeed(f Feed) error {
	if f.ID == "" {
		return errors.New("id is required")
	}
	if f.URL == "" {
		return fmt.Errorf("url is required for feed %q", f.ID)
	}
	parsed, err := url.Parse(f.URL)
	if err != nil || !parsed.IsAbs() {
		return fmt.Errorf("url %q is not absolute for feed %q", f.URL, f.ID)
	}
	return nil
}

// ByID returns the feed definition by id.
func (r *Registry) ByID(id string) (Feed, bool) {
	if r == nil {
		return Feed{}, false
	}

	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return Feed{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.idx[id]
	return f, ok
}

// All returns all configured feeds.
func (r *Registry) All() []Feed {
	if r == nil {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Feed, len(r.feeds))
	copy(out, r.feeds)
	return out
}

// Enabled returns the feeds that are enabled.
func (r *Registry) Enabled() []Feed {
	all := r.All()
	if len(all) == 0 {
		return nil
	}

	out := make([]Feed, 0, len(all))
	for _, f := range all {
		if f.EnabledValue() {
			out = append(out, f)
		}
	}
	return out
}
