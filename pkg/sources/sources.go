package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Package sources holds the XMLTV source list and the fetchers that download it.

const (
	TypeXMLTVGzip  = "xmltv_gzip"
	TypeXMLTV      = "xmltv"
	TypeXMLTVIndex = "xmltv_index"

	ConfigPatternKey = "pattern"
	ConfigSuffixKey  = "suffix"
)

// Source is one remote XMLTV document (or listing of documents).
type Source struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Type           string            `json:"type" yaml:"type"`
	URL            string            `json:"url" yaml:"url"`
	Enabled        *bool             `json:"enabled" yaml:"enabled"`
	TimeoutSeconds int               `json:"timeout_seconds" yaml:"timeout_seconds"`
	Headers        map[string]string `json:"headers" yaml:"headers"`
	Config         map[string]any    `json:"config" yaml:"config"`
}

type configFile struct {
	Sources []Source `json:"sources" yaml:"sources"`
}

// builtinSources is the list used when no sources file is configured.
var builtinSources = []Source{
	{ID: "epgshare01_ca1", Name: "epgshare01 CA1", URL: "https://epgshare01.online/epgshare01/epg_ripper_CA1.xml.gz"},
	{ID: "epgshare01_fanduel1", Name: "epgshare01 FANDUEL1", URL: "https://epgshare01.online/epgshare01/epg_ripper_FANDUEL1.xml.gz"},
	{ID: "epgshare01_us1", Name: "epgshare01 US1", URL: "https://epgshare01.online/epgshare01/epg_ripper_US1.xml.gz"},
	{ID: "epgshare01_us_sports1", Name: "epgshare01 US_SPORTS1", URL: "https://epgshare01.online/epgshare01/epg_ripper_US_SPORTS1.xml.gz"},
}

// Registry is an ordered, validated list of sources.
type Registry struct {
	sources []Source
	idx     map[string]int
}

// DefaultRegistry returns the built-in source list.
func DefaultRegistry() *Registry {
	reg, err := NewRegistry(builtinSources)
	if err != nil {
		panic(fmt.Sprintf("builtin sources invalid: %v", err))
	}
	return reg
}

// LoadRegistry loads sources from a YAML/JSON file. An empty path selects the
// built-in list.
func LoadRegistry(path string) (*Registry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultRegistry(), nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sources file: %w", err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}

	cfg, err := parseConfigFile(raw, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("sources file contains no sources entries")
	}
	return NewRegistry(cfg.Sources)
}

// NewRegistry sanitizes and validates list, preserving its order.
func NewRegistry(list []Source) (*Registry, error) {
	reg := &Registry{
		sources: make([]Source, 0, len(list)),
		idx:     make(map[string]int, len(list)),
	}
	for i := range list {
		src := sanitizeSource(list[i])
		if err := validateSource(src); err != nil {
			return nil, fmt.Errorf("sources[%d]: %w", i, err)
		}
		if _, exists := reg.idx[src.ID]; exists {
			return nil, fmt.Errorf("duplicate source id %q", src.ID)
		}
		reg.idx[src.ID] = len(reg.sources)
		reg.sources = append(reg.sources, src)
	}
	return reg, nil
}

func parseConfigFile(data []byte, ext string) (configFile, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))

	decoders := []struct {
		name string
		ext  string
		fn   unmarshalFn
	}{
		{name: "yaml", ext: ".yaml", fn: yaml.Unmarshal},
		{name: "yaml", ext: ".yml", fn: yaml.Unmarshal},
		{name: "json", ext: ".json", fn: json.Unmarshal},
	}

	for _, d := range decoders {
		if ext != "" && ext != d.ext {
			continue
		}
		if cfg, err := unmarshalConfigFile(d.name, data, d.fn); err == nil {
			return cfg, nil
		}
	}

	return configFile{}, errors.New("sources file format not recognized (expected YAML or JSON)")
}

type unmarshalFn func([]byte, any) error

func unmarshalConfigFile(name string, data []byte, fn unmarshalFn) (configFile, error) {
	var cfg configFile
	if err := fn(data, &cfg); err != nil {
		return configFile{}, fmt.Errorf("decode %s sources: %w", name, err)
	}
	return cfg, nil
}

func sanitizeSource(s Source) Source {
	s.ID = strings.TrimSpace(s.ID)
	s.Name = strings.TrimSpace(s.Name)
	s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	s.URL = strings.TrimSpace(s.URL)

	if s.Type == "" {
		s.Type = TypeXMLTVGzip
	}
	if s.Name == "" {
		s.Name = s.ID
	}
	if s.Enabled == nil {
		def := true
		s.Enabled = &def
	}
	if s.TimeoutSeconds < 0 {
		s.TimeoutSeconds = 0
	}
	s.Headers = sanitizeHeaders(s.Headers)
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return s
}

func sanitizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		out[key] = val
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func validateSource(s Source) error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	if s.URL == "" {
		return fmt.Errorf("url is required for source %q", s.ID)
	}
	switch s.Type {
	case TypeXMLTVGzip, TypeXMLTV, TypeXMLTVIndex:
	default:
		return fmt.Errorf("unsupported type %q for source %q", s.Type, s.ID)
	}
	if pattern := ConfigString(s, ConfigPatternKey, ""); pattern != "" {
		if _, err := compilePattern(pattern); err != nil {
			return fmt.Errorf("invalid pattern for source %q: %w", s.ID, err)
		}
	}
	return nil
}

// All returns every configured source in order.
func (r *Registry) All() []Source {
	if r == nil {
		return nil
	}
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Enabled returns enabled sources in order.
func (r *Registry) Enabled() []Source {
	if r == nil {
		return nil
	}
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		if s.EnabledValue() {
			out = append(out, s)
		}
	}
	return out
}

// ByID returns the source with the given id.
func (r *Registry) ByID(id string) (Source, bool) {
	if r == nil {
		return Source{}, false
	}
	i, ok := r.idx[strings.TrimSpace(id)]
	if !ok {
		return Source{}, false
	}
	return r.sources[i], true
}

// EnabledValue returns enabled flag defaulting to true.
func (s Source) EnabledValue() bool {
	if s.Enabled == nil {
		return true
	}
	return *s.Enabled
}

// Timeout returns the per-source timeout, or fallback when unset.
func (s Source) Timeout(fallback time.Duration) time.Duration {
	if s.TimeoutSeconds > 0 {
		return time.Duration(s.TimeoutSeconds) * time.Second
	}
	return fallback
}

// MaxTimeout returns the longest timeout any of list needs.
func MaxTimeout(list []Source, fallback time.Duration) time.Duration {
	longest := fallback
	for _, s := range list {
		if t := s.Timeout(fallback); t > longest {
			longest = t
		}
	}
	return longest
}
