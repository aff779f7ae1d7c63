// Package meta loads configuration documents from any afs supported storage.
package meta

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/viant/afs"
	"github.com/viant/afs/url"
	"gopkg.in/yaml.v3"
)

// Service downloads documents, expands ${env.KEY} expressions and decodes
// them by extension: .toml with toml, anything else with yaml (json included).
type Service struct {
	fs      afs.Service
	baseURL string
	lookup  func(key string) string
}

// Option configures the service
type Option func(s *Service)

// WithEnv sets the lookup resolving ${env.KEY} expressions
func WithEnv(lookup func(key string) string) Option {
	return func(s *Service) {
		s.lookup = lookup
	}
}

// New creates a service resolving relative URLs against baseURL
func New(fs afs.Service, baseURL string, options ...Option) *Service {
	if fs == nil {
		fs = afs.New()
	}
	ret := &Service{fs: fs, baseURL: baseURL}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// URL returns the location resolved against the base URL
func (s *Service) URL(location string) string {
	if s.baseURL == "" || !url.IsRelative(location) {
		return location
	}
	return url.Join(s.baseURL, location)
}

// Download returns the expanded document content
func (s *Service) Download(ctx context.Context, URL string) ([]byte, error) {
	data, err := s.fs.DownloadWithURL(ctx, s.URL(URL))
	if err != nil {
		return nil, fmt.Errorf("failed to download %v: %w", URL, err)
	}
	return []byte(expandEnv(string(data), s.lookup)), nil
}

// Load decodes the document at URL into target
func (s *Service) Load(ctx context.Context, URL string, target interface{}) error {
	data, err := s.Download(ctx, URL)
	if err != nil {
		return err
	}
	return Decode(URL, data, target)
}

// Decode decodes data into target according to the URL extension
func Decode(URL string, data []byte, target interface{}) error {
	var err error
	switch strings.ToLower(path.Ext(URL)) {
	case ".toml":
		err = toml.Unmarshal(data, target)
	default:
		err = yaml.Unmarshal(data, target)
	}
	if err != nil {
		return fmt.Errorf("failed to decode %v: %w", URL, err)
	}
	return nil
}
