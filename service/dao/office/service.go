// Package office loads office definitions from yaml, json or toml documents.
package office

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/floor/internal/yml"
	"github.com/viant/floor/model"
	"github.com/viant/floor/service/meta"
	"gopkg.in/yaml.v3"
)

// Service loads and initialises offices
type Service struct {
	metaService  *meta.Service
	rootNodeName string
}

// Option configures the service
type Option func(s *Service)

// WithMetaService sets the document loader
func WithMetaService(metaService *meta.Service) Option {
	return func(s *Service) {
		s.metaService = metaService
	}
}

// WithRootNodeName sets the optional key wrapping the office in yaml documents
func WithRootNodeName(name string) Option {
	return func(s *Service) {
		s.rootNodeName = name
	}
}

// New creates an office loader
func New(options ...Option) *Service {
	ret := &Service{rootNodeName: "office"}
	for _, option := range options {
		option(ret)
	}
	if ret.metaService == nil {
		ret.metaService = meta.New(afs.New(), "")
	}
	return ret
}

// Load loads the office at URL; a URL without extension is read as yaml
func (s *Service) Load(ctx context.Context, URL string) (*model.Office, error) {
	if path.Ext(URL) == "" {
		URL += ".yaml"
	}
	data, err := s.metaService.Download(ctx, URL)
	if err != nil {
		return nil, err
	}
	var office *model.Office
	if strings.EqualFold(path.Ext(URL), ".toml") {
		office, err = s.DecodeTOML(data)
	} else {
		office, err = s.DecodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load office from %s: %w", URL, err)
	}
	return s.init(URL, office)
}

// DecodeYAML decodes an office, optionally wrapped by the root node key
func (s *Service) DecodeYAML(encoded []byte) (*model.Office, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(encoded, &document); err != nil {
		return nil, err
	}
	root := (*yml.Node)(&document).Root()
	if s.rootNodeName != "" {
		if wrapped := root.Lookup(s.rootNodeName); wrapped != nil && wrapped.Kind == yaml.MappingNode {
			root = wrapped
		}
	}
	office := &model.Office{}
	if err := root.Decode(office); err != nil {
		return nil, err
	}
	return office, nil
}

// DecodeTOML decodes an office from toml
func (s *Service) DecodeTOML(encoded []byte) (*model.Office, error) {
	office := &model.Office{}
	if err := meta.Decode("office.toml", encoded, office); err != nil {
		return nil, err
	}
	return office, nil
}

func (s *Service) init(URL string, office *model.Office) (*model.Office, error) {
	office.Source = &model.Source{URL: URL}
	if office.Name == "" {
		base := path.Base(URL)
		office.Name = strings.TrimSuffix(base, path.Ext(base))
	}
	if err := office.Init(); err != nil {
		return nil, fmt.Errorf("invalid office %v: %w", office.Name, err)
	}
	return office, nil
}
