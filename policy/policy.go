// Package policy decides which functions may be invoked. A policy can be set
// on the kernel or carried by the invocation context; the context one wins.
package policy

import (
	"context"
	"strings"
)

// Admission modes
const (
	ModeAsk  = "ask"  // ask before every invocation
	ModeAuto = "auto" // admit automatically (default)
	ModeDeny = "deny" // refuse every invocation
)

// AskFunc approves an invocation when Mode is ask. It may mutate the policy,
// e.g. switch to ModeAuto after the first approval.
type AskFunc func(ctx context.Context, function string, parameter interface{}, p *Policy) bool

// Policy admits function invocations. A nil *Policy admits everything.
type Policy struct {
	Mode      string
	AllowList []string // empty admits all functions
	BlockList []string
	Ask       AskFunc
}

// Config is the declarative part of a Policy
type Config struct {
	Mode      string   `json:"mode,omitempty" yaml:"mode,omitempty" toml:"mode,omitempty"`
	AllowList []string `json:"allow,omitempty" yaml:"allow,omitempty" toml:"allow,omitempty"`
	BlockList []string `json:"block,omitempty" yaml:"block,omitempty" toml:"block,omitempty"`
}

// FromConfig creates a policy without AskFunc
func FromConfig(c *Config) *Policy {
	if c == nil {
		return nil
	}
	return &Policy{
		Mode:      c.Mode,
		AllowList: append([]string(nil), c.AllowList...),
		BlockList: append([]string(nil), c.BlockList...),
	}
}

// IsAllowed evaluates the lists by case-insensitive function name; the block
// list has priority.
func (p *Policy) IsAllowed(function string) bool {
	if p == nil {
		return true
	}
	for _, blocked := range p.BlockList {
		if strings.EqualFold(function, blocked) {
			return false
		}
	}
	if len(p.AllowList) == 0 {
		return true
	}
	for _, allowed := range p.AllowList {
		if strings.EqualFold(function, allowed) {
			return true
		}
	}
	return false
}

// Admit reports whether function may be invoked with parameter
func (p *Policy) Admit(ctx context.Context, function string, parameter interface{}) bool {
	if p == nil {
		return true
	}
	if !p.IsAllowed(function) {
		return false
	}
	switch strings.ToLower(p.Mode) {
	case ModeDeny:
		return false
	case ModeAsk:
		if p.Ask == nil {
			return false
		}
		return p.Ask(ctx, function, parameter, p)
	}
	return true
}

type ctxKeyT struct{}

var ctxKey ctxKeyT

// WithPolicy embeds policy in ctx
func WithPolicy(ctx context.Context, p *Policy) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey, p)
}

// FromContext returns the policy carried by ctx, nil if none
func FromContext(ctx context.Context) *Policy {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxKey).(*Policy); ok {
		return v
	}
	return nil
}
