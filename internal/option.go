package internal

import (
	"io"

	"github.com/starford/bhc/internal/cache"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	version string
	roots   []string
	stdio   bool
	out     io.Writer

	// cache is set by openSession when the parse cache is enabled.
	cache *cache.DB
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported to LSP and MCP clients.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithRoots opens extra workspaces on top of the configured ones.
func WithRoots(roots ...string) Option {
	return func(a *application) {
		a.roots = append(a.roots, roots...)
	}
}

// WithStdio makes Run speak LSP on stdin/stdout.
func WithStdio(enabled bool) Option {
	return func(a *application) {
		a.stdio = enabled
	}
}

// WithOutput sets where one-shot commands write their result.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}
