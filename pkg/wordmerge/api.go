package wordmerge

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Engine prepares templates and holds the evaluators, configuration and
// cache they share. Use New or NewWithOptions to create one.
type Engine struct {
	mu     sync.RWMutex // guards config and cache
	config *Config
	cache  *TemplateCache

	registry *Registry
	logger   *Logger
	metrics  *Metrics
	codes    CodeRenderer
}

// New creates an engine from the global configuration with the built-in
// evaluators.
func New() *Engine {
	return NewWithConfig(GetGlobalConfig())
}

// NewWithConfig creates an engine with its own configuration.
func NewWithConfig(config *Config) *Engine {
	config = NewConfigWithDefaults(config)
	return &Engine{
		config: config,
		cache: NewTemplateCacheWithConfig(CacheConfig{
			MaxSize: config.CacheMaxSize,
			TTL:     config.CacheTTL,
		}),
		registry: NewRegistry(),
		codes:    DefaultCodeRenderer,
	}
}

// Option represents a configuration option for the engine.
type Option func(*Engine)

// WithConfig returns an option that replaces the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		config := NewConfigWithDefaults(config)
		e.mu.Lock()
		defer e.mu.Unlock()
		e.config = config
		e.cache = NewTemplateCacheWithConfig(CacheConfig{MaxSize: config.CacheMaxSize, TTL: config.CacheTTL})
	}
}

// WithCache returns an option that sets the cache size (0 disables caching).
func WithCache(maxSize int) Option {
	return func(e *Engine) {
		e.resizeCache(maxSize, e.Config().CacheTTL)
	}
}

// WithEvaluator returns an option that registers a custom evaluator.
func WithEvaluator(name string, fn Func) Option {
	return func(e *Engine) {
		e.registry.RegisterFunc(name, fn)
	}
}

// WithLogger returns an option that sets the logger used by exports. By
// default the package logger is used.
func WithLogger(logger *Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics returns an option that records export metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// WithCodeRenderer returns an option that replaces the barcode and QR code
// renderer.
func WithCodeRenderer(r CodeRenderer) Option {
	return func(e *Engine) {
		e.codes = r
	}
}

func loggerOr(l *Logger) *Logger {
	if l != nil {
		return l
	}
	return GetLogger()
}

// NewWithOptions creates a new engine with the specified options.
func NewWithOptions(opts ...Option) *Engine {
	engine := New()
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// PrepareFile loads a template from a file path. Templates are cached by
// path when caching is enabled.
func (e *Engine) PrepareFile(path string) (*Template, error) {
	config, cache := e.settings()
	if config.CacheMaxSize > 0 {
		if tmpl, ok := cache.Get(path); ok {
			loggerOr(e.logger).WithField("path", path).Debug("Template cache hit")
			return tmpl, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open template file: %w", err)
	}
	defer file.Close()

	tmpl, err := e.Prepare(file)
	if err != nil {
		return nil, err
	}

	if config.CacheMaxSize > 0 {
		cache.Set(path, tmpl)
	}
	return tmpl, nil
}

// Prepare loads a template from r.
func (e *Engine) Prepare(r io.Reader) (*Template, error) {
	if r == nil {
		return nil, ErrNilSource
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return nil, NewDocumentError("read", "", err)
	}
	return newTemplate(buf.Bytes(), e)
}

// PrepareBytes loads a template held in memory.
func (e *Engine) PrepareBytes(b []byte) (*Template, error) {
	return newTemplate(b, e)
}

// RegisterEvaluator adds or replaces the evaluator called name. Names are
// case-insensitive; templates prepared earlier see the change too.
func (e *Engine) RegisterEvaluator(name string, fn Func) {
	e.registry.RegisterFunc(name, fn)
}

// Evaluators lists the registered evaluator names.
func (e *Engine) Evaluators() []string {
	return e.registry.Names()
}

// Config returns the engine's configuration.
func (e *Engine) Config() *Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config
}

func (e *Engine) settings() (*Config, *TemplateCache) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config, e.cache
}

// resizeCache replaces the cache with an empty one of the given size.
func (e *Engine) resizeCache(maxSize int, ttl time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	config := *e.config
	config.CacheMaxSize = maxSize
	config.CacheTTL = ttl
	e.config = &config
	e.cache = NewTemplateCacheWithConfig(CacheConfig{MaxSize: maxSize, TTL: ttl})
}

// Metrics returns the metrics exports record to, or nil.
func (e *Engine) Metrics() *Metrics {
	return e.metrics
}

// ClearCache removes all templates from the cache.
func (e *Engine) ClearCache() {
	_, cache := e.settings()
	cache.Clear()
}

// DefaultEngine is the engine behind the package-level functions.
var DefaultEngine = New()

// PrepareFile loads a template from a file path using the default engine.
func PrepareFile(path string) (*Template, error) {
	return DefaultEngine.PrepareFile(path)
}

// Prepare loads a template from r using the default engine.
func Prepare(r io.Reader) (*Template, error) {
	return DefaultEngine.Prepare(r)
}

// RegisterEvaluator registers an evaluator on the default engine.
func RegisterEvaluator(name string, fn Func) {
	DefaultEngine.RegisterEvaluator(name, fn)
}

// ClearCache clears the default engine's template cache.
func ClearCache() {
	DefaultEngine.ClearCache()
}

// SetCacheConfig resizes the default engine's cache. Cached templates are
// dropped.
func SetCacheConfig(maxSize int, ttl time.Duration) {
	DefaultEngine.resizeCache(maxSize, ttl)
}
