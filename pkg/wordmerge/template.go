package wordmerge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/benjaminschreck/go-wordmerge/pkg/wordmerge/data"
)

// Template is a prepared document template. Every export works on its own
// copy of the package, so one Template may be exported from several
// goroutines at once.
type Template struct {
	source  []byte
	config  *Config
	logger  *Logger
	metrics *Metrics
	codes   CodeRenderer

	mu          sync.Mutex
	registry    *Registry
	ownRegistry bool
}

// ExportOption configures a single export.
type ExportOption func(*exportOptions)

type exportOptions struct {
	removeFallback bool
}

// WithRemoveFallback controls whether alternate-content fallback branches
// are dropped before rendering. The default comes from Config.RemoveFallback.
func WithRemoveFallback(remove bool) ExportOption {
	return func(o *exportOptions) {
		o.removeFallback = remove
	}
}

func newTemplate(source []byte, e *Engine) (*Template, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	if _, err := ReadPackage(source); err != nil {
		return nil, err
	}
	return &Template{
		source:   source,
		config:   e.Config(),
		logger:   e.logger,
		metrics:  e.metrics,
		codes:    e.codes,
		registry: e.registry,
	}, nil
}

// RegisterEvaluator adds or replaces an evaluator for this template only.
func (t *Template) RegisterEvaluator(name string, fn Func) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.ownRegistry {
		t.registry = t.registry.Clone()
		t.ownRegistry = true
	}
	t.registry.RegisterFunc(name, fn)
}

func (t *Template) currentRegistry() *Registry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.registry
}

// Export renders the template with value and returns the resulting
// document.
//
// value may be a *data.Object or any other data tree value, a raw JSON
// document as []byte or json.RawMessage, an io.Reader yielding JSON, or any
// Go value that encodes to JSON.
func (t *Template) Export(value any, opts ...ExportOption) (io.Reader, error) {
	var buf bytes.Buffer
	if err := t.ExportTo(&buf, value, opts...); err != nil {
		return nil, err
	}
	return bytes.NewReader(buf.Bytes()), nil
}

// ExportTo renders the template with value and writes the document to w.
func (t *Template) ExportTo(w io.Writer, value any, opts ...ExportOption) (err error) {
	if t == nil || t.source == nil {
		return ErrNilSource
	}
	if value == nil {
		return ErrNilData
	}
	o := exportOptions{removeFallback: t.config.RemoveFallback}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	defer func() {
		result := "success"
		if err != nil {
			result = "error"
		}
		t.metrics.export(result, time.Since(start))
	}()

	root, err := toData(value)
	if err != nil {
		return WithContext(err, "converting data", map[string]interface{}{"type": fmt.Sprintf("%T", value)})
	}
	if root == nil {
		return ErrNilData
	}
	pkg, err := ReadPackage(t.source)
	if err != nil {
		return err
	}

	logger := loggerOr(t.logger)
	s := newSession(pkg, root, t.currentRegistry(), t.config, logger, t.metrics, t.codes)
	parts, err := s.run(o.removeFallback)
	if err != nil {
		return WithContext(err, "rendering document", nil)
	}
	if err := pkg.Write(w); err != nil {
		return err
	}
	logger.WithFields(Fields{"parts": parts, "duration": time.Since(start).String()}).Info("Export finished")
	return nil
}

// toData converts an export argument into the data tree.
func toData(value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return data.ParseJSON(bytes.NewReader(v))
	case json.RawMessage:
		return data.ParseJSON(bytes.NewReader(v))
	case io.Reader:
		return data.ParseJSON(v)
	}
	return data.From(value)
}
