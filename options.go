package pdfstamp

import (
	"time"

	"go.uber.org/zap"

	"github.com/lvillar/pdfstamp/fetch"
	"github.com/lvillar/pdfstamp/form"
	"github.com/lvillar/pdfstamp/pageops"
)

// Option is a functional option for configuring an Engine via New.
type Option func(*Engine)

// WithLogger sets the logger renders and skipped elements are reported to.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithFetcher sets how source PDFs and images are retrieved.
func WithFetcher(f fetch.Fetcher) Option {
	return func(e *Engine) {
		e.fetcher = f
	}
}

// WithImageConcurrency caps the image fetches in flight per render.
func WithImageConcurrency(n int) Option {
	return func(e *Engine) {
		e.imageConcurrency = n
	}
}

// WithDefaultFont sets the font key template nodes fall back to.
func WithDefaultFont(key string) Option {
	return func(e *Engine) {
		e.defaultFont = key
	}
}

// WithFormFont sets the font key form values fall back to.
func WithFormFont(key string) Option {
	return func(e *Engine) {
		e.formFont = key
	}
}

// WithProducer sets the /Producer of rendered documents.
func WithProducer(name string) Option {
	return func(e *Engine) {
		e.producer = name
	}
}

// WithClock sets the clock render durations are measured with.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

func defaultEngine() *Engine {
	return &Engine{
		fetcher:          &fetch.HTTPFetcher{},
		log:              zap.NewNop(),
		imageConcurrency: 4,
		defaultFont:      pageops.Helvetica,
		formFont:         form.DefaultFont,
		producer:         "pdfstamp",
		now:              time.Now,
	}
}
