// Package pdfstamp fills PDF templates with data.
//
// An Engine renders two kinds of requests. A template (package doctpl)
// places record values at fixed positions on the pages of a source PDF,
// cloning pages for content that overflows. A form configuration (package
// form) draws values over the text fields of an AcroForm PDF and flattens
// it. Both fetch their source PDF, and optionally a PDF whose first page is
// appended, through a fetch.Fetcher:
//
//	engine := pdfstamp.New(pdfstamp.WithLogger(logger))
//	tpl, err := doctpl.Parse(config)
//	if err != nil {
//	    return err
//	}
//	res, err := engine.RenderTemplate(ctx, tpl)
//	if err != nil {
//	    return err
//	}
//	os.WriteFile(res.FileName, res.PDF, 0o644)
//
// Elements that cannot be drawn are skipped and listed in Result.Skipped;
// only failures to fetch or parse the PDFs themselves fail a render.
package pdfstamp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lvillar/pdfstamp/doctpl"
	"github.com/lvillar/pdfstamp/fetch"
	"github.com/lvillar/pdfstamp/form"
	"github.com/lvillar/pdfstamp/pageops"
)

// Engine renders templates and fills forms. It holds no per-request state
// and is safe for concurrent use.
type Engine struct {
	fetcher          fetch.Fetcher
	log              *zap.Logger
	imageConcurrency int
	defaultFont      string
	formFont         string
	producer         string
	now              func() time.Time
}

// New returns an Engine. Without options it fetches over HTTP with the
// fetch package defaults and logs nothing.
func New(opts ...Option) *Engine {
	e := defaultEngine()
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is a rendered document.
type Result struct {
	PDF      []byte
	FileName string
	Pages    int
	Skipped  []doctpl.Skip
}

// sources are the parsed PDFs of one request.
type sources struct {
	base     *pageops.Source
	appendix *pageops.Source
}

// load fetches the source PDF and, when appendURL is set, the append PDF
// concurrently. Either failure is fatal.
func (e *Engine) load(ctx context.Context, sourceURL, appendURL string) (*sources, error) {
	if sourceURL == "" {
		return nil, ErrNoSource
	}
	var base, extra []byte
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := e.fetcher.Fetch(ctx, sourceURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSourceFetch, err)
		}
		base = data
		return nil
	})
	if appendURL != "" {
		g.Go(func() error {
			data, err := e.fetcher.Fetch(ctx, appendURL)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrAppendFetch, err)
			}
			extra = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s := &sources{}
	var err error
	if s.base, err = parseSource(sourceURL, base, ErrSourceParse); err != nil {
		return nil, err
	}
	if appendURL != "" {
		if s.appendix, err = parseSource(appendURL, extra, ErrAppendParse); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func parseSource(name string, data []byte, sentinel error) (*pageops.Source, error) {
	src, err := pageops.ParseSource(name, data)
	switch {
	case errors.Is(err, pageops.ErrEncrypted):
		return nil, fmt.Errorf("%w: %w: %s", sentinel, ErrEncrypted, name)
	case err != nil:
		return nil, fmt.Errorf("%w: %w", sentinel, err)
	}
	return src, nil
}

func (e *Engine) document(src *pageops.Source, fileName string) *pageops.Document {
	return pageops.NewDocument(src,
		pageops.WithFonts(pageops.NewFontRegistry(e.defaultFont)),
		pageops.WithProducer(e.producer),
		pageops.WithTitle(fileName),
	)
}

func appendURL(d doctpl.DisplayConfig) string {
	if !d.EnablePageAppend {
		return ""
	}
	return d.AppendPageURL
}

// RenderTemplate draws tpl onto its source PDF.
func (e *Engine) RenderTemplate(ctx context.Context, tpl *doctpl.Template) (*Result, error) {
	const op = "RenderTemplate"
	start := e.now()
	if tpl == nil {
		return nil, newRenderError(op, fmt.Errorf("%w: nil template", ErrInvalidConfig))
	}
	srcs, err := e.load(ctx, tpl.SourcePDFURL, appendURL(tpl.Display))
	if err != nil {
		return nil, newRenderError(op, err)
	}
	doc := e.document(srcs.base, tpl.FileName)

	images := e.images(ctx, doctpl.ImageURLs(tpl.Nodes, tpl.Data))
	r, err := doctpl.NewRenderer(doc, doctpl.WithLogger(e.log), doctpl.WithImages(images))
	if err != nil {
		return nil, newRenderError(op, fmt.Errorf("%w: %w", ErrSourceParse, err))
	}
	if err := r.Render(tpl, srcs.appendix); err != nil {
		return nil, newRenderError(op, err)
	}
	return e.finish(op, doc, tpl.FileName, r.Skipped(), start)
}

// FillForm draws the configured values over the form fields of the source
// PDF and flattens the form.
func (e *Engine) FillForm(ctx context.Context, cfg *form.Config) (*Result, error) {
	const op = "FillForm"
	start := e.now()
	if cfg == nil {
		return nil, newRenderError(op, fmt.Errorf("%w: nil form configuration", ErrInvalidConfig))
	}
	srcs, err := e.load(ctx, cfg.SourcePDFURL, appendURL(cfg.Display))
	if err != nil {
		return nil, newRenderError(op, err)
	}
	doc := e.document(srcs.base, cfg.FileName)

	f, err := form.NewFiller(doc, form.WithLogger(e.log), form.WithFont(e.formFont))
	if err != nil {
		return nil, newRenderError(op, fmt.Errorf("%w: %w", ErrSourceParse, err))
	}
	if err := f.Fill(cfg, srcs.appendix); err != nil {
		return nil, newRenderError(op, err)
	}
	return e.finish(op, doc, cfg.FileName, f.Skipped(), start)
}

func (e *Engine) finish(op string, doc *pageops.Document, fileName string, skipped []doctpl.Skip, start time.Time) (*Result, error) {
	data, err := doc.Save()
	if err != nil {
		return nil, newRenderError(op, err)
	}
	if fileName == "" {
		fileName = "document.pdf"
	}
	res := &Result{PDF: data, FileName: fileName, Pages: doc.NumPages(), Skipped: skipped}
	e.log.Info("rendered",
		zap.String("op", op),
		zap.String("file", fileName),
		zap.Int("pages", res.Pages),
		zap.Int("skipped", len(skipped)),
		zap.Int("bytes", len(data)),
		zap.Duration("duration", e.now().Sub(start)))
	return res, nil
}

// images prefetches urls and returns a loader over the results. Images are
// decoded once on first use.
func (e *Engine) images(ctx context.Context, urls []string) doctpl.ImageLoader {
	fetched := fetch.Prefetch(ctx, e.fetcher, urls, e.imageConcurrency)
	var mu sync.Mutex
	decoded := map[string]*pageops.Image{}
	return func(url string) (*pageops.Image, error) {
		mu.Lock()
		defer mu.Unlock()
		if img, ok := decoded[url]; ok {
			return img, nil
		}
		res, ok := fetched[url]
		if !ok {
			return nil, fmt.Errorf("%w: %s was not prefetched", doctpl.ErrImageFetch, url)
		}
		if res.Err != nil {
			return nil, fmt.Errorf("%w: %w", doctpl.ErrImageFetch, res.Err)
		}
		img, err := pageops.DecodeImage(res.Data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", doctpl.ErrImageFormat, url, err)
		}
		decoded[url] = img
		return img, nil
	}
}
