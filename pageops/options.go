package pageops

// Option configures a Document.
type Option func(*options)

type options struct {
	fonts       *FontRegistry
	producer    string
	title       string
	compression bool
}

func defaultOptions() options {
	return options{producer: "pdfstamp", compression: true}
}

// WithFonts sets the font registry used to resolve font keys.
func WithFonts(r *FontRegistry) Option {
	return func(o *options) { o.fonts = r }
}

// WithProducer sets the /Producer and /Creator entries of saved documents.
func WithProducer(name string) Option {
	return func(o *options) { o.producer = name }
}

// WithTitle sets the /Title entry of saved documents.
func WithTitle(title string) Option {
	return func(o *options) { o.title = title }
}

// WithCompression turns content stream compression on or off.
func WithCompression(on bool) Option {
	return func(o *options) { o.compression = on }
}
