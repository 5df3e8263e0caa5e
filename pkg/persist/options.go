package persist

import "log/slog"

// DecodePolicy decides what Bind does with stored text it cannot decode.
type DecodePolicy int

const (
	// DecodeFail makes Bind return a *DecodeError. This is the default.
	DecodeFail DecodePolicy = iota

	// DecodeFallback discards the stored text and seeds from the initial
	// value, overwriting the key.
	DecodeFallback
)

// Option is a functional option for configuring a binding.
type Option func(*options)

type options struct {
	codec        Codec
	decodePolicy DecodePolicy
	sync         bool
	logger       *slog.Logger
}

// WithCodec replaces the JSON codec.
func WithCodec(c Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// OnDecodeError sets the policy for undecodable stored text.
func OnDecodeError(p DecodePolicy) Option {
	return func(o *options) {
		o.decodePolicy = p
	}
}

// SyncWithStore keeps the binding up to date with writes made by others
// when the store implements storage.Watcher. Call Close to stop.
func SyncWithStore() Option {
	return func(o *options) {
		o.sync = true
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func applyOptions(opts []Option) options {
	o := options{
		codec:        JSON,
		decodePolicy: DecodeFail,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.codec == nil {
		o.codec = JSON
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}
