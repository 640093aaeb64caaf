package tag

import (
	"io"
	"log/slog"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Decoder turns raw reader output into identifiers.
type Decoder struct {
	grammar *Grammar
	logger  *slog.Logger
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithLogger sets the debug logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDecoder creates a Decoder for the given grammar.
func NewDecoder(g *Grammar, opts ...Option) *Decoder {
	d := &Decoder{
		grammar: g,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Grammar returns the decoder's grammar.
func (d *Decoder) Grammar() *Grammar {
	return d.grammar
}

// Decode resolves a QR payload or typed string. URLs are matched on their
// product path first, then the whole string is searched.
func (d *Decoder) Decode(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if strings.Contains(trimmed, "://") {
		if id, ok := d.fromURL(trimmed); ok {
			d.logger.Debug("identifier decoded from url", "identifier", id)
			return id, nil
		}
	}
	id, err := d.grammar.ParseIdentifier(trimmed)
	if err != nil {
		d.logger.Debug("no identifier in raw input", "length", len(trimmed))
		return "", err
	}
	d.logger.Debug("identifier decoded", "identifier", id)
	return id, nil
}

// DecodeNDEF walks records in order and returns the first identifier found.
func (d *Decoder) DecodeNDEF(records []Record) (Identifier, error) {
	for i, rec := range records {
		switch {
		case rec.IsText():
			if id, ok := d.fromText(rec.Payload); ok {
				d.logger.Debug("identifier decoded from text record", "record", i, "identifier", id)
				return id, nil
			}
		case rec.IsURI():
			uri, err := rec.URI()
			if err != nil {
				d.logger.Debug("skipping uri record", "record", i, "error", err)
				continue
			}
			if id, ok := d.fromURL(uri); ok {
				d.logger.Debug("identifier decoded from uri record", "record", i, "identifier", id)
				return id, nil
			}
		default:
			d.logger.Debug("skipping record", "record", i, "tnf", rec.TNF)
		}
	}
	return "", noIdentifier("ndef", "")
}

// DecodeNDEFBytes parses a binary NDEF message and decodes it.
func (d *Decoder) DecodeNDEFBytes(msg []byte) (Identifier, error) {
	records, err := ParseMessage(msg)
	if err != nil {
		return "", &DecodeError{Source: "ndef", Err: err}
	}
	return d.DecodeNDEF(records)
}

func (d *Decoder) fromText(payload []byte) (Identifier, bool) {
	text := textPayload(payload)
	if text != nil && utf8.Valid(text) {
		if id, err := d.grammar.ParseIdentifier(string(text)); err == nil {
			return id, true
		}
		return "", false
	}
	id, err := d.grammar.ParseIdentifier(asciiFallback(payload))
	return id, err == nil
}

// fromURL takes the segment after /product/, or the last path segment.
func (d *Decoder) fromURL(raw string) (Identifier, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	if len(segments) == 0 {
		return "", false
	}
	candidate := segments[len(segments)-1]
	for i, s := range segments[:len(segments)-1] {
		if strings.EqualFold(s, "product") {
			candidate = segments[i+1]
			break
		}
	}
	return d.grammar.Match(candidate)
}
