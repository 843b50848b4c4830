package midifile

import (
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// textDecoder turns the payload of a text meta event into UTF-8.
type textDecoder func([]byte) string

// Option configures loading.
type Option func(*options)

type options struct {
	decoder textDecoder
}

func defaultOptions() options {
	return options{decoder: decodeAuto}
}

// WithTextEncoding decodes every text meta event with enc.
func WithTextEncoding(enc encoding.Encoding) Option {
	return func(o *options) {
		o.decoder = func(b []byte) string { return decodeWith(enc, b) }
	}
}

// TextEncoding maps a configuration name to an encoding. Unknown names and
// "auto" return nil.
func TextEncoding(name string) encoding.Encoding {
	switch name {
	case "latin1", "iso-8859-1":
		return charmap.ISO8859_1
	case "cp1252", "windows-1252":
		return charmap.Windows1252
	case "sjis", "shift-jis", "shift_jis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	}
	return nil
}

func decodeWith(enc encoding.Encoding, b []byte) string {
	out, _, err := transform.Bytes(enc.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// decodeAuto keeps valid UTF-8, tries Shift-JIS (common in Japanese SMF
// collections) and falls back to Windows-1252.
func decodeAuto(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	if out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b); err == nil && utf8.Valid(out) && !containsRune(out, utf8.RuneError) {
		return string(out)
	}
	return decodeWith(charmap.Windows1252, b)
}

func containsRune(b []byte, r rune) bool {
	for len(b) > 0 {
		c, n := utf8.DecodeRune(b)
		if c == r {
			return true
		}
		b = b[n:]
	}
	return false
}
