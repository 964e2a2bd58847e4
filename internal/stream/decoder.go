// Package stream reassembles raw model output into displayable text.
//
// Byte-fallback tokenizers emit stand-in characters for raw byte values,
// and multi-byte UTF-8 characters routinely arrive split across token
// boundaries. Decoder folds both back into valid text incrementally.
package stream

import (
	"strings"
	"unicode/utf8"
)

// byteDecoder maps the 256 stand-in runes back to their original byte.
// Printable ASCII and the high Latin-1 ranges map to themselves; the
// remaining 68 byte values were displaced into U+0100.. by the tokenizer.
var byteDecoder = buildByteDecoder()

func buildByteDecoder() map[rune]byte {
	var bs, cs []rune
	for b := rune(33); b <= 126; b++ {
		bs = append(bs, b)
		cs = append(cs, b)
	}
	for b := rune(161); b <= 172; b++ {
		bs = append(bs, b)
		cs = append(cs, b)
	}
	for b := rune(174); b <= 255; b++ {
		bs = append(bs, b)
		cs = append(cs, b)
	}
	seen := make(map[rune]bool, 256)
	for _, b := range bs {
		seen[b] = true
	}
	n := rune(0)
	for b := rune(0); b <= 255; b++ {
		if !seen[b] {
			bs = append(bs, b)
			cs = append(cs, 256+n)
			n++
		}
	}
	m := make(map[rune]byte, 256)
	for i, enc := range cs {
		m[enc] = byte(bs[i])
	}
	return m
}

// DecodeFragment maps each stand-in rune of text to its original byte;
// runes outside the table keep their own UTF-8 encoding.
func DecodeFragment(text string) []byte {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		if b, ok := byteDecoder[r]; ok {
			out = append(out, b)
		} else {
			out = utf8.AppendRune(out, r)
		}
	}
	return out
}

// NormalizeFragment decodes a single complete fragment and tidies it.
// The result falls back to the tidied input when the decoded bytes do
// not form valid UTF-8 on their own.
func NormalizeFragment(text string) string {
	decoded := DecodeFragment(text)
	if utf8.Valid(decoded) {
		return tidy(string(decoded))
	}
	return tidy(text)
}

// Decoder accumulates decoded bytes across pushes until they form valid
// UTF-8. The pending buffer only ever holds the undecodable tail.
type Decoder struct {
	pending []byte
}

// Push decodes chunk, appends it to the pending buffer, and returns the
// longest valid UTF-8 prefix, normalized. An empty return means nothing
// was decodable yet.
func (d *Decoder) Push(chunk string) string {
	if chunk == "" {
		return ""
	}
	for _, r := range chunk {
		if b, ok := byteDecoder[r]; ok {
			d.pending = append(d.pending, b)
		} else {
			d.pending = utf8.AppendRune(d.pending, r)
		}
	}
	return d.takeReady()
}

// PushBytes appends raw (not stand-in encoded) bytes, as produced by the
// native runtime's token rendering, and returns the longest valid UTF-8
// prefix, normalized.
func (d *Decoder) PushBytes(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	d.pending = append(d.pending, b...)
	return d.takeReady()
}

// Flush returns whatever remains validly decodable at end-of-stream.
// A trailing sequence that never completed is dropped, not surfaced as
// an error; malformed bytes still come back as U+FFFD.
func (d *Decoder) Flush() string {
	out := d.takeReady()
	d.pending = d.pending[:0]
	return out
}

// Empty reports whether no undecoded bytes are pending.
func (d *Decoder) Empty() bool { return len(d.pending) == 0 }

// takeReady drains everything decodable from pending. Malformed bytes
// are replaced with U+FFFD and decoding continues past them; only an
// incomplete trailing sequence stays buffered for the next push.
func (d *Decoder) takeReady() string {
	if len(d.pending) == 0 {
		return ""
	}
	var out []byte
	i := 0
	for i < len(d.pending) {
		r, size := utf8.DecodeRune(d.pending[i:])
		if r == utf8.RuneError && size <= 1 {
			if incompleteSuffix(d.pending[i:]) {
				break
			}
			out = utf8.AppendRune(out, utf8.RuneError)
			i++
			continue
		}
		out = append(out, d.pending[i:i+size]...)
		i += size
	}
	d.pending = d.pending[:copy(d.pending, d.pending[i:])]
	if len(out) == 0 {
		return ""
	}
	return tidy(string(out))
}

// incompleteSuffix reports whether b is a proper prefix of one valid
// UTF-8 sequence, so more bytes could still complete it. Anything that
// no continuation byte can rescue returns false.
func incompleteSuffix(b []byte) bool {
	if len(b) == 0 || len(b) >= utf8.UTFMax {
		return false
	}
	var size int
	var lo, hi byte
	switch lead := b[0]; {
	case lead >= 0xC2 && lead <= 0xDF:
		size, lo, hi = 2, 0x80, 0xBF
	case lead == 0xE0:
		size, lo, hi = 3, 0xA0, 0xBF
	case lead >= 0xE1 && lead <= 0xEC, lead >= 0xEE && lead <= 0xEF:
		size, lo, hi = 3, 0x80, 0xBF
	case lead == 0xED:
		size, lo, hi = 3, 0x80, 0x9F
	case lead == 0xF0:
		size, lo, hi = 4, 0x90, 0xBF
	case lead >= 0xF1 && lead <= 0xF3:
		size, lo, hi = 4, 0x80, 0xBF
	case lead == 0xF4:
		size, lo, hi = 4, 0x80, 0x8F
	default:
		return false
	}
	if len(b) >= size {
		return false
	}
	if len(b) >= 2 && (b[1] < lo || b[1] > hi) {
		return false
	}
	for i := 2; i < len(b); i++ {
		if b[i] < 0x80 || b[i] > 0xBF {
			return false
		}
	}
	return true
}

var tidier = strings.NewReplacer(
	"Ġ", " ", // GPT-2 style word-boundary glyph
	"▁", " ", // SentencePiece word-boundary glyph
	"​", "", // zero-width space marker
)

func tidy(s string) string { return tidier.Replace(s) }
