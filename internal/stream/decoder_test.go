package stream

import (
	"strings"
	"testing"
)

func TestNormalizeFragment_EmojiFallback(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ðŁĺĬ", "😊"},
		{"ðŁĻĤ ðŁĺĬ", "🙂 😊"},
		{"Hello", "Hello"},
		{"Ġworld", " world"},
		{"▁foo​bar", " foobar"},
	}
	for _, c := range cases {
		if got := NormalizeFragment(c.in); got != c.want {
			t.Errorf("NormalizeFragment(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPush_WaitsForFullEmoji(t *testing.T) {
	var d Decoder
	for _, part := range []string{"ð", "Ł", "ĺ"} {
		if got := d.Push(part); got != "" {
			t.Fatalf("Push(%q) = %q, want empty", part, got)
		}
	}
	if got := d.Push("Ĭ"); got != "😊" {
		t.Fatalf("final Push = %q, want emoji", got)
	}
	if !d.Empty() {
		t.Fatalf("decoder should be drained")
	}
}

func TestPush_PlainText(t *testing.T) {
	var d Decoder
	if got := d.Push("Hello"); got != "Hello" {
		t.Fatalf("Push = %q, want Hello", got)
	}
	if got := d.Push(" "); got != " " {
		t.Fatalf("Push space = %q", got)
	}
}

// Any valid UTF-8 string split at arbitrary byte offsets must reassemble
// exactly (modulo placeholder normalization, absent from these inputs).
func TestRoundTrip_ArbitrarySplits(t *testing.T) {
	inputs := []string{
		"plain ascii only",
		"naïve café — ügly ümlauts",
		"тест на кириллице",
		"日本語のテキスト",
		"mixed 日本 and русский and ascii",
	}
	for _, in := range inputs {
		raw := []byte(in)
		for width := 1; width <= 5; width++ {
			var d Decoder
			var out strings.Builder
			for i := 0; i < len(raw); i += width {
				end := i + width
				if end > len(raw) {
					end = len(raw)
				}
				// Feed raw bytes as Latin-1 stand-ins the way a
				// byte-fallback tokenizer would render them.
				out.WriteString(d.Push(encodeStandIns(raw[i:end])))
			}
			out.WriteString(d.Flush())
			if out.String() != in {
				t.Errorf("width %d: got %q, want %q", width, out.String(), in)
			}
		}
	}
}

func TestFlush_ReplacesMalformedTail(t *testing.T) {
	var d Decoder
	if got := d.Push("ok"); got != "ok" {
		t.Fatalf("Push = %q", got)
	}
	// A lone continuation byte can never complete a sequence.
	if got := d.PushBytes([]byte{0x80}); got != "�" {
		t.Fatalf("PushBytes = %q, want replacement char", got)
	}
	if got := d.Flush(); got != "" {
		t.Fatalf("Flush = %q, want empty", got)
	}
	if !d.Empty() {
		t.Fatalf("pending should be cleared after flush")
	}
}

func TestFlush_DropsIncompleteTail(t *testing.T) {
	var d Decoder
	// Two leading bytes of a four-byte emoji: still completable, so
	// they wait, then get discarded at end-of-stream.
	if got := d.PushBytes([]byte{0xF0, 0x9F}); got != "" {
		t.Fatalf("PushBytes = %q, want empty", got)
	}
	if got := d.Flush(); got != "" {
		t.Fatalf("Flush = %q, want empty", got)
	}
}

// A byte that no continuation can rescue must not dam up the stream:
// it becomes U+FFFD and everything after it flows through.
func TestPushBytes_RecoversAfterInvalidByte(t *testing.T) {
	var d Decoder
	if got := d.PushBytes([]byte("ok ")); got != "ok " {
		t.Fatalf("PushBytes = %q", got)
	}
	if got := d.PushBytes([]byte{0xFF}); got != "�" {
		t.Fatalf("invalid byte = %q, want replacement char", got)
	}
	if got := d.PushBytes([]byte("hello world")); got != "hello world" {
		t.Fatalf("after invalid byte = %q, want text", got)
	}
	if !d.Empty() {
		t.Fatalf("decoder should be drained")
	}
}

func TestPush_RecoversAfterInvalidStandIn(t *testing.T) {
	var d Decoder
	if got := d.Push("ok "); got != "ok " {
		t.Fatalf("Push = %q", got)
	}
	// Stand-in for raw byte 0xFF, which cannot start a sequence.
	if got := d.Push("ÿ"); got != "�" {
		t.Fatalf("invalid stand-in = %q, want replacement char", got)
	}
	if got := d.Push("hello world"); got != "hello world" {
		t.Fatalf("after invalid stand-in = %q, want text", got)
	}
	if got := d.Flush(); got != "" {
		t.Fatalf("Flush = %q, want empty", got)
	}
}

func TestPushBytes_InvalidByteInsideChunk(t *testing.T) {
	var d Decoder
	// 0xE2 0x28: a three-byte lead followed by a non-continuation
	// byte, then plain text, all in one chunk.
	got := d.PushBytes([]byte{'a', 0xE2, 0x28, 'b'})
	if got != "a�(b" {
		t.Fatalf("PushBytes = %q, want %q", got, "a�(b")
	}
	// The malformed lead must not stall a split multi-byte character
	// that follows it.
	var d2 Decoder
	if got := d2.PushBytes([]byte{0xFE, 0xC3}); got != "�" {
		t.Fatalf("PushBytes = %q, want replacement only", got)
	}
	if got := d2.PushBytes([]byte{0xA9}); got != "é" {
		t.Fatalf("PushBytes = %q, want é", got)
	}
}

// encodeStandIns renders raw bytes the way the fallback tokenizer shows
// them: each byte becomes its stand-in rune.
func encodeStandIns(raw []byte) string {
	enc := make(map[byte]rune, 256)
	for r, b := range byteDecoder {
		enc[b] = r
	}
	var sb strings.Builder
	for _, b := range raw {
		sb.WriteRune(enc[b])
	}
	return sb.String()
}
