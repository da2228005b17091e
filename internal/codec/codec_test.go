package codec

import (
	"bytes"
	"testing"
)

func TestParseTagRoundTrip(t *testing.T) {
	cases := map[string]Tag{"": None, "none": None, "snappy": Snappy, "lz4": LZ4, "zstd": Zstd}
	for name, want := range cases {
		got, err := ParseTag(name)
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", name, err)
		}
		if got != want {
			t.Fatalf("ParseTag(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestParseTagRejectsUnknown(t *testing.T) {
	if _, err := ParseTag("bzip2"); err == nil {
		t.Fatalf("ParseTag(bzip2) succeeded, want error")
	}
}

func TestEachCodecRoundTrips(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 64)

	for _, tag := range []Tag{None, Snappy, LZ4, Zstd} {
		c, err := ForTag(tag)
		if err != nil {
			t.Fatalf("ForTag(%v): %v", tag, err)
		}
		compressed, err := c.Compress(payload)
		if err != nil {
			t.Fatalf("%v Compress: %v", tag, err)
		}
		decompressed, err := c.Decompress(compressed)
		if err != nil {
			t.Fatalf("%v Decompress: %v", tag, err)
		}
		if !bytes.Equal(decompressed, payload) {
			t.Fatalf("%v round trip mismatch", tag)
		}
	}
}

func TestForTagRejectsUnsupported(t *testing.T) {
	if _, err := ForTag(Tag(99)); err == nil {
		t.Fatalf("ForTag(99) succeeded, want error")
	}
}
