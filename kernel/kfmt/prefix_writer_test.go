package kfmt

import (
	"bytes"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf, Prefix: []byte("[pic] ")}
	)

	specs := []struct {
		input     string
		expOutput string
	}{
		{"", ""},
		{"\n", "[pic] \n"},
		{"remapped", "[pic] remapped"},
		{"remapped\n", "[pic] remapped\n"},
		{"line1\nline2\n\n", "[pic] line1\n[pic] line2\n[pic] \n"},
		{"partial", "[pic] partial"},
	}

	for specIndex, spec := range specs {
		buf.Reset()
		w.midLine = false

		n, err := w.Write([]byte(spec.input))
		if err != nil {
			t.Errorf("[spec %d] unexpected error: %v", specIndex, err)
		}

		if n != len(spec.input) {
			t.Errorf("[spec %d] expected to write %d bytes; wrote %d", specIndex, len(spec.input), n)
		}

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}

func TestPrefixWriterAcrossWrites(t *testing.T) {
	var (
		buf bytes.Buffer
		w   = PrefixWriter{Sink: &buf, Prefix: []byte("[e820] ")}
	)

	Fprintf(&w, "area %d: ", 0)
	Fprintf(&w, "free\narea %d: reserved\n", 1)

	if exp, got := "[e820] area 0: free\n[e820] area 1: reserved\n", buf.String(); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}

func TestPrefixWriterDefaultSink(t *testing.T) {
	defer func() {
		outputSink = nil
	}()

	var buf bytes.Buffer
	SetOutputSink(&buf)
	buf.Reset()

	w := PrefixWriter{Prefix: []byte("> ")}
	Fprintf(&w, "hello\n")

	if exp, got := "> hello\n", buf.String(); got != exp {
		t.Fatalf("expected output %q; got %q", exp, got)
	}
}
