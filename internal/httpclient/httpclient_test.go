package httpclient

import (
	"bytes"
	"io"
	"net/http"
	"testing"

	"github.com/andybalholm/brotli"
)

func TestDecodeBody_brotli(t *testing.T) {
	var buf bytes.Buffer
	w := brotli.NewWriter(&buf)
	want := "#EXTM3U\n#EXT-X-VERSION:3\n"
	if _, err := w.Write([]byte(want)); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	resp := &http.Response{
		Header: http.Header{"Content-Encoding": []string{"br"}},
		Body:   io.NopCloser(&buf),
	}
	got, err := io.ReadAll(DecodeBody(resp))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("DecodeBody = %q, want %q", got, want)
	}
}

func TestDecodeBody_identity(t *testing.T) {
	want := "#EXTM3U\n"
	resp := &http.Response{
		Header: http.Header{},
		Body:   io.NopCloser(bytes.NewBufferString(want)),
	}
	got, err := io.ReadAll(DecodeBody(resp))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != want {
		t.Errorf("DecodeBody = %q, want %q", got, want)
	}
}
