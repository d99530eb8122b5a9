package stream

import (
	"bytes"
	"image"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestAspectRatio(t *testing.T) {
	tests := []struct {
		w, h int
		want string
	}{
		{200, 100, "2:1"},
		{1920, 1080, "16:9"},
		{512, 512, "1:1"},
		{300, 400, "3:4"},
	}
	for _, tt := range tests {
		if got := aspectRatio(encodePNG(t, tt.w, tt.h)); got != tt.want {
			t.Errorf("aspectRatio(%dx%d) = %q, want %q", tt.w, tt.h, got, tt.want)
		}
	}
}

func TestAspectRatioUndecodable(t *testing.T) {
	if got := aspectRatio([]byte("not an image")); got != "1:1" {
		t.Errorf("fallback = %q, want 1:1", got)
	}
	if got := aspectRatio(nil); got != "1:1" {
		t.Errorf("nil fallback = %q, want 1:1", got)
	}
}
