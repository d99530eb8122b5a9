package stream

import (
	"bytes"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// aspectRatio reports image dimensions as a reduced "W:H" string. Undecodable
// payloads get "1:1" so clients always have a usable hint.
func aspectRatio(data []byte) string {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return "1:1"
	}
	d := gcd(cfg.Width, cfg.Height)
	return fmt.Sprintf("%d:%d", cfg.Width/d, cfg.Height/d)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
