package upstream

import (
	"encoding/base64"
	"regexp"
)

// The code execution sandbox returns rendered charts as a data URL embedded
// in free-form result text rather than as a structured part. This parser is
// the single place that quirk is handled.
var inlineImagePattern = regexp.MustCompile(`data:(image/[a-z0-9.+-]+);base64,([A-Za-z0-9+/=]+)`)

// ExtractInlineImage pulls the first embedded base64 image out of code
// execution output. Returns ok=false for absent, truncated, or undecodable
// payloads; callers discard the raw text either way.
func ExtractInlineImage(output string) (mime string, data []byte, ok bool) {
	match := inlineImagePattern.FindStringSubmatch(output)
	if match == nil {
		return "", nil, false
	}
	decoded, err := base64.StdEncoding.DecodeString(match[2])
	if err != nil || len(decoded) == 0 {
		return "", nil, false
	}
	return match[1], decoded, true
}
