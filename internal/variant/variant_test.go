package variant

import "testing"

func TestParseClosedSet(t *testing.T) {
	tests := []struct {
		in     string
		want   Variant
		wantOK bool
	}{
		{"flash", Flash, true},
		{"FLASH", Flash, true},
		{" pro ", Pro, true},
		{"flash-image", FlashImage, true},
		{"research", Research, true},
		{"auto", Auto, false},
		{"", "", false},
		{"gemini-2.5-flash", "", false},
		{"flashy", "", false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.wantOK {
			t.Errorf("Parse(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			continue
		}
		if ok && got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatchTextOrderSensitive(t *testing.T) {
	tests := []struct {
		in      string
		want    Variant
		matched bool
	}{
		// "flash" is a substring of "flash-image"; the longer id must win.
		{"flash-image", FlashImage, true},
		{"I would pick flash-image here", FlashImage, true},
		{"flash", Flash, true},
		{"definitely pro", Pro, true},
		{"research", Research, true},
		{"no idea", Flash, false},
		{"", Flash, false},
	}
	for _, tt := range tests {
		got, matched := MatchText(tt.in)
		if got != tt.want || matched != tt.matched {
			t.Errorf("MatchText(%q) = (%v, %v), want (%v, %v)",
				tt.in, got, matched, tt.want, tt.matched)
		}
	}
}

func TestSpecForUnknownDegradesToDefault(t *testing.T) {
	spec := SpecFor(Variant("corrupted"))
	if spec.Variant != Default {
		t.Fatalf("SpecFor(unknown).Variant = %v, want %v", spec.Variant, Default)
	}
}

func TestRetryTargetsResolve(t *testing.T) {
	for _, spec := range All() {
		if !spec.RetryOnEmpty {
			continue
		}
		if spec.FallbackTo == "" || spec.FallbackTo == spec.Variant {
			t.Errorf("variant %s has invalid fallback %q", spec.Variant, spec.FallbackTo)
		}
		if fb := SpecFor(spec.FallbackTo); fb.RetryOnEmpty {
			t.Errorf("fallback %s of %s is itself retryable; retry must terminate", spec.FallbackTo, spec.Variant)
		}
	}
}
