package attachment

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestResolveContinuityHandleWins(t *testing.T) {
	r := NewResolver(nil)
	parts, err := r.Resolve([]Attachment{{
		MimeType:         "application/json",
		ContinuityHandle: "https://generativelanguage.googleapis.com/v1beta/files/abc",
		InlineBytes:      base64.StdEncoding.EncodeToString([]byte("ignored")),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1", len(parts))
	}
	if parts[0].FileData == nil {
		t.Fatal("continuity handle did not produce a file part")
	}
	if parts[0].FileData.MIMEType != "text/plain" {
		t.Errorf("MIME = %q, want tool-normalized text/plain", parts[0].FileData.MIMEType)
	}
}

func TestResolveInlineMedia(t *testing.T) {
	r := NewResolver(nil)
	raw := []byte{0x89, 0x50, 0x4e, 0x47}
	parts, err := r.Resolve([]Attachment{{
		MimeType:    "image/png",
		InlineBytes: "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if parts[0].InlineData == nil {
		t.Fatal("inline media did not produce a blob part")
	}
	if string(parts[0].InlineData.Data) != string(raw) {
		t.Errorf("data url prefix was not stripped before decode")
	}
}

func TestResolveNonMediaBecomesFencedText(t *testing.T) {
	r := NewResolver(nil)
	parts, err := r.Resolve([]Attachment{{
		MimeType:    "text/x-go",
		Name:        "main.go",
		InlineBytes: base64.StdEncoding.EncodeToString([]byte("package main")),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if parts[0].Text == "" {
		t.Fatal("non-media inline bytes did not produce a text part")
	}
	if !strings.Contains(parts[0].Text, "main.go") || !strings.Contains(parts[0].Text, "package main") {
		t.Errorf("fenced text missing filename or content: %q", parts[0].Text)
	}
}

func TestResolveRejectsEmptyAttachment(t *testing.T) {
	r := NewResolver(nil)
	if _, err := r.Resolve([]Attachment{{MimeType: "image/png", Name: "x.png"}}); err == nil {
		t.Fatal("attachment with neither payload nor handle accepted")
	}
}

func TestResolveCeilingRejectsNotTruncates(t *testing.T) {
	r := NewResolver(nil)
	big := make([]byte, MaxInlineCallBytes/2+1)
	att := Attachment{
		MimeType:    "image/png",
		InlineBytes: base64.StdEncoding.EncodeToString(big),
	}

	if _, err := r.Resolve([]Attachment{att}); err != nil {
		t.Fatalf("single attachment under the ceiling rejected: %v", err)
	}
	// Two of them cross the aggregate ceiling.
	_, err := r.Resolve([]Attachment{att, att})
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}
