package history

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"testing"

	"github.com/lumenhq/lumen/internal/storage"
	"github.com/lumenhq/lumen/internal/variant"
)

type fakeProvider struct {
	objects map[string][]byte
	opens   []string
}

func (p *fakeProvider) Put(_ context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	p.objects[key] = data
	return nil
}

func (p *fakeProvider) Open(_ context.Context, key string) (io.ReadCloser, error) {
	p.opens = append(p.opens, key)
	data, ok := p.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (p *fakeProvider) Delete(_ context.Context, key string) error {
	if _, ok := p.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(p.objects, key)
	return nil
}

func (p *fakeProvider) AccessPath(key string) string {
	return "http://localhost/files/" + url.PathEscape(key)
}

func displayURL(key string) string {
	return "http://localhost/files/" + url.PathEscape(key)
}

func TestCompactWindowBounds(t *testing.T) {
	c := NewCompactor(nil, &fakeProvider{objects: map[string][]byte{}})

	var turns []Turn
	for i := 0; i < 6; i++ {
		turns = append(turns,
			Turn{Role: RoleUser, Text: fmt.Sprintf("q%d", i)},
			Turn{Role: RoleModel, Text: fmt.Sprintf("a%d", i)},
		)
	}

	spec := variant.SpecFor(variant.Research) // HistoryTurns: 2
	contents, err := c.Compact(context.Background(), turns, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(contents) != 2 {
		t.Fatalf("got %d contents, want 2", len(contents))
	}
	if contents[0].Parts[0].Text != "q5" || contents[1].Parts[0].Text != "a5" {
		t.Errorf("window did not keep the newest turns: %q, %q",
			contents[0].Parts[0].Text, contents[1].Parts[0].Text)
	}
}

func TestCompactIsIdempotent(t *testing.T) {
	provider := &fakeProvider{objects: map[string][]byte{
		"users/u/generated/a.png": []byte("png-a"),
	}}
	c := NewCompactor(nil, provider)
	turns := []Turn{
		{Role: RoleUser, Text: "draw"},
		{Role: RoleModel, Text: "here", ImageHandles: []string{displayURL("users/u/generated/a.png")}},
	}
	spec := variant.SpecFor(variant.FlashImage)

	first, err := c.Compact(context.Background(), turns, spec)
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Compact(context.Background(), turns, spec)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("repeat compaction changed shape: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if len(first[i].Parts) != len(second[i].Parts) {
			t.Errorf("content %d part count drifted", i)
		}
	}
}

func TestCompactReembedCapAcrossWindow(t *testing.T) {
	objects := map[string][]byte{}
	var handles []string
	for i := 0; i < 10; i++ {
		key := fmt.Sprintf("users/u/generated/%d.png", i)
		objects[key] = []byte("img")
		handles = append(handles, displayURL(key))
	}
	provider := &fakeProvider{objects: objects}
	c := NewCompactor(nil, provider)

	spec := variant.SpecFor(variant.FlashImage)
	spec.HistoryTurns = 48 // widen the window so the cap is what binds

	turns := []Turn{
		{Role: RoleUser, Text: "draw a lot"},
		{Role: RoleModel, Text: "batch one", ImageHandles: handles[:5]},
		{Role: RoleUser, Text: "more"},
		{Role: RoleModel, Text: "batch two", ImageHandles: handles[5:]},
	}
	if _, err := c.Compact(context.Background(), turns, spec); err != nil {
		t.Fatal(err)
	}
	if len(provider.opens) != spec.MaxReembed {
		t.Fatalf("re-embedded %d images, want cap %d", len(provider.opens), spec.MaxReembed)
	}
	// The newest images win: with a cap of 6 over batches of 5, only the
	// final image of batch one may join batch two.
	for _, key := range provider.opens {
		if key < "users/u/generated/4.png" {
			t.Errorf("re-embedded old image %s while newer ones existed", key)
		}
	}
}

func TestCompactSkipsReembedForTextVariants(t *testing.T) {
	provider := &fakeProvider{objects: map[string][]byte{
		"users/u/generated/a.png": []byte("img"),
	}}
	c := NewCompactor(nil, provider)
	turns := []Turn{
		{Role: RoleModel, Text: "here", ImageHandles: []string{displayURL("users/u/generated/a.png")}},
	}
	if _, err := c.Compact(context.Background(), turns, variant.SpecFor(variant.Flash)); err != nil {
		t.Fatal(err)
	}
	if len(provider.opens) != 0 {
		t.Errorf("text variant fetched %d stored images, want 0", len(provider.opens))
	}
}

func TestCompactCarriesSignatureOnModelTurns(t *testing.T) {
	c := NewCompactor(nil, &fakeProvider{objects: map[string][]byte{}})
	sig := []byte("continuity")
	turns := []Turn{
		{Role: RoleModel, Text: "answer", ThoughtSignature: base64.StdEncoding.EncodeToString(sig)},
	}
	contents, err := c.Compact(context.Background(), turns, variant.SpecFor(variant.Pro))
	if err != nil {
		t.Fatal(err)
	}
	if string(contents[0].Parts[0].ThoughtSignature) != string(sig) {
		t.Errorf("model turn text part lost its signature")
	}
}

func TestCompactDropsEmptyAndMissing(t *testing.T) {
	provider := &fakeProvider{objects: map[string][]byte{}}
	c := NewCompactor(nil, provider)
	turns := []Turn{
		{Role: RoleUser, Text: ""}, // nothing to send
		{Role: RoleModel, Text: "kept", ImageHandles: []string{displayURL("users/u/generated/gone.png")}},
	}
	spec := variant.SpecFor(variant.FlashImage)
	spec.HistoryTurns = 48
	contents, err := c.Compact(context.Background(), turns, spec)
	if err != nil {
		t.Fatal(err)
	}
	// A missing stored image degrades to text-only, never an error.
	if len(contents) != 1 || len(contents[0].Parts) != 1 {
		t.Fatalf("unexpected shape: %d contents", len(contents))
	}
	if contents[0].Parts[0].Text != "kept" {
		t.Errorf("surviving part = %q", contents[0].Parts[0].Text)
	}
}
