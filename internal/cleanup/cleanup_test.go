package cleanup

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sort"
	"testing"

	"github.com/lumenhq/lumen/internal/attachment"
	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/storage"
)

type fakeStore struct {
	messages        []history.Message
	listErr         error
	messagesDeleted bool
	deleted         bool
}

func (s *fakeStore) ListMessages(_ context.Context, _ string) ([]history.Message, error) {
	return s.messages, s.listErr
}

func (s *fakeStore) DeleteMessages(_ context.Context, _ string) error {
	s.messagesDeleted = true
	return nil
}

func (s *fakeStore) DeleteConversation(_ context.Context, _ string) error {
	if !s.messagesDeleted {
		return errors.New("conversation deleted before its messages")
	}
	s.deleted = true
	return nil
}

type recordingProvider struct {
	deletes []string
	errs    map[string]error
}

func (p *recordingProvider) Put(context.Context, string, io.Reader) error { return nil }
func (p *recordingProvider) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}
func (p *recordingProvider) AccessPath(key string) string { return key }

func (p *recordingProvider) Delete(_ context.Context, key string) error {
	p.deletes = append(p.deletes, key)
	if err, ok := p.errs[key]; ok {
		return err
	}
	return nil
}

func rawURL(key string) string {
	return "http://localhost/files/" + key
}

func encodedURL(key string) string {
	return "http://store.example/o/" + url.PathEscape(key) + "?alt=media"
}

func TestPurgeDeletesEveryObjectAcrossBothURLShapes(t *testing.T) {
	store := &fakeStore{messages: []history.Message{
		{Turn: history.Turn{
			Role: history.RoleUser,
			Attachments: []attachment.Attachment{
				{DisplayHandle: rawURL("users/u/attachments/a.pdf")},
				{DisplayHandle: encodedURL("users/u/attachments/b.png")},
				{Name: "inline-only, no handle"},
			},
		}},
		{Turn: history.Turn{
			Role:         history.RoleModel,
			ImageHandles: []string{rawURL("users/u/generated/1.png"), encodedURL("users/u/generated/2.png")},
		}},
	}}
	provider := &recordingProvider{}
	r := NewReactor(nil, store, provider)

	if err := r.Purge(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}

	want := []string{
		"users/u/attachments/a.pdf",
		"users/u/attachments/b.png",
		"users/u/generated/1.png",
		"users/u/generated/2.png",
	}
	got := append([]string(nil), provider.deletes...)
	sort.Strings(got)
	if len(got) != len(want) {
		t.Fatalf("deleted %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delete %d = %q, want %q", i, got[i], want[i])
		}
	}
	if !store.deleted {
		t.Error("conversation record survived")
	}
}

func TestPurgeContinuesPastStorageFailures(t *testing.T) {
	store := &fakeStore{messages: []history.Message{
		{Turn: history.Turn{
			Role: history.RoleModel,
			ImageHandles: []string{
				rawURL("users/u/generated/gone.png"),
				rawURL("users/u/generated/broken.png"),
				rawURL("users/u/generated/fine.png"),
			},
		}},
	}}
	provider := &recordingProvider{errs: map[string]error{
		"users/u/generated/gone.png":   storage.ErrNotFound,
		"users/u/generated/broken.png": errors.New("backend unavailable"),
	}}
	r := NewReactor(nil, store, provider)

	if err := r.Purge(context.Background(), "conv-1"); err != nil {
		t.Fatalf("storage failures must not abort the purge: %v", err)
	}
	if len(provider.deletes) != 3 {
		t.Errorf("attempted %d deletes, want all 3", len(provider.deletes))
	}
	if !store.deleted {
		t.Error("records not removed after storage sweep")
	}
}

func TestPurgeSkipsForeignURLs(t *testing.T) {
	store := &fakeStore{messages: []history.Message{
		{Turn: history.Turn{
			Role: history.RoleUser,
			Attachments: []attachment.Attachment{
				{DisplayHandle: "https://example.com/assets/logo.png"},
			},
		}},
	}}
	provider := &recordingProvider{}
	r := NewReactor(nil, store, provider)

	if err := r.Purge(context.Background(), "conv-1"); err != nil {
		t.Fatal(err)
	}
	if len(provider.deletes) != 0 {
		t.Errorf("foreign URL triggered deletes: %v", provider.deletes)
	}
}

func TestPurgeStopsWhenListingFails(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	r := NewReactor(nil, store, &recordingProvider{})
	if err := r.Purge(context.Background(), "conv-1"); err == nil {
		t.Fatal("listing failure must abort the purge")
	}
	if store.messagesDeleted || store.deleted {
		t.Error("records deleted despite unknown object set")
	}
}
