package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lumenhq/lumen/internal/history"
	"github.com/lumenhq/lumen/internal/upstream"
	"github.com/lumenhq/lumen/internal/variant"
)

type fakeGenerator struct {
	reply    string
	err      error
	lastCall upstream.Call
}

func (g *fakeGenerator) Generate(_ context.Context, call upstream.Call) (string, error) {
	g.lastCall = call
	return g.reply, g.err
}

func TestRouteClosure(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  variant.Variant
	}{
		{name: "clean identifier", reply: "pro", want: variant.Pro},
		{name: "identifier in prose", reply: "I think flash-image fits", want: variant.FlashImage},
		{name: "longer id beats substring", reply: "flash-image", want: variant.FlashImage},
		{name: "garbage output", reply: "gemini-ultra-max", want: variant.Default},
		{name: "empty output", reply: "", want: variant.Default},
		{name: "upstream error", err: errors.New("boom"), want: variant.Default},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(nil, &fakeGenerator{reply: tt.reply, err: tt.err})
			decision := r.Route(context.Background(), "hello", nil)
			if decision.Selected != tt.want {
				t.Errorf("Selected = %v, want %v", decision.Selected, tt.want)
			}
		})
	}
}

func TestRouteNeverReturnsAuto(t *testing.T) {
	r := NewRouter(nil, &fakeGenerator{reply: "auto"})
	decision := r.Route(context.Background(), "anything", nil)
	if decision.Selected == variant.Auto {
		t.Fatal("router resolved to the pseudo identifier")
	}
}

func TestRoutePromptCarriesTrailingContext(t *testing.T) {
	gen := &fakeGenerator{reply: "flash"}
	r := NewRouter(nil, gen)

	turns := []history.Turn{
		{Role: history.RoleUser, Text: "oldest, should be cut"},
		{Role: history.RoleUser, Text: "first kept"},
		{Role: history.RoleModel, Text: "second kept"},
		{Role: history.RoleUser, Text: "third kept"},
		{Role: history.RoleModel, Text: "fourth kept"},
	}
	r.Route(context.Background(), "latest question", turns)

	prompt := gen.lastCall.Contents[0].Parts[0].Text
	if strings.Contains(prompt, "oldest, should be cut") {
		t.Error("prompt includes turns beyond the context window")
	}
	for _, want := range []string{"first kept", "fourth kept", "latest question"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
	if gen.lastCall.Config.Temperature == nil || *gen.lastCall.Config.Temperature != 0 {
		t.Error("classification call is not zero temperature")
	}
}
