package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/xraph/bazaar/plugin"
)

// recordingPlugin implements a subset of the hook interfaces and records
// every call it receives.
type recordingPlugin struct {
	name   string
	events []string
	fail   error
}

func (p *recordingPlugin) Name() string { return p.name }

func (p *recordingPlugin) OnInit(_ context.Context, _ interface{}) error {
	p.events = append(p.events, "init")
	return p.fail
}

func (p *recordingPlugin) OnProductDeployed(_ context.Context, creator, contentHash string, productID int64) error {
	p.events = append(p.events, "deployed")
	return p.fail
}

func (p *recordingPlugin) OnSubscribed(_ context.Context, subscriber string, productID int64) error {
	p.events = append(p.events, "subscribed")
	return p.fail
}

// namedPlugin implements nothing beyond the base interface.
type namedPlugin struct{ name string }

func (p *namedPlugin) Name() string { return p.name }

func newRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegistryRegister(t *testing.T) {
	r := newRegistry()

	if err := r.Register(&namedPlugin{name: "indexer"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&namedPlugin{name: "webhook"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Names are unique; a second registration under the same name fails.
	if err := r.Register(&namedPlugin{name: "indexer"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}

	if got := r.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	if r.Get("indexer") == nil {
		t.Fatal("Get(indexer) returned nil")
	}
	if r.Get("missing") != nil {
		t.Fatal("Get(missing) should return nil")
	}
	if got := len(r.List()); got != 2 {
		t.Fatalf("List length = %d, want 2", got)
	}
}

func TestRegistryDispatch(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	rec := &recordingPlugin{name: "recorder"}
	if err := r.Register(rec); err != nil {
		t.Fatalf("Register: %v", err)
	}
	// A plugin with no hooks must not break dispatch.
	if err := r.Register(&namedPlugin{name: "inert"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	r.EmitInit(ctx, nil)
	r.EmitProductDeployed(ctx, "creator", "sha256:ab", 1)
	r.EmitSubscribed(ctx, "subscriber", 1)
	// recorder does not implement OnPaused; nothing should be dispatched.
	r.EmitPaused(ctx)

	want := []string{"init", "deployed", "subscribed"}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i, e := range want {
		if rec.events[i] != e {
			t.Fatalf("events[%d] = %s, want %s", i, rec.events[i], e)
		}
	}
}

func TestRegistryDispatchIsolatesFailures(t *testing.T) {
	ctx := context.Background()
	r := newRegistry()

	failing := &recordingPlugin{name: "failing", fail: errors.New("boom")}
	healthy := &recordingPlugin{name: "healthy"}
	if err := r.Register(failing); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(healthy); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// A failing plugin is logged and skipped, never fatal to dispatch.
	r.EmitSubscribed(ctx, "subscriber", 7)

	if len(healthy.events) != 1 || healthy.events[0] != "subscribed" {
		t.Fatalf("healthy plugin events = %v, want [subscribed]", healthy.events)
	}
}
