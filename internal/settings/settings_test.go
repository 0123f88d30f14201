package settings_test

import (
	"context"
	"errors"
	"testing"

	"searchq/internal/settings"
	"searchq/internal/testsupport"
)

func TestLoadDefaultsWhenUnset(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))

	got, err := settings.Load(context.Background(), store)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != settings.Defaults() {
		t.Fatalf("expected defaults, got %#v", got)
	}
	if !got.Enabled || got.Ordering != settings.OrderingQueue || got.RemoveAfterSearch {
		t.Fatalf("unexpected default values %#v", got)
	}
}

func TestApplyPersistsFields(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	got, err := settings.Apply(ctx, store, settings.Update{
		Ordering:          settings.String("STACK"),
		RemoveAfterSearch: settings.Bool(true),
	})
	if err != nil {
		t.Fatalf("Apply failed: %v", err)
	}
	if got.Ordering != settings.OrderingStack || !got.RemoveAfterSearch || !got.Enabled {
		t.Fatalf("unexpected settings %#v", got)
	}

	raw, ok, err := store.GetSetting(ctx, settings.KeyOrdering)
	if err != nil || !ok || raw != `"stack"` {
		t.Fatalf("raw ordering = %q, %v, %v", raw, ok, err)
	}
}

func TestApplyRejectsUnknownOrderingWithoutWriting(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	_, err := settings.Apply(ctx, store, settings.Update{
		Enabled:  settings.Bool(false),
		Ordering: settings.String("random"),
	})
	if !errors.Is(err, settings.ErrInvalidOrdering) {
		t.Fatalf("expected ErrInvalidOrdering, got %v", err)
	}
	got, _ := settings.Load(ctx, store)
	if !got.Enabled {
		t.Fatal("enabled should not change when the update is rejected")
	}
}

func TestLoadFallsBackOnGarbage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()

	cases := map[string]string{
		settings.KeyEnabled:           "not-json",
		settings.KeyOrdering:          `"sideways"`,
		settings.KeyRemoveAfterSearch: `"yes"`,
	}
	for key, value := range cases {
		if err := store.PutSetting(ctx, key, value); err != nil {
			t.Fatalf("PutSetting %s: %v", key, err)
		}
	}
	got, err := settings.Load(ctx, store)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != settings.Defaults() {
		t.Fatalf("expected defaults, got %#v", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	want := settings.Settings{Enabled: false, Ordering: settings.OrderingStack, RemoveAfterSearch: true}

	if err := settings.Save(ctx, store, want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := settings.Load(ctx, store)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != want {
		t.Fatalf("got %#v, want %#v", got, want)
	}
}
