package mappings_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"posterhelper/internal/mappings"
	"posterhelper/internal/testsupport"
)

func openStore(t *testing.T) *mappings.Store {
	t.Helper()
	store, err := mappings.OpenPath(context.Background(), filepath.Join(t.TempDir(), "mappings.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSetAndLookupIgnoreCaseAndPunctuation(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "Star Wars", "Star Wars: Episode IV - A New Hope"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	for _, query := range []string{"Star Wars", "star wars", "  STAR WARS ", "Star-Wars"} {
		got, ok := store.Lookup(query)
		if !ok || got != "Star Wars: Episode IV - A New Hope" {
			t.Fatalf("Lookup(%q) = %q, %v", query, got, ok)
		}
	}
	if _, ok := store.Lookup("Star Trek"); ok {
		t.Fatal("unexpected mapping for Star Trek")
	}
}

func TestSetReplacesExisting(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "Dune", "Dune (1984)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Set(ctx, "dune", "Dune: Part One"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].LibraryTitle != "Dune: Part One" || list[0].SourceTitle != "dune" {
		t.Fatalf("unexpected mappings %+v", list)
	}
}

func TestRemove(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "Alien", "Alien (Director's Cut)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	removed, err := store.Remove(ctx, "ALIEN")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	if _, ok := store.Lookup("Alien"); ok {
		t.Fatal("mapping still cached after removal")
	}
	removed, err = store.Remove(ctx, "Alien")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
}

func TestEmptyTitlesRejected(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Set(ctx, "  ", "Alien"); !errors.Is(err, mappings.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
	if err := store.Set(ctx, "Alien", "---"); !errors.Is(err, mappings.ErrEmptyTitle) {
		t.Fatalf("expected ErrEmptyTitle, got %v", err)
	}
}

func TestSeedKeepsUserMappings(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	if err := store.Set(ctx, "The Office", "The Office (US)"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	err := store.Seed(ctx, map[string]string{
		"The Office": "The Office (UK)",
		"Shogun":     "Shōgun",
	})
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if got, _ := store.Lookup("The Office"); got != "The Office (US)" {
		t.Fatalf("user mapping overwritten: %q", got)
	}
	if got, _ := store.Lookup("shogun"); got != "Shōgun" {
		t.Fatalf("seeded mapping missing: %q", got)
	}

	// Reseeding updates config-origin entries.
	if err := store.Seed(ctx, map[string]string{"Shogun": "Shogun (2024)"}); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if got, _ := store.Lookup("Shogun"); got != "Shogun (2024)" {
		t.Fatalf("seeded mapping not refreshed: %q", got)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	origins := map[string]mappings.Origin{}
	for _, m := range list {
		origins[m.SourceTitle] = m.Origin
	}
	if origins["The Office"] != mappings.OriginUser || origins["Shogun"] != mappings.OriginConfig {
		t.Fatalf("unexpected origins %v", origins)
	}
}

func TestMappingsPersistAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mappings.db")
	ctx := context.Background()

	store, err := mappings.OpenPath(ctx, path)
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	if err := store.Set(ctx, "Pluribus", "PLUR1BUS"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := mappings.OpenPath(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if got, ok := reopened.Lookup("pluribus"); !ok || got != "PLUR1BUS" {
		t.Fatalf("Lookup after reopen = %q, %v", got, ok)
	}
}

func TestOpenSeedsFromConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.TitleMappings = map[string]string{"Blade Runner": "Blade Runner (The Final Cut)"}

	store := testsupport.MustOpenMappings(t, cfg)
	if store.Path() != cfg.MappingDBPath() {
		t.Fatalf("path = %q, want %q", store.Path(), cfg.MappingDBPath())
	}
	if got, ok := store.Lookup("blade runner"); !ok || got != "Blade Runner (The Final Cut)" {
		t.Fatalf("Lookup = %q, %v", got, ok)
	}
}
