package reset_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"posterhelper/internal/config"
	"posterhelper/internal/poster"
	"posterhelper/internal/reset"
)

var (
	umbrella = poster.UmbrellaLabel
	mediux   = poster.SourceLabel(poster.SourceMediUX)
	tpdb     = poster.SourceLabel(poster.SourcePosterDB)
)

type restoreCall struct {
	ratingKey string
	artwork   poster.ArtworkType
}

// fakeServer keeps items by rating key so label edits are visible to later
// listings.
type fakeServer struct {
	mu       sync.Mutex
	order    []string
	items    map[string]*poster.LibraryItem
	children map[string][]string
	restores []restoreCall
	failKey  string
	listErr  map[string]error
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		items:    make(map[string]*poster.LibraryItem),
		children: make(map[string][]string),
		listErr:  make(map[string]error),
	}
}

func (f *fakeServer) add(parent string, item poster.LibraryItem) {
	f.items[item.RatingKey] = &item
	f.order = append(f.order, item.RatingKey)
	if parent != "" {
		f.children[parent] = append(f.children[parent], item.RatingKey)
	}
}

func (f *fakeServer) get(key string) poster.LibraryItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	item := *f.items[key]
	item.Labels = append([]string(nil), item.Labels...)
	return item
}

func (f *fakeServer) Items(_ context.Context, library string, kind poster.MediaKind) ([]poster.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[library+"/"+string(kind)]; err != nil {
		return nil, err
	}
	var out []poster.LibraryItem
	for _, key := range f.order {
		item := f.items[key]
		if item.Library == library && item.Kind == kind {
			cp := *item
			cp.Labels = append([]string(nil), item.Labels...)
			out = append(out, cp)
		}
	}
	return out, nil
}

func (f *fakeServer) Children(_ context.Context, parent poster.LibraryItem) ([]poster.LibraryItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []poster.LibraryItem
	for _, key := range f.children[parent.RatingKey] {
		cp := *f.items[key]
		cp.Labels = append([]string(nil), f.items[key].Labels...)
		out = append(out, cp)
	}
	return out, nil
}

func (f *fakeServer) RestoreDefault(_ context.Context, item poster.LibraryItem, artwork poster.ArtworkType) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if item.RatingKey == f.failKey {
		return false, errors.New("server error")
	}
	f.restores = append(f.restores, restoreCall{item.RatingKey, artwork})
	return true, nil
}

func (f *fakeServer) RemoveLabels(_ context.Context, item poster.LibraryItem, labels ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.items[item.RatingKey]
	var kept []string
	for _, existing := range stored.Labels {
		drop := false
		for _, l := range labels {
			if strings.EqualFold(existing, l) {
				drop = true
			}
		}
		if !drop {
			kept = append(kept, existing)
		}
	}
	stored.Labels = kept
	return nil
}

func fixture() *fakeServer {
	f := newFakeServer()
	f.add("", poster.LibraryItem{RatingKey: "1", Library: "Movies", Title: "Alien", Kind: poster.KindMovie, Labels: []string{umbrella, tpdb, "Favourites"}})
	f.add("", poster.LibraryItem{RatingKey: "2", Library: "Movies", Title: "Aliens", Kind: poster.KindMovie})
	f.add("", poster.LibraryItem{RatingKey: "3", Library: "Movies", Title: "Alien Collection", Kind: poster.KindCollection, Labels: []string{umbrella, mediux}})
	f.add("", poster.LibraryItem{RatingKey: "100", Library: "TV Shows", Title: "Severance", Kind: poster.KindShow, Labels: []string{umbrella, mediux}})
	f.add("100", poster.LibraryItem{RatingKey: "110", Library: "TV Shows", Title: "Season 1", ParentTitle: "Severance", Index: 1, Kind: poster.KindSeason, Labels: []string{umbrella, mediux}})
	f.add("100", poster.LibraryItem{RatingKey: "120", Library: "TV Shows", Title: "Season 2", ParentTitle: "Severance", Index: 2, Kind: poster.KindSeason})
	f.add("110", poster.LibraryItem{RatingKey: "111", Library: "TV Shows", Title: "Good News About Hell", ParentTitle: "Severance", ParentIndex: 1, Index: 1, Kind: poster.KindEpisode, Labels: []string{umbrella, mediux}})
	return f
}

func newEngine(server reset.Server) *reset.Engine {
	return reset.New(server, config.Libraries{Movies: []string{"Movies"}, TV: []string{"TV Shows"}}, nil)
}

func TestResetRestoresAndRemovesOwnLabels(t *testing.T) {
	server := fixture()
	engine := newEngine(server)

	n, err := engine.Reset(context.Background(), server.get("1"), false)
	if err != nil || n != 1 {
		t.Fatalf("Reset = %d, %v", n, err)
	}
	if labels := server.get("1").Labels; len(labels) != 1 || labels[0] != "Favourites" {
		t.Fatalf("labels after reset = %v", labels)
	}
	if len(server.restores) != 1 || server.restores[0].artwork != poster.ArtworkPoster {
		t.Fatalf("restores = %+v", server.restores)
	}

	// Resetting again finds nothing to do.
	n, err = engine.Reset(context.Background(), server.get("1"), false)
	if err != nil || n != 0 {
		t.Fatalf("second Reset = %d, %v", n, err)
	}
}

func TestResetRestoresBackdropForMediUX(t *testing.T) {
	server := fixture()
	if _, err := newEngine(server).Reset(context.Background(), server.get("3"), false); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	want := []restoreCall{{"3", poster.ArtworkPoster}, {"3", poster.ArtworkBackdrop}}
	if len(server.restores) != 2 || server.restores[0] != want[0] || server.restores[1] != want[1] {
		t.Fatalf("restores = %+v", server.restores)
	}
}

func TestResetRecursiveShow(t *testing.T) {
	server := fixture()
	n, err := newEngine(server).Reset(context.Background(), server.get("100"), true)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected show, season 1 and episode reset, got %d", n)
	}
	for _, key := range []string{"100", "110", "111"} {
		if labels := server.get(key).Labels; len(labels) != 0 {
			t.Fatalf("item %s still labelled %v", key, labels)
		}
	}
}

func TestResetNonRecursiveLeavesChildren(t *testing.T) {
	server := fixture()
	n, err := newEngine(server).Reset(context.Background(), server.get("100"), false)
	if err != nil || n != 1 {
		t.Fatalf("Reset = %d, %v", n, err)
	}
	if labels := server.get("110").Labels; len(labels) == 0 {
		t.Fatal("season should keep its labels")
	}
}

func TestResetAllCollectsErrors(t *testing.T) {
	server := fixture()
	server.failKey = "3"
	engine := newEngine(server)

	report, err := engine.ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if report.Scanned != 5 || report.Reset != 4 {
		t.Fatalf("report = %+v", report)
	}
	if len(report.Errors) != 1 || report.Errors[0].Title != "Alien Collection" {
		t.Fatalf("errors = %+v", report.Errors)
	}

	server.failKey = ""
	report, err = engine.ResetAll(context.Background())
	if err != nil || report.Reset != 1 {
		t.Fatalf("second run = %+v, %v", report, err)
	}
	report, err = engine.ResetAll(context.Background())
	if err != nil || report.Reset != 0 || report.Scanned != 0 {
		t.Fatalf("third run should be a no-op, got %+v, %v", report, err)
	}
}

func TestResetAllContinuesPastListingFailure(t *testing.T) {
	server := fixture()
	server.listErr["TV Shows/season"] = errors.New("timeout")

	report, err := newEngine(server).ResetAll(context.Background())
	if err != nil {
		t.Fatalf("ResetAll: %v", err)
	}
	if len(report.Errors) != 1 || report.Errors[0].Library != "TV Shows" {
		t.Fatalf("errors = %+v", report.Errors)
	}
	if report.Reset != 4 {
		t.Fatalf("reset = %d", report.Reset)
	}
}

func TestFind(t *testing.T) {
	server := fixture()
	engine := newEngine(server)

	items, err := engine.Find(context.Background(), "severance", "")
	if err != nil || len(items) != 1 || items[0].RatingKey != "100" {
		t.Fatalf("Find = %+v, %v", items, err)
	}
	items, err = engine.Find(context.Background(), "Alien", "tv shows")
	if err != nil || len(items) != 0 {
		t.Fatalf("library filter ignored: %+v, %v", items, err)
	}
	if _, err := engine.Find(context.Background(), "  ", ""); err == nil {
		t.Fatal("expected error for empty title")
	}
}
