package bulkfile_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"posterhelper/internal/bulkfile"
	"posterhelper/internal/testsupport"
)

func TestParse(t *testing.T) {
	input := "\uFEFF# ThePosterDB sets\n" +
		"https://theposterdb.com/set/12345\n" +
		"\n" +
		"   https://mediux.pro/sets/4242   \r\n" +
		"// disabled\n" +
		"  # indented comment\n" +
		"https://theposterdb.com/set/12345\n"

	got, err := bulkfile.Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []string{
		"https://theposterdb.com/set/12345",
		"https://mediux.pro/sets/4242",
		"https://theposterdb.com/set/12345",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Parse = %v, want %v", got, want)
	}
}

func TestParseEmpty(t *testing.T) {
	got, err := bulkfile.Parse(strings.NewReader("# nothing here\n\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no urls, got %v", got)
	}
}

func TestParseFileMissing(t *testing.T) {
	if _, err := bulkfile.ParseFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestWriteThenParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lists", "bulk_import.txt")
	urls := []string{"https://mediux.pro/sets/1", " ", "https://theposterdb.com/set/2"}

	if err := bulkfile.Write(path, urls); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := bulkfile.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !slices.Equal(got, []string{"https://mediux.pro/sets/1", "https://theposterdb.com/set/2"}) {
		t.Fatalf("round trip = %v", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}

func TestAppendKeepsComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulk_import.txt")
	testsupport.WriteText(t, path, "# favourites\nhttps://mediux.pro/sets/1")

	if err := bulkfile.Append(path, "https://theposterdb.com/set/9"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	want := "# favourites\nhttps://mediux.pro/sets/1\nhttps://theposterdb.com/set/9\n"
	if string(data) != want {
		t.Fatalf("file = %q, want %q", data, want)
	}
}
