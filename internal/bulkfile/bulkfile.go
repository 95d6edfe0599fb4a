// Package bulkfile reads and writes bulk import files: plain text files with
// one set URL per line.
//
// Blank lines and lines starting with "#" or "//" are ignored. Order is kept
// and duplicates are preserved; the batch run decides what to do with them.
package bulkfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Parse returns the URLs in r in file order.
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var urls []string
	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\uFEFF"))
		if IsComment(line) {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read bulk file: %w", err)
	}
	return urls, nil
}

// ParseFile reads the bulk file at path.
func ParseFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bulk file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// IsComment reports whether a trimmed line carries no URL.
func IsComment(line string) bool {
	return line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//")
}

// Write replaces the bulk file at path with urls, one per line. The file is
// written to a temp file in the same directory and renamed into place.
func Write(path string, urls []string) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("bulk file path is empty")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bulk file dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp bulk file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	w := bufio.NewWriter(tmp)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, err := w.WriteString(u + "\n"); err != nil {
			_ = tmp.Close()
			return fmt.Errorf("write bulk file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write bulk file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bulk file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace bulk file: %w", err)
	}
	return nil
}

// Append adds urls to the end of the bulk file at path, keeping its comments.
// The file is created when missing.
func Append(path string, urls ...string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open bulk file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat bulk file: %w", err)
	}
	var b strings.Builder
	if info.Size() > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err == nil && last[0] != '\n' {
			b.WriteByte('\n')
		}
	}
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			b.WriteString(u)
			b.WriteByte('\n')
		}
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("append bulk file: %w", err)
	}
	return nil
}
