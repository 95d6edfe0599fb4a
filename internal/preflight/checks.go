package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"posterhelper/internal/config"
	"posterhelper/internal/services/plex"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckLibraries verifies the server is reachable and that every configured
// library exists with the expected type. TV libraries must be show libraries
// and movie libraries must be movie libraries.
func CheckLibraries(ctx context.Context, server SectionLister, libraries config.Libraries) []Result {
	const name = "Plex server"

	checkCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	sections, err := server.Sections(checkCtx)
	if err != nil {
		return []Result{{Name: name, Detail: summarizePlexError(err)}}
	}
	results := []Result{{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d libraries)", len(sections))}}

	byTitle := make(map[string]plex.Section, len(sections))
	for _, s := range sections {
		byTitle[strings.ToLower(s.Title)] = s
	}
	check := func(library, wantType string) Result {
		label := fmt.Sprintf("Library %q", library)
		section, ok := byTitle[strings.ToLower(strings.TrimSpace(library))]
		switch {
		case !ok:
			return Result{Name: label, Detail: "not found on the server"}
		case section.Type != "" && section.Type != wantType:
			return Result{Name: label, Detail: fmt.Sprintf("is a %s library, expected %s", section.Type, wantType)}
		default:
			return Result{Name: label, Passed: true, Detail: "found"}
		}
	}
	for _, library := range libraries.Movies {
		results = append(results, check(library, "movie"))
	}
	for _, library := range libraries.TV {
		results = append(results, check(library, "show"))
	}
	return results
}

// summarizePlexError produces a human-readable summary for Plex check failures.
func summarizePlexError(err error) string {
	if errors.Is(err, plex.ErrUnauthorized) {
		return "token rejected (run 'posterhelper auth link' or set PLEX_TOKEN)"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "request timed out (server unreachable)"
	}
	return err.Error()
}
