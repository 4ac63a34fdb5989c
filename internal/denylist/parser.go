package denylist

import (
	"bufio"
	"io"
	"strings"

	"golang.org/x/xerrors"

	"github.com/Waeei/waeei-backend/internal/domain"
)

// Parse reads a newline-delimited denylist. Blank lines and lines starting
// with "#" are skipped. Entries are brought into the form the matcher compares
// against: URL-like entries (containing "/") become canonical URLs, the rest
// are treated as hosts or "."-prefixed host suffixes.
func Parse(r io.Reader) ([]string, error) {
	seen := make(map[string]struct{})
	var entries []string

	scanner := bufio.NewScanner(r)
	// Dataset lines are URLs; some run well past the default 64 KiB token.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		entry := canonicalEntry(line)
		if entry == "" {
			continue
		}
		if _, ok := seen[entry]; ok {
			continue
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, xerrors.Errorf("scan denylist: %w", err)
	}
	return entries, nil
}

func canonicalEntry(line string) string {
	if strings.Contains(line, "/") {
		return domain.Normalize(line).Canonical
	}
	return domain.ASCIIHost(line)
}
