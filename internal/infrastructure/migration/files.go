package migration

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var migrationName = regexp.MustCompile(`^(\d+)_([a-z0-9_]+)\.(up|down)\.sql$`)

// Migration is one versioned up/down pair
type Migration struct {
	Version uint64
	Name    string
}

// Embedded returns the migrations compiled into the binary
func Embedded() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "sql")
	if err != nil {
		return nil, err
	}
	return List(sub)
}

// List returns the migrations found in fsys ordered by version. A version
// without both an up and a down file is an error.
func List(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	type pair struct {
		name     string
		up, down bool
	}
	byVersion := map[uint64]*pair{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := migrationName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid migration version in %s: %w", e.Name(), err)
		}
		p, ok := byVersion[v]
		if !ok {
			p = &pair{name: m[2]}
			byVersion[v] = p
		} else if p.name != m[2] {
			return nil, fmt.Errorf("migration version %d is used by %s and %s", v, p.name, m[2])
		}
		if m[3] == "up" {
			p.up = true
		} else {
			p.down = true
		}
	}

	out := make([]Migration, 0, len(byVersion))
	for v, p := range byVersion {
		if !p.up || !p.down {
			return nil, fmt.Errorf("migration %d_%s is missing its up or down file", v, p.name)
		}
		out = append(out, Migration{Version: v, Name: p.name})
	}
	slices.SortFunc(out, func(a, b Migration) int {
		switch {
		case a.Version < b.Version:
			return -1
		case a.Version > b.Version:
			return 1
		}
		return 0
	})
	return out, nil
}

// Create writes an empty up/down pair numbered one past the highest
// existing version and returns the base file name
func Create(dir, name string) (string, error) {
	slug := sanitizeName(name)
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}
	existing, err := List(os.DirFS(dir))
	if err != nil {
		return "", err
	}
	var next uint64 = 1
	if n := len(existing); n > 0 {
		next = existing[n-1].Version + 1
	}

	base := fmt.Sprintf("%06d_%s", next, slug)
	for _, direction := range []string{"up", "down"} {
		path := filepath.Join(dir, base+"."+direction+".sql")
		body := fmt.Sprintf("-- %s (%s)\n", strings.ReplaceAll(slug, "_", " "), direction)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return "", fmt.Errorf("failed to write %s: %w", path, err)
		}
	}
	return base, nil
}

// sanitizeName lowercases name and collapses separators into underscores
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
