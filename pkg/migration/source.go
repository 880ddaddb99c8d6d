package migration

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strings"
)

//go:embed sql/*.sql
var embedded embed.FS

// Embedded returns the schema migrations compiled into the binary.
func Embedded() ([]Migration, error) {
	return Load(embedded, "sql")
}

// Load reads every {version}_{name}.up.sql / .down.sql pair found in dir.
// Migrations without both directions are skipped. The result is sorted by
// version.
func Load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	byVersion := make(map[string]*Migration)
	var haveUp, haveDown = map[string]bool{}, map[string]bool{}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		fileName := entry.Name()
		version, rest, ok := strings.Cut(fileName, "_")
		if !ok || version == "" {
			continue
		}

		var name, direction string
		if before, ok := strings.CutSuffix(rest, ".up.sql"); ok {
			name, direction = before, "up"
		} else if before, ok := strings.CutSuffix(rest, ".down.sql"); ok {
			name, direction = before, "down"
		} else {
			continue
		}

		data, err := fs.ReadFile(fsys, path.Join(dir, fileName))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
		}

		m, exists := byVersion[version]
		if !exists {
			m = &Migration{Version: version, Name: name}
			byVersion[version] = m
		} else if m.Name != name {
			return nil, fmt.Errorf("migration %s has conflicting names %q and %q", version, m.Name, name)
		}

		if direction == "up" {
			m.UpSQL = string(data)
			haveUp[version] = true
		} else {
			m.DownSQL = string(data)
			haveDown[version] = true
		}
	}

	migrations := make([]Migration, 0, len(byVersion))
	for version, m := range byVersion {
		if haveUp[version] && haveDown[version] {
			migrations = append(migrations, *m)
		}
	}

	slices.SortFunc(migrations, func(a, b Migration) int {
		return strings.Compare(a.Version, b.Version)
	})

	return migrations, nil
}
