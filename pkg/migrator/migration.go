package migrator

import (
	"io"
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

type (
	// Migration represents a single versioned schema-change script. The
	// script text is opaque payload: it is split into statements for
	// execution but never otherwise interpreted.
	Migration struct {
		// Version is the migration identifier, derived from the filename.
		// Versions are unique and sortable; they define application order.
		Version string

		// Script is the raw SQL payload.
		Script string
	}

	// MigrationDir is a collection of migrations loaded from a directory,
	// sorted in lexical order by version to ensure deterministic execution
	// order.
	MigrationDir struct {
		Migrations []*Migration
	}
)

// LoadMigrationDir loads all .sql files from the provided filesystem and
// returns them as a MigrationDir ordered by version.
//
// Example:
//
//	dir, err := migrator.LoadMigrationDir(os.DirFS("db/migrations"))
//	if err != nil {
//		return err
//	}
//	for _, m := range dir.Migrations {
//		fmt.Println(m.Version)
//	}
func LoadMigrationDir(fsys fs.FS) (*MigrationDir, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, errors.Wrap(err, "failed to read migrations directory")
	}

	dir := &MigrationDir{}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		m, err := loadMigration(fsys, entry.Name())
		if err != nil {
			return nil, err
		}
		dir.Migrations = append(dir.Migrations, m)
	}

	slices.SortFunc(dir.Migrations, func(a, b *Migration) int {
		return strings.Compare(a.Version, b.Version)
	})

	return dir, nil
}

// Filter returns the migrations whose versions appear in versions, preserving
// directory order. Unknown versions are an error so operator typos surface
// before anything runs.
func (d *MigrationDir) Filter(versions []string) ([]*Migration, error) {
	if len(versions) == 0 {
		return d.Migrations, nil
	}

	known := make(map[string]*Migration, len(d.Migrations))
	for _, m := range d.Migrations {
		known[m.Version] = m
	}

	for _, v := range versions {
		if known[v] == nil {
			return nil, errors.Errorf("unknown migration version: %s", v)
		}
	}

	selected := make([]*Migration, 0, len(versions))
	for _, m := range d.Migrations {
		if slices.Contains(versions, m.Version) {
			selected = append(selected, m)
		}
	}

	return selected, nil
}

func loadMigration(fsys fs.FS, name string) (*Migration, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open migration: %s", name)
	}
	defer func() { _ = f.Close() }()

	script, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read migration: %s", name)
	}

	version := strings.TrimSuffix(filepath.Base(name), ".sql")

	return &Migration{Version: version, Script: string(script)}, nil
}
