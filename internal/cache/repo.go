package cache

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/starford/bhc/internal/checksum"
	"github.com/starford/bhc/internal/metadata"
	"github.com/starford/bhc/internal/stylesheet"
)

// Entry is one cached parse.
type Entry struct {
	Path     string
	Checksum string
	Rules    int
	ModTime  time.Time
}

// Get returns the styles cached for path when the stored checksum matches.
func (db *DB) Get(path, sum string) ([]stylesheet.Style, bool, error) {
	var (
		stored string
		raw    string
	)
	err := db.conn.QueryRow(`SELECT checksum, styles FROM sheets WHERE path = ?`, path).Scan(&stored, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", path, err)
	}
	if stored != sum {
		return nil, false, nil
	}
	var styles []stylesheet.Style
	if err := json.Unmarshal([]byte(raw), &styles); err != nil {
		return nil, false, fmt.Errorf("cache: decode %s: %w", path, err)
	}
	return styles, true, nil
}

// Put stores the parse of path's content.
func (db *DB) Put(path, sum string, modTime time.Time, styles []stylesheet.Style) error {
	raw, err := json.Marshal(styles)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", path, err)
	}
	_, err = db.conn.Exec(`
		INSERT INTO sheets (path, checksum, styles, rules, mod_time, parsed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			checksum  = excluded.checksum,
			styles    = excluded.styles,
			rules     = excluded.rules,
			mod_time  = excluded.mod_time,
			parsed_at = excluded.parsed_at
	`, path, sum, string(raw), len(styles), modTime.UTC(), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("cache: put %s: %w", path, err)
	}
	return nil
}

// Delete drops the entry for path.
func (db *DB) Delete(path string) error {
	if _, err := db.conn.Exec(`DELETE FROM sheets WHERE path = ?`, path); err != nil {
		return fmt.Errorf("cache: delete %s: %w", path, err)
	}
	return nil
}

// Entries lists every cached parse ordered by path.
func (db *DB) Entries() ([]Entry, error) {
	rows, err := db.conn.Query(`SELECT path, checksum, rules, mod_time FROM sheets ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("cache: entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Path, &e.Checksum, &e.Rules, &e.ModTime); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ParseFunc returns a metadata.ParseFunc that consults the cache before
// parsing. The cache only saves tokenizing; staleness is decided by the
// caller from file timestamps. Cache failures fall back to a plain parse.
func (db *DB) ParseFunc(logger *slog.Logger) metadata.ParseFunc {
	return func(path string, content []byte) []stylesheet.Style {
		sum := checksum.Sum(content)
		styles, ok, err := db.Get(path, sum)
		if err != nil {
			logger.Warn("cache: lookup failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		if ok {
			logger.Debug("cache: hit", slog.String("path", path))
			return styles
		}

		res := stylesheet.Parse(content)
		for _, d := range res.Diagnostics {
			logger.Debug("css: skipped construct",
				slog.String("path", path),
				slog.Int("line", d.Line),
				slog.String("detail", d.Message))
		}
		modTime := time.Now()
		if info, statErr := os.Stat(path); statErr == nil {
			modTime = info.ModTime()
		}
		if err := db.Put(path, sum, modTime, res.Styles); err != nil {
			logger.Warn("cache: store failed", slog.String("path", path), slog.String("error", err.Error()))
		}
		return res.Styles
	}
}
