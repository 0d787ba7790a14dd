package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ambimix/internal/preset"
)

// ListPresets returns the built-in presets followed by user presets in
// creation order.
func (s *Store) ListPresets() ([]preset.Preset, error) {
	user, err := s.userPresets()
	if err != nil {
		return nil, err
	}
	return append(preset.Defaults(), user...), nil
}

// ExportPresets returns only user presets.
func (s *Store) ExportPresets() ([]preset.Preset, error) {
	return s.userPresets()
}

func (s *Store) userPresets() ([]preset.Preset, error) {
	rows, err := s.db.Query(
		`SELECT payload FROM presets ORDER BY seq ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list presets: %w", err)
	}
	defer rows.Close()

	var out []preset.Preset
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var p preset.Preset
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			return nil, fmt.Errorf("decode stored preset: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPreset returns a built-in or user preset by id.
func (s *Store) GetPreset(id string) (preset.Preset, error) {
	for _, p := range preset.Defaults() {
		if p.ID == id {
			return p, nil
		}
	}
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM presets WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return preset.Preset{}, ErrPresetNotFound
	}
	if err != nil {
		return preset.Preset{}, fmt.Errorf("get preset: %w", err)
	}
	var p preset.Preset
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return preset.Preset{}, fmt.Errorf("decode stored preset: %w", err)
	}
	return p, nil
}

// CreatePreset stores p under a fresh id and creation time, ignoring any
// id or timestamp it carries.
func (s *Store) CreatePreset(p preset.Preset) (preset.Preset, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return preset.Preset{}, err
	}
	p.ID = preset.NewID()
	p.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if err := s.insertPreset(s.db, p); err != nil {
		return preset.Preset{}, err
	}
	slog.Debug("[store] preset created", "id", p.ID, "name", p.Name)
	return p, nil
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) insertPreset(db execer, p preset.Preset) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preset: %w", err)
	}
	_, err = db.Exec(
		`INSERT INTO presets(id, name, payload, created_at_unix_ms) VALUES(?, ?, ?, ?)`,
		p.ID, p.Name, string(payload), p.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert preset: %w", err)
	}
	return nil
}

// UpdatePreset replaces the stored settings of p.ID, keeping its creation
// time.
func (s *Store) UpdatePreset(p preset.Preset) (preset.Preset, error) {
	if preset.IsDefault(p.ID) {
		return preset.Preset{}, ErrDefaultPreset
	}
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return preset.Preset{}, err
	}
	old, err := s.GetPreset(p.ID)
	if err != nil {
		return preset.Preset{}, err
	}
	p.CreatedAt = old.CreatedAt
	payload, err := json.Marshal(p)
	if err != nil {
		return preset.Preset{}, fmt.Errorf("encode preset: %w", err)
	}
	res, err := s.db.Exec(
		`UPDATE presets SET name = ?, payload = ? WHERE id = ?`,
		p.Name, string(payload), p.ID,
	)
	if err != nil {
		return preset.Preset{}, fmt.Errorf("update preset: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return preset.Preset{}, ErrPresetNotFound
	}
	return p, nil
}

// DeletePreset removes a user preset.
func (s *Store) DeletePreset(id string) error {
	if preset.IsDefault(id) {
		return ErrDefaultPreset
	}
	res, err := s.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete preset: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPresetNotFound
	}
	return nil
}

// ImportPresets stores every preset whose name is not already used by a user
// preset. Imported entries get fresh ids and creation times. It returns the
// number stored.
func (s *Store) ImportPresets(ps []preset.Preset) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.Query(`SELECT name FROM presets`)
	if err != nil {
		return 0, fmt.Errorf("read names: %w", err)
	}
	names := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			rows.Close()
			return 0, err
		}
		names[n] = true
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	imported := 0
	for _, p := range ps {
		if names[p.Name] {
			continue
		}
		if err := p.Validate(); err != nil {
			return 0, err
		}
		p.ID = preset.NewID()
		p.CreatedAt = now
		if err := s.insertPreset(tx, p); err != nil {
			return 0, err
		}
		names[p.Name] = true
		imported++
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit import: %w", err)
	}
	slog.Info("[store] presets imported", "count", imported, "offered", len(ps))
	return imported, nil
}
