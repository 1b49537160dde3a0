package router

import (
	"encoding/json"
	"fmt"
)

// Instance is one configured Radarr or Sonarr target. QualityProfile,
// RootFolder, and Tags are the instance's own defaults, used by the
// default-instance fallback when no rule matches.
type Instance struct {
	ID             int64      `json:"id"`
	Name           string     `json:"name"`
	Type           TargetType `json:"type"`
	BaseURL        string     `json:"base_url"`
	APIKey         string     `json:"-"`
	Enabled        bool       `json:"enabled"`
	Default        bool       `json:"default"`
	QualityProfile string     `json:"quality_profile"`
	RootFolder     string     `json:"root_folder"`
	Tags           []string   `json:"tags"`
}

const instanceColumns = `id, name, type, base_url, api_key, enabled, is_default,
	quality_profile, root_folder, tags`

func scanInstance(row interface{ Scan(...any) error }) (*Instance, error) {
	inst := &Instance{}
	var tags string
	err := row.Scan(&inst.ID, &inst.Name, &inst.Type, &inst.BaseURL, &inst.APIKey,
		&inst.Enabled, &inst.Default, &inst.QualityProfile, &inst.RootFolder, &tags)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &inst.Tags); err != nil {
		return nil, fmt.Errorf("decode tags: %w", err)
	}
	return inst, nil
}

// GetInstance retrieves an instance by ID.
// Returns ErrNotFound if the instance does not exist.
func (s *Store) GetInstance(id int64) (*Instance, error) {
	inst, err := scanInstance(s.db.QueryRow(
		`SELECT `+instanceColumns+` FROM instances WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get instance %d: %w", id, mapSQLiteError(err))
	}
	return inst, nil
}

// ListInstances returns all instances ordered by id.
func (s *Store) ListInstances() ([]*Instance, error) {
	rows, err := s.db.Query(`SELECT ` + instanceColumns + ` FROM instances ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", mapSQLiteError(err))
	}
	defer func() { _ = rows.Close() }()

	var results []*Instance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		results = append(results, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate instances: %w", err)
	}
	return results, nil
}

// DefaultInstance returns the enabled default instance for a target type.
// Returns ErrNotFound when no default is configured.
func (s *Store) DefaultInstance(target TargetType) (*Instance, error) {
	inst, err := scanInstance(s.db.QueryRow(
		`SELECT `+instanceColumns+` FROM instances
		WHERE type = ? AND is_default = 1 AND enabled = 1
		ORDER BY id LIMIT 1`, target))
	if err != nil {
		return nil, fmt.Errorf("default %s instance: %w", target, mapSQLiteError(err))
	}
	return inst, nil
}

// UpsertInstance inserts or updates an instance keyed by name, setting ID on
// the struct. Used to sync TOML-configured instances at startup.
func (s *Store) UpsertInstance(inst *Instance) error {
	tags, err := marshalTags(inst.Tags)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO instances (name, type, base_url, api_key, enabled, is_default,
			quality_profile, root_folder, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			type = excluded.type,
			base_url = excluded.base_url,
			api_key = excluded.api_key,
			enabled = excluded.enabled,
			is_default = excluded.is_default,
			quality_profile = excluded.quality_profile,
			root_folder = excluded.root_folder,
			tags = excluded.tags`,
		inst.Name, inst.Type, inst.BaseURL, inst.APIKey, inst.Enabled, inst.Default,
		inst.QualityProfile, inst.RootFolder, tags,
	)
	if err != nil {
		return fmt.Errorf("upsert instance %q: %w", inst.Name, mapSQLiteError(err))
	}
	// LastInsertId is unreliable on the conflict path; resolve by name.
	if err := s.db.QueryRow(`SELECT id FROM instances WHERE name = ?`, inst.Name).Scan(&inst.ID); err != nil {
		return fmt.Errorf("resolve instance id %q: %w", inst.Name, mapSQLiteError(err))
	}
	return nil
}
