package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Container operations

// InsertContainer writes a container and its rules in one transaction.
func (s *Store) InsertContainer(c *Container) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO containers (id, name, color, icon, temporary, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Color, c.Icon, c.Temporary, c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert container %s: %w", c.ID, err)
	}

	if err := insertRules(tx, c.ID, c.Suffixes); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateContainerDetails updates the identity fields of a container.
func (s *Store) UpdateContainerDetails(id, name, color, icon string, temporary bool) error {
	result, err := s.db.Exec(`
		UPDATE containers SET name = ?, color = ?, icon = ?, temporary = ?
		WHERE id = ?`,
		name, color, icon, temporary, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update container %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("container %s not found", id)
	}
	return nil
}

// ReplaceRules swaps a container's full rule set in one transaction.
func (s *Store) ReplaceRules(containerID string, suffixes []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM rules WHERE container_id = ?`, containerID); err != nil {
		return fmt.Errorf("failed to clear rules for %s: %w", containerID, err)
	}
	if err := insertRules(tx, containerID, suffixes); err != nil {
		return err
	}
	return tx.Commit()
}

func insertRules(tx *sql.Tx, containerID string, suffixes []string) error {
	for i, suffix := range suffixes {
		_, err := tx.Exec(`
			INSERT INTO rules (suffix, container_id, position)
			VALUES (?, ?, ?)`,
			suffix, containerID, i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert rule %s for %s: %w", suffix, containerID, err)
		}
	}
	return nil
}

// DeleteContainer removes a container; its rules cascade.
func (s *Store) DeleteContainer(id string) error {
	result, err := s.db.Exec(`DELETE FROM containers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete container %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("container %s not found", id)
	}
	return nil
}

// GetContainer retrieves one container with its rules.
func (s *Store) GetContainer(id string) (*Container, error) {
	var c Container
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, name, color, icon, temporary, created_at
		FROM containers WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.Temporary, &createdAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("container %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get container %s: %w", id, err)
	}

	c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at for %s: %w", id, err)
	}

	c.Suffixes, err = s.containerSuffixes(id)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListContainers returns all containers with their rules, ordered by
// creation time.
func (s *Store) ListContainers() ([]*Container, error) {
	rows, err := s.db.Query(`
		SELECT id, name, color, icon, temporary, created_at
		FROM containers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}
	defer rows.Close()

	var containers []*Container
	for rows.Next() {
		var c Container
		var createdAt string
		if err := rows.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &c.Temporary, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan container row: %w", err)
		}
		c.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for %s: %w", c.ID, err)
		}
		containers = append(containers, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating containers: %w", err)
	}

	for _, c := range containers {
		c.Suffixes, err = s.containerSuffixes(c.ID)
		if err != nil {
			return nil, err
		}
	}
	return containers, nil
}

func (s *Store) containerSuffixes(containerID string) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT suffix FROM rules
		WHERE container_id = ?
		ORDER BY position`, containerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules for %s: %w", containerID, err)
	}
	defer rows.Close()

	var suffixes []string
	for rows.Next() {
		var suffix string
		if err := rows.Scan(&suffix); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		suffixes = append(suffixes, suffix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return suffixes, nil
}

// PSL metadata operations

// SavePSLMeta records when and from where the public suffix list was
// last refreshed.
func (s *Store) SavePSLMeta(meta PSLMeta) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO psl_meta (id, last_updated, entry_count, source)
		VALUES (1, ?, ?, ?)`,
		meta.LastUpdated.Format(time.RFC3339), meta.EntryCount, meta.Source,
	)
	if err != nil {
		return fmt.Errorf("failed to save psl metadata: %w", err)
	}
	return nil
}

// GetPSLMeta returns the stored refresh metadata, or nil when the list
// has never been refreshed.
func (s *Store) GetPSLMeta() (*PSLMeta, error) {
	var meta PSLMeta
	var lastUpdated string
	err := s.db.QueryRow(`
		SELECT last_updated, entry_count, source FROM psl_meta WHERE id = 1`,
	).Scan(&lastUpdated, &meta.EntryCount, &meta.Source)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get psl metadata: %w", err)
	}
	meta.LastUpdated, err = time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return nil, fmt.Errorf("failed to parse psl last_updated: %w", err)
	}
	return &meta, nil
}
