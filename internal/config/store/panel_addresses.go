package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fluxpanel/panelbridge/internal/panel"
)

// ListPanelAddresses returns the profile's addresses in insertion order.
func (s *Store) ListPanelAddresses(ctx context.Context) (panel.AddressSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, address, is_current
		FROM panel_addresses
		WHERE profile_name = ?
		ORDER BY position ASC
	`, s.profileName)
	if err != nil {
		return nil, fmt.Errorf("config: list panel addresses: %w", err)
	}
	defer rows.Close()

	set := panel.AddressSet{}
	for rows.Next() {
		var (
			a       panel.Address
			current int
		)
		if err := rows.Scan(&a.Name, &a.Address, &current); err != nil {
			return nil, fmt.Errorf("config: scan panel address: %w", err)
		}
		a.IsCurrent = current == 1
		set = append(set, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("config: iterate panel addresses: %w", err)
	}
	return set, nil
}

// SavePanelAddress inserts name or overwrites its address. The entry becomes
// current when no other entry is.
func (s *Store) SavePanelAddress(ctx context.Context, name, address string) error {
	if err := s.ensureWritable("save panel address"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var hasCurrent int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM panel_addresses WHERE profile_name = ? AND is_current = 1
		`, s.profileName).Scan(&hasCurrent); err != nil {
			return fmt.Errorf("config: check current panel address: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO panel_addresses (profile_name, name, address, is_current, position, updated_at)
			VALUES (?, ?, ?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM panel_addresses WHERE profile_name = ?), CURRENT_TIMESTAMP)
			ON CONFLICT(profile_name, name) DO UPDATE SET
				address = excluded.address,
				updated_at = CURRENT_TIMESTAMP
		`, s.profileName, name, address, boolToInt(hasCurrent == 0), s.profileName); err != nil {
			return fmt.Errorf("config: save panel address %q: %w", name, err)
		}
		return nil
	})
}

// SetCurrentPanelAddress marks name as the only current entry.
func (s *Store) SetCurrentPanelAddress(ctx context.Context, name string) error {
	if err := s.ensureWritable("set current panel address"); err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := requirePanelAddress(ctx, tx, s.profileName, name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE panel_addresses SET is_current = 0, updated_at = CURRENT_TIMESTAMP
			WHERE profile_name = ? AND is_current = 1
		`, s.profileName); err != nil {
			return fmt.Errorf("config: clear current panel address: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE panel_addresses SET is_current = 1, updated_at = CURRENT_TIMESTAMP
			WHERE profile_name = ? AND name = ?
		`, s.profileName, name); err != nil {
			return fmt.Errorf("config: set current panel address %q: %w", name, err)
		}
		return nil
	})
}

// DeletePanelAddress removes name. Deleting the current entry leaves no
// entry current.
func (s *Store) DeletePanelAddress(ctx context.Context, name string) error {
	if err := s.ensureWritable("delete panel address"); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM panel_addresses WHERE profile_name = ? AND name = ?
	`, s.profileName, name)
	if err != nil {
		return fmt.Errorf("config: delete panel address %q: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("config: delete panel address %q: %w", name, err)
	}
	if affected == 0 {
		return NotFoundError{Entity: "panel address", Key: name}
	}
	return nil
}

func requirePanelAddress(ctx context.Context, tx *sql.Tx, profile, name string) error {
	var found string
	err := tx.QueryRowContext(ctx, `
		SELECT name FROM panel_addresses WHERE profile_name = ? AND name = ?
	`, profile, name).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return NotFoundError{Entity: "panel address", Key: name}
	}
	if err != nil {
		return fmt.Errorf("config: lookup panel address %q: %w", name, err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
