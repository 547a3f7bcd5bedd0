package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mstgnz/idpay/provider"
)

// SaveProfile inserts a new profile, or updates it when profile.ID is set
func (s *Store) SaveProfile(ctx context.Context, profile *provider.PaymentProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	optionsJSON, err := json.Marshal(profile.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal profile options: %w", err)
	}

	return s.retryOperation(func() error {
		if profile.ID > 0 {
			query := s.rebind(`
			UPDATE payment_profiles
			SET provider_id = ?, title = ?, options = ?, active = ?, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
			`)
			res, err := s.db.ExecContext(ctx, query, profile.ProviderID, profile.Title, string(optionsJSON), profile.Active, profile.ID)
			if err != nil {
				return fmt.Errorf("failed to update payment profile: %w", err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return provider.ErrProfileNotFound
			}
			return nil
		}

		query := s.rebind(`
		INSERT INTO payment_profiles (provider_id, title, options, active)
		VALUES (?, ?, ?, ?)
		RETURNING id
		`)
		if err := s.db.QueryRowContext(ctx, query, profile.ProviderID, profile.Title, string(optionsJSON), profile.Active).Scan(&profile.ID); err != nil {
			return fmt.Errorf("failed to insert payment profile: %w", err)
		}
		return nil
	}, 3)
}

// GetProfile loads a profile by id; a missing profile is (nil, nil)
func (s *Store) GetProfile(ctx context.Context, id int64) (*provider.PaymentProfile, error) {
	query := s.rebind(`
	SELECT id, provider_id, title, options, active
	FROM payment_profiles
	WHERE id = ?
	`)

	profile, err := scanProfile(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load payment profile %d: %w", id, err)
	}
	return profile, nil
}

// ListProfiles returns all profiles ordered by id
func (s *Store) ListProfiles(ctx context.Context) ([]provider.PaymentProfile, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, provider_id, title, options, active
	FROM payment_profiles
	ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment profiles: %w", err)
	}
	defer rows.Close()

	profiles := []provider.PaymentProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment profile: %w", err)
		}
		profiles = append(profiles, *profile)
	}

	return profiles, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*provider.PaymentProfile, error) {
	var (
		profile     provider.PaymentProfile
		optionsJSON string
	)
	if err := row.Scan(&profile.ID, &profile.ProviderID, &profile.Title, &optionsJSON, &profile.Active); err != nil {
		return nil, err
	}

	profile.Options = map[string]string{}
	if optionsJSON != "" {
		if err := json.Unmarshal([]byte(optionsJSON), &profile.Options); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile options: %w", err)
		}
	}

	return &profile, nil
}
