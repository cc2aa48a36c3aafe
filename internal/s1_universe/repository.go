package s1_universe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rsscreen/internal/contracts"
)

// ErrNoSnapshot is returned when no universe snapshot has been saved
var ErrNoSnapshot = errors.New("no universe snapshot")

// Repository handles data persistence for S1
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new Repository instance
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// SaveUniverse saves a universe snapshot to the database (하루 1건, 재실행 시 덮어씀)
func (r *Repository) SaveUniverse(ctx context.Context, universe *contracts.Universe) error {
	securitiesJSON, err := json.Marshal(universe.Securities)
	if err != nil {
		return fmt.Errorf("marshal securities: %w", err)
	}
	excludedJSON, err := json.Marshal(universe.Excluded)
	if err != nil {
		return fmt.Errorf("marshal excluded: %w", err)
	}

	query := `
		INSERT INTO data.universe_snapshots (
			snapshot_date,
			tickers,
			total_count,
			securities,
			excluded,
			created_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			tickers = EXCLUDED.tickers,
			total_count = EXCLUDED.total_count,
			securities = EXCLUDED.securities,
			excluded = EXCLUDED.excluded,
			created_at = NOW()
	`

	_, err = r.db.Exec(ctx, query,
		universe.Date,
		universe.Tickers(),
		universe.Count(),
		securitiesJSON,
		excludedJSON,
	)
	if err != nil {
		return fmt.Errorf("insert universe: %w", err)
	}

	return nil
}

// GetLatestUniverse retrieves the most recent universe snapshot
func (r *Repository) GetLatestUniverse(ctx context.Context) (*contracts.Universe, error) {
	query := `
		SELECT
			snapshot_date,
			securities,
			excluded
		FROM data.universe_snapshots
		ORDER BY snapshot_date DESC
		LIMIT 1
	`

	universe := &contracts.Universe{
		Excluded: make(map[string]string),
	}

	var securitiesJSON, excludedJSON []byte
	err := r.db.QueryRow(ctx, query).Scan(
		&universe.Date,
		&securitiesJSON,
		&excludedJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("query latest universe: %w", err)
	}

	if err := json.Unmarshal(securitiesJSON, &universe.Securities); err != nil {
		return nil, fmt.Errorf("unmarshal securities: %w", err)
	}
	if len(excludedJSON) > 0 {
		if err := json.Unmarshal(excludedJSON, &universe.Excluded); err != nil {
			return nil, fmt.Errorf("unmarshal excluded: %w", err)
		}
	}

	return universe, nil
}
