package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/resort-scheduler/internal/persistence"
)

// GridRepository implements persistence.GridRepository using SQLite. The
// grid document is stored as a JSON column and replaced wholesale on save.
type GridRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewGridRepository creates a new SQLite weekly-grid repository.
func NewGridRepository(pool *ConnectionPool) *GridRepository {
	return &GridRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// GetGrid fetches the grid document for a week key.
func (r *GridRepository) GetGrid(ctx context.Context, weekKey string) (persistence.WeeklyGrid, error) {
	row := r.helper.QueryRow(ctx, `
		SELECT week_key, grid, updated_by, created_at, updated_at
		FROM weekly_grids WHERE week_key = ?`, weekKey)

	var (
		grid      persistence.WeeklyGrid
		raw       string
		updatedBy sql.NullString
		createdAt string
		updatedAt string
	)
	if err := row.Scan(&grid.WeekKey, &raw, &updatedBy, &createdAt, &updatedAt); err != nil {
		return persistence.WeeklyGrid{}, r.mapper.MapError(err)
	}

	if err := json.Unmarshal([]byte(raw), &grid.Grid); err != nil {
		return persistence.WeeklyGrid{}, fmt.Errorf("unmarshal grid %s: %w", weekKey, err)
	}
	grid.UpdatedBy = stringPtr(updatedBy)

	var err error
	if grid.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.WeeklyGrid{}, err
	}
	if grid.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.WeeklyGrid{}, err
	}
	return grid, nil
}

// SaveGrid inserts or replaces the grid document for a week key.
func (r *GridRepository) SaveGrid(ctx context.Context, grid persistence.WeeklyGrid) (persistence.WeeklyGrid, error) {
	if grid.WeekKey == "" {
		return persistence.WeeklyGrid{}, persistence.ErrConstraintViolation
	}
	if grid.Grid == nil {
		grid.Grid = map[string]map[string]map[string]string{}
	}

	raw, err := json.Marshal(grid.Grid)
	if err != nil {
		return persistence.WeeklyGrid{}, fmt.Errorf("marshal grid %s: %w", grid.WeekKey, err)
	}

	now := time.Now().UTC()
	grid.UpdatedAt = now

	err = r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		var createdAt string
		err := r.helper.QueryRowTx(tx, `SELECT created_at FROM weekly_grids WHERE week_key = ?`, grid.WeekKey).Scan(&createdAt)
		switch {
		case err == sql.ErrNoRows:
			grid.CreatedAt = now
			_, err = r.helper.ExecTx(tx, `
				INSERT INTO weekly_grids (week_key, grid, updated_by, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?)`,
				grid.WeekKey, string(raw), nullString(grid.UpdatedBy),
				formatTime(grid.CreatedAt), formatTime(grid.UpdatedAt))
			return err
		case err != nil:
			return err
		}

		if grid.CreatedAt, err = parseTime(createdAt); err != nil {
			return err
		}
		_, err = r.helper.ExecTx(tx, `
			UPDATE weekly_grids SET grid = ?, updated_by = ?, updated_at = ?
			WHERE week_key = ?`,
			string(raw), nullString(grid.UpdatedBy), formatTime(grid.UpdatedAt), grid.WeekKey)
		return err
	})
	if err != nil {
		return persistence.WeeklyGrid{}, r.mapper.MapError(err)
	}
	return grid, nil
}
