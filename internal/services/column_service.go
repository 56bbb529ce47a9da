package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
)

type columnServiceImpl struct {
	logger zerolog.Logger
	pgPool Pool
}

func NewColumnService(
	logger zerolog.Logger,
	pgPool Pool,
) ColumnService {
	return &columnServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *columnServiceImpl) ListByProject(ctx context.Context, projectID string) ([]models.Column, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return nil, ErrProjectNotFound
	}

	const selectColumnsQuery = `
SELECT id,
       key,
       name,
       "order",
       created_at,
       updated_at
FROM columns
WHERE project_id = $1
ORDER BY "order" ASC
`
	rows, err := s.pgPool.Query(ctx, selectColumnsQuery, projectID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Msg("failed to select columns")
		return nil, err
	}
	defer rows.Close()

	var columns []models.Column
	for rows.Next() {
		col := models.Column{ProjectID: projectID}
		err = rows.Scan(
			&col.ID,
			&col.Key,
			&col.Name,
			&col.Order,
			&col.CreatedAt,
			&col.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan column")
			return nil, err
		}
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}

	if len(columns) == 0 {
		s.logger.Warn().
			Str("project_id", projectID).
			Msg("no columns found")
		return nil, ErrColumnNotFound
	}

	s.logger.Debug().
		Int("count", len(columns)).
		Str("project_id", projectID).
		Msg("selected columns")
	return columns, nil
}
