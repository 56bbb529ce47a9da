package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
	"github.com/taskforge/server/internal/ordering"
)

const (
	defaultTaskPageLimit = 20
	// Large enough for the prompt-context fetch (200 recent tasks).
	maxTaskPageLimit = 200
)

type taskServiceImpl struct {
	logger zerolog.Logger
	pgPool Pool
}

func NewTaskService(
	logger zerolog.Logger,
	pgPool Pool,
) TaskService {
	return &taskServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

func (s *taskServiceImpl) Create(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	now := time.Now()
	task := models.Task{
		ProjectID:   params.ProjectID,
		ColumnID:    params.ColumnID,
		Title:       params.Title,
		Description: params.Description,
		Difficulty:  params.Difficulty,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Difficulty == "" {
		task.Difficulty = models.DifficultyEasy
	}

	const selectColumnProjectQuery = `
SELECT project_id
FROM columns
WHERE id = $1
`
	var columnProjectID string
	err := s.pgPool.QueryRow(
		ctx,
		selectColumnProjectQuery,
		task.ColumnID,
	).Scan(&columnProjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("column_id", task.ColumnID).
				Msg("column not found")
			return nil, ErrColumnNotFound
		}

		s.logger.Error().
			Err(err).
			Str("column_id", task.ColumnID).
			Msg("failed to select column")
		return nil, err
	}
	if columnProjectID != task.ProjectID {
		s.logger.Warn().
			Str("column_id", task.ColumnID).
			Str("project_id", task.ProjectID).
			Msg("column belongs to another project")
		return nil, ErrColumnMismatch
	}

	taskUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate task uuid")
		return nil, err
	}
	task.ID = taskUUID.String()

	const selectMaxRankQuery = `
SELECT MAX("order")
FROM tasks
WHERE project_id = $1 AND
      column_id = $2
`
	const insertTaskQuery = `
INSERT INTO tasks (id,
                   project_id,
                   column_id,
                   title,
                   description,
                   "order",
                   difficulty,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`
	rank, err := ordering.Assign(
		func() (*int64, error) {
			var max *int64
			err := s.pgPool.QueryRow(
				ctx,
				selectMaxRankQuery,
				task.ProjectID,
				task.ColumnID,
			).Scan(&max)
			if err != nil {
				return nil, err
			}
			return max, nil
		},
		func(rank int64) error {
			_, err := s.pgPool.Exec(
				ctx,
				insertTaskQuery,
				task.ID,
				task.ProjectID,
				task.ColumnID,
				task.Title,
				task.Description,
				rank,
				task.Difficulty,
				task.CreatedAt,
				task.UpdatedAt,
			)
			if isUniqueViolation(err) {
				s.logger.Warn().
					Str("column_id", task.ColumnID).
					Int64("order", rank).
					Msg("rank collision on insert")
				return fmt.Errorf("%w: order %d", ordering.ErrConflict, rank)
			}
			return err
		},
	)
	if err != nil {
		if errors.Is(err, ordering.ErrConflict) {
			s.logger.Error().
				Str("column_id", task.ColumnID).
				Msg("rank collision persisted after retry")
			return nil, ErrRankConflict
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert task")
		return nil, err
	}
	task.Order = rank

	s.logger.Info().
		Str("task_id", task.ID).
		Str("project_id", task.ProjectID).
		Int64("order", task.Order).
		Msg("created task")
	return &task, nil
}

func (s *taskServiceImpl) GetByID(ctx context.Context, id string) (*models.Task, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrTaskNotFound
	}

	task := models.Task{ID: id}

	const selectTaskQuery = `
SELECT project_id,
       column_id,
       title,
       description,
       "order",
       difficulty,
       created_at,
       updated_at
FROM tasks
WHERE id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectTaskQuery,
		task.ID,
	).Scan(
		&task.ProjectID,
		&task.ColumnID,
		&task.Title,
		&task.Description,
		&task.Order,
		&task.Difficulty,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to select task")
		return nil, err
	}
	return &task, nil
}

func (s *taskServiceImpl) ListByProject(ctx context.Context, params ListTasksParams) (*TaskPage, error) {
	page := params.Page
	if page < 1 {
		page = 1
	}
	limit := params.Limit
	if limit < 1 {
		limit = defaultTaskPageLimit
	}
	if limit > maxTaskPageLimit {
		limit = maxTaskPageLimit
	}

	where := []string{"project_id = $1"}
	args := []any{params.ProjectID}

	if params.ColumnID != "" {
		if _, err := uuid.Parse(params.ColumnID); err == nil {
			args = append(args, params.ColumnID)
			where = append(where, fmt.Sprintf("column_id = $%d", len(args)))
		}
	}
	if term := strings.TrimSpace(params.Search); term != "" {
		args = append(args, "%"+term+"%")
		where = append(where, fmt.Sprintf(
			"(title ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	condition := strings.Join(where, " AND ")

	countQuery := "SELECT COUNT(*) FROM tasks WHERE " + condition

	var total int
	if err := s.pgPool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to count tasks")
		return nil, err
	}

	orderBy := `"order" ASC`
	if params.RecentFirst {
		orderBy = "updated_at DESC"
	}

	args = append(args, limit, (page-1)*limit)
	selectQuery := fmt.Sprintf(`
SELECT id,
       column_id,
       title,
       description,
       "order",
       difficulty,
       created_at,
       updated_at
FROM tasks
WHERE %s
ORDER BY %s
LIMIT $%d OFFSET $%d
`, condition, orderBy, len(args)-1, len(args))

	rows, err := s.pgPool.Query(ctx, selectQuery, args...)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select tasks")
		return nil, err
	}
	defer rows.Close()

	tasks := make([]models.Task, 0, limit)
	for rows.Next() {
		task := models.Task{ProjectID: params.ProjectID}
		err = rows.Scan(
			&task.ID,
			&task.ColumnID,
			&task.Title,
			&task.Description,
			&task.Order,
			&task.Difficulty,
			&task.CreatedAt,
			&task.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan task")
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Int("total", total).
		Str("project_id", params.ProjectID).
		Msg("selected tasks")
	return &TaskPage{
		Tasks: tasks,
		Total: total,
		Page:  page,
		Limit: limit,
	}, nil
}

func (s *taskServiceImpl) Update(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	// A column move gets the same target check as Create: the column
	// must exist and belong to the task's project, or the task would
	// end up on another project's board.
	if params.ColumnID != nil {
		const selectMoveTargetQuery = `
SELECT t.project_id,
       c.project_id
FROM tasks t
LEFT JOIN columns c ON c.id = $2
WHERE t.id = $1
`
		var taskProjectID string
		var columnProjectID *string
		err := s.pgPool.QueryRow(
			ctx,
			selectMoveTargetQuery,
			params.ID,
			*params.ColumnID,
		).Scan(&taskProjectID, &columnProjectID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				s.logger.Warn().
					Str("task_id", params.ID).
					Msg("task not found")
				return nil, ErrTaskNotFound
			}

			s.logger.Error().
				Err(err).
				Str("task_id", params.ID).
				Str("column_id", *params.ColumnID).
				Msg("failed to select move target")
			return nil, err
		}
		if columnProjectID == nil {
			s.logger.Warn().
				Str("column_id", *params.ColumnID).
				Msg("column not found")
			return nil, ErrColumnNotFound
		}
		if *columnProjectID != taskProjectID {
			s.logger.Warn().
				Str("column_id", *params.ColumnID).
				Str("project_id", taskProjectID).
				Msg("column belongs to another project")
			return nil, ErrColumnMismatch
		}
	}

	set := []string{"updated_at = $1"}
	args := []any{time.Now()}

	appendSet := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if params.Title != nil {
		appendSet("title", *params.Title)
	}
	if params.Description != nil {
		appendSet("description", *params.Description)
	}
	if params.Difficulty != nil {
		appendSet("difficulty", *params.Difficulty)
	}
	if params.Order != nil {
		appendSet(`"order"`, *params.Order)
	}
	if params.ColumnID != nil {
		appendSet("column_id", *params.ColumnID)
	}

	args = append(args, params.ID)
	updateQuery := fmt.Sprintf(`
UPDATE tasks
SET %s
WHERE id = $%d
RETURNING project_id, column_id, title, description, "order", difficulty, created_at, updated_at
`, strings.Join(set, ", "), len(args))

	task := models.Task{ID: params.ID}
	err := s.pgPool.QueryRow(ctx, updateQuery, args...).Scan(
		&task.ProjectID,
		&task.ColumnID,
		&task.Title,
		&task.Description,
		&task.Order,
		&task.Difficulty,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", params.ID).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}
		// An explicit rank write that lands on a sibling's rank is the
		// caller's conflict to resolve: no retry.
		if isUniqueViolation(err) {
			s.logger.Warn().
				Str("task_id", params.ID).
				Msg("explicit rank write collided")
			return nil, ErrRankConflict
		}

		s.logger.Error().
			Err(err).
			Str("task_id", params.ID).
			Msg("failed to update task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", task.ID).
		Msg("updated task")
	return &task, nil
}

func (s *taskServiceImpl) Delete(ctx context.Context, id string) (*models.Task, error) {
	task := models.Task{ID: id}

	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1
RETURNING project_id, column_id
`
	err := s.pgPool.QueryRow(
		ctx,
		deleteTaskQuery,
		task.ID,
	).Scan(
		&task.ProjectID,
		&task.ColumnID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("task_id", id).
				Msg("task not found")
			return nil, ErrTaskNotFound
		}

		s.logger.Error().
			Err(err).
			Str("task_id", id).
			Msg("failed to delete task")
		return nil, err
	}

	s.logger.Info().
		Str("task_id", id).
		Msg("deleted task")
	return &task, nil
}
