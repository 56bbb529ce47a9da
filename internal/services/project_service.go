package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
)

type projectServiceImpl struct {
	logger zerolog.Logger
	pgPool Pool
}

func NewProjectService(
	logger zerolog.Logger,
	pgPool Pool,
) ProjectService {
	return &projectServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

// seedColumns are created with every project, ranked rankGap apart so
// custom columns can slot between them later.
var seedColumns = []struct {
	key   string
	name  string
	order int64
}{
	{models.ColumnKeyTodo, "To Do", 1000},
	{models.ColumnKeyInProgress, "In Progress", 2000},
	{models.ColumnKeyDone, "Done", 3000},
}

func (s *projectServiceImpl) Create(ctx context.Context, ownerID, name, description string) (*models.Project, error) {
	now := time.Now()
	project := models.Project{
		Name:        name,
		Description: description,
		OwnerID:     ownerID,
		Members: []models.Member{
			{UserID: ownerID, Role: models.RoleOwner},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	projectUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate project uuid")
		return nil, err
	}
	project.ID = projectUUID.String()

	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const insertProjectQuery = `
INSERT INTO projects (id,
                      name,
                      description,
                      owner_id,
                      created_at,
                      updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
`
	_, err = tx.Exec(
		ctx,
		insertProjectQuery,
		project.ID,
		project.Name,
		project.Description,
		project.OwnerID,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert project")
		return nil, err
	}

	const insertMemberQuery = `
INSERT INTO project_members (project_id, user_id, role)
VALUES ($1, $2, $3)
`
	_, err = tx.Exec(
		ctx,
		insertMemberQuery,
		project.ID,
		ownerID,
		models.RoleOwner,
	)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to insert owner membership")
		return nil, err
	}

	const insertColumnQuery = `
INSERT INTO columns (id,
                     project_id,
                     key,
                     name,
                     "order",
                     created_at,
                     updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	for _, col := range seedColumns {
		columnUUID, err := uuid.NewV7()
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to generate column uuid")
			return nil, err
		}
		_, err = tx.Exec(
			ctx,
			insertColumnQuery,
			columnUUID.String(),
			project.ID,
			col.key,
			col.name,
			col.order,
			now,
			now,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Str("key", col.key).
				Msg("failed to insert seed column")
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return nil, err
	}

	s.logger.Info().
		Str("project_id", project.ID).
		Str("owner_id", ownerID).
		Msg("created project")
	return &project, nil
}

func (s *projectServiceImpl) GetByID(ctx context.Context, id string) (*models.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProjectNotFound
	}

	project := models.Project{ID: id}

	const selectProjectQuery = `
SELECT name,
       description,
       owner_id,
       created_at,
       updated_at
FROM projects
WHERE id = $1
`
	err := s.pgPool.QueryRow(
		ctx,
		selectProjectQuery,
		project.ID,
	).Scan(
		&project.Name,
		&project.Description,
		&project.OwnerID,
		&project.CreatedAt,
		&project.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("project_id", id).
				Msg("project not found")
			return nil, ErrProjectNotFound
		}

		s.logger.Error().
			Err(err).
			Str("project_id", id).
			Msg("failed to select project")
		return nil, err
	}

	members, err := s.selectMembers(ctx, id)
	if err != nil {
		return nil, err
	}
	project.Members = members

	return &project, nil
}

func (s *projectServiceImpl) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	const selectProjectsQuery = `
SELECT p.id,
       p.name,
       p.description,
       p.owner_id,
       p.created_at,
       p.updated_at
FROM projects p
JOIN project_members m ON m.project_id = p.id
WHERE m.user_id = $1
ORDER BY p.created_at DESC
`
	return s.selectProjects(ctx, selectProjectsQuery, userID)
}

func (s *projectServiceImpl) SearchByName(ctx context.Context, name string) ([]models.Project, error) {
	const searchProjectsQuery = `
SELECT id,
       name,
       description,
       owner_id,
       created_at,
       updated_at
FROM projects
WHERE name ILIKE '%' || $1 || '%'
ORDER BY created_at DESC
`
	return s.selectProjects(ctx, searchProjectsQuery, name)
}

func (s *projectServiceImpl) selectProjects(ctx context.Context, query string, arg any) ([]models.Project, error) {
	rows, err := s.pgPool.Query(ctx, query, arg)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to select projects")
		return nil, err
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		var p models.Project
		err = rows.Scan(
			&p.ID,
			&p.Name,
			&p.Description,
			&p.OwnerID,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan project")
			return nil, err
		}
		projects = append(projects, p)
	}

	if err := rows.Err(); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to iterate over rows")
		return nil, err
	}
	return projects, nil
}

func (s *projectServiceImpl) selectMembers(ctx context.Context, projectID string) ([]models.Member, error) {
	const selectMembersQuery = `
SELECT m.user_id,
       u.name,
       m.role
FROM project_members m
JOIN users u ON u.id = m.user_id
WHERE m.project_id = $1
`
	rows, err := s.pgPool.Query(ctx, selectMembersQuery, projectID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Msg("failed to select members")
		return nil, err
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.UserID, &m.Name, &m.Role); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to scan member")
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *projectServiceImpl) Update(ctx context.Context, id, name, description string) (*models.Project, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrProjectNotFound
	}

	project := models.Project{
		ID:          id,
		Name:        name,
		Description: description,
		UpdatedAt:   time.Now(),
	}

	const updateProjectQuery = `
UPDATE projects
SET name = $1,
    description = $2,
    updated_at = $3
WHERE id = $4
RETURNING owner_id, created_at
`
	err := s.pgPool.QueryRow(
		ctx,
		updateProjectQuery,
		project.Name,
		project.Description,
		project.UpdatedAt,
		project.ID,
	).Scan(
		&project.OwnerID,
		&project.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("project_id", id).
				Msg("project not found")
			return nil, ErrProjectNotFound
		}

		s.logger.Error().
			Err(err).
			Str("project_id", id).
			Msg("failed to update project")
		return nil, err
	}

	s.logger.Info().
		Str("project_id", id).
		Msg("updated project")
	return &project, nil
}

func (s *projectServiceImpl) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrProjectNotFound
	}

	// Columns, tasks and memberships cascade through foreign keys.
	const deleteProjectQuery = `
DELETE FROM projects
WHERE id = $1
`
	tag, err := s.pgPool.Exec(ctx, deleteProjectQuery, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", id).
			Msg("failed to delete project")
		return err
	}
	if tag.RowsAffected() == 0 {
		s.logger.Warn().
			Str("project_id", id).
			Msg("project not found")
		return ErrProjectNotFound
	}

	s.logger.Info().
		Str("project_id", id).
		Msg("deleted project")
	return nil
}
