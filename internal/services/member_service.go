package services

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
)

type memberServiceImpl struct {
	logger zerolog.Logger
	pgPool Pool
}

func NewMemberService(
	logger zerolog.Logger,
	pgPool Pool,
) MemberService {
	return &memberServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *memberServiceImpl) List(ctx context.Context, projectID string) ([]models.Member, error) {
	exists, err := s.projectExists(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrProjectNotFound
	}
	return s.selectMembers(ctx, projectID)
}

func (s *memberServiceImpl) AddByName(ctx context.Context, projectID, name, role string) ([]models.Member, error) {
	const selectUserByNameQuery = `
SELECT id
FROM users
WHERE lower(name) = lower($1)
`
	var userID string
	err := s.pgPool.QueryRow(
		ctx,
		selectUserByNameQuery,
		name,
	).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("name", name).
				Msg("user not found")
			return nil, ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("name", name).
			Msg("failed to select user by name")
		return nil, err
	}

	// Ownership never moves through AddByName.
	if role != models.RoleMember {
		role = models.RoleMember
	}

	const insertMemberQuery = `
INSERT INTO project_members (project_id, user_id, role)
VALUES ($1, $2, $3)
`
	_, err = s.pgPool.Exec(
		ctx,
		insertMemberQuery,
		projectID,
		userID,
		role,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				s.logger.Warn().
					Str("project_id", projectID).
					Str("user_id", userID).
					Msg("user is already a member")
				return nil, ErrMemberExists
			case pgerrcode.ForeignKeyViolation:
				return nil, ErrProjectNotFound
			}
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert member")
		return nil, err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("user_id", userID).
		Msg("added member")
	return s.selectMembers(ctx, projectID)
}

func (s *memberServiceImpl) UpdateRole(ctx context.Context, projectID, userID, role string) ([]models.Member, error) {
	tx, err := s.pgPool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const selectMemberQuery = `
SELECT 1
FROM project_members
WHERE project_id = $1 AND
      user_id = $2
FOR UPDATE
`
	var one int
	err = tx.QueryRow(ctx, selectMemberQuery, projectID, userID).Scan(&one)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Warn().
				Str("project_id", projectID).
				Str("user_id", userID).
				Msg("member not found")
			return nil, ErrMemberNotFound
		}

		s.logger.Error().
			Err(err).
			Msg("failed to select member")
		return nil, err
	}

	if role == models.RoleOwner {
		// Promotion transfers ownership: the project's ownerId moves
		// to the promoted member and everyone else drops to member.
		const transferOwnerQuery = `
UPDATE projects
SET owner_id = $1,
    updated_at = now()
WHERE id = $2
`
		if _, err := tx.Exec(ctx, transferOwnerQuery, userID, projectID); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to transfer ownership")
			return nil, err
		}

		const reassignRolesQuery = `
UPDATE project_members
SET role = CASE WHEN user_id = $1 THEN 'owner' ELSE 'member' END
WHERE project_id = $2
`
		if _, err := tx.Exec(ctx, reassignRolesQuery, userID, projectID); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to reassign roles")
			return nil, err
		}
	} else {
		const demoteMemberQuery = `
UPDATE project_members
SET role = 'member'
WHERE project_id = $1 AND
      user_id = $2
`
		if _, err := tx.Exec(ctx, demoteMemberQuery, projectID, userID); err != nil {
			s.logger.Error().
				Err(err).
				Msg("failed to demote member")
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
		Str("project_id", projectID).
		Str("user_id", userID).
		Str("role", role).
		Msg("updated member role")
	return s.selectMembers(ctx, projectID)
}

func (s *memberServiceImpl) Remove(ctx context.Context, projectID, userID string) ([]models.Member, error) {
	const selectOwnerQuery = `
SELECT owner_id
FROM projects
WHERE id = $1
`
	var ownerID string
	err := s.pgPool.QueryRow(ctx, selectOwnerQuery, projectID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProjectNotFound
		}

		s.logger.Error().
			Err(err).
			Msg("failed to select project owner")
		return nil, err
	}

	// The designated owner stays a member for as long as they own the
	// project; ownership must be transferred first.
	if ownerID == userID {
		s.logger.Warn().
			Str("project_id", projectID).
			Str("user_id", userID).
			Msg("refusing to remove the owner")
		return nil, ErrOwnerRemoval
	}

	const deleteMemberQuery = `
DELETE FROM project_members
WHERE project_id = $1 AND
      user_id = $2
`
	if _, err := s.pgPool.Exec(ctx, deleteMemberQuery, projectID, userID); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to delete member")
		return nil, err
	}

	s.logger.Info().
		Str("project_id", projectID).
		Str("user_id", userID).
		Msg("removed member")
	return s.selectMembers(ctx, projectID)
}

func (s *memberServiceImpl) projectExists(ctx context.Context, projectID string) (bool, error) {
	const projectExistsQuery = `
SELECT EXISTS (
    SELECT 1
    FROM projects
    WHERE id = $1
)
`
	var exists bool
	err := s.pgPool.QueryRow(ctx, projectExistsQuery, projectID).Scan(&exists)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Msg("failed to check project existence")
		return false, err
	}
	return exists, nil
}

func (s *memberServiceImpl) selectMembers(ctx context.Context, projectID string) ([]models.Member, error) {
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
