package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type membershipServiceImpl struct {
	logger zerolog.Logger
	pgPool Pool
}

func NewMembershipService(
	logger zerolog.Logger,
	pgPool Pool,
) MembershipService {
	return &membershipServiceImpl{
		logger: logger,
		pgPool: pgPool,
	}
}

func (s *membershipServiceImpl) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return false, nil
	}

	const memberExistsQuery = `
SELECT EXISTS (
    SELECT 1
    FROM project_members
    WHERE project_id = $1 AND
          user_id = $2
)
`
	var exists bool
	err := s.pgPool.QueryRow(
		ctx,
		memberExistsQuery,
		projectID,
		userID,
	).Scan(&exists)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Str("user_id", userID).
			Msg("failed to check membership")
		return false, err
	}
	return exists, nil
}

func (s *membershipServiceImpl) IsOwner(ctx context.Context, projectID, userID string) (bool, error) {
	if _, err := uuid.Parse(projectID); err != nil {
		return false, nil
	}

	const ownerExistsQuery = `
SELECT EXISTS (
    SELECT 1
    FROM projects
    WHERE id = $1 AND
          owner_id = $2
)
`
	var exists bool
	err := s.pgPool.QueryRow(
		ctx,
		ownerExistsQuery,
		projectID,
		userID,
	).Scan(&exists)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("project_id", projectID).
			Str("user_id", userID).
			Msg("failed to check ownership")
		return false, err
	}
	return exists, nil
}
