package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/models"
)

type tokenClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

type authServiceImpl struct {
	logger        zerolog.Logger
	pgPool        Pool
	jwtIssuer     string
	jwtSigningKey []byte
	jwtTokenTTL   time.Duration
}

func NewAuthService(
	logger zerolog.Logger,
	pgPool Pool,
	jwtIssuer string,
	jwtSigningKey []byte,
	jwtTokenTTL time.Duration,
) AuthService {
	return &authServiceImpl{
		logger:        logger,
		pgPool:        pgPool,
		jwtIssuer:     jwtIssuer,
		jwtSigningKey: jwtSigningKey,
		jwtTokenTTL:   jwtTokenTTL,
	}
}

func (s *authServiceImpl) Register(ctx context.Context, name, password string) (*models.User, string, error) {
	now := time.Now()
	user := models.User{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}

	userUUID, err := uuid.NewV7()
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to generate user uuid")
		return nil, "", err
	}
	user.ID = userUUID.String()

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, "", err
	}
	user.Password = hash

	const insertUserQuery = `
INSERT INTO users (id,
                   name,
                   password,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5)
`
	_, err = s.pgPool.Exec(
		ctx,
		insertUserQuery,
		user.ID,
		user.Name,
		user.Password,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			s.logger.Error().
				Str("name", user.Name).
				Msg("user with this name already exists")
			return nil, "", ErrUserAlreadyExists
		}

		s.logger.Error().
			Err(err).
			Msg("failed to insert user")
		return nil, "", err
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Str("name", user.Name).
		Msg("inserted user")

	token, err := s.signToken(user.ID, user.Name)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to sign token")
		return nil, "", err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Msg("registered user")
	return &user, token, nil
}

func (s *authServiceImpl) Login(ctx context.Context, name, password string) (*models.User, string, error) {
	user := models.User{Name: name}

	// Name uniqueness is case-insensitive, so the lookup is too.
	const selectUserByNameQuery = `
SELECT id,
       password,
       created_at,
       updated_at
FROM users
WHERE lower(name) = lower($1)
`
	err := s.pgPool.QueryRow(
		ctx,
		selectUserByNameQuery,
		user.Name,
	).Scan(
		&user.ID,
		&user.Password,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			s.logger.Error().
				Str("name", user.Name).
				Msg("user not found")
			return nil, "", ErrUserNotFound
		}

		s.logger.Error().
			Err(err).
			Str("name", user.Name).
			Msg("failed to select user by name")
		return nil, "", err
	}

	match, err := argon2id.ComparePasswordAndHash(password, user.Password)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to compare password")
		return nil, "", err
	} else if !match {
		s.logger.Error().Msg("passwords do not match")
		return nil, "", ErrPasswordMismatch
	}
	s.logger.Debug().
		Str("user_id", user.ID).
		Msg("found user")

	token, err := s.signToken(user.ID, user.Name)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to sign token")
		return nil, "", err
	}

	s.logger.Info().
		Str("user_id", user.ID).
		Msg("logged in")
	return &user, token, nil
}

func (s *authServiceImpl) VerifyToken(token string) (*TokenIdentity, error) {
	t, err := jwt.ParseWithClaims(
		token,
		&tokenClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.jwtSigningKey, nil
		},
		jwt.WithIssuer(s.jwtIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := t.Claims.(*tokenClaims)
	if !ok || claims.Subject == "" {
		return nil, errors.New("invalid token payload")
	}
	return &TokenIdentity{
		UserID: claims.Subject,
		Name:   claims.Name,
	}, nil
}

func (s *authServiceImpl) signToken(userID, name string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Name: name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwtIssuer,
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtTokenTTL)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	signed, err := token.SignedString(s.jwtSigningKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
