package services

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/taskforge/server/internal/models"
	"github.com/taskforge/server/internal/ordering"
)

// Pool is the subset of *pgxpool.Pool the services depend on.
type Pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("name already taken")
	ErrPasswordMismatch  = errors.New("invalid credentials")

	ErrProjectNotFound = errors.New("project not found")
	ErrColumnNotFound  = errors.New("column not found")
	ErrColumnMismatch  = errors.New("column does not belong to the given project")
	ErrTaskNotFound    = errors.New("task not found")

	ErrMemberNotFound = errors.New("member not found")
	ErrMemberExists   = errors.New("user is already a member")
	ErrOwnerRemoval   = errors.New("cannot remove the owner")

	// ErrRankConflict reports a task rank uniqueness violation. Task
	// creation retries once through ordering.Assign; explicit reorders
	// surface it to the caller untouched.
	ErrRankConflict = ordering.ErrConflict
)

type AuthService interface {
	// Register creates a user with a unique name and returns it with
	// a signed bearer token. It returns ErrUserAlreadyExists when the
	// name is taken.
	Register(ctx context.Context, name, password string) (*models.User, string, error)

	// Login verifies name+password and returns the user with a fresh
	// bearer token. It returns ErrUserNotFound or ErrPasswordMismatch.
	Login(ctx context.Context, name, password string) (*models.User, string, error)

	// VerifyToken checks signature and expiry of a bearer token and
	// extracts the identity it carries.
	VerifyToken(token string) (*TokenIdentity, error)
}

// TokenIdentity is the identity a verified bearer token asserts.
type TokenIdentity struct {
	UserID string
	Name   string
}

// MembershipService is the single authorization predicate consulted
// before every mutation and every room join. Both checks re-read
// current state on each call: authorization is never based on stale
// membership.
type MembershipService interface {
	// IsMember reports whether projectID is a syntactically valid id
	// and userID appears in that project's member list. An invalid id
	// yields (false, nil), not an error.
	IsMember(ctx context.Context, projectID, userID string) (bool, error)

	// IsOwner reports whether a project exists with ownerId == userID.
	IsOwner(ctx context.Context, projectID, userID string) (bool, error)
}

type ProjectService interface {
	// Create inserts the project with the creator as sole owner-member
	// and seeds the three fixed columns (todo/in_progress/done at
	// ranks 1000/2000/3000) in one transaction.
	Create(ctx context.Context, ownerID, name, description string) (*models.Project, error)

	GetByID(ctx context.Context, id string) (*models.Project, error)
	ListForUser(ctx context.Context, userID string) ([]models.Project, error)
	SearchByName(ctx context.Context, name string) ([]models.Project, error)
	Update(ctx context.Context, id, name, description string) (*models.Project, error)

	// Delete removes the project; columns and tasks go with it.
	Delete(ctx context.Context, id string) error
}

type ColumnService interface {
	ListByProject(ctx context.Context, projectID string) ([]models.Column, error)
}

type TaskService interface {
	// Create validates the target column and appends the task at the
	// next free rank, retrying once on a concurrent rank collision.
	Create(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	GetByID(ctx context.Context, id string) (*models.Task, error)
	ListByProject(ctx context.Context, params ListTasksParams) (*TaskPage, error)

	// Update applies a partial edit. A column move is validated the
	// same way Create validates its target column. An explicit order
	// that collides with a sibling rank returns ErrRankConflict
	// without retrying.
	Update(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// Delete removes the task and returns it so the caller can route
	// the deletion event to the right project room.
	Delete(ctx context.Context, id string) (*models.Task, error)
}

type MemberService interface {
	List(ctx context.Context, projectID string) ([]models.Member, error)

	// AddByName resolves a user by display name and appends them to
	// the member list. A requested "owner" role is downgraded to
	// member: ownership moves only through UpdateRole.
	AddByName(ctx context.Context, projectID, name, role string) ([]models.Member, error)

	// UpdateRole promotes or demotes a member. Promotion to owner
	// reassigns the project's ownerId and demotes the previous owner.
	UpdateRole(ctx context.Context, projectID, userID, role string) ([]models.Member, error)

	// Remove drops a member. Removing the designated owner fails with
	// ErrOwnerRemoval.
	Remove(ctx context.Context, projectID, userID string) ([]models.Member, error)
}

type AIService interface {
	Summarize(ctx context.Context, projectID string) (string, error)
	Ask(ctx context.Context, projectID, taskID, question string) (string, error)
}

type CreateTaskParams struct {
	ProjectID   string
	ColumnID    string
	Title       string
	Description string
	Difficulty  string
}

type ListTasksParams struct {
	ProjectID string
	ColumnID  string
	Search    string
	Page      int
	Limit     int

	// RecentFirst orders by updated_at DESC instead of rank, so a
	// capped page keeps the most recently touched tasks.
	RecentFirst bool
}

type TaskPage struct {
	Tasks []models.Task
	Total int
	Page  int
	Limit int
}

type UpdateTaskParams struct {
	ID          string
	Title       *string
	Description *string
	Difficulty  *string
	Order       *int64
	ColumnID    *string
}
