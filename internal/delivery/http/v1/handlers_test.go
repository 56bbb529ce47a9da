package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskforge/server/internal/models"
	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

const (
	testUserID = "0191b8a0-0000-7000-8000-000000000001"
	testToken  = "good-token"
)

type testEnv struct {
	auth       *authServiceMock
	membership *membershipServiceMock
	projects   *projectServiceMock
	columns    *columnServiceMock
	tasks      *taskServiceMock
	members    *memberServiceMock
	ai         *aiServiceMock
	broadcast  *broadcastRecorder

	aiRateMax int
}

func newTestEnv() *testEnv {
	return &testEnv{
		auth: &authServiceMock{
			verifyToken: func(token string) (*services.TokenIdentity, error) {
				if token != testToken {
					return nil, errors.New("token is malformed")
				}
				return &services.TokenIdentity{UserID: testUserID, Name: "alice"}, nil
			},
		},
		membership: &membershipServiceMock{
			isMember: func(context.Context, string, string) (bool, error) { return true, nil },
			isOwner:  func(context.Context, string, string) (bool, error) { return true, nil },
		},
		projects:  &projectServiceMock{},
		columns:   &columnServiceMock{},
		tasks:     &taskServiceMock{},
		members:   &memberServiceMock{},
		ai:        &aiServiceMock{},
		broadcast: &broadcastRecorder{},
		aiRateMax: 15,
	}
}

func (e *testEnv) router() *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := New(
		zerolog.Nop(),
		e.auth, e.membership, e.projects, e.columns, e.tasks, e.members, e.ai,
		e.broadcast,
		time.Minute, e.aiRateMax,
	)

	router := gin.New()
	router.POST("/auth/register", h.HandleRegister)
	router.POST("/auth/login", h.HandleLogin)
	router.POST("/auth/logout", h.HandleAuthMiddleware, h.HandleLogout)

	projectRouter := router.Group("/projects", h.HandleAuthMiddleware)
	projectRouter.POST("", h.HandleCreateProject)
	projectRouter.GET("", h.HandleGetProjects)
	projectRouter.GET("/:id", h.HandleGetProject)
	projectRouter.PATCH("/:id", h.HandleUpdateProject)
	projectRouter.DELETE("/:id", h.HandleDeleteProject)
	projectRouter.GET("/:id/tasks", h.HandleGetProjectTasks)
	projectRouter.GET("/:id/members", h.HandleListMembers)
	projectRouter.POST("/:id/members", h.HandleAddMember)
	projectRouter.PATCH("/:id/members/:userId", h.HandleUpdateMemberRole)
	projectRouter.DELETE("/:id/members/:userId", h.HandleRemoveMember)

	router.GET("/column/:id/columns", h.HandleAuthMiddleware, h.HandleGetColumns)

	taskRouter := router.Group("/tasks", h.HandleAuthMiddleware)
	taskRouter.POST("", h.HandleCreateTask)
	taskRouter.PATCH("/:taskId", h.HandleUpdateTask)
	taskRouter.DELETE("/:taskId", h.HandleDeleteTask)

	aiRouter := router.Group("/ai", h.HandleAuthMiddleware, h.HandleAIRateLimit)
	aiRouter.POST("/summarize", h.HandleSummarize)
	aiRouter.POST("/ask", h.HandleAsk)

	return router
}

func perform(t *testing.T, router http.Handler, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRegisterSuccess(t *testing.T) {
	env := newTestEnv()
	env.auth.register = func(_ context.Context, name, password string) (*models.User, string, error) {
		assert.Equal(t, "alice", name)
		assert.Equal(t, "secret", password)
		return &models.User{ID: testUserID, Name: name}, "signed-token", nil
	}

	w := perform(t, env.router(), http.MethodPost, "/auth/register",
		gin.H{"name": "alice", "password": "secret"}, "")

	require.Equal(t, http.StatusCreated, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, false, body["error"])
	assert.Equal(t, "signed-token", body["token"])
}

func TestRegisterDuplicateName(t *testing.T) {
	env := newTestEnv()
	env.auth.register = func(context.Context, string, string) (*models.User, string, error) {
		return nil, "", services.ErrUserAlreadyExists
	}

	w := perform(t, env.router(), http.MethodPost, "/auth/register",
		gin.H{"name": "alice", "password": "secret"}, "")

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, true, decodeBody(t, w)["error"])
}

func TestRegisterRejectsShortName(t *testing.T) {
	env := newTestEnv()
	env.auth.register = func(context.Context, string, string) (*models.User, string, error) {
		t.Fatal("register should not be reached on validation failure")
		return nil, "", nil
	}

	w := perform(t, env.router(), http.MethodPost, "/auth/register",
		gin.H{"name": "ab", "password": "secret"}, "")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginInvalidCredentials(t *testing.T) {
	env := newTestEnv()
	env.auth.login = func(context.Context, string, string) (*models.User, string, error) {
		return nil, "", services.ErrPasswordMismatch
	}

	w := perform(t, env.router(), http.MethodPost, "/auth/login",
		gin.H{"name": "alice", "password": "wrong"}, "")

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, services.ErrPasswordMismatch.Error(), decodeBody(t, w)["message"])
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	env := newTestEnv()

	w := perform(t, env.router(), http.MethodGet, "/projects", nil, "")

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewareRejectsBadToken(t *testing.T) {
	env := newTestEnv()

	w := perform(t, env.router(), http.MethodGet, "/projects", nil, "forged")

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateTaskAsNonMemberForbidden(t *testing.T) {
	env := newTestEnv()
	env.membership.isMember = func(context.Context, string, string) (bool, error) { return false, nil }
	env.tasks.create = func(context.Context, services.CreateTaskParams) (*models.Task, error) {
		t.Fatal("task must not be created for a non-member")
		return nil, nil
	}

	w := perform(t, env.router(), http.MethodPost, "/tasks", gin.H{
		"projectId": uuid.NewString(),
		"columnId":  uuid.NewString(),
		"title":     "write docs",
	}, testToken)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.broadcast.recorded(), "no broadcast for a rejected mutation")
}

func TestCreateTaskBroadcastsToProjectRoom(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	env.tasks.create = func(_ context.Context, params services.CreateTaskParams) (*models.Task, error) {
		return &models.Task{
			ID:        uuid.NewString(),
			ProjectID: params.ProjectID,
			ColumnID:  params.ColumnID,
			Title:     params.Title,
			Order:     1000,
		}, nil
	}

	w := perform(t, env.router(), http.MethodPost, "/tasks", gin.H{
		"projectId": projectID,
		"columnId":  uuid.NewString(),
		"title":     "write docs",
	}, testToken)

	require.Equal(t, http.StatusCreated, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTaskCreated, events[0].Event)
	assert.Equal(t, projectID, events[0].ProjectID)
	assert.False(t, events[0].Global)
}

func TestUpdateTaskRankConflictNoBroadcast(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, Order: 1000}, nil
	}
	env.tasks.update = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		return nil, services.ErrRankConflict
	}

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+taskID,
		gin.H{"order": 2000}, testToken)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, env.broadcast.recorded(), "colliding reorder must not broadcast")
}

func TestUpdateTaskMoveToForeignColumnBadRequest(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, Order: 1000}, nil
	}
	env.tasks.update = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		return nil, services.ErrColumnMismatch
	}

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+taskID,
		gin.H{"columnId": uuid.NewString()}, testToken)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, env.broadcast.recorded(), "rejected move must not broadcast")
}

func TestUpdateTaskMoveToUnknownColumnNotFound(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, Order: 1000}, nil
	}
	env.tasks.update = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		return nil, services.ErrColumnNotFound
	}

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+taskID,
		gin.H{"columnId": uuid.NewString()}, testToken)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, env.broadcast.recorded())
}

func TestUpdateTaskOrderEmitsReorderedEvent(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	columnID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, ColumnID: columnID, Order: 1000}, nil
	}
	env.tasks.update = func(_ context.Context, params services.UpdateTaskParams) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, ColumnID: columnID, Order: *params.Order}, nil
	}

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+taskID,
		gin.H{"order": 3000}, testToken)

	require.Equal(t, http.StatusOK, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 2)
	assert.Equal(t, realtime.EventTaskUpdated, events[0].Event)
	assert.Equal(t, realtime.EventTaskReordered, events[1].Event)
	assert.Equal(t, projectID, events[1].ProjectID)
}

func TestUpdateTaskWithoutOrderSkipsReorderedEvent(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID}, nil
	}
	env.tasks.update = func(context.Context, services.UpdateTaskParams) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID, Title: "renamed"}, nil
	}

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+taskID,
		gin.H{"title": "renamed"}, testToken)

	require.Equal(t, http.StatusOK, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTaskUpdated, events[0].Event)
}

func TestUpdateTaskRejectsEmptyPatch(t *testing.T) {
	env := newTestEnv()

	w := perform(t, env.router(), http.MethodPatch, "/tasks/"+uuid.NewString(),
		gin.H{}, testToken)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTaskBroadcasts(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	taskID := uuid.NewString()
	env.tasks.getByID = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID}, nil
	}
	env.tasks.delete = func(context.Context, string) (*models.Task, error) {
		return &models.Task{ID: taskID, ProjectID: projectID}, nil
	}

	w := perform(t, env.router(), http.MethodDelete, "/tasks/"+taskID, nil, testToken)

	require.Equal(t, http.StatusOK, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventTaskDeleted, events[0].Event)
	assert.Equal(t, projectID, events[0].ProjectID)
}

func TestCreateProjectBroadcastsGlobally(t *testing.T) {
	env := newTestEnv()
	env.projects.create = func(_ context.Context, ownerID, name, description string) (*models.Project, error) {
		assert.Equal(t, testUserID, ownerID)
		return &models.Project{ID: uuid.NewString(), Name: name, Description: description, OwnerID: ownerID}, nil
	}

	w := perform(t, env.router(), http.MethodPost, "/projects",
		gin.H{"name": "alpha", "description": "demo project"}, testToken)

	require.Equal(t, http.StatusCreated, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventProjectCreated, events[0].Event)
	assert.True(t, events[0].Global)
}

func TestDeleteProjectOwnerOnly(t *testing.T) {
	env := newTestEnv()
	env.membership.isOwner = func(context.Context, string, string) (bool, error) { return false, nil }
	env.projects.delete = func(context.Context, string) error {
		t.Fatal("delete must not run for a non-owner")
		return nil
	}

	w := perform(t, env.router(), http.MethodDelete, "/projects/"+uuid.NewString(), nil, testToken)

	require.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, env.broadcast.recorded())
}

func TestDeleteProjectEmitsSingleEvent(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	env.projects.delete = func(context.Context, string) error { return nil }

	w := perform(t, env.router(), http.MethodDelete, "/projects/"+projectID, nil, testToken)

	require.Equal(t, http.StatusOK, w.Code)
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventProjectDeleted, events[0].Event)
	assert.True(t, events[0].Global)
	data, ok := events[0].Data.(gin.H)
	require.True(t, ok)
	assert.Equal(t, projectID, data["projectId"])
}

func TestGetColumnsForbiddenForNonMember(t *testing.T) {
	env := newTestEnv()
	env.membership.isMember = func(context.Context, string, string) (bool, error) { return false, nil }

	w := perform(t, env.router(), http.MethodGet,
		"/column/"+uuid.NewString()+"/columns", nil, testToken)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRemoveOwnerReturnsBadRequest(t *testing.T) {
	env := newTestEnv()
	env.members.remove = func(context.Context, string, string) ([]models.Member, error) {
		return nil, services.ErrOwnerRemoval
	}

	w := perform(t, env.router(), http.MethodDelete,
		"/projects/"+uuid.NewString()+"/members/"+uuid.NewString(), nil, testToken)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, services.ErrOwnerRemoval.Error(), decodeBody(t, w)["message"])
}

func TestAddMemberOwnerOnly(t *testing.T) {
	env := newTestEnv()
	env.membership.isOwner = func(context.Context, string, string) (bool, error) { return false, nil }

	w := perform(t, env.router(), http.MethodPost,
		"/projects/"+uuid.NewString()+"/members", gin.H{"name": "bob"}, testToken)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestSummarizeBroadcastsSummaryReady(t *testing.T) {
	env := newTestEnv()
	projectID := uuid.NewString()
	env.ai.summarize = func(context.Context, string) (string, error) {
		return "the project is on track", nil
	}

	w := perform(t, env.router(), http.MethodPost, "/ai/summarize",
		gin.H{"projectId": projectID}, testToken)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "the project is on track", decodeBody(t, w)["text"])
	events := env.broadcast.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, realtime.EventSummaryReady, events[0].Event)
	assert.Equal(t, projectID, events[0].ProjectID)
}

func TestSummarizeUpstreamFailure(t *testing.T) {
	env := newTestEnv()
	env.ai.summarize = func(context.Context, string) (string, error) {
		return "", errors.New("gemini API error (429): quota exceeded")
	}

	w := perform(t, env.router(), http.MethodPost, "/ai/summarize",
		gin.H{"projectId": uuid.NewString()}, testToken)

	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, decodeBody(t, w)["message"], "quota exceeded")
	assert.Empty(t, env.broadcast.recorded())
}

func TestAIRateLimitPerUser(t *testing.T) {
	env := newTestEnv()
	env.aiRateMax = 2
	env.ai.summarize = func(context.Context, string) (string, error) { return "ok", nil }
	router := env.router()

	body := gin.H{"projectId": uuid.NewString()}
	for i := 0; i < 2; i++ {
		w := perform(t, router, http.MethodPost, "/ai/summarize", body, testToken)
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := perform(t, router, http.MethodPost, "/ai/summarize", body, testToken)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
}

func TestAskValidatesQuestionLength(t *testing.T) {
	env := newTestEnv()

	w := perform(t, env.router(), http.MethodPost, "/ai/ask",
		gin.H{"projectId": uuid.NewString(), "question": "??"}, testToken)

	require.Equal(t, http.StatusBadRequest, w.Code)
}
