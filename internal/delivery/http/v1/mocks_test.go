package v1

import (
	"context"
	"sync"

	"github.com/taskforge/server/internal/models"
	"github.com/taskforge/server/internal/services"
)

type authServiceMock struct {
	register    func(ctx context.Context, name, password string) (*models.User, string, error)
	login       func(ctx context.Context, name, password string) (*models.User, string, error)
	verifyToken func(token string) (*services.TokenIdentity, error)
}

func (m *authServiceMock) Register(ctx context.Context, name, password string) (*models.User, string, error) {
	return m.register(ctx, name, password)
}

func (m *authServiceMock) Login(ctx context.Context, name, password string) (*models.User, string, error) {
	return m.login(ctx, name, password)
}

func (m *authServiceMock) VerifyToken(token string) (*services.TokenIdentity, error) {
	return m.verifyToken(token)
}

type membershipServiceMock struct {
	isMember func(ctx context.Context, projectID, userID string) (bool, error)
	isOwner  func(ctx context.Context, projectID, userID string) (bool, error)
}

func (m *membershipServiceMock) IsMember(ctx context.Context, projectID, userID string) (bool, error) {
	return m.isMember(ctx, projectID, userID)
}

func (m *membershipServiceMock) IsOwner(ctx context.Context, projectID, userID string) (bool, error) {
	return m.isOwner(ctx, projectID, userID)
}

type projectServiceMock struct {
	create       func(ctx context.Context, ownerID, name, description string) (*models.Project, error)
	getByID      func(ctx context.Context, id string) (*models.Project, error)
	listForUser  func(ctx context.Context, userID string) ([]models.Project, error)
	searchByName func(ctx context.Context, name string) ([]models.Project, error)
	update       func(ctx context.Context, id, name, description string) (*models.Project, error)
	delete       func(ctx context.Context, id string) error
}

func (m *projectServiceMock) Create(ctx context.Context, ownerID, name, description string) (*models.Project, error) {
	return m.create(ctx, ownerID, name, description)
}

func (m *projectServiceMock) GetByID(ctx context.Context, id string) (*models.Project, error) {
	return m.getByID(ctx, id)
}

func (m *projectServiceMock) ListForUser(ctx context.Context, userID string) ([]models.Project, error) {
	return m.listForUser(ctx, userID)
}

func (m *projectServiceMock) SearchByName(ctx context.Context, name string) ([]models.Project, error) {
	return m.searchByName(ctx, name)
}

func (m *projectServiceMock) Update(ctx context.Context, id, name, description string) (*models.Project, error) {
	return m.update(ctx, id, name, description)
}

func (m *projectServiceMock) Delete(ctx context.Context, id string) error {
	return m.delete(ctx, id)
}

type columnServiceMock struct {
	listByProject func(ctx context.Context, projectID string) ([]models.Column, error)
}

func (m *columnServiceMock) ListByProject(ctx context.Context, projectID string) ([]models.Column, error) {
	return m.listByProject(ctx, projectID)
}

type taskServiceMock struct {
	create        func(ctx context.Context, params services.CreateTaskParams) (*models.Task, error)
	getByID       func(ctx context.Context, id string) (*models.Task, error)
	listByProject func(ctx context.Context, params services.ListTasksParams) (*services.TaskPage, error)
	update        func(ctx context.Context, params services.UpdateTaskParams) (*models.Task, error)
	delete        func(ctx context.Context, id string) (*models.Task, error)
}

func (m *taskServiceMock) Create(ctx context.Context, params services.CreateTaskParams) (*models.Task, error) {
	return m.create(ctx, params)
}

func (m *taskServiceMock) GetByID(ctx context.Context, id string) (*models.Task, error) {
	return m.getByID(ctx, id)
}

func (m *taskServiceMock) ListByProject(ctx context.Context, params services.ListTasksParams) (*services.TaskPage, error) {
	return m.listByProject(ctx, params)
}

func (m *taskServiceMock) Update(ctx context.Context, params services.UpdateTaskParams) (*models.Task, error) {
	return m.update(ctx, params)
}

func (m *taskServiceMock) Delete(ctx context.Context, id string) (*models.Task, error) {
	return m.delete(ctx, id)
}

type memberServiceMock struct {
	list       func(ctx context.Context, projectID string) ([]models.Member, error)
	addByName  func(ctx context.Context, projectID, name, role string) ([]models.Member, error)
	updateRole func(ctx context.Context, projectID, userID, role string) ([]models.Member, error)
	remove     func(ctx context.Context, projectID, userID string) ([]models.Member, error)
}

func (m *memberServiceMock) List(ctx context.Context, projectID string) ([]models.Member, error) {
	return m.list(ctx, projectID)
}

func (m *memberServiceMock) AddByName(ctx context.Context, projectID, name, role string) ([]models.Member, error) {
	return m.addByName(ctx, projectID, name, role)
}

func (m *memberServiceMock) UpdateRole(ctx context.Context, projectID, userID, role string) ([]models.Member, error) {
	return m.updateRole(ctx, projectID, userID, role)
}

func (m *memberServiceMock) Remove(ctx context.Context, projectID, userID string) ([]models.Member, error) {
	return m.remove(ctx, projectID, userID)
}

type aiServiceMock struct {
	summarize func(ctx context.Context, projectID string) (string, error)
	ask       func(ctx context.Context, projectID, taskID, question string) (string, error)
}

func (m *aiServiceMock) Summarize(ctx context.Context, projectID string) (string, error) {
	return m.summarize(ctx, projectID)
}

func (m *aiServiceMock) Ask(ctx context.Context, projectID, taskID, question string) (string, error) {
	return m.ask(ctx, projectID, taskID, question)
}

// broadcastRecorder captures published events for assertions.
type broadcastRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	ProjectID string
	Event     string
	Global    bool
	Data      any
}

func (r *broadcastRecorder) Publish(projectID, event string, data any) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{ProjectID: projectID, Event: event, Data: data})
	r.mu.Unlock()
}

func (r *broadcastRecorder) PublishAll(event string, data any) {
	r.mu.Lock()
	r.events = append(r.events, recordedEvent{Event: event, Global: true, Data: data})
	r.mu.Unlock()
}

func (r *broadcastRecorder) recorded() []recordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]recordedEvent, len(r.events))
	copy(out, r.events)
	return out
}
