package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

type Handler interface {
	HandleRegister(c *gin.Context)
	HandleLogin(c *gin.Context)
	HandleLogout(c *gin.Context)
	HandleAuthMiddleware(c *gin.Context)
	HandleAIRateLimit(c *gin.Context)

	HandleCreateProject(c *gin.Context)
	HandleGetProjects(c *gin.Context)
	HandleGetProject(c *gin.Context)
	HandleUpdateProject(c *gin.Context)
	HandleDeleteProject(c *gin.Context)

	HandleGetColumns(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleGetProjectTasks(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)

	HandleListMembers(c *gin.Context)
	HandleAddMember(c *gin.Context)
	HandleUpdateMemberRole(c *gin.Context)
	HandleRemoveMember(c *gin.Context)

	HandleSummarize(c *gin.Context)
	HandleAsk(c *gin.Context)
}

type handlerImpl struct {
	logger zerolog.Logger

	auth       services.AuthService
	membership services.MembershipService
	projects   services.ProjectService
	columns    services.ColumnService
	tasks      services.TaskService
	members    services.MemberService
	ai         services.AIService

	broadcast realtime.Broadcaster
	aiLimiter *rateLimiter
}

func New(
	logger zerolog.Logger,
	authService services.AuthService,
	membershipService services.MembershipService,
	projectService services.ProjectService,
	columnService services.ColumnService,
	taskService services.TaskService,
	memberService services.MemberService,
	aiService services.AIService,
	broadcast realtime.Broadcaster,
	aiRateWindow time.Duration,
	aiRateMax int,
) Handler {
	return &handlerImpl{
		logger:     logger,
		auth:       authService,
		membership: membershipService,
		projects:   projectService,
		columns:    columnService,
		tasks:      taskService,
		members:    memberService,
		ai:         aiService,
		broadcast:  broadcast,
		aiLimiter:  newRateLimiter(aiRateWindow, aiRateMax),
	}
}
