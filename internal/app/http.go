package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/taskforge/server/internal/config"
	v1 "github.com/taskforge/server/internal/delivery/http/v1"
	"github.com/taskforge/server/internal/gemini"
	"github.com/taskforge/server/internal/realtime"
	"github.com/taskforge/server/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	registerRoutes(router)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// Wait for the interrupt signal to gracefully
	// shut down the server with a timeout of 5 seconds.
	quit := make(chan os.Signal, 1)
	// kill (no params) by default sends syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	// kill -9 is syscall.SIGKILL but can't be caught, so don't need to add it
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

func registerRoutes(router gin.IRouter) {
	cfg := config.Global()

	// The hub must exist before any mutation route is wired up:
	// publishing through a nil hub panics.
	hub := realtime.NewHub(globalLogger)

	authService := services.NewAuthService(
		globalLogger,
		globalPostgresPool,
		cfg.JWT.Issuer,
		[]byte(cfg.JWT.SigningKey),
		cfg.JWT.TokenTTL,
	)
	membershipService := services.NewMembershipService(globalLogger, globalPostgresPool)
	projectService := services.NewProjectService(globalLogger, globalPostgresPool)
	columnService := services.NewColumnService(globalLogger, globalPostgresPool)
	taskService := services.NewTaskService(globalLogger, globalPostgresPool)
	memberService := services.NewMemberService(globalLogger, globalPostgresPool)
	aiService := services.NewAIService(
		globalLogger,
		projectService,
		taskService,
		gemini.NewClient(cfg.AI.GeminiAPIKey),
		cfg.AI.SummaryModel,
		cfg.AI.QAModel,
	)

	v1Handler := v1.New(
		globalLogger,
		authService,
		membershipService,
		projectService,
		columnService,
		taskService,
		memberService,
		aiService,
		hub,
		cfg.AI.RateLimitWindow,
		cfg.AI.RateLimitMax,
	)

	wsHandler := realtime.NewHandler(
		globalLogger,
		hub,
		func(token string) (realtime.Identity, error) {
			identity, err := authService.VerifyToken(token)
			if err != nil {
				return realtime.Identity{}, err
			}
			return realtime.Identity{UserID: identity.UserID, Name: identity.Name}, nil
		},
		membershipService,
		cfg.Realtime.AuthTimeout,
		cfg.Realtime.SendBufferLen,
	)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	router.GET("/ws", wsHandler.Serve)

	router.POST("/auth/register", v1Handler.HandleRegister)
	router.POST("/auth/login", v1Handler.HandleLogin)
	router.POST("/auth/logout", v1Handler.HandleAuthMiddleware, v1Handler.HandleLogout)

	projectRouter := router.Group("/projects", v1Handler.HandleAuthMiddleware)
	projectRouter.POST("", v1Handler.HandleCreateProject)
	projectRouter.GET("", v1Handler.HandleGetProjects)
	projectRouter.GET("/:id", v1Handler.HandleGetProject)
	projectRouter.PATCH("/:id", v1Handler.HandleUpdateProject)
	projectRouter.DELETE("/:id", v1Handler.HandleDeleteProject)
	projectRouter.GET("/:id/tasks", v1Handler.HandleGetProjectTasks)
	projectRouter.GET("/:id/members", v1Handler.HandleListMembers)
	projectRouter.POST("/:id/members", v1Handler.HandleAddMember)
	projectRouter.PATCH("/:id/members/:userId", v1Handler.HandleUpdateMemberRole)
	projectRouter.DELETE("/:id/members/:userId", v1Handler.HandleRemoveMember)

	router.GET("/column/:id/columns", v1Handler.HandleAuthMiddleware, v1Handler.HandleGetColumns)

	taskRouter := router.Group("/tasks", v1Handler.HandleAuthMiddleware)
	taskRouter.POST("", v1Handler.HandleCreateTask)
	taskRouter.PATCH("/:taskId", v1Handler.HandleUpdateTask)
	taskRouter.DELETE("/:taskId", v1Handler.HandleDeleteTask)

	aiRouter := router.Group("/ai", v1Handler.HandleAuthMiddleware, v1Handler.HandleAIRateLimit)
	aiRouter.POST("/summarize", v1Handler.HandleSummarize)
	aiRouter.POST("/ask", v1Handler.HandleAsk)
}
