package routes

import (
	"log/slog"
	"time"

	"chat-relay/internal/api/handlers"
	"chat-relay/internal/api/middleware"
	"chat-relay/internal/auth"
	"chat-relay/internal/services"
	"chat-relay/internal/websocket"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "chat-relay/docs"
)

// Dependencies are the services the HTTP surface is built from.
type Dependencies struct {
	AuthService    *auth.AuthService
	Tokens         middleware.IdentityResolver
	RoomService    *services.RoomService
	Relay          *websocket.Relay
	Queue          handlers.QueueStats
	RateLimiter    middleware.RateLimiter
	Health         handlers.Pinger
	AllowedOrigins []string
	Logger         *slog.Logger
}

type Router struct {
	engine        *gin.Engine
	authHandler   *handlers.AuthHandler
	roomHandler   *handlers.RoomHandler
	wsHandler     *handlers.WSHandler
	healthHandler *handlers.HealthHandler
	rateLimitMW   *middleware.RateLimitMiddleware
	authMW        *middleware.AuthMiddleware
}

func NewRouter(deps Dependencies) *Router {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(deps.AllowedOrigins))
	engine.Use(middleware.LogApi(deps.Logger))

	return &Router{
		engine:        engine,
		authHandler:   handlers.NewAuthHandler(deps.AuthService),
		roomHandler:   handlers.NewRoomHandler(deps.RoomService),
		wsHandler:     handlers.NewWSHandler(deps.Relay, deps.Queue),
		healthHandler: handlers.NewHealthHandler(deps.Health),
		rateLimitMW:   middleware.NewRateLimitMiddleware(deps.RateLimiter),
		authMW:        middleware.NewAuthMiddleware(deps.Tokens),
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.engine.GET("/healthz", r.healthHandler.Health)

	// The relay authenticates from the token query parameter itself.
	ws := r.engine.Group("/ws")
	{
		ws.GET("/chat/:room_id", r.wsHandler.HandleWebSocket)
		ws.GET("/stats", r.wsHandler.Stats)
	}

	// Public routes
	public := r.engine.Group("/")
	public.Use(r.rateLimitMW.RateLimitIP(50, time.Minute)) // 50 requests per minute per IP
	{
		public.POST("/register", r.authHandler.Register)
		public.POST("/login", r.authHandler.Login)
	}

	// Authenticated routes
	authed := r.engine.Group("/")
	authed.Use(r.authMW.RequireAuth())
	authed.Use(r.rateLimitMW.RateLimit(100, time.Minute)) // 100 requests per minute
	{
		authed.DELETE("/users/me", r.authHandler.DeleteMe)

		rooms := authed.Group("/rooms")
		{
			rooms.GET("", r.roomHandler.ListRooms)
			rooms.POST("", r.roomHandler.CreateRoom)
			rooms.GET("/:room_id/messages", r.roomHandler.GetRoomMessages)
		}
	}
}

func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}
