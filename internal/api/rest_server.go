package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/annel0/tile-arena/internal/auth"
	"github.com/annel0/tile-arena/internal/combat"
	"github.com/annel0/tile-arena/internal/logging"
	"github.com/annel0/tile-arena/internal/middleware"
	"github.com/annel0/tile-arena/internal/vec"
	"github.com/annel0/tile-arena/internal/world"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// RestServer — HTTP API для инструментов и админки: авторизация,
// чтение и правка мира, статистика сервера, отладочный swept-sphere.
type RestServer struct {
	router     *gin.Engine
	authn      *auth.Authenticator
	world      *world.SparseChunkWorld
	combat     *combat.CombatSystem
	metrics    *ServerMetrics
	httpServer *http.Server
	port       string
}

// Config содержит зависимости REST сервера
type Config struct {
	Port          string
	Authenticator *auth.Authenticator
	World         *world.SparseChunkWorld
	Combat        *combat.CombatSystem
}

// GenericResponse — общий конверт ответа API
type GenericResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// NewRestServer создаёт REST сервер с observability middleware
func NewRestServer(cfg Config) *RestServer {
	if cfg.Port == "" {
		cfg.Port = ":8088"
	}

	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())

	loggerMw := middleware.NewRequestLogger()
	router.Use(loggerMw.Handler())
	router.Use(otelgin.Middleware("rest_api"))

	promMw := middleware.NewPrometheusMiddleware("rest_api")
	router.Use(promMw.Handler())
	promMw.RegisterMetricsEndpoint(router)

	server := &RestServer{
		router:  router,
		authn:   cfg.Authenticator,
		world:   cfg.World,
		combat:  cfg.Combat,
		metrics: NewServerMetrics(),
		port:    cfg.Port,
	}

	server.setupRoutes()
	return server
}

// setupRoutes настраивает маршруты REST API
func (rs *RestServer) setupRoutes() {
	api := rs.router.Group("/api")

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/login", rs.handleLogin)
		authGroup.POST("/register", rs.handleRegister)
	}

	protected := api.Group("/")
	protected.Use(rs.jwtMiddleware())
	{
		protected.GET("/stats", rs.handleStats)
		protected.GET("/world/tile", rs.handleGetTile)

		admin := protected.Group("/admin")
		admin.Use(rs.adminMiddleware())
		{
			admin.POST("/world/tile", rs.handleSetTile)
			admin.POST("/debug/sweep", rs.handleDebugSweep)
		}
	}

	rs.router.GET("/health", rs.handleHealth)
}

// LoginRequest — запрос на вход
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse — ответ на вход
type LoginResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message,omitempty"`
	UserID  uint64 `json:"user_id,omitempty"`
}

func (rs *RestServer) handleLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	res, err := rs.authn.Login(req.Username, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, LoginResponse{Success: false, Message: "Неверное имя пользователя или пароль"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{
		Success: true,
		Token:   res.Token,
		UserID:  res.User.ID,
	})
}

func (rs *RestServer) handleRegister(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	res, err := rs.authn.Register(req.Username, req.Password)
	if err == auth.ErrUserExists {
		c.JSON(http.StatusConflict, LoginResponse{Success: false, Message: "Пользователь уже существует"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, LoginResponse{Success: false, Message: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{
		Success: true,
		Token:   res.Token,
		UserID:  res.User.ID,
	})
}

// handleStats возвращает статистику мира, боя и процесса
func (rs *RestServer) handleStats(c *gin.Context) {
	stats := make(map[string]interface{})

	stats["world"] = map[string]interface{}{
		"chunks":       rs.world.ChunkCount(),
		"chunk_size":   rs.world.ChunkSize(),
		"dirty_render": len(rs.world.DirtyRenderChunks()),
	}

	registry := rs.combat.Registry()
	stats["combat"] = map[string]interface{}{
		"fighters": rs.combat.FighterCount(),
		"owners":   registry.OwnerCount(),
		"cells":    registry.CellCount(),
		"registry": registry.Stats(),
	}

	memoryMB, _ := rs.metrics.GetMemoryUsage()
	cpuPercent, _ := rs.metrics.GetCPUUsage()
	stats["server"] = map[string]interface{}{
		"uptime":      rs.metrics.GetUptime(),
		"memory_mb":   fmt.Sprintf("%.2f", memoryMB),
		"cpu_percent": fmt.Sprintf("%.2f", cpuPercent),
		"goroutines":  rs.metrics.GetGoroutineCount(),
		"server_time": time.Now().Unix(),
	}

	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: stats})
}

func (rs *RestServer) handleGetTile(c *gin.Context) {
	x, errX := strconv.Atoi(c.Query("x"))
	y, errY := strconv.Atoi(c.Query("y"))
	if errX != nil || errY != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Параметры x и y обязательны"})
		return
	}

	pos := vec.Vec2{X: x, Y: y}
	c.JSON(http.StatusOK, GenericResponse{
		Success: true,
		Data: map[string]interface{}{
			"pos":   pos,
			"tile":  rs.world.GetTile(pos),
			"chunk": world.WorldToChunk(pos, rs.world.ChunkSize()),
		},
	})
}

// SetTileRequest — запрос правки тайла
type SetTileRequest struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Tile uint16 `json:"tile"`
}

func (rs *RestServer) handleSetTile(c *gin.Context) {
	var req SetTileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	rs.world.SetTile(vec.Vec2{X: req.X, Y: req.Y}, world.TileID(req.Tile))
	c.JSON(http.StatusOK, GenericResponse{Success: true, Message: "Тайл обновлён"})
}

// DebugSweepRequest — параметры отладочного swept-sphere запроса
type DebugSweepRequest struct {
	Start   vec.Vec3Float `json:"start"`
	End     vec.Vec3Float `json:"end"`
	Radius  float64       `json:"radius"`
	Samples int           `json:"samples"`
}

// handleDebugSweep выполняет swept-sphere запрос без постановки атаки
// в очередь; удобно для проверки геометрии хартбоксов
func (rs *RestServer) handleDebugSweep(c *gin.Context) {
	var req DebugSweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат запроса"})
		return
	}

	hits := rs.combat.Resolver().SweptSphereQuery(req.Start, req.End, req.Radius, req.Samples)

	out := make([]map[string]interface{}, 0, len(hits))
	for _, h := range hits {
		out = append(out, map[string]interface{}{
			"region": h.Region,
			"param":  h.Param,
			"point":  h.Point,
			"normal": h.Normal,
		})
	}
	c.JSON(http.StatusOK, GenericResponse{Success: true, Data: out})
}

func (rs *RestServer) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": rs.metrics.GetUptime(),
	})
}

// Start запускает HTTP сервер в отдельной горутине
func (rs *RestServer) Start() {
	rs.httpServer = &http.Server{
		Addr:    rs.port,
		Handler: rs.router,
	}

	go func() {
		logging.Info("REST API слушает %s", rs.port)
		if err := rs.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("REST API: %v", err)
		}
	}()
}

// Stop останавливает HTTP сервер с таймаутом
func (rs *RestServer) Stop(ctx context.Context) error {
	if rs.httpServer == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return rs.httpServer.Shutdown(ctx)
}

// Router возвращает gin-роутер (для тестов)
func (rs *RestServer) Router() *gin.Engine {
	return rs.router
}
