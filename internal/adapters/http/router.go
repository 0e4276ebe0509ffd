package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/callrelay/internal/adapters/signal"
	"github.com/dkeye/callrelay/internal/app"
	"github.com/dkeye/callrelay/internal/app/orch"
	"github.com/dkeye/callrelay/internal/config"
	"github.com/dkeye/callrelay/internal/domain"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

const sessionUserKey = "user_id"

func genClientToken() string {
	idStr := uuid.NewString()
	return idStr
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

// Deps are the collaborators the HTTP surface serves.
type Deps struct {
	Orch       *orch.Orchestrator
	ICEServers []webrtc.ICEServer
	Signal     signal.Options
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallRelaySessions", store))
	r.Use(ClientTokenMiddleware())

	if cfg.StaticPath != "" {
		r.Static("/static", cfg.StaticPath)
		r.GET("/", func(c *gin.Context) {
			c.File(cfg.StaticPath + "/index.html")
		})
		log.Info().Str("module", "adapters.http").Str("static", cfg.StaticPath).Msg("serving static files")
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Orch.Metrics.Handler()))

	ctrl := signal.NewSignalWSController(deps.Orch, deps.Signal)
	h := &handlers{orch: deps.Orch, ice: deps.ICEServers}

	api := r.Group("/api")
	api.GET("/ws/signal", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("ct", c.GetString("client_token")).Msg("ws signal endpoint hit")
		ctrl.HandleSignal(ctx, c, sessionUser(c))
	})
	api.GET("/ice", h.iceConfig)
	api.GET("/rooms", h.listRooms)
	api.GET("/rooms/:id/members", h.roomMembers)
	api.GET("/users/:id/presence", h.presence)
	api.POST("/connect", h.connect)
	api.POST("/session", h.session)

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}

type handlers struct {
	orch *orch.Orchestrator
	ice  []webrtc.ICEServer
}

func (h *handlers) iceConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"iceServers": h.ice})
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Rooms.List()})
}

func (h *handlers) roomMembers(c *gin.Context) {
	room, err := domain.ParseRoomID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	members, ok := h.orch.RoomMembers(room)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "members": members})
}

func (h *handlers) presence(c *gin.Context) {
	user, err := domain.ParseUserID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": user, "online": h.orch.Online(user)})
}

// connect rings a user without an open socket on the caller's side.
func (h *handlers) connect(c *gin.Context) {
	var req struct {
		FromUserID string `json:"fromUserId"`
		ToUserID   string `json:"toUserId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fromUserId or toUserId"})
		return
	}
	from, errFrom := domain.ParseUserID(req.FromUserID)
	to, errTo := domain.ParseUserID(req.ToUserID)
	if errFrom != nil || errTo != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing fromUserId or toUserId"})
		return
	}

	call, err := h.orch.Ring(from, to)
	switch {
	case errors.Is(err, orch.ErrUserOffline):
		c.JSON(http.StatusNotFound, gin.H{"message": "Receiver is offline or not connected"})
	case errors.Is(err, orch.ErrNotRegistered):
		c.JSON(http.StatusConflict, gin.H{"message": "Caller is not connected"})
	case errors.Is(err, orch.ErrCallInProgress):
		c.JSON(http.StatusConflict, gin.H{"message": "Call already in progress", "callId": call.ID})
	case errors.Is(err, app.ErrSelfCall):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		log.Error().Err(err).Str("module", "adapters.http").Msg("connect")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Call request sent", "callId": call.ID})
	}
}

// session remembers a claimed identity in the cookie session so the next
// WebSocket from this client registers it automatically. The claim is not
// verified here.
func (h *handlers) session(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_payload"})
		return
	}
	user, err := domain.ParseUserID(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s := sessions.Default(c)
	s.Set(sessionUserKey, string(user))
	if err := s.Save(); err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("session save")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"userId": user})
}

func sessionUser(c *gin.Context) domain.UserID {
	raw, _ := sessions.Default(c).Get(sessionUserKey).(string)
	user, err := domain.ParseUserID(raw)
	if err != nil {
		return ""
	}
	return user
}
