package relay

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/abdulmanan69/p2pchat/internal/config"
	"github.com/abdulmanan69/p2pchat/internal/errs"
	"github.com/abdulmanan69/p2pchat/internal/signaling"
	"github.com/abdulmanan69/p2pchat/internal/version"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 64 * 1024,

	// Any origin may subscribe.
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/health", s.handleHealth)
	r.GET("/ws", s.handleSubscribe)
	r.POST("/rooms/:room/signals", s.handleInsert)
	r.GET("/rooms/:room/signals", s.handleHistory)
	r.GET("/turn-creds", s.handleTURNCredentials)
	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Version})
}

// handleSubscribe upgrades to a websocket and registers the connection for
// the room in the query string.
func (s *Server) handleSubscribe(c *gin.Context) {
	room := c.Query("room")
	if err := config.ValidateRoomID(room); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(s.hub, conn, room)
	if !s.hub.Register(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleInsert(c *gin.Context) {
	room := c.Param("room")
	if err := config.ValidateRoomID(room); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var rec signaling.Record
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if rec.RoomID != room {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "room_id does not match the request path"})
		return
	}
	if err := rec.Validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": validationMessage(err)})
		return
	}

	stored, err := s.store.Append(rec)
	if err != nil {
		slog.Error("append record", "room", room, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store record"})
		return
	}

	if err := s.hub.Publish(c.Request.Context(), stored); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "relay is shutting down"})
		return
	}

	slog.Debug("record relayed", "room", room, "type", stored.Type, "sender", stored.Sender, "target", stored.Target)
	c.JSON(http.StatusCreated, stored)
}

func (s *Server) handleHistory(c *gin.Context) {
	room := c.Param("room")
	if err := config.ValidateRoomID(room); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	records, err := s.store.Recent(room, limit)
	if err != nil {
		slog.Error("read history", "room", room, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read records"})
		return
	}
	if records == nil {
		records = []signaling.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) handleTURNCredentials(c *gin.Context) {
	if s.issuer == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "TURN is not configured on this relay"})
		return
	}

	creds, err := s.issuer.Issue()
	if err != nil {
		slog.Error("issue TURN credentials", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue credentials"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, creds)
}

// validationMessage strips the error kind prefix for API responses.
func validationMessage(err error) string {
	var e *errs.Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}
