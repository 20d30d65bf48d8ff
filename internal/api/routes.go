package api

import (
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/culverbrock/agentbattle-engine/internal/orchestrator"
	"github.com/culverbrock/agentbattle-engine/internal/wallet"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler wires the Game Orchestrator into a Gin router.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// SetupRouter builds the engine's HTTP surface: a health check, a
// per-gameId websocket stream, and REST endpoints for the lobby/ready/
// disconnect lifecycle that front the orchestrator.
func SetupRouter(orch *orchestrator.Orchestrator) *gin.Engine {
	r := gin.Default()

	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h := &Handler{orch: orch}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", h.handleHealth)
		pub.GET("/games/:gameId/stream", h.handleStream)
	}

	protected := r.Group("/api/v1")
	protected.Use(AuthMiddleware())
	protected.Use(NewRateLimiter(60, 10).Middleware())
	{
		protected.POST("/games", h.handleCreateGame)
		protected.POST("/games/:gameId/join", h.handleJoin)
		protected.POST("/games/:gameId/ready", h.handleReady)
		protected.POST("/games/:gameId/disconnect", h.handleDisconnect)
		protected.POST("/games/:gameId/reconnect", h.handleReconnect)
		protected.GET("/games/:gameId", h.handleGetState)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "operational",
		"engine":      "agent battle engine",
		"activeGames": len(h.orch.ActiveGameIDs()),
	})
}

func (h *Handler) handleStream(c *gin.Context) {
	gameID := c.Param("gameId")
	hub := h.orch.Hub(gameID)
	if hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[api] websocket upgrade failed for game %s: %v", gameID, err)
		return
	}

	hub.Subscribe(conn)
	go func() {
		defer func() {
			hub.Unsubscribe(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (h *Handler) handleCreateGame(c *gin.Context) {
	var req struct {
		GameID string `json:"gameId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.Create(c.Request.Context(), req.GameID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gameId": req.GameID})
}

func (h *Handler) handleJoin(c *gin.Context) {
	gameID := c.Param("gameId")
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
		Name     string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.orch.Join(c.Request.Context(), gameID, req.PlayerID, req.Name); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "joined"})
}

func (h *Handler) handleReady(c *gin.Context) {
	gameID := c.Param("gameId")
	var req struct {
		PlayerID      string `json:"playerId" binding:"required"`
		Strategy      string `json:"strategy"`
		WalletType    string `json:"walletType" binding:"required"`
		WalletAddress string `json:"walletAddress" binding:"required"`
		Message       string `json:"message" binding:"required"`
		Signature     string `json:"signature" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.orch.Ready(c.Request.Context(), gameID, req.PlayerID, req.Strategy,
		wallet.Type(req.WalletType), req.WalletAddress, req.Message, req.Signature)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (h *Handler) handleDisconnect(c *gin.Context) {
	gameID := c.Param("gameId")
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.orch.HandleDisconnect(gameID, req.PlayerID)
	c.JSON(http.StatusOK, gin.H{"status": "disconnect_timer_started"})
}

func (h *Handler) handleReconnect(c *gin.Context) {
	gameID := c.Param("gameId")
	var req struct {
		PlayerID string `json:"playerId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.orch.HandleReconnect(gameID, req.PlayerID)
	c.JSON(http.StatusOK, gin.H{"status": "reconnected"})
}

func (h *Handler) handleGetState(c *gin.Context) {
	gameID := c.Param("gameId")
	state := h.orch.State(gameID)
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "game not found"})
		return
	}
	c.JSON(http.StatusOK, state)
}
