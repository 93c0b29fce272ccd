package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradeapi-connector/src/interfaces"
	"tradeapi-connector/src/logger"
	"tradeapi-connector/src/models"
	"tradeapi-connector/src/utils"

	"github.com/gin-gonic/gin"
)

// orderTradeID mirrors the subscription id of the order/trade runner.
const orderTradeID = "ORDER_TRADE"

// -----------------------------------------------------------------------------
// FastAPIServer
// -----------------------------------------------------------------------------

type FastAPIServer struct {
	Config  *models.MConfig
	Logger  *logger.Logger
	Control interfaces.ISubscriptionController
	engine  *gin.Engine
	http    *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan models.MRelayMessage // Buffered queue
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	hubOnce    sync.Once
	stopOnce   sync.Once

	// Recent events per kind, replayed to new clients
	recent     *utils.MemoryManager[models.MRelayMessage]
	stateMutex sync.RWMutex
	latest     int64
	dropped    int64
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewFastAPIServer(cfg *models.MConfig, logger *logger.Logger, control interfaces.ISubscriptionController) *FastAPIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &FastAPIServer{
		Config:     cfg,
		Logger:     logger,
		Control:    control,
		engine:     gin.New(),
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan models.MRelayMessage, 1024),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		recent:     utils.NewMemoryManager[models.MRelayMessage](cfg.RecentEvents),
	}
	s.engine.Use(gin.Recovery())

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *FastAPIServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/subscriptions", s.getSubscriptions)
	s.engine.POST("/api/subscriptions", s.addSubscription)
	s.engine.DELETE("/api/subscriptions/:id", s.removeSubscription)
	s.engine.GET("/api/events/recent", s.getRecentEvents)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Handler returns the HTTP handler and starts the hub on first use.
func (s *FastAPIServer) Handler() http.Handler {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
	return s.engine
}

// -----------------------------------------------------------------------------

// Start serves until Stop is called.
func (s *FastAPIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.stateMutex.Lock()
	s.http = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	srv := s.http
	s.stateMutex.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

// Stop shuts the listener down and disconnects every WebSocket client.
func (s *FastAPIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		close(s.quit)

		s.stateMutex.RLock()
		srv := s.http
		s.stateMutex.RUnlock()
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *FastAPIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	latest := s.latest
	dropped := s.dropped
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   connections,
		"subscriptions": len(s.Control.Subscriptions()),
		"latest_update": latest,
		"dropped":       dropped,
	})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getSubscriptions(c *gin.Context) {
	c.JSON(http.StatusOK, s.Control.Subscriptions())
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) addSubscription(c *gin.Context) {
	var req models.MAddSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var id string
	var err error
	if req.Kind == models.KindOrderTrade {
		var types models.DataType
		if types, err = models.ParseDataType(req.DataType); err == nil {
			id, err = s.Control.SubscribeOrderTrade(req.AccountID, types)
		}
	} else {
		id, err = s.Control.Subscribe(models.MSubscription{Kind: req.Kind, Symbols: req.Symbols, Timeframe: req.Timeframe})
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) removeSubscription(c *gin.Context) {
	id := c.Param("id")

	var err error
	if id == orderTradeID {
		var types models.DataType
		if types, err = models.ParseDataType(c.Query("data_type")); err == nil {
			err = s.Control.UnsubscribeOrderTrade(c.Query("account_id"), types)
		}
	} else {
		err = s.Control.Unsubscribe(id)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.Status(http.StatusNoContent)
}

// -----------------------------------------------------------------------------

func (s *FastAPIServer) getRecentEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

	kinds := s.recent.Keys()
	if kind := c.Query("kind"); kind != "" {
		kinds = []string{kind}
	}

	events := []models.MRelayMessage{}
	for _, kind := range kinds {
		events = append(events, s.recent.GetLatest(kind, limit)...)
	}
	c.JSON(http.StatusOK, events)
}
