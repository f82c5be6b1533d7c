// internal/web/server.go
package web

import (
    "context"
    "net/http"
    "sync"
    "time"

    "github.com/gin-gonic/gin"
    "github.com/prometheus/client_golang/prometheus/promhttp"
    "github.com/sirupsen/logrus"
    "promkeeper/internal/config"
    "promkeeper/internal/database"
    "promkeeper/internal/metrics"
    "promkeeper/internal/promapi"
    "promkeeper/internal/retention"
)

type Server struct {
    config    *config.Config
    store     database.Store
    engine    *retention.Engine
    metrics   *metrics.Collector
    prom      *promapi.Client
    router    *gin.Engine
    wsClients map[*WSClient]bool
    wsMu      sync.Mutex
    server    *http.Server
}

func NewServer(cfg *config.Config, store database.Store, engine *retention.Engine, metricsCollector *metrics.Collector, prom *promapi.Client) *Server {
    if cfg.Logging.Level != "debug" {
        gin.SetMode(gin.ReleaseMode)
    }

    router := gin.New()
    router.Use(gin.Logger())
    router.Use(gin.Recovery())
    router.Use(corsMiddleware())

    server := &Server{
        config:    cfg,
        store:     store,
        engine:    engine,
        metrics:   metricsCollector,
        prom:      prom,
        router:    router,
        wsClients: make(map[*WSClient]bool),
    }

    server.setupRoutes()
    return server
}

func (s *Server) Start(ctx context.Context) error {
    s.server = &http.Server{
        Addr:         s.config.Server.Port,
        Handler:      s.router,
        ReadTimeout:  s.config.Server.ReadTimeout,
        WriteTimeout: s.config.Server.WriteTimeout,
    }

    logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

    // Start metrics update routine
    go s.updateMetricsRoutine(ctx)

    // Start server in goroutine
    go func() {
        if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
            logrus.WithError(err).Fatal("Failed to start server")
        }
    }()

    return nil
}

func (s *Server) Stop(ctx context.Context) error {
    if s.server != nil {
        return s.server.Shutdown(ctx)
    }
    return nil
}

func (s *Server) setupRoutes() {
    // API routes
    api := s.router.Group("/api")
    {
        api.GET("/policies", s.getPolicies)
        api.GET("/policies/:id", s.getPolicy)
        api.POST("/policies", s.createPolicy)
        api.PUT("/policies/:id", s.updatePolicy)
        api.DELETE("/policies/:id", s.deletePolicy)

        api.POST("/policies/execute-all", s.executeAllPolicies)
        api.POST("/policies/:id/execute", s.executePolicy)
        api.GET("/policies/:id/history", s.getPolicyHistory)

        api.POST("/patterns/test", s.testPattern)

        api.GET("/scheduler/status", s.getSchedulerStatus)
        api.GET("/stats", s.getStats)
        api.GET("/health", s.healthCheck)
        api.GET("/version", s.getBuildInfo)
    }

    // WebSocket endpoint
    s.router.GET("/ws", s.handleWebSocket)

    // Prometheus metrics
    if s.config.Metrics.Enabled {
        s.router.GET(s.config.Metrics.MetricsPath, gin.WrapH(promhttp.Handler()))
    }
}

func (s *Server) healthCheck(c *gin.Context) {
    prometheusStatus := "connected"
    if err := s.prom.Ping(c.Request.Context()); err != nil {
        prometheusStatus = err.Error()
    }

    c.JSON(http.StatusOK, gin.H{
        "status":     "healthy",
        "prometheus": prometheusStatus,
        "timestamp":  time.Now(),
        "version":    Version,
    })
}

func (s *Server) getStats(c *gin.Context) {
    stats, err := s.store.GetStats(c.Request.Context())
    if err != nil {
        logrus.WithError(err).Error("Failed to get store stats")
        c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get stats"})
        return
    }

    c.JSON(http.StatusOK, gin.H{"data": gin.H{
        "store":     stats,
        "scheduler": s.engine.SchedulerStatus(),
    }})
}

func (s *Server) getSchedulerStatus(c *gin.Context) {
    c.JSON(http.StatusOK, gin.H{"data": s.engine.SchedulerStatus()})
}

func (s *Server) updateMetricsRoutine(ctx context.Context) {
    ticker := time.NewTicker(30 * time.Second)
    defer ticker.Stop()

    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            if err := s.metrics.UpdateSystemMetrics(ctx); err != nil {
                logrus.WithError(err).Error("Failed to update system metrics")
            }
        }
    }
}

func corsMiddleware() gin.HandlerFunc {
    return func(c *gin.Context) {
        c.Header("Access-Control-Allow-Origin", "*")
        c.Header("Access-Control-Allow-Credentials", "true")
        c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
        c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

        if c.Request.Method == "OPTIONS" {
            c.AbortWithStatus(204)
            return
        }

        c.Next()
    }
}
