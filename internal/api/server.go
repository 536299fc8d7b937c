package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"order_engine/internal/domain"
	"order_engine/internal/event"
	"order_engine/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Orders is the order use-case surface the HTTP handlers need.
type Orders interface {
	Submit(ctx context.Context, req *service.SubmitOrderRequest) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	Get(ctx context.Context, id string) (*domain.Order, error)
}

// Hub registers websocket connections for order events.
type Hub interface {
	Subscribe(orderID string, conn event.Conn) *event.Subscription
	Unsubscribe(sub *event.Subscription)
}

// Server is the HTTP and websocket front of the engine.
type Server struct {
	router   *gin.Engine
	orders   Orders
	hub      Hub
	gatherer prometheus.Gatherer
	upgrader websocket.Upgrader
	logger   *slog.Logger

	httpServer *http.Server
}

// NewServer builds the router. gatherer may be nil to skip /metrics.
func NewServer(orders Orders, hub Hub, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		orders:   orders,
		hub:      hub,
		gatherer: gatherer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: slog.Default().With("module", "api"),
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(s.logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
		MaxAge:       12 * time.Hour,
	}))

	s.router = router
	s.registerRoutes()
	return s
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/", s.root)
	s.router.GET("/health", s.health)
	if s.gatherer != nil {
		s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}

	orders := s.router.Group("/api/orders")
	{
		orders.POST("/execute", s.executeOrder)
		orders.GET("", s.listOrders)
		orders.GET("/ws", s.orderEvents)
		orders.GET("/:id", s.getOrder)
	}
}

// Start listens on addr until Shutdown. It returns nil after a clean shutdown.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting API server", slog.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
// Hijacked websocket connections are closed by the broadcaster.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "HTTP request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("latency", time.Since(start)),
		)
	}
}
