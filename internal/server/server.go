// Package server exposes a running session over HTTP: a JSON API for
// queries and commands, a WebSocket event feed and Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rustyeddy/marketsim/internal/metrics"
	"github.com/rustyeddy/marketsim/pkg/id"
	"github.com/rustyeddy/marketsim/session"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	shutdownTimeout = 5 * time.Second

	// Limiters idle for limiterIdle are dropped every limiterSweep.
	limiterIdle  = 10 * time.Minute
	limiterSweep = time.Minute
)

type Options struct {
	// OrderRate and OrderBurst limit commands per client IP.
	OrderRate  float64
	OrderBurst int

	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

type Server struct {
	sess    *session.Session
	hub     *Hub
	log     *zap.Logger
	metrics *metrics.Metrics

	limit    rate.Limit
	burst    int
	limiters sync.Map // client IP -> *visitor

	upgrader websocket.Upgrader
	engine   *gin.Engine
}

func New(sess *session.Session, hub *Hub, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.OrderRate <= 0 {
		opts.OrderRate = 20
	}
	if opts.OrderBurst <= 0 {
		opts.OrderBurst = 40
	}

	s := &Server{
		sess:    sess,
		hub:     hub,
		log:     opts.Logger.Named("server"),
		metrics: opts.Metrics,
		limit:   rate.Limit(opts.OrderRate),
		burst:   opts.OrderBurst,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", s.health)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.GET("/ws", s.feed)

	api := r.Group("/api/v1")
	{
		api.GET("/instruments", s.listInstruments)
		api.GET("/instruments/:symbol", s.getInstrument)
		api.GET("/candles/:symbol", s.getCandles)
		api.GET("/indicators/:symbol", s.getIndicator)
		api.GET("/book/:symbol", s.getBook)
		api.GET("/account", s.getAccount)
		api.GET("/positions", s.listPositions)
		api.GET("/markers/:symbol", s.getMarkers)

		cmd := api.Group("", s.rateLimit())
		cmd.POST("/orders", s.submitOrder)
		cmd.DELETE("/positions/:symbol", s.closePosition)
		cmd.POST("/deposits", s.deposit)
	}
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go s.evictIdleLimiters(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func (s *Server) limiter(ip string) *rate.Limiter {
	v, ok := s.limiters.Load(ip)
	if !ok {
		v, _ = s.limiters.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(s.limit, s.burst)})
	}
	vis := v.(*visitor)
	vis.lastSeen.Store(time.Now().UnixNano())
	return vis.limiter
}

// sweepLimiters drops the limiters of clients not seen since cutoff and
// returns how many were removed.
func (s *Server) sweepLimiters(cutoff time.Time) int {
	removed := 0
	s.limiters.Range(func(k, v any) bool {
		if v.(*visitor).lastSeen.Load() < cutoff.UnixNano() {
			s.limiters.Delete(k)
			removed++
		}
		return true
	})
	return removed
}

func (s *Server) evictIdleLimiters(ctx context.Context) {
	ticker := time.NewTicker(limiterSweep)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.sweepLimiters(now.Add(-limiterIdle)); n > 0 {
				s.log.Debug("evicted idle rate limiters", zap.Int("count", n))
			}
		}
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !s.limiter(ip).Allow() {
			s.metrics.ObserveRejected("rate_limit")
			s.log.Warn("rate limit exceeded", zap.String("client_ip", ip))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	status := "ok"
	select {
	case <-s.sess.Done():
		status = "stopped"
	default:
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  status,
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Unix(),
	})
}

// feed upgrades to a WebSocket and streams every broadcast event as JSON.
func (s *Server) feed(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	client := NewClient(id.New())
	if !s.hub.Register(client) {
		return
	}
	s.log.Info("feed client connected",
		zap.String("client_id", client.id),
		zap.String("remote_addr", remoteIP(c.Request)),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writePump(conn, client)
	}()

	s.readPump(conn)
	s.hub.Unregister(client)
	wg.Wait()
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.Messages():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.log.Warn("feed write", zap.String("client_id", client.id), zap.Error(err))
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards client messages and returns when the connection closes.
func (s *Server) readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug("feed read", zap.Error(err))
			}
			return
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
