// Package dashboard serves the trader state and event log over HTTP.
package dashboard

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/cors"
	"github.com/vadiminshakov/levtrader/internal/domain"
	"github.com/vadiminshakov/levtrader/internal/storage/events"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"
)

const (
	eventPollInterval = 3 * time.Second
	defaultLimit      = 100
	maxLimit          = 1000
)

type stateReader interface {
	Load(traderID string) (*domain.TraderState, error)
}

type eventReader interface {
	EventsByDate(date string, filter events.Filter) ([]domain.LogEvent, error)
	Recent(filter events.Filter) ([]domain.LogEvent, error)
	EventsAfter(index uint64) ([]domain.LogEventRecord, error)
}

// Server exposes the JSON status API and an SSE stream of new events.
type Server struct {
	Addr           string
	TraderID       string
	State          stateReader
	Events         eventReader
	AllowedOrigins []string

	l            *zap.Logger
	pollInterval time.Duration
	now          func() time.Time
}

// NewServer creates a new web server instance.
func NewServer(l *zap.Logger, addr, traderID string, state stateReader, eventLog eventReader, origins []string) *Server {
	if traderID == "" {
		traderID = domain.DefaultTraderID
	}
	return &Server{
		Addr:           addr,
		TraderID:       traderID,
		State:          state,
		Events:         eventLog,
		AllowedOrigins: origins,
		l:              l,
		pollInterval:   eventPollInterval,
		now:            time.Now,
	}
}

// Handler returns the routed API with CORS applied.
func (s *Server) Handler() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/events", s.handleEventsByDate)
		api.GET("/events/recent", s.handleRecentEvents)
		api.GET("/events/stream", s.handleEventStream)
	}

	origins := s.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Last-Event-ID", "Content-Type"},
	}).Handler(router)
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.l.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if len(domains) == 0 {
		return fmt.Errorf("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.l.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.l.Info("dashboard listening with automatic TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.l.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

func (s *Server) handleState(c *gin.Context) {
	state, err := s.State.Load(s.TraderID)
	if err != nil {
		s.l.Error("load trader state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load trader state"})
		return
	}
	if state == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no state recorded for trader " + s.TraderID})
		return
	}

	c.JSON(http.StatusOK, state)
}

func (s *Server) handleEventsByDate(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	date := strings.TrimSpace(c.Query("date"))
	if date == "" {
		date = s.now().In(domain.MarketLocation).Format(domain.DateLayout)
	} else if _, err := time.Parse(domain.DateLayout, date); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}

	list, err := s.Events.EventsByDate(date, filter)
	if err != nil {
		s.l.Error("load events", zap.String("date", date), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"date": date, "count": len(list), "events": list})
}

func (s *Server) handleRecentEvents(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}

	list, err := s.Events.Recent(filter)
	if err != nil {
		s.l.Error("load recent events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": len(list), "events": list})
}

func (s *Server) handleEventStream(c *gin.Context) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// send a comment heartbeat every 20s so proxies keep connection
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(c.GetHeader("Last-Event-ID"), c.Query("last_event_id"))
	send := func() error {
		records, err := s.Events.EventsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Event)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: log\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			w.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := send(); err != nil {
		s.l.Error("event stream initial load", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load events"})
		return
	}

	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		w.Flush()
	}

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			w.Flush()
		case <-pollTicker.C:
			if err := send(); err != nil {
				s.l.Warn("event stream poll", zap.Error(err))
			}
		}
	}
}

// parseFilter reads type and limit; it writes a 400 response and returns false on bad input.
func parseFilter(c *gin.Context) (events.Filter, bool) {
	filter := events.Filter{Limit: defaultLimit}

	if raw := strings.TrimSpace(c.Query("type")); raw != "" {
		filter.Type = domain.EventType(strings.ToUpper(raw))
		if !filter.Type.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event type " + raw})
			return events.Filter{}, false
		}
	}

	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return events.Filter{}, false
		}
		filter.Limit = min(limit, maxLimit)
	}

	return filter, true
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		return 0
	}
	return id
}
