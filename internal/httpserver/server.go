// Package httpserver exposes the running pager over a small JSON API:
// read lines and matches, submit a query, and run SQL against the archive.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/apyr/internal/archive"
	"github.com/tinytelemetry/apyr/internal/engine"
	"github.com/tinytelemetry/apyr/internal/model"
	"github.com/tinytelemetry/apyr/internal/search"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = model.DefaultAPIAddr

	// DefaultPageSize is the number of lines or matches returned when the
	// request does not say.
	DefaultPageSize = 100

	// MaxPageSize caps a single page.
	MaxPageSize = 1000
)

// Pager is the narrow engine contract required by the HTTP API.
type Pager interface {
	SubmitQuery(text string) uint64
	Lines(start, end int) []string
	MatchLines() []int
	LogLen() int
	IsQuitting() bool
	Query() (string, search.QueryState)
	Stats() engine.Stats
}

// SQLStore runs read-only queries against the archive.
type SQLStore interface {
	Query(sql string) ([]map[string]any, error)
	Count() (int64, error)
}

// Server provides the HTTP API.
type Server struct {
	addr      string
	pager     Pager
	store     SQLStore
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server. store may be nil when the
// archive is disabled.
func NewServer(addr string, pager Pager, store SQLStore) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		pager:     pager,
		store:     store,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/lines", s.handleLines)
	api.GET("/matches", s.handleMatches)
	api.POST("/query", s.handleQuery)
	api.POST("/sql", s.handleSQL)
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.routes(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := "ok"
	if s.pager.IsQuitting() {
		status = "quitting"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"uptime":   time.Since(s.startTime).String(),
		"lines":    s.pager.LogLen(),
		"matches":  len(s.pager.MatchLines()),
		"version":  s.pager.Stats().Version,
		"archive":  s.store != nil,
		"quitting": s.pager.IsQuitting(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	st := s.pager.Stats()
	resp := gin.H{
		"lines":           st.Lines,
		"bytes":           st.Bytes,
		"matches":         st.Matches,
		"version":         st.Version,
		"query":           st.Query,
		"query_state":     st.QueryState.String(),
		"pending_jobs":    st.PendingJobs,
		"pending_batches": st.PendingBatches,
		"workers":         st.Workers,
		"scanned":         st.Scanned,
		"merged_batches":  st.MergedBatches,
		"stale_batches":   st.StaleBatches,
	}
	if s.store != nil {
		if n, err := s.store.Count(); err == nil {
			resp["archived"] = n
		}
	}
	c.JSON(http.StatusOK, resp)
}

// pageParams reads start/limit style query parameters.
func pageParams(c *gin.Context, startKey string) (start, limit int, ok bool) {
	start, limit = 0, DefaultPageSize
	if v := c.Query(startKey); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, false
		}
		start = n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, false
		}
		limit = n
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return start, limit, true
}

func (s *Server) handleLines(c *gin.Context) {
	start, limit, ok := pageParams(c, "start")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start and limit must be non-negative integers"})
		return
	}
	end := start + limit
	if v := c.Query("end"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < start {
			c.JSON(http.StatusBadRequest, gin.H{"error": "end must be an integer >= start"})
			return
		}
		if n-start < limit {
			end = n
		}
	}

	lines := s.pager.Lines(start, end)
	if lines == nil {
		lines = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"start": start,
		"lines": lines,
		"total": s.pager.LogLen(),
	})
}

func (s *Server) handleMatches(c *gin.Context) {
	offset, limit, ok := pageParams(c, "offset")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset and limit must be non-negative integers"})
		return
	}

	query, state := s.pager.Query()
	all := s.pager.MatchLines()
	page := []int{}
	if offset < len(all) {
		end := min(offset+limit, len(all))
		page = all[offset:end]
	}
	c.JSON(http.StatusOK, gin.H{
		"query":   query,
		"state":   state.String(),
		"version": s.pager.Stats().Version,
		"offset":  offset,
		"total":   len(all),
		"lines":   page,
	})
}

func (s *Server) handleQuery(c *gin.Context) {
	if s.pager.IsQuitting() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": engine.ErrQuitting.Error()})
		return
	}

	var req struct {
		Query *string `json:"query"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Query == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing query field"})
		return
	}

	version := s.pager.SubmitQuery(*req.Query)
	_, state := s.pager.Query()
	c.JSON(http.StatusOK, gin.H{
		"version": version,
		"state":   state.String(),
	})
}

func (s *Server) handleSQL(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": archive.ErrDisabled.Error()})
		return
	}

	var req struct {
		SQL string `json:"sql" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing sql field"})
		return
	}

	results, err := s.store.Query(req.SQL)
	if err != nil {
		if errors.Is(err, archive.ErrDisabled) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var columns []string
	if len(results) > 0 {
		for col := range results[0] {
			columns = append(columns, col)
		}
	}
	if results == nil {
		results = []map[string]any{}
	}

	c.JSON(http.StatusOK, gin.H{
		"columns":   columns,
		"rows":      results,
		"row_count": len(results),
	})
}
