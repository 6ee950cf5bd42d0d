package http

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"apex/internal/analysis/indicator"
	"apex/internal/backtest"
	"apex/internal/gateway/database"
	"apex/internal/logger"
	"apex/internal/market"
	"apex/internal/store"
)

// Router serves the signal and backtest API over gin.
type Router struct {
	memory  *store.MemoryStore
	signals *database.SignalStore
	sweeper *backtest.Sweeper
	cfg     indicator.Settings
}

func NewRouter(memory *store.MemoryStore, signals *database.SignalStore, sweeper *backtest.Sweeper, cfg indicator.Settings) *Router {
	return &Router{memory: memory, signals: signals, sweeper: sweeper, cfg: cfg}
}

// Handler builds the gin engine with all routes registered.
func (r *Router) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := e.Group("/api")
	api.GET("/signals/:symbol", r.handleLatestSignal)
	api.GET("/signals/:symbol/history", r.handleSignalHistory)
	api.GET("/signals", r.handleExtremes)
	api.GET("/report/:symbol", r.handleReport)
	api.POST("/backtest", r.handleStartSweep)
	api.GET("/backtest", r.handleListJobs)
	api.GET("/backtest/:id", r.handleGetJob)
	return e
}

func (r *Router) handleLatestSignal(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1h")

	if res, ok := r.memory.Latest(c.Request.Context(), symbol, interval); ok {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "result": res})
		return
	}
	if r.signals != nil {
		rec, err := r.signals.Latest(c.Request.Context(), symbol, interval)
		if err == nil {
			c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "record": rec})
			return
		}
		if !errors.Is(err, sql.ErrNoRows) {
			logger.Errorf("[api] latest signal %s@%s: %v", symbol, interval, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "no signal for " + symbol + "@" + interval})
}

func (r *Router) handleSignalHistory(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1h")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	results, err := r.memory.Results(c.Request.Context(), symbol, interval, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(results) == 0 && r.signals != nil {
		recs, err := r.signals.List(c.Request.Context(), symbol, interval, limit)
		if err != nil {
			logger.Errorf("[api] signal history %s@%s: %v", symbol, interval, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "records": recs})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "interval": interval, "results": results})
}

func (r *Router) handleExtremes(c *gin.Context) {
	if r.signals == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal log not configured"})
		return
	}
	minLevel, _ := strconv.Atoi(c.DefaultQuery("min_level", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := r.signals.Extremes(c.Request.Context(), minLevel, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": recs})
}

func (r *Router) handleReport(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	interval := c.DefaultQuery("interval", "1h")
	bars, err := r.memory.Get(c.Request.Context(), symbol, interval)
	if err != nil || len(bars) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no bars for " + symbol + "@" + interval})
		return
	}
	rep, err := indicator.ComputeReport(symbol, interval, bars, r.cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rep)
}

// sweepRequest carries historical bars plus the candidate configurations to
// evaluate against them.
type sweepRequest struct {
	Symbol     string               `json:"symbol"`
	Interval   string               `json:"interval"`
	Bars       []market.Bar         `json:"bars"`
	Sim        backtest.SimConfig   `json:"sim"`
	Candidates []backtest.Candidate `json:"candidates"`
}

func (r *Router) handleStartSweep(c *gin.Context) {
	if r.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest not configured"})
		return
	}
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	bars := req.Bars
	if len(bars) == 0 {
		// Fall back to the in-memory history for the stream.
		stored, err := r.memory.Get(c.Request.Context(), strings.ToUpper(req.Symbol), req.Interval)
		if err != nil || len(stored) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no bars supplied or stored"})
			return
		}
		bars = stored
	}
	// The sweep must outlive this request.
	id, err := r.sweeper.Start(context.Background(), strings.ToUpper(req.Symbol), req.Interval, bars, req.Sim, req.Candidates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"id": id})
}

func (r *Router) handleListJobs(c *gin.Context) {
	if r.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": r.sweeper.Jobs()})
}

func (r *Router) handleGetJob(c *gin.Context) {
	if r.sweeper == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "backtest not configured"})
		return
	}
	job, ok := r.sweeper.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, job)
}
