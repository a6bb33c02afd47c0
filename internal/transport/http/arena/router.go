package arenahttp

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"ludus/internal/arena"
	"ludus/internal/logger"
	"ludus/internal/report"
	"ludus/internal/store/decisionlog"
	"ludus/internal/store/gormstore"
)

// CompetitionService is the slice of the arena the API reads from.
// *arena.Competition satisfies it.
type CompetitionService interface {
	CompetitionID() string
	Status() arena.Status
	Leaderboard() []arena.LeaderboardEntry
	Results(limit int) []arena.CycleResult
	Stop()
}

// DecisionReader lists persisted decision rows. *decisionlog.Store
// satisfies it.
type DecisionReader interface {
	ListByModel(ctx context.Context, competitionID, modelName string, limit int) ([]decisionlog.Record, error)
}

// SnapshotReader lists persisted performance marks. *gormstore.Store
// satisfies it.
type SnapshotReader interface {
	ListSnapshots(ctx context.Context, competitionID, modelName string, limit int) ([]gormstore.PerformanceSnapshotRecord, error)
	ListAllSnapshots(ctx context.Context, competitionID string) (map[string][]gormstore.PerformanceSnapshotRecord, error)
}

// Router exposes competition state, logs and charts.
type Router struct {
	arena     CompetitionService
	decisions DecisionReader
	snapshots SnapshotReader
}

// NewRouter builds the API router.
func NewRouter(svc CompetitionService, decisions DecisionReader, snapshots SnapshotReader) *Router {
	return &Router{arena: svc, decisions: decisions, snapshots: snapshots}
}

// Register mounts the API under the given group.
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/status", r.handleStatus)
	group.GET("/leaderboard", r.handleLeaderboard)
	group.GET("/cycles", r.handleCycles)
	group.GET("/models/:name/decisions", r.handleModelDecisions)
	group.GET("/models/:name/performance", r.handleModelPerformance)
	group.GET("/chart", r.handleChart)
	group.GET("/chart.png", r.handleChartPNG)
	group.POST("/stop", r.handleStop)
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.arena.Status())
}

func (r *Router) handleLeaderboard(c *gin.Context) {
	entries := r.arena.Leaderboard()
	c.JSON(http.StatusOK, gin.H{
		"competition_id": r.arena.CompetitionID(),
		"leaderboard":    entries,
	})
}

func (r *Router) handleCycles(c *gin.Context) {
	limit := queryLimit(c, 20, 500)
	cycles := r.arena.Results(limit)
	c.JSON(http.StatusOK, gin.H{
		"cycles": cycles,
		"count":  len(cycles),
	})
}

func (r *Router) handleModelDecisions(c *gin.Context) {
	if r.decisions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "decision log disabled"})
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model name required"})
		return
	}
	limit := queryLimit(c, 100, 500)
	rows, err := r.decisions.ListByModel(c.Request.Context(), r.arena.CompetitionID(), name, limit)
	if err != nil {
		logger.Errorf("[api] decisions for %s failed ip=%s err=%v", name, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":     name,
		"decisions": rows,
		"count":     len(rows),
	})
}

func (r *Router) handleModelPerformance(c *gin.Context) {
	if r.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "performance store disabled"})
		return
	}
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model name required"})
		return
	}
	limit := queryLimit(c, 500, 2000)
	recs, err := r.snapshots.ListSnapshots(c.Request.Context(), r.arena.CompetitionID(), name, limit)
	if err != nil {
		logger.Errorf("[api] performance for %s failed ip=%s err=%v", name, c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"model":     name,
		"snapshots": recs,
		"count":     len(recs),
	})
}

func (r *Router) handleChart(c *gin.Context) {
	input, ok := r.chartInput(c)
	if !ok {
		return
	}
	html, err := report.RenderHTML(input)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (r *Router) handleChartPNG(c *gin.Context) {
	input, ok := r.chartInput(c)
	if !ok {
		return
	}
	img, err := report.RenderPNG(c.Request.Context(), input)
	if err != nil {
		logger.Errorf("[api] chart png failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", "inline; filename="+img.Filename)
	c.Data(http.StatusOK, "image/png", img.Bytes)
}

func (r *Router) chartInput(c *gin.Context) (report.ChartInput, bool) {
	if r.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "performance store disabled"})
		return report.ChartInput{}, false
	}
	series, err := r.snapshots.ListAllSnapshots(c.Request.Context(), r.arena.CompetitionID())
	if err != nil {
		logger.Errorf("[api] chart snapshots failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return report.ChartInput{}, false
	}
	st := r.arena.Status()
	return report.ChartInput{
		Competition: st.Name,
		Symbol:      st.Symbol,
		Series:      series,
	}, true
}

func (r *Router) handleStop(c *gin.Context) {
	r.arena.Stop()
	logger.Infof("[api] stop requested ip=%s", c.ClientIP())
	c.JSON(http.StatusOK, gin.H{"status": "stopping"})
}

func queryLimit(c *gin.Context, def, max int) int {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(def)))
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return limit
}
