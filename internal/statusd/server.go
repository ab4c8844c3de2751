// Package statusd exposes a read-only JSON telemetry endpoint for a
// running fuzzing campaign over HTTP, the way the pack's gin-based
// forensics API exposes engine health and scan progress.
package statusd

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raresmith/branchfuzz/internal/bandit"
	"github.com/raresmith/branchfuzz/internal/fuzzconfig"
	"github.com/raresmith/branchfuzz/internal/fuzzone"
	"github.com/raresmith/branchfuzz/internal/rarebranch"
)

// Sources bundles the read accessors the status endpoints report from.
// All fields are optional; a nil accessor degrades its section of the
// response rather than panicking, since statusd may be started before
// a campaign finishes wiring up its driver.
type Sources struct {
	Stats     func() fuzzone.Stats
	QueueLen  func() int
	Grid      *bandit.Grid
	Selector  *rarebranch.Selector
	Cfg       fuzzconfig.Config
	StartedAt time.Time
}

// Handler serves the status endpoints.
type Handler struct {
	src Sources
}

// NewRouter builds a gin.Engine exposing /status/* read-only endpoints
// over src. Callers run it with http.Server or engine.Run directly.
func NewRouter(src Sources) *gin.Engine {
	r := gin.Default()
	h := &Handler{src: src}

	status := r.Group("/status")
	{
		status.GET("/health", h.handleHealth)
		status.GET("/stats", h.handleStats)
		status.GET("/bandit", h.handleBandit)
		status.GET("/rarebranch", h.handleRareBranch)
		status.GET("/config", h.handleConfig)
	}

	return r
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "operational",
		"uptime":  time.Since(h.src.StartedAt).Round(time.Second).String(),
		"vanilla": h.src.Cfg.VanillaMode,
		"shadow":  h.src.Cfg.ShadowMode,
	})
}

func (h *Handler) handleStats(c *gin.Context) {
	if h.src.Stats == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats not available"})
		return
	}
	st := h.src.Stats()
	queueLen := 0
	if h.src.QueueLen != nil {
		queueLen = h.src.QueueLen()
	}
	c.JSON(http.StatusOK, gin.H{
		"executions":  st.Executions,
		"stageFinds":  st.StageFinds,
		"stageCycles": st.StageCycles,
		"queueLen":    queueLen,
	})
}

func (h *Handler) handleBandit(c *gin.Context) {
	if h.src.Grid == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bandit grid not available"})
		return
	}
	buckets := make([]gin.H, bandit.NumBatchBuckets)
	for i := 0; i < bandit.NumBatchBuckets; i++ {
		buckets[i] = gin.H{
			"bucket":    i,
			"opArms":    h.src.Grid.Op[i].NumArms(),
			"batchArms": h.src.Grid.Batch[i].NumArms(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"buckets": buckets})
}

func (h *Handler) handleRareBranch(c *gin.Context) {
	if h.src.Selector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rare branch selector not available"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"rareBranchExp": h.src.Selector.RareBranchExp(),
		"blacklistSize": h.src.Selector.BlacklistSize(),
		"rarestEdges":   len(h.src.Selector.RarestEdges()),
	})
}

func (h *Handler) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.src.Cfg)
}
