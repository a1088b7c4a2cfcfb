package handler

import (
	"net/http"
	"strconv"

	"github.com/itskevin-zz/testframe/internal/runlock"
	"github.com/itskevin-zz/testframe/internal/service"

	"github.com/gin-gonic/gin"
)

// TestRunHandler serves run, execution, lock and maintenance endpoints.
type TestRunHandler struct {
	service service.TestRunService
	locks   *runlock.Manager
}

// NewTestRunHandler creates a new handler.
func NewTestRunHandler(service service.TestRunService, locks *runlock.Manager) *TestRunHandler {
	return &TestRunHandler{service: service, locks: locks}
}

// RegisterRoutes registers routes on the authenticated API group.
func (h *TestRunHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/runs", h.CreateTestRun)
	api.GET("/runs", h.ListTestRuns)
	api.GET("/runs/:id", h.GetTestRun)
	api.PUT("/runs/:id", h.UpdateTestRun)
	api.PUT("/runs/:id/cases", h.UpdateRunCases)
	api.DELETE("/runs/:id", h.DeleteTestRun)
	api.POST("/runs/:id/duplicate", h.DuplicateTestRun)
	api.GET("/runs/:id/stats", h.GetStats)

	api.PUT("/executions/:id", h.RecordResult)

	api.POST("/runs/:id/lock", h.AcquireLock)
	api.DELETE("/runs/:id/lock", h.ReleaseLock)
	api.GET("/runs/:id/lock", h.GetLock)

	api.POST("/maintenance/runs/:id/cleanup-duplicates", h.CleanupRunDuplicates)
	api.POST("/maintenance/cleanup-duplicates", h.CleanupAllDuplicates)
}

// ===== Run Handlers =====

func (h *TestRunHandler) CreateTestRun(c *gin.Context) {
	var req service.CreateTestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := h.locks.Session(tabID(c))
	run, err := h.service.CreateTestRun(sess, userEmail(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *TestRunHandler) ListTestRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	runs, total, err := h.service.ListTestRuns(limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": total,
	})
}

func (h *TestRunHandler) GetTestRun(c *gin.Context) {
	detail, err := h.service.GetTestRun(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *TestRunHandler) UpdateTestRun(c *gin.Context) {
	var req service.UpdateTestRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	run, err := h.service.UpdateTestRun(c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *TestRunHandler) UpdateRunCases(c *gin.Context) {
	var req struct {
		CaseIDs []string `json:"caseIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := h.locks.Session(tabID(c))
	detail, err := h.service.UpdateRunCases(sess, userEmail(c), c.Param("id"), req.CaseIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *TestRunHandler) DeleteTestRun(c *gin.Context) {
	if err := h.service.DeleteTestRun(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test run deleted"})
}

func (h *TestRunHandler) DuplicateTestRun(c *gin.Context) {
	var req service.DuplicateRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := h.locks.Session(tabID(c))
	run, err := h.service.Duplicate(sess, userEmail(c), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}

func (h *TestRunHandler) GetStats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ===== Execution Handlers =====

func (h *TestRunHandler) RecordResult(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid execution id"})
		return
	}

	var req service.RecordResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	exec, err := h.service.RecordResult(userEmail(c), uint(id), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, exec)
}

// ===== Lock Handlers =====

func (h *TestRunHandler) AcquireLock(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	// Body is optional; a bare POST locks with no reason tag.
	_ = c.ShouldBindJSON(&req)

	sess := h.locks.Session(tabID(c))
	token, err := h.locks.Acquire(sess, c.Param("id"), runlock.Request{
		LockedBy: userEmail(c),
		Reason:   req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"tabId":     sess.TabID,
		"expiresIn": int(h.locks.TTL().Seconds()),
	})
}

func (h *TestRunHandler) ReleaseLock(c *gin.Context) {
	sess := h.locks.Session(tabID(c))
	if err := h.locks.Release(sess, c.Param("id"), c.Query("token")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "lock released"})
}

func (h *TestRunHandler) GetLock(c *gin.Context) {
	lock, err := h.locks.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if lock == nil {
		c.JSON(http.StatusOK, gin.H{"locked": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"locked": true, "lock": lock})
}

// ===== Maintenance Handlers =====

func (h *TestRunHandler) CleanupRunDuplicates(c *gin.Context) {
	removed, err := h.service.CleanupDuplicates(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duplicatesRemoved": removed})
}

func (h *TestRunHandler) CleanupAllDuplicates(c *gin.Context) {
	results, err := h.service.CleanupAllDuplicates()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": results})
}
