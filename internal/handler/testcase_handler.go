package handler

import (
	"net/http"
	"strconv"

	"github.com/itskevin-zz/testframe/internal/models"
	"github.com/itskevin-zz/testframe/internal/repository"
	"github.com/itskevin-zz/testframe/internal/service"

	"github.com/gin-gonic/gin"
)

// TestCaseHandler serves test case and component endpoints.
type TestCaseHandler struct {
	service service.TestCaseService
}

// NewTestCaseHandler creates a new handler.
func NewTestCaseHandler(service service.TestCaseService) *TestCaseHandler {
	return &TestCaseHandler{service: service}
}

// RegisterRoutes registers routes on the authenticated API group.
func (h *TestCaseHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/cases", h.CreateTestCase)
	api.GET("/cases", h.ListTestCases)
	api.GET("/cases/:id", h.GetTestCase)
	api.PUT("/cases/:id", h.UpdateTestCase)
	api.DELETE("/cases/:id", h.DeleteTestCase)

	api.POST("/components", h.CreateComponent)
	api.GET("/components", h.ListComponents)
	api.PUT("/components/:name", h.UpdateComponent)
	api.DELETE("/components/:name", h.DeleteComponent)
}

// ===== Test Case Handlers =====

func (h *TestCaseHandler) CreateTestCase(c *gin.Context) {
	var req service.CreateTestCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tc, err := h.service.CreateTestCase(userEmail(c), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tc)
}

func (h *TestCaseHandler) ListTestCases(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	filter := repository.TestCaseFilter{
		Component: c.Query("component"),
		TestType:  models.TestType(c.Query("testType")),
		Priority:  models.Priority(c.Query("priority")),
	}

	cases, total, err := h.service.ListTestCases(filter, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"cases": cases,
		"total": total,
	})
}

func (h *TestCaseHandler) GetTestCase(c *gin.Context) {
	tc, err := h.service.GetTestCase(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tc)
}

func (h *TestCaseHandler) UpdateTestCase(c *gin.Context) {
	var req service.UpdateTestCaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tc, err := h.service.UpdateTestCase(c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tc)
}

func (h *TestCaseHandler) DeleteTestCase(c *gin.Context) {
	if err := h.service.DeleteTestCase(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "test case deleted"})
}

// ===== Component Handlers =====

func (h *TestCaseHandler) CreateComponent(c *gin.Context) {
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	component, err := h.service.CreateComponent(&req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, component)
}

func (h *TestCaseHandler) ListComponents(c *gin.Context) {
	components, err := h.service.ListComponents()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, components)
}

func (h *TestCaseHandler) UpdateComponent(c *gin.Context) {
	var req service.ComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	component, err := h.service.UpdateComponent(c.Param("name"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, component)
}

func (h *TestCaseHandler) DeleteComponent(c *gin.Context) {
	if err := h.service.DeleteComponent(c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "component deleted"})
}
