package handler

import (
	"net/http"

	"github.com/itskevin-zz/testframe/internal/runlock"
	"github.com/itskevin-zz/testframe/internal/service"

	"github.com/gin-gonic/gin"
)

// TemplateHandler serves run template endpoints.
type TemplateHandler struct {
	service service.TemplateService
	locks   *runlock.Manager
}

// NewTemplateHandler creates a new handler.
func NewTemplateHandler(service service.TemplateService, locks *runlock.Manager) *TemplateHandler {
	return &TemplateHandler{service: service, locks: locks}
}

// RegisterRoutes registers routes on the authenticated API group.
func (h *TemplateHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/templates", h.ListTemplates)
	api.GET("/templates/:id", h.GetTemplate)
	api.DELETE("/templates/:id", h.DeleteTemplate)
	api.POST("/templates/:id/instantiate", h.Instantiate)
	api.POST("/runs/:id/save-template", h.SaveFromRun)
}

func (h *TemplateHandler) ListTemplates(c *gin.Context) {
	templates, err := h.service.ListTemplates()
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, templates)
}

func (h *TemplateHandler) GetTemplate(c *gin.Context) {
	detail, err := h.service.GetTemplate(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *TemplateHandler) DeleteTemplate(c *gin.Context) {
	if err := h.service.DeleteTemplate(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "template deleted"})
}

func (h *TemplateHandler) SaveFromRun(c *gin.Context) {
	var req service.SaveTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tpl, err := h.service.SaveFromRun(userEmail(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tpl)
}

func (h *TemplateHandler) Instantiate(c *gin.Context) {
	var req service.InstantiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess := h.locks.Session(tabID(c))
	run, err := h.service.Instantiate(sess, userEmail(c), c.Param("id"), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, run)
}
