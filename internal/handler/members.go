package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"gymkiosk/internal/member"
)

func (h *Handler) listMembers(c *gin.Context) {
	includeInactive := c.DefaultQuery("inactive", "true") == "true"
	members, err := h.members.List(c.Request.Context(), includeInactive)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list members"})
		return
	}
	if members == nil {
		members = []member.Member{}
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) memberByID(c *gin.Context) {
	m, err := h.members.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) memberByNumber(c *gin.Context) {
	m, err := h.members.FindByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) searchMembers(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusOK, []member.Member{})
		return
	}
	members, err := h.members.Search(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	if members == nil {
		members = []member.Member{}
	}
	c.JSON(http.StatusOK, members)
}

func (h *Handler) createMember(c *gin.Context) {
	var req struct {
		Name           string `json:"name" binding:"required"`
		BirthDate      string `json:"birth_date"`
		Phone          string `json:"phone"`
		EmergencyPhone string `json:"emergency_phone"`
		Notes          string `json:"notes"`
		Photo          string `json:"photo"`
		Kind           string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	m, err := h.members.Create(c.Request.Context(), member.CreateParams{
		Name:           req.Name,
		BirthDate:      req.BirthDate,
		Phone:          req.Phone,
		EmergencyPhone: req.EmergencyPhone,
		Notes:          req.Notes,
		Photo:          req.Photo,
		Kind:           req.Kind,
	})
	if err != nil {
		switch {
		case errors.Is(err, member.ErrNameRequired), errors.Is(err, member.ErrInvalidBirthDate):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, member.ErrNumberConflict):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create member"})
		}
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) updateMember(c *gin.Context) {
	var req struct {
		Name           *string `json:"name"`
		BirthDate      *string `json:"birth_date"`
		Phone          *string `json:"phone"`
		EmergencyPhone *string `json:"emergency_phone"`
		Notes          *string `json:"notes"`
		Photo          *string `json:"photo"`
		Active         *bool   `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	m, err := h.members.Update(c.Request.Context(), c.Param("id"), member.UpdateParams{
		Name:           req.Name,
		BirthDate:      req.BirthDate,
		Phone:          req.Phone,
		EmergencyPhone: req.EmergencyPhone,
		Notes:          req.Notes,
		Photo:          req.Photo,
		Active:         req.Active,
	})
	if err != nil {
		if errors.Is(err, member.ErrNameRequired) || errors.Is(err, member.ErrInvalidBirthDate) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) activateMember(c *gin.Context)   { h.setMemberActive(c, true) }
func (h *Handler) deactivateMember(c *gin.Context) { h.setMemberActive(c, false) }

func (h *Handler) setMemberActive(c *gin.Context, active bool) {
	m, err := h.members.SetActive(c.Request.Context(), c.Param("id"), active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": activeMessage(active), "member": m})
}

func activeMessage(active bool) string {
	if active {
		return "member activated"
	}
	return "member deactivated"
}

func (h *Handler) purgeMember(c *gin.Context) {
	m, err := h.members.Purge(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete member"})
		return
	}
	if m == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "member permanently deleted, history preserved", "member": m})
}
