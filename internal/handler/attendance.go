package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gymkiosk/internal/attendance"
	"gymkiosk/internal/checkin"
)

func (h *Handler) listAttendance(c *gin.Context) {
	records, err := h.ledger.List(c.Request.Context(), attendance.Filter{
		Date: c.Query("date"),
		From: c.Query("from"),
		To:   c.Query("to"),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list attendance"})
		return
	}
	if records == nil {
		records = []attendance.Record{}
	}
	c.JSON(http.StatusOK, records)
}

func (h *Handler) verifyToday(c *gin.Context) {
	checked, err := h.ledger.HasCheckedInToday(c.Request.Context(), c.Param("memberID"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"already_checked_in": checked})
}

func (h *Handler) checkIn(c *gin.Context) {
	var req struct {
		MemberID string `json:"member_id"`
		Name     string `json:"name"`
		Photo    string `json:"photo"`
		Kind     string `json:"kind"`
		Force    bool   `json:"force"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	in := checkin.Request{MemberID: req.MemberID, Force: req.Force}
	if req.MemberID == "" && req.Kind == "visitor" && req.Name != "" {
		in.Visitor = &checkin.Visitor{Name: req.Name, Photo: req.Photo}
	}

	result, err := h.checkin.CheckIn(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, checkin.ErrMemberNotFound):
			checkinsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, checkin.ErrAlreadyCheckedIn):
			checkinsTotal.WithLabelValues("duplicate").Inc()
			// already_checked_in lets the kiosk re-prompt with a force option.
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "already_checked_in": true})
		case errors.Is(err, checkin.ErrIncompleteData):
			checkinsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			checkinsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "check-in failed"})
		}
		return
	}

	checkinsTotal.WithLabelValues("confirmed").Inc()
	c.JSON(http.StatusCreated, gin.H{
		"message": "attendance recorded",
		"record":  result.Record,
		"member":  result.Member,
	})
}

func (h *Handler) amendAttendance(c *gin.Context) {
	var req struct {
		MemberID *string `json:"member_id"`
		Name     *string `json:"name"`
		Kind     *string `json:"kind"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}

	rec, err := h.ledger.Amend(c.Request.Context(), c.Param("id"), attendance.AmendParams{
		MemberID: req.MemberID,
		Name:     req.Name,
		Kind:     req.Kind,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update attendance"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "attendance record not found"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) removeAttendance(c *gin.Context) {
	id := c.Param("id")
	deleted, err := h.ledger.Remove(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete attendance"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "attendance record not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance deleted", "id": id})
}
