package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"gymkiosk/internal/attendance"
	"gymkiosk/internal/member"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *Handler) exportAttendance(c *gin.Context) {
	filter := attendance.Filter{
		Date: c.Query("date"),
		From: c.Query("from"),
		To:   c.Query("to"),
	}
	records, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load attendance"})
		return
	}

	f, err := h.exporter.Attendance(records)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	label := filter.Date
	if label == "" && filter.From != "" && filter.To != "" {
		label = filter.From + "_" + filter.To
	}
	if label == "" {
		label = time.Now().In(h.loc).Format("2006-01-02")
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=attendance_%s.xlsx", label))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}

func (h *Handler) exportMembers(c *gin.Context) {
	all, err := h.members.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load members"})
		return
	}

	// Roster export covers active members only.
	active := make([]member.Member, 0, len(all))
	for _, m := range all {
		if m.Active {
			active = append(active, m)
		}
	}

	f, err := h.exporter.Members(active)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=members_%s.xlsx", time.Now().In(h.loc).Format("2006-01-02")))
	if err := f.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
