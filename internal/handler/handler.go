// Package handler wires the gin routes onto the core services. It depends on
// narrow interfaces so tests can run against in-memory fakes.
package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"gymkiosk/internal/adminuser"
	"gymkiosk/internal/attendance"
	"gymkiosk/internal/checkin"
	"gymkiosk/internal/export"
	"gymkiosk/internal/member"
)

// Directory is the member directory surface the handlers use.
type Directory interface {
	ListAll(ctx context.Context) ([]member.Member, error)
	List(ctx context.Context, includeInactive bool) ([]member.Member, error)
	FindByID(ctx context.Context, id string) (*member.Member, error)
	FindByNumber(ctx context.Context, number string) (*member.Member, error)
	Search(ctx context.Context, query string) ([]member.Member, error)
	Create(ctx context.Context, p member.CreateParams) (*member.Member, error)
	Update(ctx context.Context, id string, p member.UpdateParams) (*member.Member, error)
	SetActive(ctx context.Context, id string, active bool) (*member.Member, error)
	Purge(ctx context.Context, id string) (*member.Member, error)
}

// Ledger is the attendance surface the handlers use.
type Ledger interface {
	List(ctx context.Context, f attendance.Filter) ([]attendance.Record, error)
	HasCheckedInToday(ctx context.Context, memberID string) (bool, error)
	Amend(ctx context.Context, id string, p attendance.AmendParams) (*attendance.Record, error)
	Remove(ctx context.Context, id string) (bool, error)
}

// CheckinService runs the check-in orchestration.
type CheckinService interface {
	CheckIn(ctx context.Context, req checkin.Request) (*checkin.Result, error)
}

// Users is the staff account surface the handlers use.
type Users interface {
	List(ctx context.Context) ([]adminuser.User, error)
	Authenticate(ctx context.Context, username, password string) (*adminuser.User, error)
	Create(ctx context.Context, username, password, name, role string) (*adminuser.User, error)
	ChangePassword(ctx context.Context, id, password string) (*adminuser.User, error)
	ToggleActive(ctx context.Context, id string) (*adminuser.User, error)
	ChangeRole(ctx context.Context, id, role string) (*adminuser.User, error)
	Delete(ctx context.Context, id string) (*adminuser.User, error)
}

// AuthConfig is what login needs to mint tokens.
type AuthConfig struct {
	Issuer     string
	SigningKey string
	AccessTTL  time.Duration
}

// Handler holds the route dependencies.
type Handler struct {
	members  Directory
	ledger   Ledger
	checkin  CheckinService
	users    Users
	exporter *export.Exporter
	authCfg  AuthConfig
	loc      *time.Location
}

// New creates a handler.
func New(members Directory, ledger Ledger, ci CheckinService, users Users, exporter *export.Exporter, authCfg AuthConfig, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		members:  members,
		ledger:   ledger,
		checkin:  ci,
		users:    users,
		exporter: exporter,
		authCfg:  authCfg,
		loc:      loc,
	}
}

// Register mounts the API. Kiosk-facing routes stay public; everything the
// admin panel touches goes behind adminAuth.
func (h *Handler) Register(r gin.IRouter, adminAuth gin.HandlerFunc) {
	api := r.Group("/api")

	// Kiosk self-service surface.
	api.POST("/auth/login", h.login)
	api.GET("/members/search", h.searchMembers)
	api.GET("/members/number/:number", h.memberByNumber)
	api.GET("/attendance/verify/:memberID", h.verifyToday)
	api.POST("/attendance/checkin", h.checkIn)

	admin := api.Group("", adminAuth)

	admin.GET("/members", h.listMembers)
	admin.GET("/members/:id", h.memberByID)
	admin.POST("/members", h.createMember)
	admin.PUT("/members/:id", h.updateMember)
	admin.PATCH("/members/:id/activate", h.activateMember)
	admin.PATCH("/members/:id/deactivate", h.deactivateMember)
	admin.DELETE("/members/:id", h.deactivateMember)
	admin.DELETE("/members/:id/permanent", h.purgeMember)

	admin.GET("/attendance", h.listAttendance)
	admin.PUT("/attendance/:id", h.amendAttendance)
	admin.DELETE("/attendance/:id", h.removeAttendance)

	admin.GET("/export/attendance", h.exportAttendance)
	admin.GET("/export/members", h.exportMembers)

	admin.GET("/users", h.listUsers)
	admin.POST("/users", h.createUser)
	admin.PATCH("/users/:id/password", h.changePassword)
	admin.PATCH("/users/:id/toggle-active", h.toggleUserActive)
	admin.PATCH("/users/:id/role", h.changeUserRole)
	admin.DELETE("/users/:id", h.deleteUser)
}
