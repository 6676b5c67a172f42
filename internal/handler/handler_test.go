package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"gymkiosk/internal/adminuser"
	"gymkiosk/internal/attendance"
	"gymkiosk/internal/auth"
	"gymkiosk/internal/checkin"
	"gymkiosk/internal/export"
	"gymkiosk/internal/member"
)

type fakeDirectory struct {
	byID        map[string]*member.Member
	byNumber    map[string]*member.Member
	updates     []member.UpdateParams
	purged      []string
	searchHits  []member.Member
	listMembers []member.Member
}

func (f *fakeDirectory) ListAll(ctx context.Context) ([]member.Member, error) {
	return f.listMembers, nil
}

func (f *fakeDirectory) List(ctx context.Context, includeInactive bool) ([]member.Member, error) {
	if includeInactive {
		return f.listMembers, nil
	}
	var active []member.Member
	for _, m := range f.listMembers {
		if m.Active {
			active = append(active, m)
		}
	}
	return active, nil
}

func (f *fakeDirectory) FindByID(ctx context.Context, id string) (*member.Member, error) {
	return f.byID[id], nil
}

func (f *fakeDirectory) FindByNumber(ctx context.Context, number string) (*member.Member, error) {
	for _, c := range member.NumberCandidates(number) {
		if m, ok := f.byNumber[c]; ok {
			return m, nil
		}
	}
	return nil, nil
}

func (f *fakeDirectory) Search(ctx context.Context, query string) ([]member.Member, error) {
	return f.searchHits, nil
}

func (f *fakeDirectory) Create(ctx context.Context, p member.CreateParams) (*member.Member, error) {
	if p.Name == "" {
		return nil, member.ErrNameRequired
	}
	if p.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", p.BirthDate); err != nil {
			return nil, member.ErrInvalidBirthDate
		}
	}
	return &member.Member{ID: "new-id", Number: "0001", Name: p.Name, Kind: p.Kind, Active: true}, nil
}

func (f *fakeDirectory) Update(ctx context.Context, id string, p member.UpdateParams) (*member.Member, error) {
	m := f.byID[id]
	if m == nil {
		return nil, nil
	}
	if p.BirthDate != nil && *p.BirthDate != "" {
		if _, err := time.Parse("2006-01-02", *p.BirthDate); err != nil {
			return nil, member.ErrInvalidBirthDate
		}
	}
	f.updates = append(f.updates, p)
	return m, nil
}

func (f *fakeDirectory) SetActive(ctx context.Context, id string, active bool) (*member.Member, error) {
	m := f.byID[id]
	if m == nil {
		return nil, nil
	}
	m.Active = active
	return m, nil
}

func (f *fakeDirectory) Purge(ctx context.Context, id string) (*member.Member, error) {
	m := f.byID[id]
	if m == nil {
		return nil, nil
	}
	f.purged = append(f.purged, id)
	delete(f.byID, id)
	return m, nil
}

type fakeLedger struct {
	records   []attendance.Record
	checkedIn map[string]bool
	removed   []string
}

func (f *fakeLedger) List(ctx context.Context, filter attendance.Filter) ([]attendance.Record, error) {
	return f.records, nil
}

func (f *fakeLedger) HasCheckedInToday(ctx context.Context, memberID string) (bool, error) {
	return f.checkedIn[memberID], nil
}

func (f *fakeLedger) Amend(ctx context.Context, id string, p attendance.AmendParams) (*attendance.Record, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			if p.Name != nil {
				f.records[i].Name = p.Name
			}
			if p.Kind != nil {
				f.records[i].Kind = *p.Kind
			}
			if p.MemberID != nil {
				f.records[i].MemberID = p.MemberID
			}
			return &f.records[i], nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) Remove(ctx context.Context, id string) (bool, error) {
	for i := range f.records {
		if f.records[i].ID == id {
			f.removed = append(f.removed, id)
			f.records = append(f.records[:i], f.records[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

type stubCheckin struct {
	result *checkin.Result
	err    error
	last   checkin.Request
}

func (s *stubCheckin) CheckIn(ctx context.Context, req checkin.Request) (*checkin.Result, error) {
	s.last = req
	return s.result, s.err
}

type fakeUsers struct {
	accounts map[string]string // username -> password
}

func (f *fakeUsers) List(ctx context.Context) ([]adminuser.User, error) { return nil, nil }

func (f *fakeUsers) Authenticate(ctx context.Context, username, password string) (*adminuser.User, error) {
	stored, ok := f.accounts[username]
	if !ok {
		return nil, adminuser.ErrUnknownUser
	}
	if stored != password {
		return nil, adminuser.ErrWrongPassword
	}
	return &adminuser.User{ID: "u1", Username: username, Name: "Staff", Role: "admin", Active: true}, nil
}

func (f *fakeUsers) Create(ctx context.Context, username, password, name, role string) (*adminuser.User, error) {
	if _, ok := f.accounts[username]; ok {
		return nil, adminuser.ErrUsernameTaken
	}
	f.accounts[username] = password
	return &adminuser.User{ID: "u2", Username: username, Name: name, Role: role, Active: true}, nil
}

func (f *fakeUsers) ChangePassword(ctx context.Context, id, password string) (*adminuser.User, error) {
	return &adminuser.User{ID: id}, nil
}

func (f *fakeUsers) ToggleActive(ctx context.Context, id string) (*adminuser.User, error) {
	return &adminuser.User{ID: id}, nil
}

func (f *fakeUsers) ChangeRole(ctx context.Context, id, role string) (*adminuser.User, error) {
	return &adminuser.User{ID: id, Role: role}, nil
}

func (f *fakeUsers) Delete(ctx context.Context, id string) (*adminuser.User, error) {
	if id == "last-admin" {
		return nil, adminuser.ErrLastAdmin
	}
	return &adminuser.User{ID: id}, nil
}

const (
	testKey    = "test-signing-key"
	testIssuer = "gymkiosk-test"
)

type fixture struct {
	router  *gin.Engine
	dir     *fakeDirectory
	ledger  *fakeLedger
	checkin *stubCheckin
	users   *fakeUsers
}

func setup(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fx := &fixture{
		dir: &fakeDirectory{
			byID:     map[string]*member.Member{},
			byNumber: map[string]*member.Member{},
		},
		ledger:  &fakeLedger{checkedIn: map[string]bool{}},
		checkin: &stubCheckin{},
		users:   &fakeUsers{accounts: map[string]string{"admin": "admin123"}},
	}

	h := New(fx.dir, fx.ledger, fx.checkin, fx.users, export.New(time.UTC), AuthConfig{
		Issuer:     testIssuer,
		SigningKey: testKey,
		AccessTTL:  time.Hour,
	}, time.UTC)

	fx.router = gin.New()
	h.Register(fx.router, auth.AdminAuth(testKey, testIssuer))
	return fx
}

func do(r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		b, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminToken(t *testing.T) string {
	t.Helper()
	token, _, err := auth.Issue("u1", "admin", "Staff", "admin", testIssuer, testKey, time.Hour)
	require.NoError(t, err)
	return token
}

func TestLogin(t *testing.T) {
	fx := setup(t)

	w := do(fx.router, "POST", "/api/auth/login", "", gin.H{"username": "admin", "password": "admin123"})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)

	// The issued token opens admin routes.
	w = do(fx.router, "GET", "/api/members", resp.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fx := setup(t)

	w := do(fx.router, "POST", "/api/auth/login", "", gin.H{"username": "admin", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(fx.router, "POST", "/api/auth/login", "", gin.H{"username": "ghost", "password": "x"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(fx.router, "POST", "/api/auth/login", "", gin.H{"username": "admin"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	fx := setup(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/members"},
		{"GET", "/api/attendance"},
		{"GET", "/api/users"},
		{"GET", "/api/export/members"},
	} {
		w := do(fx.router, route.method, route.path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
	}
}

func TestKioskRoutesArePublic(t *testing.T) {
	fx := setup(t)

	w := do(fx.router, "GET", "/api/members/search?q=ana", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(fx.router, "GET", "/api/attendance/verify/M1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestCheckInStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"member_not_found", checkin.ErrMemberNotFound, http.StatusNotFound},
		{"duplicate_day", checkin.ErrAlreadyCheckedIn, http.StatusConflict},
		{"incomplete", checkin.ErrIncompleteData, http.StatusBadRequest},
		{"storage_failure", context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := setup(t)
			fx.checkin.err = tt.err

			w := do(fx.router, "POST", "/api/attendance/checkin", "", gin.H{"member_id": "M1"})
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestCheckInConflictCarriesFlag(t *testing.T) {
	fx := setup(t)
	fx.checkin.err = checkin.ErrAlreadyCheckedIn

	w := do(fx.router, "POST", "/api/attendance/checkin", "", gin.H{"member_id": "M1"})
	require.Equal(t, http.StatusConflict, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, true, resp["already_checked_in"])
}

func TestCheckInConfirmed(t *testing.T) {
	fx := setup(t)
	memberID := "M1"
	fx.checkin.result = &checkin.Result{
		Record: &attendance.Record{ID: "r1", MemberID: &memberID, Date: "2024-06-15"},
		Member: &member.Member{ID: memberID, Name: "Ana"},
	}

	w := do(fx.router, "POST", "/api/attendance/checkin", "", gin.H{"member_id": "M1", "force": true})
	require.Equal(t, http.StatusCreated, w.Code)
	require.True(t, fx.checkin.last.Force)
	require.Equal(t, "M1", fx.checkin.last.MemberID)
}

func TestCheckInVisitorRequest(t *testing.T) {
	fx := setup(t)
	memberID := "new-id"
	fx.checkin.result = &checkin.Result{
		Record: &attendance.Record{ID: "r1", MemberID: &memberID},
		Member: &member.Member{ID: memberID, Name: "Ana", Kind: member.KindVisitor},
	}

	w := do(fx.router, "POST", "/api/attendance/checkin", "", gin.H{"name": "Ana", "kind": "visitor", "photo": "pic"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, fx.checkin.last.Visitor)
	require.Equal(t, "Ana", fx.checkin.last.Visitor.Name)

	// A plain name without the visitor kind is not a visitor registration.
	fx.checkin.result = nil
	fx.checkin.err = checkin.ErrIncompleteData
	w = do(fx.router, "POST", "/api/attendance/checkin", "", gin.H{"name": "Ana"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Nil(t, fx.checkin.last.Visitor)
}

func TestMemberLookupByNumber(t *testing.T) {
	fx := setup(t)
	fx.dir.byNumber["0012"] = &member.Member{ID: "M1", Number: "0012", Name: "Ana", Active: true}

	w := do(fx.router, "GET", "/api/members/number/12", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(fx.router, "GET", "/api/members/number/9999", "", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMember(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)

	w := do(fx.router, "POST", "/api/members", token, gin.H{"name": "Ana Torres"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(fx.router, "POST", "/api/members", token, gin.H{"phone": "555"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateMemberPassesClearSemantics(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)
	fx.dir.byID["M1"] = &member.Member{ID: "M1", Name: "Ana", Active: true}

	// phone: "" must arrive as a non-nil empty pointer (explicit clear), while
	// omitted fields stay nil.
	w := do(fx.router, "PUT", "/api/members/M1", token, gin.H{"phone": ""})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fx.dir.updates, 1)
	require.NotNil(t, fx.dir.updates[0].Phone)
	require.Equal(t, "", *fx.dir.updates[0].Phone)
	require.Nil(t, fx.dir.updates[0].Notes)
	require.Nil(t, fx.dir.updates[0].Name)

	w = do(fx.router, "PUT", "/api/members/ghost", token, gin.H{"phone": ""})
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestInvalidBirthDateRejected(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)
	fx.dir.byID["M1"] = &member.Member{ID: "M1", Name: "Ana", Active: true}

	w := do(fx.router, "POST", "/api/members", token, gin.H{"name": "Ana", "birth_date": "garbage"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	// The edit is rejected outright: the stored date is neither replaced nor
	// cleared.
	w = do(fx.router, "PUT", "/api/members/M1", token, gin.H{"birth_date": "garbage"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, fx.dir.updates)

	// Explicit empty string is still the clear.
	w = do(fx.router, "PUT", "/api/members/M1", token, gin.H{"birth_date": ""})
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, fx.dir.updates, 1)
}

func TestMemberLifecycleRoutes(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)
	fx.dir.byID["M1"] = &member.Member{ID: "M1", Name: "Ana", Active: true}

	w := do(fx.router, "DELETE", "/api/members/M1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, fx.dir.byID["M1"].Active)

	w = do(fx.router, "PATCH", "/api/members/M1/activate", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, fx.dir.byID["M1"].Active)

	w = do(fx.router, "DELETE", "/api/members/M1/permanent", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"M1"}, fx.dir.purged)

	w = do(fx.router, "DELETE", "/api/members/M1/permanent", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAmendAndRemoveAttendance(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)
	name := "Ana"
	fx.ledger.records = []attendance.Record{{ID: "r1", Name: &name, Kind: member.KindMember}}

	w := do(fx.router, "PUT", "/api/attendance/r1", token, gin.H{"kind": "visitor"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, member.KindVisitor, fx.ledger.records[0].Kind)
	// Omitted name kept its value.
	require.Equal(t, "Ana", *fx.ledger.records[0].Name)

	w = do(fx.router, "DELETE", "/api/attendance/r1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(fx.router, "DELETE", "/api/attendance/r1", token, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteLastAdminRejected(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)

	w := do(fx.router, "DELETE", "/api/users/last-admin", token, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExportMembersDownload(t *testing.T) {
	fx := setup(t)
	token := adminToken(t)
	fx.dir.listMembers = []member.Member{
		{ID: "M1", Number: "0001", DisplayNumber: "0001", Name: "Ana", Kind: member.KindMember, Active: true},
		{ID: "M2", Number: "0002", DisplayNumber: "0002", Name: "Luis", Kind: member.KindMember, Active: false},
	}

	w := do(fx.router, "GET", "/api/export/members", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Header().Get("Content-Type"), "spreadsheetml")
	require.Contains(t, w.Header().Get("Content-Disposition"), "members_")
	require.NotZero(t, w.Body.Len())
}
