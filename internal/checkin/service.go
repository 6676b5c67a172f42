// Package checkin is the single entry point for recording a visit. It is the
// only place where directory and ledger rules combine: member lookup, walk-in
// visitor registration, and the once-per-day policy with its override.
package checkin

import (
	"context"
	"errors"

	"gymkiosk/internal/attendance"
	"gymkiosk/internal/member"
)

var (
	// ErrMemberNotFound is returned when the requested member id does not exist.
	ErrMemberNotFound = errors.New("member not found")
	// ErrAlreadyCheckedIn is returned when the member already has a record for
	// today and the request did not force a second one.
	ErrAlreadyCheckedIn = errors.New("already checked in today")
	// ErrIncompleteData is returned when the request names neither an existing
	// member nor a new visitor.
	ErrIncompleteData = errors.New("incomplete check-in data")
)

// Directory is the slice of the member directory the orchestrator needs.
type Directory interface {
	FindByID(ctx context.Context, id string) (*member.Member, error)
	Create(ctx context.Context, p member.CreateParams) (*member.Member, error)
}

// Ledger is the slice of the attendance ledger the orchestrator needs.
type Ledger interface {
	HasCheckedInToday(ctx context.Context, memberID string) (bool, error)
	Record(ctx context.Context, p attendance.RecordParams) (*attendance.Record, error)
}

// Visitor describes a walk-in to register on their first check-in.
type Visitor struct {
	Name  string
	Photo string
}

// Request is one check-in attempt. MemberID names an existing member; Visitor
// registers a new one. MemberID wins when both are set. Force bypasses the
// once-per-day check.
type Request struct {
	MemberID string
	Visitor  *Visitor
	Force    bool
}

// Result is a confirmed check-in: the new ledger record plus the member it
// was snapshotted from.
type Result struct {
	Record *attendance.Record `json:"record"`
	Member *member.Member     `json:"member"`
}

// Service orchestrates check-ins over the directory and the ledger.
type Service struct {
	directory Directory
	ledger    Ledger
}

// NewService creates the orchestrator.
func NewService(directory Directory, ledger Ledger) *Service {
	return &Service{directory: directory, ledger: ledger}
}

// CheckIn resolves the request's subject, applies the duplicate-day policy and
// inserts a snapshot record. The once-per-day rule is deliberately soft: the
// ledger itself accepts any number of same-day rows, only this default path
// blocks them, and Force skips the check entirely. A brand-new visitor's first
// check-in is never a duplicate.
func (s *Service) CheckIn(ctx context.Context, req Request) (*Result, error) {
	var m *member.Member

	switch {
	case req.MemberID != "":
		found, err := s.directory.FindByID(ctx, req.MemberID)
		if err != nil {
			return nil, err
		}
		if found == nil {
			return nil, ErrMemberNotFound
		}
		if !req.Force {
			checked, err := s.ledger.HasCheckedInToday(ctx, found.ID)
			if err != nil {
				return nil, err
			}
			if checked {
				return nil, ErrAlreadyCheckedIn
			}
		}
		m = found

	case req.Visitor != nil && req.Visitor.Name != "":
		created, err := s.directory.Create(ctx, member.CreateParams{
			Name:  req.Visitor.Name,
			Photo: req.Visitor.Photo,
			Kind:  member.KindVisitor,
		})
		if err != nil {
			return nil, err
		}
		m = created

	default:
		return nil, ErrIncompleteData
	}

	name := m.Name
	rec, err := s.ledger.Record(ctx, attendance.RecordParams{
		MemberID: &m.ID,
		Name:     &name,
		Photo:    m.Photo,
		Kind:     m.Kind,
	})
	if err != nil {
		return nil, err
	}
	return &Result{Record: rec, Member: m}, nil
}
