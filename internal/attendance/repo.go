// Package attendance is the check-in ledger. Every date it stamps or compares
// is computed in the club's configured timezone, never the host's local zone,
// so "today" means the same thing wherever the process runs.
package attendance

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"gymkiosk/internal/member"
)

// Record is one check-in event. Name, photo and kind are a snapshot of the
// member at check-in time; Member is the current directory row joined on read
// and nil once the member has been purged.
type Record struct {
	ID        string         `json:"id"`
	MemberID  *string        `json:"member_id"`
	Name      *string        `json:"name"`
	Photo     *string        `json:"photo,omitempty"`
	Kind      string         `json:"kind"`
	Date      string         `json:"date"`
	Timestamp time.Time      `json:"timestamp"`
	Member    *member.Member `json:"member,omitempty"`
}

// Filter selects ledger rows: an exact date wins over a range; both empty
// means everything.
type Filter struct {
	Date string
	From string
	To   string
}

// RecordParams is the snapshot inserted at check-in. Date and timestamp are
// never taken from the caller.
type RecordParams struct {
	MemberID *string
	Name     *string
	Photo    *string
	Kind     string
}

// AmendParams edits an existing record: each field is independently optional
// and an omitted one keeps its stored value. Date, timestamp and photo are
// not editable.
type AmendParams struct {
	MemberID *string
	Name     *string
	Kind     *string
}

// Repository persists the ledger in Postgres.
type Repository struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// NewRepository creates a ledger pinned to the club timezone.
func NewRepository(db *sql.DB, loc *time.Location) *Repository {
	if loc == nil {
		loc = time.UTC
	}
	return &Repository{db: db, loc: loc, now: time.Now}
}

const dateLayout = "2006-01-02"

// Today returns the current organizational date.
func (r *Repository) Today() string {
	return r.now().In(r.loc).Format(dateLayout)
}

const recordColumns = `a.id, a.member_id, a.name, a.photo, a.kind, a.date, a.checked_in_at`

const memberJoin = `
	LEFT JOIN members m ON m.id = a.member_id`

const joinedColumns = recordColumns + `,
	m.id, m.number, m.name, m.birth_date, m.phone, m.emergency_phone, m.notes, m.photo, m.kind, m.active, m.registered_at`

// List returns records matching the filter, newest first, each joined with
// the current member row when one still exists.
func (r *Repository) List(ctx context.Context, f Filter) ([]Record, error) {
	query := `SELECT ` + joinedColumns + ` FROM attendance a` + memberJoin
	args := []any{}
	if f.Date != "" {
		query += fmt.Sprintf(" WHERE a.date = $%d", len(args)+1)
		args = append(args, f.Date)
	} else if f.From != "" && f.To != "" {
		query += fmt.Sprintf(" WHERE a.date >= $%d AND a.date <= $%d", len(args)+1, len(args)+2)
		args = append(args, f.From, f.To)
	}
	query += " ORDER BY a.checked_in_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Record
	for rows.Next() {
		rec, err := scanJoined(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *rec)
	}
	return res, rows.Err()
}

// Get returns a single record joined with its current member, or nil.
func (r *Repository) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+joinedColumns+` FROM attendance a`+memberJoin+` WHERE a.id = $1
	`, id)
	rec, err := scanJoined(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// HasCheckedInToday reports whether the member already has a record for the
// current organizational date.
func (r *Repository) HasCheckedInToday(ctx context.Context, memberID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM attendance WHERE member_id = $1 AND date = $2)
	`, memberID, r.Today()).Scan(&exists)
	return exists, err
}

// Record inserts a check-in. Date and timestamp are stamped server-side in
// the club timezone regardless of anything the caller supplied.
func (r *Repository) Record(ctx context.Context, p RecordParams) (*Record, error) {
	now := r.now().In(r.loc)
	kind := p.Kind
	if kind == "" {
		kind = member.KindMember
	}
	rec := Record{
		ID:        uuid.NewString(),
		MemberID:  p.MemberID,
		Name:      p.Name,
		Photo:     p.Photo,
		Kind:      kind,
		Date:      now.Format(dateLayout),
		Timestamp: now,
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attendance (id, member_id, name, photo, kind, date, checked_in_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, rec.ID, rec.MemberID, rec.Name, rec.Photo, rec.Kind, now.Format(dateLayout), now)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Amend updates member id, name and kind when provided; omitted fields keep
// their stored value. Returns the record rejoined with its member, or nil
// when absent.
func (r *Repository) Amend(ctx context.Context, id string, p AmendParams) (*Record, error) {
	// An explicit empty string is treated as omitted; member_id in particular
	// must stay a real reference or NULL.
	p.MemberID = dropEmpty(p.MemberID)
	p.Name = dropEmpty(p.Name)
	p.Kind = dropEmpty(p.Kind)

	res, err := r.db.ExecContext(ctx, `
		UPDATE attendance
		SET member_id = COALESCE($2, member_id),
		    name = COALESCE($3, name),
		    kind = COALESCE($4, kind)
		WHERE id = $1
	`, id, p.MemberID, p.Name, p.Kind)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	return r.Get(ctx, id)
}

// Remove deletes a record, reporting whether a row existed.
func (r *Repository) Remove(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM attendance WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJoined(row rowScanner) (*Record, error) {
	var rec Record
	var date time.Time
	var mID, mNumber, mName, mKind sql.NullString
	var mBirth sql.NullTime
	var mPhone, mEmergency, mNotes, mPhoto sql.NullString
	var mActive sql.NullBool
	var mRegistered sql.NullTime

	err := row.Scan(&rec.ID, &rec.MemberID, &rec.Name, &rec.Photo, &rec.Kind, &date, &rec.Timestamp,
		&mID, &mNumber, &mName, &mBirth, &mPhone, &mEmergency, &mNotes, &mPhoto, &mKind, &mActive, &mRegistered)
	if err != nil {
		return nil, err
	}
	rec.Date = date.Format(dateLayout)

	if mID.Valid {
		m := member.Member{
			ID:           mID.String,
			Number:       mNumber.String,
			Name:         mName.String,
			Kind:         mKind.String,
			Active:       mActive.Bool,
			RegisteredAt: mRegistered.Time,
		}
		if mBirth.Valid {
			d := mBirth.Time.Format(dateLayout)
			m.BirthDate = &d
		}
		m.Phone = nullString(mPhone)
		m.EmergencyPhone = nullString(mEmergency)
		m.Notes = nullString(mNotes)
		m.Photo = nullString(mPhoto)
		m.DisplayNumber = member.DisplayNumber(m.Number, m.Kind)
		if m.BirthDate != nil {
			m.Age = member.Age(*m.BirthDate, time.Now())
		}
		rec.Member = &m
	}
	return &rec, nil
}

func dropEmpty(s *string) *string {
	if s != nil && *s == "" {
		return nil
	}
	return s
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
