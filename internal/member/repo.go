package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Repository persists members in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const memberColumns = `id, number, name, birth_date, phone, emergency_phone, notes, photo, kind, active, registered_at`

// ListAll returns every member, active or not, ordered by name.
func (r *Repository) ListAll(ctx context.Context) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+` FROM members ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// List returns members ordered by numeric number for roster views. Inactive
// members are included only when asked for.
func (r *Repository) List(ctx context.Context, includeInactive bool) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE ($1::boolean = TRUE) OR (active = TRUE)
		ORDER BY CAST(number AS INTEGER) ASC
	`, includeInactive)
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// FindByID returns a member by id, or nil when absent.
func (r *Repository) FindByID(ctx context.Context, id string) (*Member, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+` FROM members WHERE id = $1
	`, id)
	return scanMember(row)
}

// FindByNumber returns an active member whose number matches the input in raw
// or display form, or nil when absent.
func (r *Repository) FindByNumber(ctx context.Context, number string) (*Member, error) {
	candidates := NumberCandidates(number)
	if len(candidates) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(candidates))
	args := make([]any, len(candidates))
	for i, c := range candidates {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = c
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE active = TRUE AND number IN (`+strings.Join(placeholders, ",")+`)
		LIMIT 1
	`, args...)
	return scanMember(row)
}

// Search returns up to 10 active members whose name contains the query,
// case-insensitively.
func (r *Repository) Search(ctx context.Context, query string) ([]Member, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+memberColumns+`
		FROM members
		WHERE active = TRUE AND LOWER(name) LIKE $1
		ORDER BY name ASC
		LIMIT 10
	`, "%"+strings.ToLower(strings.TrimSpace(query))+"%")
	if err != nil {
		return nil, err
	}
	return collectMembers(rows)
}

// Create registers a member with the next sequential number, zero-padded to
// four digits. The read-max-then-insert is not serialized here; the unique
// constraint on number rejects the loser of a race as ErrNumberConflict.
func (r *Repository) Create(ctx context.Context, p CreateParams) (*Member, error) {
	if strings.TrimSpace(p.Name) == "" {
		return nil, ErrNameRequired
	}
	kind := p.Kind
	if kind == "" {
		kind = KindMember
	}

	birth, err := checkDate(nullIfEmpty(p.BirthDate))
	if err != nil {
		return nil, err
	}

	var max sql.NullInt64
	err = r.db.QueryRowContext(ctx, `
		SELECT MAX(CAST(number AS INTEGER)) FROM members WHERE number ~ '^[0-9]+$'
	`).Scan(&max)
	if err != nil {
		return nil, err
	}

	m := Member{
		ID:             uuid.NewString(),
		Number:         nextNumber(max),
		Name:           strings.TrimSpace(p.Name),
		BirthDate:      birth,
		Phone:          nullIfEmpty(p.Phone),
		EmergencyPhone: nullIfEmpty(p.EmergencyPhone),
		Notes:          nullIfEmpty(p.Notes),
		Photo:          nullIfEmpty(p.Photo),
		Kind:           kind,
		Active:         true,
	}

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO members (id, number, name, birth_date, phone, emergency_phone, notes, photo, kind, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE)
		RETURNING registered_at
	`, m.ID, m.Number, m.Name, birthArg(m.BirthDate), m.Phone, m.EmergencyPhone, m.Notes, m.Photo, m.Kind)
	if err := row.Scan(&m.RegisteredAt); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrNumberConflict
		}
		return nil, err
	}
	m.derive(time.Now())
	return &m, nil
}

// Update applies a partial edit: nil fields keep their stored value, empty
// strings clear the nullable ones. Age is re-derived whenever the birth date
// changes. Returns nil when the member does not exist.
func (r *Repository) Update(ctx context.Context, id string, p UpdateParams) (*Member, error) {
	existing, err := r.FindByID(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}

	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return nil, ErrNameRequired
		}
		existing.Name = strings.TrimSpace(*p.Name)
	}
	if p.BirthDate != nil {
		birth, err := checkDate(nullIfEmpty(*p.BirthDate))
		if err != nil {
			return nil, err
		}
		existing.BirthDate = birth
	}
	existing.Phone = mergeNullable(p.Phone, existing.Phone)
	existing.EmergencyPhone = mergeNullable(p.EmergencyPhone, existing.EmergencyPhone)
	existing.Notes = mergeNullable(p.Notes, existing.Notes)
	existing.Photo = mergeNullable(p.Photo, existing.Photo)
	if p.Active != nil {
		existing.Active = *p.Active
	}

	_, err = r.db.ExecContext(ctx, `
		UPDATE members
		SET name = $2,
		    birth_date = $3,
		    phone = $4,
		    emergency_phone = $5,
		    notes = $6,
		    photo = $7,
		    active = $8
		WHERE id = $1
	`, id, existing.Name, birthArg(existing.BirthDate), existing.Phone,
		existing.EmergencyPhone, existing.Notes, existing.Photo, existing.Active)
	if err != nil {
		return nil, err
	}
	existing.derive(time.Now())
	return existing, nil
}

// SetActive flips the soft-delete flag. Returns nil when the member does not exist.
func (r *Repository) SetActive(ctx context.Context, id string, active bool) (*Member, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE members SET active = $2 WHERE id = $1
		RETURNING `+memberColumns+`
	`, id, active)
	return scanMember(row)
}

// Purge permanently deletes a member in one transaction: attendance rows are
// detached first so history keeps its counts, then the row goes. Returns a
// snapshot of the deleted member, or nil when absent.
func (r *Repository) Purge(ctx context.Context, id string) (*Member, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = $1`, id)
	snapshot, err := scanMember(row)
	if err != nil || snapshot == nil {
		return nil, err
	}

	if err := detachAndDelete(ctx, tx, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (*Member, error) {
	var m Member
	var birth sql.NullTime
	err := row.Scan(&m.ID, &m.Number, &m.Name, &birth, &m.Phone, &m.EmergencyPhone,
		&m.Notes, &m.Photo, &m.Kind, &m.Active, &m.RegisteredAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if birth.Valid {
		d := birth.Time.Format(dateLayout)
		m.BirthDate = &d
	}
	m.derive(time.Now())
	return &m, nil
}

func collectMembers(rows *sql.Rows) ([]Member, error) {
	defer rows.Close()
	var res []Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *m)
	}
	return res, rows.Err()
}

func nullIfEmpty(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func mergeNullable(incoming, current *string) *string {
	if incoming == nil {
		return current
	}
	return nullIfEmpty(*incoming)
}

// nextNumber allocates the next sequential member number, zero-padded to four
// digits. An empty table starts at 0001.
func nextNumber(max sql.NullInt64) string {
	return fmt.Sprintf("%04d", max.Int64+1)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// detachAndDelete points a member's attendance rows at NULL before deleting
// the member, in that order, so the foreign key never dangles mid-transaction.
func detachAndDelete(ctx context.Context, e execer, id string) error {
	if _, err := e.ExecContext(ctx, `UPDATE attendance SET member_id = NULL WHERE member_id = $1`, id); err != nil {
		return err
	}
	_, err := e.ExecContext(ctx, `DELETE FROM members WHERE id = $1`, id)
	return err
}

// checkDate validates a YYYY-MM-DD birth date. A value that does not parse is
// rejected rather than stored or used to clear the column.
func checkDate(birth *string) (*string, error) {
	if birth == nil {
		return nil, nil
	}
	if _, err := time.Parse(dateLayout, *birth); err != nil {
		return nil, ErrInvalidBirthDate
	}
	return birth, nil
}

// birthArg converts the YYYY-MM-DD string to a DATE parameter.
func birthArg(birth *string) any {
	if birth == nil {
		return nil
	}
	t, err := time.Parse(dateLayout, *birth)
	if err != nil {
		return nil
	}
	return t
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
