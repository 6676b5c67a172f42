// Package adminuser manages the staff accounts behind the admin panel.
// Passwords are stored and compared as plain text, matching the deployment
// this replaces; hashing is deliberately out of scope.
package adminuser

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// Roles an account may hold.
var allowedRoles = map[string]bool{"admin": true, "member": true, "visitor": true}

var (
	// ErrUnknownUser is returned when no active account matches the username.
	ErrUnknownUser = errors.New("unknown user")
	// ErrWrongPassword is returned when the password does not match.
	ErrWrongPassword = errors.New("wrong password")
	// ErrUsernameTaken is returned when creating a duplicate username.
	ErrUsernameTaken = errors.New("username already exists")
	// ErrInvalidRole is returned for a role outside the allowed set.
	ErrInvalidRole = errors.New("invalid role")
	// ErrPasswordTooShort is returned for passwords under four characters.
	ErrPasswordTooShort = errors.New("password too short")
	// ErrLastAdmin is returned when deleting would leave no active admin.
	ErrLastAdmin = errors.New("cannot remove the last active admin")
)

// User is a staff account. The password never leaves this package.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Active   bool   `json:"active"`

	password string
}

// Repository persists admin users in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns every account ordered by display name.
func (r *Repository) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, username, name, role, active FROM admin_users ORDER BY name ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Active); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Authenticate checks the credentials against an active account.
func (r *Repository) Authenticate(ctx context.Context, username, password string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, username, name, role, active, password
		FROM admin_users
		WHERE username = $1 AND active = TRUE
		LIMIT 1
	`, username)
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Active, &u.password); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	if u.password != password {
		return nil, ErrWrongPassword
	}
	u.password = ""
	return &u, nil
}

// Create adds an account, rejecting duplicate usernames and short passwords.
func (r *Repository) Create(ctx context.Context, username, password, name, role string) (*User, error) {
	if role == "" {
		role = "admin"
	}
	if !allowedRoles[role] {
		return nil, ErrInvalidRole
	}
	if len(password) < 4 {
		return nil, ErrPasswordTooShort
	}

	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM admin_users WHERE username = $1)`, username).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	u := User{ID: uuid.NewString(), Username: username, Name: name, Role: role, Active: true}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_users (id, username, password, name, role, active)
		VALUES ($1,$2,$3,$4,$5,TRUE)
	`, u.ID, u.Username, password, u.Name, u.Role)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ChangePassword resets an account's password. Returns nil when absent.
func (r *Repository) ChangePassword(ctx context.Context, id, password string) (*User, error) {
	if len(password) < 4 {
		return nil, ErrPasswordTooShort
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE admin_users SET password = $2 WHERE id = $1
		RETURNING id, username, name, role, active
	`, id, password)
	return scanUser(row)
}

// ToggleActive flips the active flag. Returns nil when absent.
func (r *Repository) ToggleActive(ctx context.Context, id string) (*User, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE admin_users SET active = NOT active WHERE id = $1
		RETURNING id, username, name, role, active
	`, id)
	return scanUser(row)
}

// ChangeRole assigns a new role from the allowed set. Returns nil when absent.
func (r *Repository) ChangeRole(ctx context.Context, id, role string) (*User, error) {
	if !allowedRoles[role] {
		return nil, ErrInvalidRole
	}
	row := r.db.QueryRowContext(ctx, `
		UPDATE admin_users SET role = $2 WHERE id = $1
		RETURNING id, username, name, role, active
	`, id, role)
	return scanUser(row)
}

// Delete removes an account permanently, refusing to leave the system without
// an active admin. Returns nil, nil when absent.
func (r *Repository) Delete(ctx context.Context, id string) (*User, error) {
	var others int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM admin_users WHERE role = 'admin' AND active = TRUE AND id != $1
	`, id).Scan(&others)
	if err != nil {
		return nil, err
	}
	if others == 0 {
		return nil, ErrLastAdmin
	}

	row := r.db.QueryRowContext(ctx, `
		DELETE FROM admin_users WHERE id = $1
		RETURNING id, username, name, role, active
	`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Username, &u.Name, &u.Role, &u.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
