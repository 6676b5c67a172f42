package member

import (
	"errors"
	"strings"
	"time"
)

// Member kinds.
const (
	KindMember  = "member"
	KindVisitor = "visitor"
)

var (
	// ErrNameRequired is returned when a create or update leaves the member nameless.
	ErrNameRequired = errors.New("name required")
	// ErrNumberConflict is returned when the storage uniqueness constraint on
	// the member number rejects an insert (two concurrent creates raced).
	ErrNumberConflict = errors.New("member number conflict")
	// ErrInvalidBirthDate is returned when a non-empty birth date is not a
	// YYYY-MM-DD value. The stored date is left untouched.
	ErrInvalidBirthDate = errors.New("birth date must be YYYY-MM-DD")
)

// Member is a registered member or a walk-in visitor.
type Member struct {
	ID             string    `json:"id"`
	Number         string    `json:"number"`
	DisplayNumber  string    `json:"display_number"`
	Name           string    `json:"name"`
	BirthDate      *string   `json:"birth_date,omitempty"`
	Age            *int      `json:"age,omitempty"`
	Phone          *string   `json:"phone,omitempty"`
	EmergencyPhone *string   `json:"emergency_phone,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	Photo          *string   `json:"photo,omitempty"`
	Kind           string    `json:"kind"`
	Active         bool      `json:"active"`
	RegisteredAt   time.Time `json:"registered_at"`
}

// CreateParams holds the fields accepted at registration. Empty strings mean
// "not provided" and are stored as NULL.
type CreateParams struct {
	Name           string
	BirthDate      string // YYYY-MM-DD
	Phone          string
	EmergencyPhone string
	Notes          string
	Photo          string
	Kind           string
}

// UpdateParams holds a partial update. A nil field keeps the stored value; a
// pointer to the empty string clears the field (name excepted, which may never
// be empty).
type UpdateParams struct {
	Name           *string
	BirthDate      *string
	Phone          *string
	EmergencyPhone *string
	Notes          *string
	Photo          *string
	Active         *bool
}

const dateLayout = "2006-01-02"

// Age derives whole years elapsed between a YYYY-MM-DD birth date and now,
// with the month/day correction: the birthday itself counts, the day before
// does not. Returns nil for a missing or malformed date.
func Age(birthDate string, now time.Time) *int {
	if birthDate == "" {
		return nil
	}
	born, err := time.Parse(dateLayout, birthDate)
	if err != nil {
		return nil
	}
	years := now.Year() - born.Year()
	if now.Month() < born.Month() || (now.Month() == born.Month() && now.Day() < born.Day()) {
		years--
	}
	return &years
}

// DisplayNumber formats a number for presentation: visitors carry a V- prefix.
func DisplayNumber(number, kind string) string {
	if kind == KindVisitor {
		return "V-" + number
	}
	return number
}

// NumberCandidates expands a kiosk-typed number into the stored forms it may
// match: the raw input, the digits with any V- prefix or punctuation removed,
// and the digits left-padded to the stored four-digit width.
func NumberCandidates(input string) []string {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	seen := map[string]bool{input: true}
	out := []string{input}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, input)
	if digits != "" && !seen[digits] {
		seen[digits] = true
		out = append(out, digits)
	}
	if digits != "" && len(digits) < 4 {
		padded := strings.Repeat("0", 4-len(digits)) + digits
		if !seen[padded] {
			out = append(out, padded)
		}
	}
	return out
}

func (m *Member) derive(now time.Time) {
	m.DisplayNumber = DisplayNumber(m.Number, m.Kind)
	if m.BirthDate != nil {
		m.Age = Age(*m.BirthDate, now)
	} else {
		m.Age = nil
	}
}
