package person

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

// DateFormat is the layout of a birthdate, both on disk and when typed in
const DateFormat = "2006-01-02"

var (
	ErrInvalidGender    = errors.New("invalid gender code")
	ErrInvalidBirthdate = errors.New("invalid birthdate")

	birthdateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type Gender int

const (
	Male Gender = iota
	Female
)

// ParseGender maps external code "0" to Male and "1" to Female
func ParseGender(code string) (Gender, error) {
	switch code {
	case "0":
		return Male, nil
	case "1":
		return Female, nil
	}
	return Male, fmt.Errorf("%w: '%s'", ErrInvalidGender, code)
}

// Code returns the value written to the backing file
func (g Gender) Code() string {
	if g == Female {
		return "1"
	}
	return "0"
}

func (g Gender) String() string {
	if g == Female {
		return "Female"
	}
	return "Male"
}

// ParseBirthdate parses YYYY-MM-DD. Unlike time.Parse alone it rejects
// non-padded forms like 1990-5-2 so that the file stays uniform.
// There are no range checks, a date in the future is fine.
func ParseBirthdate(s string) (time.Time, error) {
	if !birthdateRe.MatchString(s) {
		return time.Time{}, fmt.Errorf("%w: '%s' is not in YYYY-MM-DD format", ErrInvalidBirthdate, s)
	}
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrInvalidBirthdate, err)
	}
	return t, nil
}

func FormatBirthdate(t time.Time) string {
	return t.Format(DateFormat)
}

// Date returns a birthdate for a given day, normalized to UTC midnight
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Person is a single tracked individual.
// Names must not contain a comma and, once in a Collection, have no
// leading or trailing whitespace.
type Person struct {
	ID        int
	FirstName string
	LastName  string
	Birthdate time.Time
	Gender    Gender
}

// Fields are the mutable parts of a Person, i.e. everything but ID
type Fields struct {
	FirstName string
	LastName  string
	Birthdate time.Time
	Gender    Gender
}

// New creates a Person. It's not part of any collection until inserted.
func New(id int, firstName, lastName string, birthdate time.Time, gender Gender) *Person {
	return &Person{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		Birthdate: birthdate,
		Gender:    gender,
	}
}

// Fields returns a copy of mutable fields, handy as a starting point for Update
func (p *Person) Fields() Fields {
	return Fields{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Birthdate: p.Birthdate,
		Gender:    p.Gender,
	}
}

func (p *Person) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Equal compares all fields. Birthdates are compared as calendar days
func (p *Person) Equal(o *Person) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.ID == o.ID &&
		p.FirstName == o.FirstName &&
		p.LastName == o.LastName &&
		p.Gender == o.Gender &&
		FormatBirthdate(p.Birthdate) == FormatBirthdate(o.Birthdate)
}

func (p *Person) Clone() *Person {
	c := *p
	return &c
}
