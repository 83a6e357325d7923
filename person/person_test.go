package person

import (
	"errors"
	"testing"
	"time"

	"github.com/alecthomas/assert"
)

func TestParseGender(t *testing.T) {
	g, err := ParseGender("0")
	assert.NoError(t, err)
	assert.Equal(t, Male, g)
	assert.Equal(t, "0", g.Code())
	assert.Equal(t, "Male", g.String())

	g, err = ParseGender("1")
	assert.NoError(t, err)
	assert.Equal(t, Female, g)
	assert.Equal(t, "1", g.Code())
	assert.Equal(t, "Female", g.String())

	for _, s := range []string{"", "2", "M", "01", " 0"} {
		_, err = ParseGender(s)
		assert.True(t, errors.Is(err, ErrInvalidGender), "%#v", s)
	}
}

func TestParseBirthdate(t *testing.T) {
	d, err := ParseBirthdate("1990-05-02")
	assert.NoError(t, err)
	assert.Equal(t, 1990, d.Year())
	assert.Equal(t, time.May, d.Month())
	assert.Equal(t, 2, d.Day())
	assert.Equal(t, "1990-05-02", FormatBirthdate(d))
	assert.True(t, d.Equal(Date(1990, time.May, 2)))

	// no range checks
	_, err = ParseBirthdate("2999-12-31")
	assert.NoError(t, err)

	invalid := []string{"", "1990-5-2", "02-05-1990", "1990/05/02", "1990-02-30", "1990-13-01", "abcd-ef-gh"}
	for _, s := range invalid {
		_, err = ParseBirthdate(s)
		assert.True(t, errors.Is(err, ErrInvalidBirthdate), "%#v", s)
	}
}

func TestPersonFieldsAndEqual(t *testing.T) {
	p := New(1, "Ana", "Cruz", Date(1990, time.May, 2), Female)
	assert.Equal(t, "Ana Cruz", p.FullName())

	c := p.Clone()
	assert.True(t, p.Equal(c))
	c.LastName = "Santos"
	assert.False(t, p.Equal(c))
	assert.Equal(t, "Cruz", p.LastName)

	f := p.Fields()
	assert.Equal(t, "Ana", f.FirstName)
	assert.Equal(t, Female, f.Gender)

	var nilPerson *Person
	assert.True(t, nilPerson.Equal(nil))
	assert.False(t, nilPerson.Equal(p))
}
