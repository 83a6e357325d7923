package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert"
	"github.com/kjk/persons/person"
)

func ana() *person.Person {
	return person.New(1, "Ana", "Cruz", person.Date(1990, time.May, 2), person.Female)
}

func testPeople() []*person.Person {
	return []*person.Person{
		ana(),
		person.New(7, "Bob", "Stone", person.Date(1975, time.December, 31), person.Male),
		person.New(3, "Li", "Wei", person.Date(2031, time.January, 1), person.Female),
	}
}

func assertSamePeople(t *testing.T, exp []*person.Person, got []*person.Person) {
	t.Helper()
	assert.Equal(t, len(exp), len(got))
	for i := range exp {
		assert.True(t, exp[i].Equal(got[i]), "%d: exp %+v, got %+v", i, exp[i], got[i])
	}
}

func newTestStore(t *testing.T) *Store {
	return New(filepath.Join(t.TempDir(), "database", "Database.csv"))
}

func TestFormatLine(t *testing.T) {
	assert.Equal(t, "1,Ana,Cruz,1,1990-05-02", FormatLine(ana()))
	p := person.New(12, "Bob", "Stone", person.Date(2001, time.February, 3), person.Male)
	assert.Equal(t, "12,Bob,Stone,0,2001-02-03", FormatLine(p))
}

func TestParseLine(t *testing.T) {
	p, err := ParseLine("1,Ana,Cruz,1,1990-05-02")
	assert.NoError(t, err)
	assert.True(t, ana().Equal(p))

	// fields are trimmed, as written by hand with spaces after commas
	p, err = ParseLine(" 1, Ana , Cruz, 1, 1990-05-02 ")
	assert.NoError(t, err)
	assert.True(t, ana().Equal(p))

	// trailing empty fields are ignored
	for _, s := range []string{"1,Ana,Cruz,1,1990-05-02,", "1,Ana,Cruz,1,1990-05-02,,"} {
		p, err = ParseLine(s)
		assert.NoError(t, err, "%s", s)
		assert.True(t, ana().Equal(p), "%s", s)
	}

	invalid := []string{
		"1,Ana,Cruz",
		"1,Ana,Cruz,1,1990-05-02, ",
		"1,Ana,Cruz,1,1990-05-02,,x",
		",1,Ana,Cruz,1,1990-05-02",
		"1,Ana,Cruz,1,1990-05-02,extra",
		"1,Ana,van,Cruz,1,1990-05-02",
		"x,Ana,Cruz,1,1990-05-02",
		"1,Ana,Cruz,2,1990-05-02",
		"1,Ana,Cruz,1,1990-02-31",
		"1,Ana,Cruz,1,02/05/1990",
	}
	for _, s := range invalid {
		_, err = ParseLine(s)
		assert.True(t, errors.Is(err, ErrMalformedRecord), "%s", s)
	}
}

func TestMarshal(t *testing.T) {
	d := Marshal(testPeople())
	exp := `ID, FirstName, LastName, Gender, Birthdate
1,Ana,Cruz,1,1990-05-02
7,Bob,Stone,0,1975-12-31
3,Li,Wei,1,2031-01-01
`
	assert.Equal(t, exp, string(d))
	assert.Equal(t, Header+"\n", string(Marshal(nil)))
}

func TestRoundTrip(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	people := testPeople()
	assert.NoError(t, s.Save(people))

	got, err := New(s.Path).Load()
	assert.NoError(t, err)
	assertSamePeople(t, people, got)
}

func TestRoundTripPaddedNames(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	c := &person.Collection{}
	assert.NoError(t, c.Insert(person.New(1, " Ana", "Cruz ", person.Date(1990, time.May, 2), person.Female)))
	assert.NoError(t, s.Save(c.Records()))

	got, err := New(s.Path).Load()
	assert.NoError(t, err)
	assertSamePeople(t, c.Records(), got)
	assert.Equal(t, "Ana", got[0].FirstName)
}

func TestSaveIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	people := testPeople()

	assert.NoError(t, s.Save(people))
	d1, err := os.ReadFile(s.Path)
	assert.NoError(t, err)
	assert.NoError(t, s.Save(people))
	d2, err := os.ReadFile(s.Path)
	assert.NoError(t, err)
	assert.Equal(t, d1, d2)
}

func TestSaveDoesNotChangeInput(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	people := testPeople()
	assert.NoError(t, s.Save(people))
	assertSamePeople(t, testPeople(), people)
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(people))

	assert.NoError(t, os.WriteFile(s.Path, []byte(Header+"\n"), 0644))
	people, err = s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(people))

	// header without trailing newline
	assert.NoError(t, os.WriteFile(s.Path, []byte(Header), 0644))
	people, err = s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 0, len(people))
}

func TestLoadSkipsFirstLine(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	// the first line is never data, even if it looks like it
	d := "1,Ana,Cruz,1,1990-05-02\n7,Bob,Stone,0,1975-12-31\n"
	assert.NoError(t, os.WriteFile(s.Path, []byte(d), 0644))
	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(people))
	assert.Equal(t, 7, people[0].ID)
}

func TestLoadDropsMalformedLines(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	d := Header + "\n1,Ana,Cruz,1,1990-05-02\n2,Bob,Stone\n"
	assert.NoError(t, os.WriteFile(s.Path, []byte(d), 0644))

	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(people))
	assert.True(t, ana().Equal(people[0]))
	assert.Equal(t, 1, len(s.Skipped))
	assert.Equal(t, 3, s.Skipped[0].LineNo)
	assert.Equal(t, "2,Bob,Stone", s.Skipped[0].Line)
	assert.True(t, errors.Is(s.Skipped[0].Err, ErrMalformedRecord))
}

func TestLoadDropsBadFieldsAndDuplicates(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	lines := []string{
		Header,
		"1,Ana,Cruz,1,1990-05-02",
		"abc,Bad,Id,0,1990-05-02",
		"",
		"2,Bad,Date,0,1990-13-45",
		"3,Bad,Gender,9,1990-05-02",
		"1,Dup,Id,0,1990-05-02",
		"4,Tom,Lee,0,1988-08-08\r",
	}
	d := strings.Join(lines, "\n")
	assert.NoError(t, os.WriteFile(s.Path, []byte(d), 0644))

	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 2, len(people))
	assert.Equal(t, 1, people[0].ID)
	assert.Equal(t, 4, people[1].ID)
	assert.Equal(t, "Lee", people[1].LastName)
	assert.Equal(t, 4, len(s.Skipped))
	for _, sl := range s.Skipped {
		assert.True(t, errors.Is(sl.Err, ErrMalformedRecord))
	}
}

func TestLoadDropsLongLine(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	long := strings.Repeat("x", 70000)
	lines := []string{
		Header,
		"1,Ana,Cruz,1,1990-05-02",
		long,
		"7,Bob,Stone,0,1975-12-31",
		"8,Long," + long + ",0,1975-12-31",
	}
	d := strings.Join(lines, "\n") + "\n"
	assert.NoError(t, os.WriteFile(s.Path, []byte(d), 0644))

	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 3, len(people))
	assert.Equal(t, 1, people[0].ID)
	assert.Equal(t, 7, people[1].ID)
	assert.Equal(t, 8, people[2].ID)
	assert.Equal(t, long, people[2].LastName)
	assert.Equal(t, 1, len(s.Skipped))
	assert.Equal(t, 3, s.Skipped[0].LineNo)
	assert.True(t, errors.Is(s.Skipped[0].Err, ErrMalformedRecord))

	// saving what was loaded keeps every valid record
	assert.NoError(t, s.Save(people))
	again, err := New(s.Path).Load()
	assert.NoError(t, err)
	assertSamePeople(t, people, again)
}

func TestLoadMissingFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Load()
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestEnsureExists(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())
	st, err := os.Stat(s.Path)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), st.Size())

	// doesn't touch existing content
	assert.NoError(t, s.Save(testPeople()))
	assert.NoError(t, s.EnsureExists())
	people, err := s.Load()
	assert.NoError(t, err)
	assert.Equal(t, 3, len(people))
}

func TestEnsureExistsFails(t *testing.T) {
	dir := t.TempDir()
	// parent "directory" is a file
	parent := filepath.Join(dir, "file.txt")
	assert.NoError(t, os.WriteFile(parent, []byte("x"), 0644))
	s := New(filepath.Join(parent, "Database.csv"))
	err := s.EnsureExists()
	assert.True(t, errors.Is(err, ErrStorageUnavailable))

	// path is a directory
	s = New(dir)
	err = s.EnsureExists()
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

func TestSaveFailureKeepsFile(t *testing.T) {
	dir := t.TempDir()
	// a directory in place of the file makes the final rename fail
	path := filepath.Join(dir, "Database.csv")
	assert.NoError(t, os.MkdirAll(filepath.Join(path, "sub"), 0755))
	s := New(path)
	people := testPeople()
	err := s.Save(people)
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
	assertSamePeople(t, testPeople(), people)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
	assert.True(t, entries[0].IsDir())
}

func TestSaveMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nope", "Database.csv"))
	err := s.Save(testPeople())
	assert.True(t, errors.Is(err, ErrStorageUnavailable))
}

// insert, save, reload, update, save, reload, delete
func TestCollectionScenario(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.EnsureExists())

	c := &person.Collection{}
	assert.NoError(t, c.Insert(ana()))
	assert.NoError(t, s.Save(c.Records()))

	reload := func() *person.Collection {
		people, err := New(s.Path).Load()
		assert.NoError(t, err)
		c, err := person.NewCollection(people...)
		assert.NoError(t, err)
		return c
	}

	c = reload()
	p, ok := c.FindByID(1)
	assert.True(t, ok)
	assert.True(t, ana().Equal(p))

	f := p.Fields()
	f.LastName = "Santos"
	assert.NoError(t, c.Update(1, f))
	assert.NoError(t, s.Save(c.Records()))

	c = reload()
	p, ok = c.FindByID(1)
	assert.True(t, ok)
	assert.Equal(t, "Santos", p.LastName)
	assert.Equal(t, 1, p.ID)
	assert.Equal(t, "Ana", p.FirstName)
	assert.Equal(t, "1990-05-02", person.FormatBirthdate(p.Birthdate))
	assert.Equal(t, person.Female, p.Gender)

	assert.NoError(t, c.Delete(1))
	assert.NoError(t, s.Save(c.Records()))
	_, ok = c.FindByID(1)
	assert.False(t, ok)
	assert.Equal(t, 0, len(c.Records()))

	c = reload()
	assert.Equal(t, 0, c.Len())
}
