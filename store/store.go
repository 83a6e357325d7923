package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kjk/persons/log"
	"github.com/kjk/persons/person"
)

const (
	// Header is the first line of the backing file. It's for humans,
	// Load skips the first line without looking at it.
	Header = "ID, FirstName, LastName, Gender, Birthdate"
	// Delimiter separates fields. There's no quoting, so a comma
	// inside a name can't be stored.
	Delimiter = ","

	nFields = 5
)

var (
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMalformedRecord    = errors.New("malformed record")
)

// SkippedLine describes a line dropped by Load
type SkippedLine struct {
	// 1-based, the header is line 1
	LineNo int
	Line   string
	Err    error
}

// Store reads and writes all people to a single text file:
//
//	ID, FirstName, LastName, Gender, Birthdate
//	1,Ana,Cruz,1,1990-05-02
//
// Every Save rewrites the whole file.
type Store struct {
	Path string

	// lines dropped by the last Load
	Skipped []SkippedLine
}

func New(path string) *Store {
	return &Store{
		Path: path,
	}
}

func unavailable(op string, path string, err error) error {
	return fmt.Errorf("%w: %s '%s': %w", ErrStorageUnavailable, op, path, err)
}

// EnsureExists creates an empty backing file (and its directory)
// if it doesn't exist yet. It never touches an existing file.
func (s *Store) EnsureExists() error {
	st, err := os.Stat(s.Path)
	if err == nil {
		if !st.Mode().IsRegular() {
			return unavailable("create", s.Path, fmt.Errorf("not a regular file"))
		}
		return nil
	}
	if !os.IsNotExist(err) {
		return unavailable("stat", s.Path, err)
	}
	if dir := filepath.Dir(s.Path); dir != "" {
		if err = os.MkdirAll(dir, 0755); err != nil {
			return unavailable("create", s.Path, err)
		}
	}
	f, err := os.OpenFile(s.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil
		}
		return unavailable("create", s.Path, err)
	}
	if err = f.Close(); err != nil {
		return unavailable("create", s.Path, err)
	}
	log.Verbosef("created '%s'\n", s.Path)
	return nil
}

// Load reads all people from the backing file, in file order.
// Malformed lines are dropped and remembered in s.Skipped.
func (s *Store) Load() ([]*person.Person, error) {
	d, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, unavailable("read", s.Path, err)
	}
	people, skipped, err := Parse(d)
	if err != nil {
		return nil, unavailable("read", s.Path, err)
	}
	s.Skipped = skipped
	for _, sl := range skipped {
		log.Verbosef("%s:%d: dropped line '%s': %s\n", s.Path, sl.LineNo, sl.Line, sl.Err)
	}
	return people, nil
}

// Save replaces the content of the backing file with people.
// The file is written to a temp file and renamed, so if Save fails
// the previous content is intact.
func (s *Store) Save(people []*person.Person) error {
	d := Marshal(people)
	if err := writeFileAtomically(s.Path, d); err != nil {
		return unavailable("write", s.Path, err)
	}
	log.Event("store.save", "path", s.Path, "count", len(people), "size", len(d))
	return nil
}

// Marshal serializes people in the backing file format.
// Output depends only on people so saving twice gives identical files.
func Marshal(people []*person.Person) []byte {
	var buf bytes.Buffer
	buf.WriteString(Header)
	buf.WriteByte('\n')
	for _, p := range people {
		buf.WriteString(FormatLine(p))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

// Parse is Load without the file. The first line is always treated
// as a header. A line repeating an already seen id is dropped.
// Lines have no length limit.
// The error is only for failures reading d.
func Parse(d []byte) ([]*person.Person, []SkippedLine, error) {
	var people []*person.Person
	var skipped []SkippedLine
	seen := map[int]bool{}
	reader := bufio.NewReader(bytes.NewReader(d))
	lineNo := 0
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			if line == "" {
				break
			}
		} else if err != nil {
			return nil, nil, err
		}
		lineNo++
		if lineNo == 1 {
			continue
		}
		line = strings.TrimSuffix(line, "\n")
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		p, err := ParseLine(line)
		if err == nil && seen[p.ID] {
			err = fmt.Errorf("%w: duplicate id %d", ErrMalformedRecord, p.ID)
		}
		if err != nil {
			skipped = append(skipped, SkippedLine{LineNo: lineNo, Line: line, Err: err})
			continue
		}
		seen[p.ID] = true
		people = append(people, p)
	}
	return people, skipped, nil
}

// FormatLine renders p as id,firstName,lastName,genderCode,birthdate
// Names are written as is. A name with a Delimiter in it produces a line
// Load drops; callers must reject such names.
func FormatLine(p *person.Person) string {
	fields := []string{
		strconv.Itoa(p.ID),
		p.FirstName,
		p.LastName,
		p.Gender.Code(),
		person.FormatBirthdate(p.Birthdate),
	}
	return strings.Join(fields, Delimiter)
}

// ParseLine parses a single data line. Fields are trimmed.
// Trailing empty fields are ignored, so "1,Ana,Cruz,1,1990-05-02,," is
// a valid line.
// All errors wrap ErrMalformedRecord.
func ParseLine(line string) (*person.Person, error) {
	parts := strings.Split(line, Delimiter)
	for len(parts) > nFields && parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	if len(parts) != nFields {
		return nil, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, nFields, len(parts))
	}
	for i, s := range parts {
		parts[i] = strings.TrimSpace(s)
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("%w: invalid id '%s'", ErrMalformedRecord, parts[0])
	}
	gender, err := person.ParseGender(parts[3])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	birthdate, err := person.ParseBirthdate(parts[4])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return person.New(id, parts[1], parts[2], birthdate, gender), nil
}
