package person

import (
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
)

var (
	ErrDuplicateID = errors.New("id is already used")
	ErrNotFound    = errors.New("id not found")
)

// Collection is the authoritative, ordered set of people, keyed by ID.
// Lookups are a linear scan; it's meant for small lists and is not
// safe for concurrent use.
type Collection struct {
	people []*Person
}

// NewCollection creates a collection from already loaded people,
// preserving their order
func NewCollection(people ...*Person) (*Collection, error) {
	c := &Collection{}
	for _, p := range people {
		if err := c.Insert(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collection) indexOf(id int) int {
	return slices.IndexFunc(c.people, func(p *Person) bool {
		return p.ID == id
	})
}

// Insert appends p. Returns ErrDuplicateID, without changing anything,
// if a person with the same ID is already present.
// Names are trimmed of surrounding whitespace, like the backing file does.
func (c *Collection) Insert(p *Person) error {
	if p == nil {
		return errors.New("person is nil")
	}
	if c.indexOf(p.ID) >= 0 {
		return fmt.Errorf("%w: %d", ErrDuplicateID, p.ID)
	}
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	c.people = append(c.people, p)
	return nil
}

// FindByID returns false if there's no person with this id
func (c *Collection) FindByID(id int) (*Person, bool) {
	idx := c.indexOf(id)
	if idx < 0 {
		return nil, false
	}
	return c.people[idx], true
}

// Update changes everything but the ID of the person in place
func (c *Collection) Update(id int, f Fields) error {
	p, ok := c.FindByID(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	p.FirstName = strings.TrimSpace(f.FirstName)
	p.LastName = strings.TrimSpace(f.LastName)
	p.Birthdate = f.Birthdate
	p.Gender = f.Gender
	return nil
}

// Delete removes the person unconditionally. Asking the user for
// confirmation is up to the caller.
func (c *Collection) Delete(id int) error {
	idx := c.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	c.people = slices.Delete(c.people, idx, idx+1)
	return nil
}

// All iterates people in insertion order
func (c *Collection) All() iter.Seq[*Person] {
	return func(yield func(*Person) bool) {
		for _, p := range c.people {
			if !yield(p) {
				return
			}
		}
	}
}

// Records returns a copy of the list, in insertion order.
// The people themselves are shared with the collection.
func (c *Collection) Records() []*Person {
	return append([]*Person{}, c.people...)
}

func (c *Collection) Len() int {
	return len(c.people)
}
