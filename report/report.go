// Package report renders people for humans and for export
package report

import (
	"encoding/json"
	"strconv"

	"github.com/davecgh/go-spew/spew"
	"github.com/kjk/persons/person"
	"github.com/kjk/persons/store"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/tidwall/pretty"
	"github.com/toon-format/toon-go"
)

// Line is how a person is shown in a listing:
// 1 - Ana Cruz - Female - 1990-05-02
func Line(p *person.Person) string {
	return strconv.Itoa(p.ID) + " - " + p.FullName() + " - " + p.Gender.String() + " - " + person.FormatBirthdate(p.Birthdate)
}

// Found is Line without the id, shown after looking up by id
func Found(p *person.Person) string {
	return p.FullName() + " - " + p.Gender.String() + " - " + person.FormatBirthdate(p.Birthdate)
}

type exported struct {
	ID        int    `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Gender    string `json:"gender"`
	Birthdate string `json:"birthdate"`
}

func toExported(people []*person.Person) []exported {
	res := make([]exported, 0, len(people))
	for _, p := range people {
		res = append(res, exported{
			ID:        p.ID,
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Gender:    p.Gender.String(),
			Birthdate: person.FormatBirthdate(p.Birthdate),
		})
	}
	return res
}

// JSON returns people as an indented JSON array
func JSON(people []*person.Person) ([]byte, error) {
	d, err := json.Marshal(toExported(people))
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(d), nil
}

// TOON returns people in toon format, which is compact for uniform lists
func TOON(people []*person.Person) ([]byte, error) {
	var rows []map[string]any
	for _, e := range toExported(people) {
		rows = append(rows, map[string]any{
			"id":        e.ID,
			"firstName": e.FirstName,
			"lastName":  e.LastName,
			"gender":    e.Gender,
			"birthdate": e.Birthdate,
		})
	}
	return toon.Marshal(map[string]any{"persons": rows})
}

// Diff shows how a person's stored line changed, "" if it didn't
func Diff(before, after *person.Person) (string, error) {
	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(store.FormatLine(before) + "\n"),
		B:        difflib.SplitLines(store.FormatLine(after) + "\n"),
		FromFile: "before",
		ToFile:   "after",
		Context:  0,
	}
	return difflib.GetUnifiedDiffString(d)
}

var dumper = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

// Dump is a verbose, debug-oriented rendering of v
func Dump(v any) string {
	return dumper.Sdump(v)
}
