// Package shell is the interactive, menu driven front-end.
// It owns prompting, input validation and confirmations and calls
// into the collection and store only with validated values.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/kjk/persons/log"
	"github.com/kjk/persons/person"
	"github.com/kjk/persons/report"
	"github.com/kjk/persons/store"
)

const separator = "=========================================================="

const (
	optAdd    = 1
	optShow   = 2
	optUpdate = 3
	optDelete = 4
	optFind   = 5
	optExport = 6
	optTOON   = 7
	optExit   = 99
)

var digitsRe = regexp.MustCompile(`^\d+$`)

type Shell struct {
	app     *App
	scanner *bufio.Scanner
	out     io.Writer
	ctx     context.Context
}

func New(in io.Reader, out io.Writer, app *App) *Shell {
	return &Shell{
		app:     app,
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func (s *Shell) println(msg string) {
	fmt.Fprintln(s.out, msg)
}

// prompt prints msg and reads a trimmed line. ok is false at end of input.
func (s *Shell) prompt(msg string) (line string, ok bool) {
	s.printf("%s", msg)
	if !s.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(s.scanner.Text()), true
}

func parseID(s string) (int, bool) {
	if !digitsRe.MatchString(s) {
		return 0, false
	}
	id, err := strconv.Atoi(s)
	return id, err == nil
}

// validName is false for names the backing file can't hold
func validName(name string) bool {
	return !strings.Contains(name, store.Delimiter)
}

func (s *Shell) printMenu() {
	s.println(separator)
	s.println("(1) Add Person")
	s.println("(2) Show All Persons")
	s.println("(3) Update Person")
	s.println("(4) Delete Person")
	s.println("(5) Find Person")
	s.println("(6) Export as JSON")
	s.println("(7) Export as TOON")
	s.println("(99) Exit Program")
	s.println(separator)
}

// Run shows the menu until the user exits or input ends.
// Errors are reported to the user and don't stop the loop.
func (s *Shell) Run(ctx context.Context) error {
	s.ctx = ctx
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.printMenu()
		line, ok := s.prompt("Choose option: ")
		if !ok {
			s.println("")
			return s.scanner.Err()
		}
		option, valid := parseID(line)
		if !valid {
			s.println("Invalid input. Try again.")
			continue
		}
		// each handler returns false at end of input
		more := true
		switch option {
		case optExit:
			s.println("Thank you for using this application!")
			return nil
		case optAdd:
			more = s.add()
		case optShow:
			s.show()
		case optUpdate:
			more = s.update()
		case optDelete:
			more = s.delete()
		case optFind:
			more = s.find()
		case optExport:
			s.export(report.JSON)
		case optTOON:
			s.export(report.TOON)
		default:
			s.println("Invalid input. Try again.")
		}
		if !more {
			s.println("")
			return s.scanner.Err()
		}
	}
}

func (s *Shell) save() {
	err := s.app.Save(s.ctx)
	if err != nil {
		s.printf("Error saving list: %s\n", err)
		log.Errorf("save failed: %s", err)
	}
}

func (s *Shell) readBirthdate(msg string, current string) (string, bool, bool) {
	line, ok := s.prompt(msg)
	if !ok {
		return "", false, false
	}
	if line == "" && current != "" {
		line = current
	}
	if _, err := person.ParseBirthdate(line); err != nil {
		s.println("Invalid birthdate. Try again. Please follow the format YYYY-MM-DD.")
		return "", false, true
	}
	return line, true, true
}

func (s *Shell) add() bool {
	s.println("Adding a new person...")
	idStr, ok := s.prompt("Enter ID: ")
	if !ok {
		return false
	}
	id, valid := parseID(idStr)
	if !valid {
		s.println("Invalid ID. Try again.")
		return true
	}
	if _, exists := s.app.People.FindByID(id); exists {
		s.println("ID is already used. Try again.")
		return true
	}
	firstName, ok := s.prompt("First Name: ")
	if !ok {
		return false
	}
	if !validName(firstName) {
		s.println("Invalid input. Try again.")
		return true
	}
	lastName, ok := s.prompt("Last Name: ")
	if !ok {
		return false
	}
	if !validName(lastName) {
		s.println("Invalid input. Try again.")
		return true
	}
	birthdateStr, valid, ok := s.readBirthdate("Birthdate (YYYY-MM-DD): ", "")
	if !ok {
		return false
	}
	if !valid {
		return true
	}
	genderStr, ok := s.prompt("Gender (0 - Male, 1 - Female): ")
	if !ok {
		return false
	}
	gender, err := person.ParseGender(genderStr)
	if err != nil {
		s.println("Invalid input. Try again.")
		return true
	}
	birthdate, _ := person.ParseBirthdate(birthdateStr)
	p := person.New(id, firstName, lastName, birthdate, gender)
	if err = s.app.People.Insert(p); err != nil {
		s.printf("%s. Try again.\n", err)
		return true
	}
	s.println("PERSON ADDED!")
	log.Event("person.insert", "id", id)
	s.save()
	return true
}

func (s *Shell) show() {
	if s.app.People.Len() == 0 {
		s.println("No persons added.")
		return
	}
	s.println("Showing person list... ")
	for p := range s.app.People.All() {
		s.println(report.Line(p))
	}
}

// readExistingID asks for an id and looks it up. Returns nil person if
// the input was invalid or the id doesn't exist (the user was told).
func (s *Shell) readExistingID(msg string, notFoundMsg string) (*person.Person, bool) {
	idStr, ok := s.prompt(msg)
	if !ok {
		return nil, false
	}
	id, valid := parseID(idStr)
	if !valid {
		s.println("Invalid input. Try again.")
		return nil, true
	}
	p, found := s.app.People.FindByID(id)
	if !found {
		s.println(notFoundMsg)
		return nil, true
	}
	return p, true
}

// update asks for all fields, showing current values. An empty answer
// keeps the current value.
func (s *Shell) update() bool {
	p, ok := s.readExistingID("Enter Person ID to update: ", "ID not found. Try again.")
	if p == nil {
		return ok
	}
	before := p.Clone()
	f := p.Fields()

	firstName, ok := s.prompt(fmt.Sprintf("Enter new first name (%s): ", p.FirstName))
	if !ok {
		return false
	}
	if !validName(firstName) {
		s.println("Invalid input. Try again.")
		return true
	}
	if firstName != "" {
		f.FirstName = firstName
	}
	lastName, ok := s.prompt(fmt.Sprintf("Enter new last name (%s): ", p.LastName))
	if !ok {
		return false
	}
	if !validName(lastName) {
		s.println("Invalid input. Try again.")
		return true
	}
	if lastName != "" {
		f.LastName = lastName
	}
	genderStr, ok := s.prompt(fmt.Sprintf("Enter new gender (%s) (0 - Male, 1 - Female): ", p.Gender))
	if !ok {
		return false
	}
	if genderStr != "" {
		gender, err := person.ParseGender(genderStr)
		if err != nil {
			s.println("Invalid input. Try again.")
			return true
		}
		f.Gender = gender
	}
	current := person.FormatBirthdate(p.Birthdate)
	birthdateStr, valid, ok := s.readBirthdate(fmt.Sprintf("Enter new birthdate (%s): ", current), current)
	if !ok {
		return false
	}
	if !valid {
		return true
	}
	f.Birthdate, _ = person.ParseBirthdate(birthdateStr)

	if err := s.app.People.Update(p.ID, f); err != nil {
		s.printf("%s. Try again.\n", err)
		return true
	}
	s.println("PERSON UPDATED!")
	if diff, err := report.Diff(before, p); err == nil && diff != "" {
		log.Verbosef("%s", diff)
	}
	log.Event("person.update", "id", p.ID)
	s.save()
	return true
}

func (s *Shell) delete() bool {
	p, ok := s.readExistingID("Enter Person ID to delete: ", "ID not found. Try again.")
	if p == nil {
		return ok
	}
	answer, ok := s.prompt(fmt.Sprintf("Confirm deletion of %s (Y/N)? ", p.FullName()))
	if !ok {
		return false
	}
	switch answer {
	case "Y", "y":
		if err := s.app.People.Delete(p.ID); err != nil {
			s.printf("%s. Try again.\n", err)
			return true
		}
		s.println("PERSON DELETED!")
		log.Event("person.delete", "id", p.ID)
		s.save()
	case "N", "n":
		s.println("Deletion cancelled. Returning to main menu...")
	default:
		s.println("Invalid input. Try again.")
	}
	return true
}

func (s *Shell) find() bool {
	p, ok := s.readExistingID("Enter Person ID to find: ", "Person not found. Try again.")
	if p == nil {
		return ok
	}
	s.println("Person found: ")
	s.println(report.Found(p))
	log.Verbosef("%s", report.Dump(p))
	return true
}

func (s *Shell) export(render func([]*person.Person) ([]byte, error)) {
	d, err := render(s.app.People.Records())
	if err != nil {
		s.printf("Error exporting list: %s\n", err)
		return
	}
	s.printf("%s", d)
	if len(d) > 0 && d[len(d)-1] != '\n' {
		s.println("")
	}
}
