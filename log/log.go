// Package log records what the persons program does. Under the
// configured directory it keeps three daily files: log/ for messages,
// errors/ for failures with their callstack and events/ for changes to
// the list (person.insert, store.save, backup.upload, ...). Events can
// also be forwarded to a remote collector.
package log

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/carlmjohnson/requests"
	"github.com/toon-format/toon-go"
)

const (
	// how long we stop sending events to EventsURL after a failed POST.
	// doesn't affect logging to files
	throttleTimeout = time.Second * 15
	postTimeout     = time.Second * 10
)

var (
	log       *WriteDaily
	errorsLog *WriteDaily
	eventsLog *WriteDaily

	out io.Writer = os.Stdout

	eventsURL     string
	apiKey        string
	throttleUntil time.Time

	// if true, Verbosef() will log messages
	Verbose bool
)

// WriteDaily appends to <Dir>/<YYYY-MM-DD>.txt and switches to a new
// file when the UTC day changes
type WriteDaily struct {
	Dir         string
	currentDate int // YYYYMMDD format
	file        *os.File
	mu          sync.Mutex
}

func NewWriteDaily(dir string) *WriteDaily {
	return &WriteDaily{
		Dir: dir,
	}
}

// WriteString is Write for strings. nil w is a no-op
func (w *WriteDaily) WriteString(s string) error {
	return w.Write([]byte(s))
}

// dayFromTime converts a time.Time to YYYYMMDD integer format
func dayFromTime(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Writer returns today's file, opening it (and closing yesterday's)
// as needed
func (w *WriteDaily) Writer() (io.Writer, error) {
	if w == nil {
		return nil, fmt.Errorf("w is nil")
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	now := time.Now().UTC()
	today := dayFromTime(now)

	if w.file != nil && w.currentDate != today {
		if err := w.close(); err != nil {
			return nil, err
		}
	}

	if w.file == nil {
		filename := filepath.Join(w.Dir, now.Format("2006-01-02")+".txt")
		if err := os.MkdirAll(w.Dir, 0755); err != nil {
			return nil, err
		}
		f, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		w.file = f
		w.currentDate = today
	}
	return w.file, nil
}

// Write appends d to today's file. nil w is a no-op, which is how
// logging is turned off when there's no log directory
func (w *WriteDaily) Write(d []byte) error {
	if w == nil {
		return nil
	}
	wr, err := w.Writer()
	if err != nil {
		return err
	}
	_, err = wr.Write(d)
	return err
}

func (w *WriteDaily) close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.currentDate = 0
	return err
}

// Close closes the current file. nil w is a no-op
func (w *WriteDaily) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.close()
}

// Sync flushes the current file. nil w is a no-op
func (w *WriteDaily) Sync() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file != nil {
		return w.file.Sync()
	}
	return nil
}

type Config struct {
	// directory where log files are stored, each log type (regular, errors,
	// events) has its own subdirectory
	// if empty, nothing is written to files
	Dir string
	// where Logf() echoes messages. nil means os.Stdout
	Out io.Writer
	// if set, events are also POSTed there (toon encoded)
	EventsURL string
	APIKey    string
}

// Init initializes the logging system
func Init(config *Config) {
	Close()
	out = os.Stdout
	if config.Out != nil {
		out = config.Out
	}
	eventsURL = config.EventsURL
	apiKey = config.APIKey
	throttleUntil = time.Time{}
	if config.Dir == "" {
		return
	}
	dir := config.Dir
	log = NewWriteDaily(filepath.Join(dir, "log"))
	errorsLog = NewWriteDaily(filepath.Join(dir, "errors"))
	// files are created lazily so if there are no events, it's a no-op
	eventsLog = NewWriteDaily(filepath.Join(dir, "events"))
}

// CloseWriteDaily flushes and closes *wd and sets it to nil
func CloseWriteDaily(wd **WriteDaily) {
	if *wd == nil {
		return
	}
	_ = (*wd).Sync()
	_ = (*wd).Close()
	*wd = nil
}

func Close() {
	CloseWriteDaily(&log)
	CloseWriteDaily(&errorsLog)
	CloseWriteDaily(&eventsLog)
}

func Logf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	fmt.Fprint(out, s)
	_ = log.WriteString(s)
}

func Verbosef(format string, args ...any) {
	if !Verbose {
		return
	}
	Logf(format, args...)
}

func GetCallstackFrames(skip int) []string {
	var callers [32]uintptr
	n := runtime.Callers(skip+1, callers[:])
	frames := runtime.CallersFrames(callers[:n])
	var cs []string
	for {
		frame, more := frames.Next()
		if frame.File != "" {
			cs = append(cs, frame.File+":"+strconv.Itoa(frame.Line))
		}
		if !more {
			break
		}
	}
	return cs
}

func GetCallstack(skip int) string {
	frames := GetCallstackFrames(skip + 1)
	return strings.Join(frames, "\n")
}

// Errorf logs an error message along with the callstack
// it goes to both regular and errors log
func Errorf(s string, args ...any) {
	if len(args) > 0 {
		s = fmt.Sprintf(s, args...)
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	cs := GetCallstack(2)
	Logf("%s", s)
	_ = errorsLog.WriteString(s + cs + "\n")
}

// if err != nil, log and return true
// IfErrf(err) => logs err.Error()
// IfErrf(err, "error is: %v", err) => logs message formatted
func IfErrf(err error, a ...any) bool {
	if err == nil {
		return false
	}
	if len(a) == 0 {
		Errorf("%s", err.Error())
		return true
	}
	s, ok := a[0].(string)
	if !ok {
		s = fmt.Sprintf("%s", a[0])
	}
	if len(a) > 1 {
		s = fmt.Sprintf(s, a[1:]...)
	}
	Errorf("%s", s)
	return true
}

func panicIf(cond bool, msg string) {
	if cond {
		panic(msg)
	}
}

// simpleTypeToStr converts simple types to string
// panics if v is of complex type
func simpleTypeToStr(v any) string {
	kind := reflect.TypeOf(v).Kind()
	switch kind {
	case reflect.Array, reflect.Slice, reflect.Struct, reflect.Map, reflect.Chan, reflect.Interface, reflect.Pointer:
		panic(fmt.Sprintf("toStr: value is of kind %v", kind))
	case reflect.String:
		return v.(string)
	}
	return fmt.Sprintf("%v", v)
}

// MarshalEvent formats an event as a header line followed by toon encoded
// key/value pairs:
//
//	--- person.insert 1700000000000
//	id: 1
func MarshalEvent(name string, t time.Time, vals ...any) ([]byte, error) {
	n := len(vals)
	panicIf(n%2 != 0, "vals must be key/value pairs")
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "--- %s %d\n", name, t.UTC().UnixMilli())
	if n == 0 {
		return buf.Bytes(), nil
	}
	m := map[string]any{}
	for i := 0; i < n; i += 2 {
		k := simpleTypeToStr(vals[i])
		m[k] = vals[i+1]
	}
	d, err := toon.Marshal(m)
	if err != nil {
		return nil, err
	}
	buf.Write(d)
	if !bytes.HasSuffix(d, []byte("\n")) {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Event records a named event with key/value pairs in the events log
// and, if configured, sends it to EventsURL
func Event(name string, vals ...any) {
	d, err := MarshalEvent(name, time.Now(), vals...)
	if err != nil {
		Errorf("log.Event('%s'): %s", name, err)
		return
	}
	_ = eventsLog.Write(d)
	postEvent(d)
}

func postEvent(d []byte) {
	if eventsURL == "" {
		return
	}
	if time.Now().Before(throttleUntil) {
		return
	}
	r := requests.
		URL(eventsURL).
		BodyBytes(d).
		ContentType("text/plain; charset=utf-8")
	if apiKey != "" {
		r = r.Header("X-Api-Key", apiKey)
	}
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	err := r.Fetch(ctx)
	cancel()
	if err != nil {
		Logf("POST %s failed: %v, will throttle for %s\n", eventsURL, err, throttleTimeout)
		throttleUntil = time.Now().Add(throttleTimeout)
	}
}
