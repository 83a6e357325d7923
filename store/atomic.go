package store

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Some references:
// - https://www.slideshare.net/nan1nan1/eat-my-data
// - https://lwn.net/Articles/457667/

var (
	errCancelled = errors.New("cancelled")

	_ io.Writer = &atomicWriter{}
)

// atomicWriter writes to a temp file in the destination directory and
// renames it over the destination on Close. If anything fails, the temp
// file is removed and the destination keeps its previous content.
type atomicWriter struct {
	dstPath string
	dir     string
	tmpFile *os.File
	tmpPath string
	err     error
}

func newAtomicWriter(path string) (*atomicWriter, error) {
	dir, fName := filepath.Split(path)
	if fName == "" {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	// creating the temp file early means we fail before doing the work
	// if the directory is not writable
	tmpFile, err := os.CreateTemp(dir, fName+".tmp-*")
	if err != nil {
		return nil, err
	}
	// CreateTemp uses 0600, the destination should look like any other file
	if err = tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		_ = os.Remove(tmpFile.Name())
		return nil, err
	}
	return &atomicWriter{
		dstPath: path,
		dir:     dir,
		tmpFile: tmpFile,
		tmpPath: tmpFile.Name(),
	}, nil
}

func (w *atomicWriter) handleError(err error) error {
	if err == nil {
		return nil
	}
	// remember the first error
	if w.err == nil {
		w.err = err
	}
	_ = w.Close()
	return err
}

func (w *atomicWriter) Write(d []byte) (int, error) {
	if w.err != nil {
		return 0, w.err
	}
	n, err := w.tmpFile.Write(d)
	return n, w.handleError(err)
}

// Cancel abandons the write, meant to be used with defer.
// After Close it's a no-op.
func (w *atomicWriter) Cancel() {
	if w.tmpFile == nil {
		return
	}
	w.err = errCancelled
	_ = w.Close()
}

// Close commits the content. Can be called multiple times, returns
// the first error encountered.
func (w *atomicWriter) Close() error {
	if w.tmpFile == nil {
		return w.err
	}
	tmpFile := w.tmpFile
	w.tmpFile = nil

	// https://www.joeshaw.org/dont-defer-close-on-writable-files/
	errSync := tmpFile.Sync()
	errClose := tmpFile.Close()

	didRename := false
	defer func() {
		if !didRename {
			_ = os.Remove(w.tmpPath)
		}
	}()

	if w.err != nil {
		return w.err
	}
	err := errSync
	if err == nil {
		err = errClose
	}
	if err == nil {
		err = os.Rename(w.tmpPath, w.dstPath)
		didRename = err == nil
		// sync the directory so that the rename survives a crash.
		// errors are ignored, it's nice to have
		if fdir, _ := os.Open(w.dir); fdir != nil {
			_ = fdir.Sync()
			_ = fdir.Close()
		}
	}
	w.err = err
	return err
}

// writeFileAtomically replaces content of path with d
func writeFileAtomically(path string, d []byte) error {
	w, err := newAtomicWriter(path)
	if err != nil {
		return err
	}
	defer w.Cancel()
	if _, err = w.Write(d); err != nil {
		return err
	}
	return w.Close()
}
