// Package backup uploads compressed copies of the backing file
// to a remote location after it was saved.
//
// Backups are best effort: a failed upload is reported to the caller
// but the local file remains the source of truth.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kjk/persons/log"
)

// Target is a place where backups are stored
type Target interface {
	Upload(ctx context.Context, remotePath string, data []byte) error
	String() string
}

type Backuper struct {
	Target Target
	Codec  Codec
	// prepended to remote names, e.g. "persons/"
	Prefix string
	// for tests, defaults to time.Now
	Now func() time.Time
}

func New(target Target, codec Codec, prefix string) *Backuper {
	return &Backuper{
		Target: target,
		Codec:  codec,
		Prefix: prefix,
	}
}

// RemotePath returns the name under which a backup of localPath
// taken at t is stored: <prefix><name>-YYYYMMDD-HHMMSS<ext><codec ext>
func (b *Backuper) RemotePath(localPath string, t time.Time) string {
	base := filepath.Base(localPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	ts := t.UTC().Format("20060102-150405")
	return b.Prefix + name + "-" + ts + ext + b.Codec.Ext()
}

// BackupFile compresses the file at localPath and uploads it.
// Returns the remote path.
func (b *Backuper) BackupFile(ctx context.Context, localPath string) (string, error) {
	if b == nil || b.Target == nil {
		return "", errors.New("backup target not configured")
	}
	d, err := os.ReadFile(localPath)
	if err != nil {
		return "", err
	}
	compressed, err := Compress(b.Codec, d)
	if err != nil {
		return "", err
	}
	now := time.Now
	if b.Now != nil {
		now = b.Now
	}
	timeStart := time.Now()
	remotePath := b.RemotePath(localPath, now())
	if err = b.Target.Upload(ctx, remotePath, compressed); err != nil {
		return "", fmt.Errorf("upload of '%s' to %s as '%s' failed: %w", localPath, b.Target, remotePath, err)
	}
	log.Verbosef("uploaded '%s' (%d => %d bytes) to %s as '%s' in %s\n", localPath, len(d), len(compressed), b.Target, remotePath, time.Since(timeStart))
	log.Event("backup.upload", "target", b.Target.String(), "path", remotePath, "size", len(compressed))
	return remotePath, nil
}

// MemoryTarget keeps uploads in memory, for tests and dry runs
type MemoryTarget struct {
	mu    sync.Mutex
	Files map[string][]byte
	// if set, Upload returns it
	Err error
}

func NewMemoryTarget() *MemoryTarget {
	return &MemoryTarget{
		Files: map[string][]byte{},
	}
}

func (t *MemoryTarget) Upload(ctx context.Context, remotePath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.Err != nil {
		return t.Err
	}
	t.Files[path.Clean(remotePath)] = append([]byte{}, data...)
	return nil
}

// Names returns sorted names of uploaded files
func (t *MemoryTarget) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var res []string
	for k := range t.Files {
		res = append(res, k)
	}
	sort.Strings(res)
	return res
}

func (t *MemoryTarget) String() string {
	return "memory"
}
