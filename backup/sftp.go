package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/melbahja/goph"
	"github.com/pkg/sftp"
)

type SFTPConfig struct {
	User    string
	Host    string
	KeyPath string
	// remote directory for backups, created if missing
	Dir string
}

// SFTPTarget stores backups on a server over ssh. It connects for each
// upload so no connection is held between saves.
type SFTPTarget struct {
	config SFTPConfig
}

func NewSFTPTarget(c *SFTPConfig) (*SFTPTarget, error) {
	if c == nil {
		return nil, errors.New("must provide config")
	}
	if c.User == "" || c.Host == "" || c.KeyPath == "" {
		return nil, errors.New("must provide user, host and key path")
	}
	keyPath := expandTildeInPath(c.KeyPath)
	if _, err := os.Stat(keyPath); err != nil {
		return nil, fmt.Errorf("key file '%s' doesn't exist", keyPath)
	}
	cfg := *c
	cfg.KeyPath = keyPath
	return &SFTPTarget{config: cfg}, nil
}

func expandTildeInPath(s string) string {
	if !strings.HasPrefix(s, "~") {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return s
	}
	return filepath.Join(home, s[1:])
}

// remoteFullPath joins Dir and remotePath using forward slashes
func (t *SFTPTarget) remoteFullPath(remotePath string) string {
	return path.Join(t.config.Dir, remotePath)
}

func (t *SFTPTarget) Upload(ctx context.Context, remotePath string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	auth, err := goph.Key(t.config.KeyPath, "")
	if err != nil {
		return fmt.Errorf("goph.Key() failed with '%s'", err)
	}
	client, err := goph.New(t.config.User, t.config.Host, auth)
	if err != nil {
		return fmt.Errorf("goph.New() failed with '%s'", err)
	}
	defer client.Close()

	sc, err := client.NewSftp()
	if err != nil {
		return fmt.Errorf("client.NewSftp() failed with '%s'", err)
	}
	defer sc.Close()

	dst := t.remoteFullPath(remotePath)
	if err = sc.MkdirAll(path.Dir(dst)); err != nil {
		return fmt.Errorf("sftp.MkdirAll('%s') failed with '%s'", path.Dir(dst), err)
	}
	return sftpWriteFile(sc, dst, data)
}

// sftpWriteFile writes to a temp name and renames so that a partial
// upload never looks like a complete backup
func sftpWriteFile(sc *sftp.Client, dst string, data []byte) error {
	tmp := dst + ".tmp"
	f, err := sc.Create(tmp)
	if err != nil {
		return err
	}
	_, err = f.Write(data)
	err2 := f.Close()
	if err = getErr(err, err2); err != nil {
		_ = sc.Remove(tmp)
		return err
	}
	if err = sc.PosixRename(tmp, dst); err != nil {
		_ = sc.Remove(tmp)
		return err
	}
	return nil
}

func (t *SFTPTarget) String() string {
	return fmt.Sprintf("sftp %s@%s:%s", t.config.User, t.config.Host, t.config.Dir)
}
