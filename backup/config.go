package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/kjk/persons/config"
)

// how long FromConfig waits for the target to answer
var setupTimeout = time.Second * 15

// FromConfig creates a Backuper as described by c.
// Returns nil, nil if backups are disabled.
// Checking the target is limited to setupTimeout, so an unreachable
// server doesn't block startup.
func FromConfig(ctx context.Context, c *config.BackupConfig) (*Backuper, error) {
	if c == nil || !c.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, setupTimeout)
	defer cancel()
	codec, err := ParseCodec(c.Codec)
	if err != nil {
		return nil, err
	}
	var target Target
	switch c.Target {
	case config.TargetMinio:
		m := c.Minio
		target, err = NewMinioTarget(ctx, &MinioConfig{
			Access:   m.Access,
			Secret:   m.Secret,
			Bucket:   m.Bucket,
			Endpoint: m.Endpoint,
			Region:   m.Region,
			Insecure: m.Insecure,
		})
	case config.TargetSFTP:
		s := c.SFTP
		target, err = NewSFTPTarget(&SFTPConfig{
			User:    s.User,
			Host:    s.Host,
			KeyPath: s.KeyPath,
			Dir:     s.Dir,
		})
	default:
		return nil, fmt.Errorf("unknown backup target '%s'", c.Target)
	}
	if err != nil {
		return nil, err
	}
	return New(target, codec, c.Prefix), nil
}
