package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

const (
	TargetMinio = "minio"
	TargetSFTP  = "sftp"
)

type Config struct {
	DataPath     string       `yaml:"data_path" mapstructure:"data_path"`
	LogDir       string       `yaml:"log_dir" mapstructure:"log_dir"`
	Verbose      bool         `yaml:"verbose" mapstructure:"verbose"`
	EventsURL    string       `yaml:"events_url" mapstructure:"events_url"`
	EventsAPIKey string       `yaml:"events_api_key" mapstructure:"events_api_key"`
	Backup       BackupConfig `yaml:"backup" mapstructure:"backup"`
}

type BackupConfig struct {
	Enabled bool        `yaml:"enabled" mapstructure:"enabled"`
	Target  string      `yaml:"target" mapstructure:"target"`
	Codec   string      `yaml:"codec" mapstructure:"codec"`
	Prefix  string      `yaml:"prefix" mapstructure:"prefix"`
	Minio   MinioConfig `yaml:"minio" mapstructure:"minio"`
	SFTP    SFTPConfig  `yaml:"sftp" mapstructure:"sftp"`
}

type MinioConfig struct {
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	Access   string `yaml:"access" mapstructure:"access"`
	Secret   string `yaml:"secret" mapstructure:"secret"`
	Bucket   string `yaml:"bucket" mapstructure:"bucket"`
	Region   string `yaml:"region" mapstructure:"region"`
	Insecure bool   `yaml:"insecure" mapstructure:"insecure"`
}

type SFTPConfig struct {
	User    string `yaml:"user" mapstructure:"user"`
	Host    string `yaml:"host" mapstructure:"host"`
	KeyPath string `yaml:"key_path" mapstructure:"key_path"`
	Dir     string `yaml:"dir" mapstructure:"dir"`
}

var envVarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

// expandEnv replaces $VAR with its value, leaving unknown vars alone
func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "$")
		if val, ok := os.LookupEnv(name); ok {
			return val
		}
		return match
	})
}

func Default() *Config {
	return &Config{
		DataPath: filepath.Join(".", "database", "Database.csv"),
		Backup: BackupConfig{
			Target: TargetMinio,
			Codec:  "br",
			Prefix: "persons/",
		},
	}
}

func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("data_path", c.DataPath)
	v.SetDefault("log_dir", c.LogDir)
	v.SetDefault("verbose", c.Verbose)
	v.SetDefault("events_url", c.EventsURL)
	v.SetDefault("events_api_key", c.EventsAPIKey)
	b := c.Backup
	v.SetDefault("backup.enabled", b.Enabled)
	v.SetDefault("backup.target", b.Target)
	v.SetDefault("backup.codec", b.Codec)
	v.SetDefault("backup.prefix", b.Prefix)
	v.SetDefault("backup.minio.endpoint", b.Minio.Endpoint)
	v.SetDefault("backup.minio.access", b.Minio.Access)
	v.SetDefault("backup.minio.secret", b.Minio.Secret)
	v.SetDefault("backup.minio.bucket", b.Minio.Bucket)
	v.SetDefault("backup.minio.region", b.Minio.Region)
	v.SetDefault("backup.minio.insecure", b.Minio.Insecure)
	v.SetDefault("backup.sftp.user", b.SFTP.User)
	v.SetDefault("backup.sftp.host", b.SFTP.Host)
	v.SetDefault("backup.sftp.key_path", b.SFTP.KeyPath)
	v.SetDefault("backup.sftp.dir", b.SFTP.Dir)
}

// Load reads persons.yaml. If path is empty, it's looked up in the current
// directory and in the user's config directory; a missing file is not an
// error. PERSONS_* environment variables override values from the file,
// e.g. PERSONS_BACKUP_MINIO_SECRET.
func Load(path string) (*Config, error) {
	cfg := Default()
	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("persons")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			v.AddConfigPath(filepath.Join(xdg, "persons"))
		}
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "persons"))
		}
	}

	v.SetEnvPrefix("PERSONS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("config: %w", err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg.EventsAPIKey = expandEnv(cfg.EventsAPIKey)
	cfg.Backup.Minio.Access = expandEnv(cfg.Backup.Minio.Access)
	cfg.Backup.Minio.Secret = expandEnv(cfg.Backup.Minio.Secret)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if c.DataPath == "" {
		return fmt.Errorf("config: data_path is required")
	}
	b := &c.Backup
	if !b.Enabled {
		return nil
	}
	switch b.Codec {
	case "br", "zstd", "none":
	default:
		return fmt.Errorf("config: backup.codec %q is invalid (must be br, zstd or none)", b.Codec)
	}
	switch b.Target {
	case TargetMinio:
		m := b.Minio
		if m.Endpoint == "" || m.Access == "" || m.Secret == "" || m.Bucket == "" {
			return fmt.Errorf("config: backup.minio requires endpoint, access, secret and bucket")
		}
	case TargetSFTP:
		s := b.SFTP
		if s.User == "" || s.Host == "" || s.KeyPath == "" {
			return fmt.Errorf("config: backup.sftp requires user, host and key_path")
		}
	default:
		return fmt.Errorf("config: backup.target %q is invalid (must be minio or sftp)", b.Target)
	}
	return nil
}
