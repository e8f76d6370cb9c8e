package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App              AppConfig           `mapstructure:"app"`
	WorkingDirectory string              `mapstructure:"working_directory"`
	Encryptions      []EncryptionConfig  `mapstructure:"encryptions"`
	Destinations     []DestinationConfig `mapstructure:"destinations"`
	Databases        []DatabaseConfig    `mapstructure:"databases"`
	Archives         []ArchiveConfig     `mapstructure:"archives"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Schedule, when set, turns backup mode into a recurring cron job
	// instead of a one-shot run.
	Schedule string `mapstructure:"schedule"`
}

type EncryptionConfig struct {
	ID         string `mapstructure:"id"`
	Cipher     string `mapstructure:"cipher"`
	Passphrase string `mapstructure:"passphrase"`
}

type DestinationConfig struct {
	ID   string `mapstructure:"id"`
	Type string `mapstructure:"type"`

	// local directory
	Path string `mapstructure:"path"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`

	// SFTP
	Server   string `mapstructure:"server"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	// MaxArchiveAge is parsed and carried but not acted on; retention is
	// reserved for a future policy.
	MaxArchiveAge time.Duration `mapstructure:"max_archive_age"`
}

type DatabaseConfig struct {
	ID   string `mapstructure:"id"`
	Type string `mapstructure:"type"`
	Name string `mapstructure:"name"`

	// NamePattern marks Name as a pattern rather than a literal database
	// name ("*" matches all databases for mongodb).
	NamePattern bool `mapstructure:"name_pattern"`

	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

type DirectoryConfig struct {
	Path  string `mapstructure:"path"`
	User  string `mapstructure:"user"`
	Group string `mapstructure:"group"`
}

type ArchiveConfig struct {
	Name         string            `mapstructure:"name"`
	Compression  string            `mapstructure:"compression"`
	EncryptionID string            `mapstructure:"encryption_id"`
	Destination  string            `mapstructure:"destination_id"`
	Directories  []DirectoryConfig `mapstructure:"directories"`
	DatabaseIDs  []string          `mapstructure:"database_ids"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("app.name", "arca")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("working_directory", "/tmp/arca")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// Validate rejects duplicate ids and unresolved cross-references before
// anything downstream runs, so the pipeline can treat the configuration
// graph as fully resolved.
func (c *Config) Validate() error {
	if len(c.Archives) == 0 {
		return fmt.Errorf("at least one archive configuration is required")
	}

	encryptions := make(map[string]bool)
	for i, enc := range c.Encryptions {
		if enc.ID == "" {
			return fmt.Errorf("encryption[%d]: id is required", i)
		}
		if encryptions[enc.ID] {
			return fmt.Errorf("encryption[%d]: duplicate id %q", i, enc.ID)
		}
		if enc.Cipher == "" {
			return fmt.Errorf("encryption[%d]: cipher is required", i)
		}
		encryptions[enc.ID] = true
	}

	destinations := make(map[string]bool)
	for i, dest := range c.Destinations {
		if dest.ID == "" {
			return fmt.Errorf("destination[%d]: id is required", i)
		}
		if destinations[dest.ID] {
			return fmt.Errorf("destination[%d]: duplicate id %q", i, dest.ID)
		}
		switch dest.Type {
		case "local":
			if dest.Path == "" {
				return fmt.Errorf("destination[%d]: path is required for local destinations", i)
			}
		case "s3":
			if dest.Bucket == "" || dest.Region == "" {
				return fmt.Errorf("destination[%d]: bucket and region are required for s3 destinations", i)
			}
		case "sftp":
			if dest.Server == "" || dest.Username == "" {
				return fmt.Errorf("destination[%d]: server and username are required for sftp destinations", i)
			}
		default:
			return fmt.Errorf("destination[%d]: unknown type %q", i, dest.Type)
		}
		destinations[dest.ID] = true
	}

	databases := make(map[string]bool)
	for i, db := range c.Databases {
		if db.ID == "" {
			return fmt.Errorf("database[%d]: id is required", i)
		}
		if databases[db.ID] {
			return fmt.Errorf("database[%d]: duplicate id %q", i, db.ID)
		}
		switch db.Type {
		case "mysql", "postgresql", "mongodb":
		default:
			return fmt.Errorf("database[%d]: unknown type %q", i, db.Type)
		}
		if db.Name == "" {
			return fmt.Errorf("database[%d]: name is required", i)
		}
		databases[db.ID] = true
	}

	for i, archive := range c.Archives {
		if archive.Name == "" {
			return fmt.Errorf("archive[%d]: name is required", i)
		}
		switch archive.Compression {
		case "", "none", "tar", "tar.bz2":
		default:
			return fmt.Errorf("archive[%d]: unknown compression %q", i, archive.Compression)
		}
		if archive.Destination == "" {
			return fmt.Errorf("archive[%d]: destination_id is required", i)
		}
		if !destinations[archive.Destination] {
			return fmt.Errorf("archive[%d]: unresolved destination_id %q", i, archive.Destination)
		}
		if archive.EncryptionID != "" && !encryptions[archive.EncryptionID] {
			return fmt.Errorf("archive[%d]: unresolved encryption_id %q", i, archive.EncryptionID)
		}
		for _, id := range archive.DatabaseIDs {
			if !databases[id] {
				return fmt.Errorf("archive[%d]: unresolved database_id %q", i, id)
			}
		}
	}

	return nil
}
