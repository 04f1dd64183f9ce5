package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
// "workers" is read from BLASTDBGET_WORKERS.
const EnvPrefix = "BLASTDBGET"

// Transports for Settings.Protocol.
const (
	ProtocolFTP   = "ftp"
	ProtocolHTTPS = "https"
)

// Settings holds all configuration options.
type Settings struct {
	// Remote server
	Protocol  string        `mapstructure:"protocol" yaml:"protocol"`
	Host      string        `mapstructure:"host" yaml:"host"`
	Port      int           `mapstructure:"port" yaml:"port"`
	RemoteDir string        `mapstructure:"remote_dir" yaml:"remote_dir"`
	User      string        `mapstructure:"user" yaml:"user"`
	Password  string        `mapstructure:"password" yaml:"password"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`

	// Pipeline
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	MaxRetries     int           `mapstructure:"max_retries" yaml:"max_retries"`
	RetryCooldown  time.Duration `mapstructure:"retry_cooldown" yaml:"retry_cooldown"`
	BlockSize      int           `mapstructure:"block_size" yaml:"block_size"`
	ArchiveSuffix  string        `mapstructure:"archive_suffix" yaml:"archive_suffix"`
	ChecksumSuffix string        `mapstructure:"checksum_suffix" yaml:"checksum_suffix"`
	KeepArchives   bool          `mapstructure:"keep_archives" yaml:"keep_archives"`

	// Databases
	TaxonomyDB      string `mapstructure:"taxonomy_db" yaml:"taxonomy_db"`
	IncludeTaxonomy bool   `mapstructure:"include_taxonomy" yaml:"include_taxonomy"`

	// Output layout
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	DatedSubdir  bool   `mapstructure:"dated_subdir" yaml:"dated_subdir"`
	UpdateLatest bool   `mapstructure:"update_latest" yaml:"update_latest"`

	// Post-validation
	CheckTool   string `mapstructure:"check_tool" yaml:"check_tool"`
	CheckRandom int    `mapstructure:"check_random" yaml:"check_random"`
	SkipCheck   bool   `mapstructure:"skip_check" yaml:"skip_check"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Protocol:  ProtocolFTP,
		Host:      "ftp.ncbi.nlm.nih.gov",
		Port:      21,
		RemoteDir: "blast/db",
		User:      "anonymous",
		Password:  "password",
		Timeout:   10 * time.Second,

		Workers:        8,
		MaxRetries:     2,
		RetryCooldown:  0,
		BlockSize:      65536,
		ArchiveSuffix:  ".tar.gz",
		ChecksumSuffix: ".md5",
		KeepArchives:   true,

		TaxonomyDB:      "taxdb",
		IncludeTaxonomy: true,

		OutputDir:    ".",
		DatedSubdir:  false,
		UpdateLatest: true,

		CheckTool:   "blastdbcheck",
		CheckRandom: 10,
		SkipCheck:   false,
	}
}

// Load reads settings from a YAML or JSON file and applies environment
// overrides. A missing file yields the defaults plus any overrides; an
// empty path skips the file entirely.
func Load(path string) (*Settings, error) {
	settings := DefaultSettings()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvs(v, settings)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				var notFound viper.ConfigFileNotFoundError
				if !errors.As(err, &notFound) {
					return nil, fmt.Errorf("read config %s: %w", path, err)
				}
			}
		}
	}

	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return settings, nil
}

// bindEnvs registers every mapstructure key of cfg so viper consults the
// matching environment variable during Unmarshal.
func bindEnvs(v *viper.Viper, cfg any) {
	typ := reflect.TypeOf(cfg)
	if typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	for i := 0; i < typ.NumField(); i++ {
		tag := typ.Field(i).Tag.Get("mapstructure")
		if tag == "" {
			tag = strings.ToLower(typ.Field(i).Name)
		}
		_ = v.BindEnv(tag)
	}
}

// Save writes settings to a YAML file.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// LogValue implements slog.LogValuer. The password is never logged.
func (s *Settings) LogValue() slog.Value {
	password := ""
	if s.Password != "" {
		password = "REDACTED"
	}
	return slog.GroupValue(
		slog.String("protocol", s.Protocol),
		slog.String("host", s.Host),
		slog.Int("port", s.Port),
		slog.String("remote_dir", s.RemoteDir),
		slog.String("user", s.User),
		slog.String("password", password),
		slog.Duration("timeout", s.Timeout),
		slog.Int("workers", s.Workers),
		slog.Int("max_retries", s.MaxRetries),
		slog.Duration("retry_cooldown", s.RetryCooldown),
		slog.Int("block_size", s.BlockSize),
		slog.Bool("keep_archives", s.KeepArchives),
		slog.String("taxonomy_db", s.TaxonomyDB),
		slog.Bool("include_taxonomy", s.IncludeTaxonomy),
		slog.String("output_dir", s.OutputDir),
		slog.Bool("dated_subdir", s.DatedSubdir),
		slog.Bool("update_latest", s.UpdateLatest),
		slog.String("check_tool", s.CheckTool),
		slog.Int("check_random", s.CheckRandom),
		slog.Bool("skip_check", s.SkipCheck),
	)
}

// Validate reports the first setting that cannot drive a run.
func (s *Settings) Validate() error {
	switch {
	case s.Protocol != ProtocolFTP && s.Protocol != ProtocolHTTPS:
		return fmt.Errorf("protocol must be %q or %q, got %q", ProtocolFTP, ProtocolHTTPS, s.Protocol)
	case s.Host == "":
		return errors.New("host must not be empty")
	case s.RemoteDir == "":
		return errors.New("remote_dir must not be empty")
	case s.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", s.Workers)
	case s.MaxRetries < 0:
		return fmt.Errorf("max_retries must not be negative, got %d", s.MaxRetries)
	case s.BlockSize < 1:
		return fmt.Errorf("block_size must be positive, got %d", s.BlockSize)
	case s.Timeout <= 0:
		return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
	case s.ArchiveSuffix == "" || s.ChecksumSuffix == "":
		return errors.New("archive_suffix and checksum_suffix must not be empty")
	}
	return nil
}

// Address returns the host:port of the remote FTP server.
func (s *Settings) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Server returns the authority used in work item URLs: host:port for FTP,
// the bare host for HTTPS.
func (s *Settings) Server() string {
	if s.Protocol == ProtocolHTTPS {
		return s.Host
	}
	return s.Address()
}

// BaseURL returns the root URL of the HTTPS mirror.
func (s *Settings) BaseURL() string {
	return "https://" + s.Host
}

// Databases returns the download set for the requested names: the names
// themselves plus the taxonomy database when it is enabled and not already
// present. An empty request stays empty.
func (s *Settings) Databases(requested []string) []string {
	if len(requested) == 0 {
		return nil
	}
	out := append([]string(nil), requested...)
	if !s.IncludeTaxonomy || s.TaxonomyDB == "" {
		return out
	}
	for _, name := range out {
		if name == s.TaxonomyDB {
			return out
		}
	}
	return append(out, s.TaxonomyDB)
}
