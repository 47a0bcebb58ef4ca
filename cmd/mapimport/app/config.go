package app

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/mapaction/mapimport/pkg/constants"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "MAPIMPORT"

// Config holds the application configuration loaded from various sources
// including config files, environment variables, and .env files.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// Config file
	ConfigFile string

	// Catalog connection
	CatalogURL      string
	APIKey          string
	AuthScheme      string
	HTTPTimeout     time.Duration
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	Purge           bool

	// Import defaults
	OwnerOrg    string
	Private     bool
	SchemaFiles []string
	Lenient     bool

	// Extraction limits
	TempDir        string
	MaxArchiveSize int64
	MaxEntrySize   int64

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string
}

// LoadConfig loads configuration from all sources in order of precedence:
// 1. Command-line flags (handled by cobra)
// 2. Environment variables (MAPIMPORT_*)
// 3. .env files
// 4. Config file (~/.mapimport.yaml)
// 5. Defaults
func LoadConfig() (*Config, error) {
	return loadConfig(viper.New(), "")
}

// LoadConfigFile loads configuration like LoadConfig but reads the named file.
func LoadConfigFile(path string) (*Config, error) {
	return loadConfig(viper.New(), path)
}

func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	// Load .env files first (before Viper env binding)
	loadEnvFiles()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		// Search for config in standard locations
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".mapimport")

		// Read config file (ignore error if not found)
		_ = v.ReadInConfig()
	}

	config := &Config{
		Verbose: v.GetBool("verbose"),
		Quiet:   v.GetBool("quiet"),
		NoColor: v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:  v.GetString("format"),

		ConfigFile: v.ConfigFileUsed(),

		CatalogURL:      v.GetString("catalog_url"),
		APIKey:          v.GetString("api_key"),
		AuthScheme:      v.GetString("auth_scheme"),
		HTTPTimeout:     v.GetDuration("http_timeout"),
		BreakerFailures: v.GetUint32("breaker_failures"),
		BreakerTimeout:  v.GetDuration("breaker_timeout"),
		Purge:           v.GetBool("purge"),

		OwnerOrg:    v.GetString("owner_org"),
		Private:     v.GetBool("private"),
		SchemaFiles: v.GetStringSlice("schema_files"),
		Lenient:     v.GetBool("lenient"),

		TempDir:        v.GetString("temp_dir"),
		MaxArchiveSize: v.GetInt64("max_archive_size"),
		MaxEntrySize:   v.GetInt64("max_entry_size"),

		LogLevel:  v.GetString("log_level"),
		LogFormat: v.GetString("log_format"),
		LogOutput: v.GetString("log_output"),
	}

	return config, nil
}

// setDefaults registers every key so AutomaticEnv can resolve it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("verbose", false)
	v.SetDefault("quiet", false)
	v.SetDefault("no_color", false)
	v.SetDefault("format", "")

	v.SetDefault("catalog_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("auth_scheme", "token")
	v.SetDefault("http_timeout", constants.DefaultHTTPTimeout)
	v.SetDefault("breaker_failures", constants.BreakerFailures)
	v.SetDefault("breaker_timeout", constants.BreakerTimeout)
	v.SetDefault("purge", false)

	v.SetDefault("owner_org", "")
	v.SetDefault("private", true)
	v.SetDefault("schema_files", []string{})
	v.SetDefault("lenient", false)

	v.SetDefault("temp_dir", "")
	v.SetDefault("max_archive_size", constants.MaxArchiveSize)
	v.SetDefault("max_entry_size", constants.MaxEntrySize)

	v.SetDefault("log_level", "")
	v.SetDefault("log_format", "auto")
	v.SetDefault("log_output", "stderr")
}

// UpdateFromFlags updates config values from parsed command flags.
// This should be called after cobra parses flags to ensure flag
// values take precedence over config file and env vars.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel string) {
	c.Verbose = verbose
	c.Quiet = quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local is loaded first so it wins; godotenv never overrides
// variables that are already set.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
