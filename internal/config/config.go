// Package config resolves runtime settings from defaults, a .env file,
// POSOJA_* environment variables and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Photo storage backends.
const (
	PhotoStoreDB = "db"
	PhotoStoreS3 = "s3"
)

// Config holds runtime settings for the server.
type Config struct {
	DBPath    string
	Addr      string
	AdminUser string
	LogPath   string
	TokenTTL  time.Duration

	NominatimURL       string
	NominatimUserAgent string

	PhotoStore  string
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// Defaults returns the settings used when nothing overrides them.
func Defaults() *Config {
	return &Config{
		DBPath:             "posoja.sqlite3",
		Addr:               ":8080",
		AdminUser:          "Admin",
		TokenTTL:           7 * 24 * time.Hour,
		NominatimURL:       "https://nominatim.openstreetmap.org",
		NominatimUserAgent: "posoja/1.0",
		PhotoStore:         PhotoStoreDB,
		S3Region:           "us-east-1",
		S3Bucket:           "posoja",
	}
}

const usage = `Usage: posoja [flags]

Flags:
  -d, -db <path>          SQLite database path (default: posoja.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: Admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -t, -token-ttl <dur>    session lifetime (default: 168h)
  -photos <db|s3>         where copy photos are stored (default: db)
  -h, -help               show this help and exit

Every setting can also be given as a POSOJA_* environment variable or in a
.env file in the working directory, e.g. POSOJA_DB, POSOJA_S3_BUCKET.
`

// Load builds the configuration for args (without the program name).
// It returns flag.ErrHelp if help was requested.
func Load(args []string, out io.Writer) (*Config, error) {
	cfg := Defaults()

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.parseFlags(args, out); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"POSOJA_DB":                   &c.DBPath,
		"POSOJA_ADDR":                 &c.Addr,
		"POSOJA_ADMIN_USER":           &c.AdminUser,
		"POSOJA_LOG":                  &c.LogPath,
		"POSOJA_NOMINATIM_URL":        &c.NominatimURL,
		"POSOJA_NOMINATIM_USER_AGENT": &c.NominatimUserAgent,
		"POSOJA_PHOTOS":               &c.PhotoStore,
		"POSOJA_S3_ENDPOINT":          &c.S3Endpoint,
		"POSOJA_S3_REGION":            &c.S3Region,
		"POSOJA_S3_BUCKET":            &c.S3Bucket,
		"POSOJA_S3_ACCESS_KEY":        &c.S3AccessKey,
		"POSOJA_S3_SECRET_KEY":        &c.S3SecretKey,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("POSOJA_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POSOJA_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	return nil
}

func (c *Config) parseFlags(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("posoja", flag.ContinueOnError)
	fs.SetOutput(out)
	fs.Usage = func() { fmt.Fprint(out, usage) }

	fs.StringVar(&c.DBPath, "db", c.DBPath, "")
	fs.StringVar(&c.DBPath, "d", c.DBPath, "")
	fs.StringVar(&c.Addr, "addr", c.Addr, "")
	fs.StringVar(&c.Addr, "a", c.Addr, "")
	fs.StringVar(&c.AdminUser, "user", c.AdminUser, "")
	fs.StringVar(&c.AdminUser, "u", c.AdminUser, "")
	fs.StringVar(&c.LogPath, "log", c.LogPath, "")
	fs.StringVar(&c.LogPath, "l", c.LogPath, "")
	fs.DurationVar(&c.TokenTTL, "token-ttl", c.TokenTTL, "")
	fs.DurationVar(&c.TokenTTL, "t", c.TokenTTL, "")
	fs.StringVar(&c.PhotoStore, "photos", c.PhotoStore, "")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return fmt.Errorf("unexpected argument: %s", fs.Arg(0))
	}
	return nil
}

// Validate reports settings that cannot work together.
func (c *Config) Validate() error {
	c.PhotoStore = strings.ToLower(strings.TrimSpace(c.PhotoStore))
	switch c.PhotoStore {
	case PhotoStoreDB:
	case PhotoStoreS3:
		if c.S3Bucket == "" {
			return errors.New("s3 photo storage needs POSOJA_S3_BUCKET")
		}
	default:
		return fmt.Errorf("unknown photo store %q", c.PhotoStore)
	}
	if c.TokenTTL <= 0 {
		return errors.New("token lifetime must be positive")
	}
	if c.DBPath == "" {
		return errors.New("database path is required")
	}
	return nil
}
