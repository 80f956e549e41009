// Package config is used to configure the application settings.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"os"
	"strconv"
	"time"
)

// Config - application configuration structure.
type Config struct {
	// Addr: string with the address on which the server will run (e.g., "localhost:8080").
	Addr string `json:"server_address"`
	// BaseURL: base URL used to build short links ({BaseURL}/s/{code}).
	BaseURL string `json:"base_url"`
	// LinkStorageFile: path to the journal file used when no database is configured.
	LinkStorageFile string `json:"file_storage_path"`
	// DBConnection: database connection string.
	DBConnection string `json:"database_dsn"`
	// ConfigPath: path to configuration file.
	ConfigPath string
	// Timeout: request processing timeout in seconds. Uploads use UploadTimeout.
	Timeout int `json:"request_timeout"`
	// NumWorkers: number of workers used for batch link deletion.
	NumWorkers int
	// EnableHTTPS: is HTTPS connection enabled
	EnableHTTPS bool `json:"enable_https"`
	// LogLevel: "debug" selects the development logger, anything else production.
	LogLevel string `json:"log_level"`
	// AdminToken: token required by the admin endpoints; empty disables them.
	AdminToken string `json:"admin_token"`
	// CookieHashKey / CookieBlockKey: securecookie keys for the owner cookie.
	CookieHashKey  string `json:"cookie_hash_key"`
	CookieBlockKey string `json:"cookie_block_key"`

	// MaxUploadBytes: upper bound for an uploaded file.
	MaxUploadBytes int64 `json:"max_upload_bytes"`
	// GatewayURL: fallback primary upload endpoint when the store has none.
	GatewayURL string `json:"gateway_url"`
	// BackupGatewayURL: failover upload endpoint.
	BackupGatewayURL string `json:"backup_gateway_url"`
	// MirrorBaseURL: HTTP mirror prefix, artifacts are served at {MirrorBaseURL}/{cid}.
	MirrorBaseURL string `json:"mirror_base_url"`
	// UserAgent: fallback outbound identification string.
	UserAgent string `json:"user_agent"`
	// MaxRetries: primary retries after the first attempt.
	MaxRetries int `json:"max_retries"`
	// RetryBackoff: unit of the linear backoff between primary attempts.
	RetryBackoff time.Duration `json:"retry_backoff"`
	// PrimaryTimeout / BackupTimeout: per-attempt timeouts.
	PrimaryTimeout time.Duration `json:"primary_timeout"`
	BackupTimeout  time.Duration `json:"backup_timeout"`

	// CodeLength: length of generated short codes.
	CodeLength int `json:"code_length"`
	// RetiredHost / ReplacementHost: mirror host migration rule.
	RetiredHost     string `json:"retired_host"`
	ReplacementHost string `json:"replacement_host"`
}

// MaxUploadBytes is the default upload limit (5 MiB).
const MaxUploadBytes = 5 << 20

// NewConfig creates and returns a new instance of the Config structure with predefined values.
func NewConfig() *Config {
	return &Config{
		Addr:             "localhost:8080",
		BaseURL:          "http://localhost:8080",
		Timeout:          90,
		NumWorkers:       4,
		LogLevel:         "debug",
		CookieHashKey:    "very-very-very-very-secret-key32",
		CookieBlockKey:   "a-lot-of-secret!",
		MaxUploadBytes:   MaxUploadBytes,
		MirrorBaseURL:    "https://ipfs.io/ipfs",
		UserAgent:        "imgpub/1.0",
		MaxRetries:       2,
		RetryBackoff:     2 * time.Second,
		PrimaryTimeout:   30 * time.Second,
		BackupTimeout:    45 * time.Second,
		CodeLength:       6,
		RetiredHost:      "ipfs.io",
		ReplacementHost:  "dweb.link",
		BackupGatewayURL: "",
	}
}

// uploadSlack covers validation, sanitization and link allocation around
// the gateway calls of one upload.
const uploadSlack = 15 * time.Second

// PublishBudget is the longest the publish policy can run: every primary
// attempt times out and fails over to a backup attempt that times out too,
// plus the linear backoff waits between primary attempts.
func (c *Config) PublishBudget() time.Duration {
	retries := c.MaxRetries
	if retries < 0 {
		retries = 0
	}
	var waits time.Duration
	for i := 1; i <= retries; i++ {
		waits += time.Duration(i) * c.RetryBackoff
	}
	attempts := time.Duration(retries) + 1
	perAttempt := c.PrimaryTimeout + c.BackupTimeout
	return attempts*perAttempt + waits
}

// UploadTimeout is the deadline of an upload request. It is never shorter
// than the publish budget.
func (c *Config) UploadTimeout() time.Duration {
	d := c.PublishBudget() + uploadSlack
	if req := time.Duration(c.Timeout) * time.Second; req > d {
		return req
	}
	return d
}

// ErrReadConfig - error reading json config.
var ErrReadConfig = errors.New("reading json config")

// ErrParseConfig - error parsing json config.
var ErrParseConfig = errors.New("parse json config")

// Init initializes the application configuration using environment variables and command-line flags.
func Init(c *Config) error {
	lookupEnv(c)

	var flagCfg Config
	flag.StringVar(&flagCfg.Addr, "a", "", "HTTP-server startup address")
	flag.StringVar(&flagCfg.BaseURL, "b", "", "base address of the resulting short links")
	flag.StringVar(&flagCfg.LinkStorageFile, "f", "", "path to the link journal file")
	flag.StringVar(&flagCfg.DBConnection, "d", "", "database connection address")
	flag.BoolVar(&flagCfg.EnableHTTPS, "s", false, "is HTTPS connection enabled")
	flag.StringVar(&flagCfg.ConfigPath, "c", "", "path to config file (json)")
	flag.StringVar(&flagCfg.GatewayURL, "g", "", "primary upload gateway URL")
	flag.StringVar(&flagCfg.BackupGatewayURL, "gb", "", "backup upload gateway URL")
	flag.StringVar(&flagCfg.LogLevel, "l", "", "log level")

	flag.Parse()

	if flagCfg.ConfigPath != "" {
		file, err := os.ReadFile(flagCfg.ConfigPath)
		if err != nil {
			return ErrReadConfig
		}
		if err := json.Unmarshal(file, c); err != nil {
			return ErrParseConfig
		}
	}

	// override
	if flagCfg.Addr != "" {
		c.Addr = flagCfg.Addr
	}
	if flagCfg.BaseURL != "" {
		c.BaseURL = flagCfg.BaseURL
	}
	if flagCfg.LinkStorageFile != "" {
		c.LinkStorageFile = flagCfg.LinkStorageFile
	}
	if flagCfg.DBConnection != "" {
		c.DBConnection = flagCfg.DBConnection
	}
	if flagCfg.EnableHTTPS {
		c.EnableHTTPS = flagCfg.EnableHTTPS
	}
	if flagCfg.GatewayURL != "" {
		c.GatewayURL = flagCfg.GatewayURL
	}
	if flagCfg.BackupGatewayURL != "" {
		c.BackupGatewayURL = flagCfg.BackupGatewayURL
	}
	if flagCfg.LogLevel != "" {
		c.LogLevel = flagCfg.LogLevel
	}

	return nil
}

func lookupEnv(c *Config) {
	strs := map[string]*string{
		"SERVER_ADDRESS":     &c.Addr,
		"BASE_URL":           &c.BaseURL,
		"FILE_STORAGE_PATH":  &c.LinkStorageFile,
		"DATABASE_DSN":       &c.DBConnection,
		"GATEWAY_URL":        &c.GatewayURL,
		"BACKUP_GATEWAY_URL": &c.BackupGatewayURL,
		"MIRROR_BASE_URL":    &c.MirrorBaseURL,
		"USER_AGENT":         &c.UserAgent,
		"RETIRED_HOST":       &c.RetiredHost,
		"REPLACEMENT_HOST":   &c.ReplacementHost,
		"ADMIN_TOKEN":        &c.AdminToken,
		"LOG_LEVEL":          &c.LogLevel,
	}
	for name, dst := range strs {
		if val, exist := os.LookupEnv(name); exist {
			*dst = val
		}
	}

	if val, exist := os.LookupEnv("ENABLE_HTTPS"); exist {
		valBool, err := strconv.ParseBool(val)
		if err == nil {
			c.EnableHTTPS = valBool
		}
	}
	if val, exist := os.LookupEnv("MAX_UPLOAD_BYTES"); exist {
		n, err := strconv.ParseInt(val, 10, 64)
		if err == nil && n > 0 {
			c.MaxUploadBytes = n
		}
	}

	ints := map[string]*int{
		"REQUEST_TIMEOUT": &c.Timeout,
		"MAX_RETRIES":     &c.MaxRetries,
	}
	for name, dst := range ints {
		if val, exist := os.LookupEnv(name); exist {
			n, err := strconv.Atoi(val)
			if err == nil && n >= 0 {
				*dst = n
			}
		}
	}

	durations := map[string]*time.Duration{
		"RETRY_BACKOFF":   &c.RetryBackoff,
		"PRIMARY_TIMEOUT": &c.PrimaryTimeout,
		"BACKUP_TIMEOUT":  &c.BackupTimeout,
	}
	for name, dst := range durations {
		if val, exist := os.LookupEnv(name); exist {
			d, err := time.ParseDuration(val)
			if err == nil && d >= 0 {
				*dst = d
			}
		}
	}
}
