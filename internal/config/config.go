package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "strings"
    "time"

    "github.com/joho/godotenv"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and connection parameters are required;
// token lifetimes and tuning knobs fall back to sane defaults.
type Config struct {
    Env            string        // application environment (e.g. "dev", "prod")
    Port           string        // HTTP port to listen on
    LogLevel       string        // zap level name
    DBUser         string        // database username
    DBPass         string        // database password (optional)
    DBHost         string        // database host address
    DBPort         string        // database port number
    DBName         string        // database name
    DBMaxOpenConns int           // connection pool size
    DBConnMaxLife  time.Duration // recycle pooled connections after this long
    AutoMigrate    bool          // run embedded migrations on startup
    JWTSecret      string        // secret used to sign JWTs
    AccessTTLMin   int           // access token time-to-live in minutes
    RefreshTTLDays int           // refresh token time-to-live in days
    BcryptCost     int           // bcrypt cost for password hashing
    OTPTTL         time.Duration // lifetime of an activation code
    BypassVerify   bool          // register users as ACTIVE without OTP
    RequestTimeout time.Duration // per-request budget for store calls
    PublicPaths    []string      // paths the authentication gate skips
}

// Load reads an optional .env file and then the process environment.
// Missing required variables cause the program to exit with a fatal log
// message.
func Load() Config {
    // .env is a convenience for local runs; absence is not an error.
    _ = godotenv.Load()

    return Config{
        Env:            envStr("APP_ENV", "dev"),
        Port:           envStr("APP_PORT", "8080"),
        LogLevel:       envStr("LOG_LEVEL", "info"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"),
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        DBMaxOpenConns: envInt("DB_MAX_OPEN_CONNS", 25),
        DBConnMaxLife:  envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
        AutoMigrate:    envBool("DB_AUTO_MIGRATE", true),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 24*60),
        RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
        BcryptCost:     envInt("BCRYPT_COST", 10),
        OTPTTL:         envDur("OTP_TTL", 3*time.Minute),
        BypassVerify:   envBool("AUTH_BYPASS_VERIFICATION", false),
        RequestTimeout: envDur("REQUEST_TIMEOUT", 5*time.Second),
        PublicPaths:    envList("AUTH_PUBLIC_PATHS", DefaultPublicPaths),
    }
}

// DefaultPublicPaths are skipped by the authentication gate.  /auth/logout
// is deliberately absent: it needs the caller's identity.
var DefaultPublicPaths = []string{
    "/auth/register",
    "/auth/login",
    "/auth/refresh-token",
    "/auth/resend-otp",
    "/auth/activate",
    "/healthz",
    "/metrics",
}

// AccessTTL returns the access token lifetime as a duration.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime as a duration.
func (c Config) RefreshTTL() time.Duration {
    return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool { return c.Env == "dev" || c.Env == "local" }

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

func envStr(k, d string) string {
    if v := os.Getenv(k); v != "" {
        return v
    }
    return d
}

func envBool(k string, d bool) bool {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    switch v {
    case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
        return true
    case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
        return false
    }
    return d
}

func envInt(k string, d int) int {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if n, err := strconv.Atoi(v); err == nil {
        return n
    }
    return d
}

func envDur(k string, d time.Duration) time.Duration {
    v := os.Getenv(k)
    if v == "" {
        return d
    }
    if dur, err := time.ParseDuration(v); err == nil {
        return dur
    }
    return d
}

// envList splits a comma separated variable, trimming blanks.
func envList(k string, d []string) []string {
    v := os.Getenv(k)
    if v == "" {
        out := make([]string, len(d))
        copy(out, d)
        return out
    }
    var out []string
    for _, p := range strings.Split(v, ",") {
        if p = strings.TrimSpace(p); p != "" {
            out = append(out, p)
        }
    }
    return out
}
