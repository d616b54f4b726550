package config

import (
    "strings"
)

// ClassLimits holds the fixed-window thresholds of one endpoint class.
type ClassLimits struct {
    Enabled   bool
    PerMinute int
    PerHour   int
    PerDay    int
}

// RateLimitConfig configures the fixed-window limiter.  Each endpoint class
// (GLOBAL, AUTH, UPLOAD, API) is read from RATE_LIMIT_<CLASS>_* variables.
type RateLimitConfig struct {
    Prefix   string
    Debug    bool
    Global   ClassLimits
    Auth     ClassLimits
    Upload   ClassLimits
    API      ClassLimits
    APIPaths []string
}

func LoadRateLimitConfig() RateLimitConfig {
    return RateLimitConfig{
        Prefix:   envStr("RATE_LIMIT_PREFIX", "rate_limit"),
        Debug:    envBool("RATE_LIMIT_DEBUG", false),
        Global:   loadClass("GLOBAL", ClassLimits{Enabled: true, PerMinute: 100, PerHour: 1000, PerDay: 10000}),
        Auth:     loadClass("AUTH", ClassLimits{Enabled: true, PerMinute: 5, PerHour: 20, PerDay: 100}),
        Upload:   loadClass("UPLOAD", ClassLimits{Enabled: true, PerMinute: 10, PerHour: 50, PerDay: 200}),
        API:      loadClass("API", ClassLimits{Enabled: true, PerMinute: 60, PerHour: 1000, PerDay: 10000}),
        APIPaths: envList("RATE_LIMIT_API_PATHS", []string{"/users/**", "/admin/**"}),
    }
}

func loadClass(name string, def ClassLimits) ClassLimits {
    p := "RATE_LIMIT_" + strings.ToUpper(name) + "_"
    c := ClassLimits{
        Enabled:   envBool(p+"ENABLED", def.Enabled),
        PerMinute: envInt(p+"PER_MINUTE", def.PerMinute),
        PerHour:   envInt(p+"PER_HOUR", def.PerHour),
        PerDay:    envInt(p+"PER_DAY", def.PerDay),
    }
    if c.PerMinute < 1 { c.PerMinute = 1 }
    if c.PerHour < c.PerMinute { c.PerHour = c.PerMinute }
    if c.PerDay < c.PerHour { c.PerDay = c.PerHour }
    return c
}
