package util

import (
	"os"
	"strconv"
	"strings"
)

// EnvString returns the variable's value, or def when unset or blank.
func EnvString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// EnvInt returns the variable parsed as int, or def when unset or invalid.
func EnvInt(key string, def int) int {
	return ParseIntDefault(os.Getenv(key), def)
}

// EnvInt64 is EnvInt for int64 values.
func EnvInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(os.Getenv(key)), 10, 64)
	if err != nil {
		return def
	}
	return v
}

// EnvList returns the comma separated variable as a list, or nil when unset.
func EnvList(key string) []string {
	return SplitList(os.Getenv(key))
}

// LookupEnv reports whether key is set to a non-blank value.
func LookupEnv(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
