package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// envBool reads a boolean flag.
//
// Accepted: true/1/yes/y/on and false/0/no/n/off, case-insensitive.
func envBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func int64FromEnv(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func secondsFromEnv(key string, def time.Duration) time.Duration {
	n := intFromEnv(key, -1)
	if n < 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

// SplitAndTrim splits a comma separated list, dropping blanks.
func SplitAndTrim(csv string) []string {
	if strings.TrimSpace(csv) == "" {
		return nil
	}
	parts := strings.Split(csv, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBankAccounts reads "bca=1234567890 a.n Wago Payment;bni=..." into a map
// keyed by lower-case method.
func parseBankAccounts(raw string) map[string]string {
	out := map[string]string{}
	for _, entry := range strings.Split(raw, ";") {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// retryBackoff mirrors the connect loops: 2^attempt seconds, capped at 30s.
func retryBackoff(attempt int) time.Duration {
	sleep := time.Second * time.Duration(1<<min(attempt, 5))
	if sleep > 30*time.Second {
		sleep = 30 * time.Second
	}
	return sleep
}
