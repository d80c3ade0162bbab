package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// parseEnv overwrites dest with the parsed value of the environment variable
// key. Unset or blank variables leave dest (the default) untouched.
func parseEnv[T any](key string, dest *T, parse func(string) (T, error)) error {
	raw, ok := os.LookupEnv(key)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		return fmt.Errorf("invalid value %q for %s: %w", raw, key, err)
	}
	*dest = v
	return nil
}

func parseEnvInt(key string, dest *int) error {
	return parseEnv(key, dest, strconv.Atoi)
}

func parseEnvBool(key string, dest *bool) error {
	return parseEnv(key, dest, strconv.ParseBool)
}

func parseEnvString(key string, dest *string) error {
	return parseEnv(key, dest, func(s string) (string, error) { return s, nil })
}
