package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "FLASHDECK_"

// ReadEnv returns FLASHDECK_ variables from the .env file at path, with the
// process environment taking precedence. A missing file is not an error.
func ReadEnv(path string) (map[string]string, error) {
	values := map[string]string{}
	if path != "" {
		fileValues, err := godotenv.Read(path)
		switch {
		case err == nil:
			for k, v := range fileValues {
				if strings.HasPrefix(k, EnvPrefix) {
					values[k] = v
				}
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("failed to read env file: %w", err)
		}
	}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			values[k] = v
		}
	}
	return values, nil
}

// ApplyEnv overlays environment values onto the file config.
func ApplyEnv(cfg FileConfig, env map[string]string) (FileConfig, error) {
	setString := func(name string, target **string) {
		if v, ok := env[EnvPrefix+name]; ok {
			v = strings.TrimSpace(v)
			*target = &v
		}
	}
	setInt := func(name string, target **int) error {
		v, ok := env[EnvPrefix+name]
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s%s: %w", EnvPrefix, name, err)
		}
		*target = &n
		return nil
	}
	setList := func(name string, target **[]string) {
		v, ok := env[EnvPrefix+name]
		if !ok {
			return
		}
		list := splitList(v)
		*target = &list
	}

	setString("LOG_LEVEL", &cfg.LogLevel)
	setString("SOURCE_URL", &cfg.Source.URL)
	setString("SOURCE_TIMEOUT", &cfg.Source.Timeout)
	setString("SUBJECT", &cfg.Practice.Subject)
	setString("SIZE", &cfg.Practice.Size)
	setString("SHELL_ORIGIN", &cfg.Offline.ShellOrigin)
	setString("LISTEN", &cfg.Offline.Listen)
	setList("SHELL_ASSETS", &cfg.Offline.ShellAssets)
	setList("ALLOWED_ORIGINS", &cfg.Offline.AllowedOrigins)
	for name, target := range map[string]**int{
		"SOURCE_RETRIES": &cfg.Source.Retries,
		"OPTIONS":        &cfg.Practice.Options,
		"SHELL_VERSION":  &cfg.Offline.ShellVersion,
		"DATA_VERSION":   &cfg.Offline.DataVersion,
	} {
		if err := setInt(name, target); err != nil {
			return FileConfig{}, err
		}
	}
	return cfg, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
