// Package configutil loads json5 configuration files with optional
// machine-local overrides.
package configutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	sheetfeed "github.com/ideamans/go-sheetfeed"
	"github.com/titanous/json5"
)

// LocalName returns the override file for name: "dir/app.json5" becomes
// "dir/app.local.json5".
func LocalName(name string) string {
	ext := filepath.Ext(name)
	return strings.TrimSuffix(name, ext) + ".local" + ext
}

// ReadConfig decodes name and then merges LocalName(name) over it, where
// non-zero fields of the local file win. Either file may be missing, but not
// both: that reports fs.ErrNotExist.
func ReadConfig[T any](name string, logger *slog.Logger) (T, error) {
	var out T
	found, err := decodeFile(name, &out)
	if err != nil {
		return out, err
	}

	local := LocalName(name)
	var override T
	foundLocal, err := decodeFile(local, &override)
	if err != nil {
		return out, err
	}
	if foundLocal {
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("failed to merge %s: %w", local, err)
		}
		if logger != nil {
			logger.Debug("merged local config overrides", "local", local)
		}
	}

	if !found && !foundLocal {
		return out, fs.ErrNotExist
	}
	return out, nil
}

func decodeFile(name string, v any) (bool, error) {
	data, err := os.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := json5.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: %s: %v", sheetfeed.ErrConfig, name, err)
	}
	return true, nil
}

// Find looks for name in dir and each of its parents, returning the config
// from the nearest directory that has one.
func Find[T any](dir, name string, logger *slog.Logger) (T, string, error) {
	var zero T
	dir, err := filepath.Abs(dir)
	if err != nil {
		return zero, "", err
	}
	for {
		path := filepath.Join(dir, name)
		config, err := ReadConfig[T](path, logger)
		if err == nil {
			return config, path, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return zero, "", err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return zero, "", fs.ErrNotExist
		}
		dir = parent
	}
}
