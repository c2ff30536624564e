package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"git.home.luguber.info/inful/docweave/internal/confnode"
	ferrors "git.home.luguber.info/inful/docweave/internal/foundation/errors"
	"git.home.luguber.info/inful/docweave/internal/logfields"
)

// ConfFileName is the project configuration document looked up by Discover.
const ConfFileName = "build_conf.yaml"

// ErrConfigNotFound is returned by Discover when no configuration exists.
var ErrConfigNotFound = errors.New("cannot locate " + ConfFileName)

// Load reads the configuration document at path, expands ${VAR} references
// against the environment (after loading .env files) and applies runstate on
// top of any runstate section in the file.
func Load(path string, runstate map[string]any) (*Configuration, error) {
	loadEnvFiles()

	format, ok := confnode.FormatFor(path)
	if !ok {
		return nil, ferrors.WrapError(confnode.ErrUnsupportedFormat, ferrors.CategoryConfig, "unsupported configuration file").
			WithContext("path", path).
			Build()
	}
	// #nosec G304 -- path comes from the command line or Discover.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "configuration file not readable").
			WithContext("path", path).
			Build()
	}
	doc, err := confnode.Decode(format, []byte(os.ExpandEnv(string(data))))
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to parse configuration").
			WithContext("path", path).
			Build()
	}

	rs := map[string]any{}
	if fileRS, ok := doc["runstate"].(map[string]any); ok {
		for k, v := range fileRS {
			rs[k] = v
		}
	}
	for k, v := range runstate {
		rs[k] = v
	}
	if _, ok := rs["conf_path"]; !ok {
		rs["conf_path"] = path
	}
	doc["runstate"] = rs

	paths, _ := doc["paths"].(map[string]any)
	if paths == nil {
		paths = map[string]any{}
	}
	if _, ok := paths["projectroot"]; !ok {
		paths["projectroot"] = projectRootFor(path)
	}
	doc["paths"] = paths

	return New(doc)
}

// projectRootFor maps <root>/config/build_conf.yaml and <root>/build_conf.yaml to <root>.
func projectRootFor(confPath string) string {
	abs, err := filepath.Abs(confPath)
	if err != nil {
		abs = confPath
	}
	dir := filepath.Dir(abs)
	if filepath.Base(dir) == "config" {
		return filepath.Dir(dir)
	}
	return dir
}

// Discover finds the configuration document starting at start: first
// <start>/config/build_conf.yaml, then ~/build_conf.yaml, then every parent
// directory's build_conf.yaml or config/build_conf.yaml.
func Discover(start string) (string, error) {
	cur, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	if fn := filepath.Join(cur, "config", ConfFileName); isFile(fn) {
		return fn, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		if fn := filepath.Join(home, ConfFileName); isFile(fn) {
			return fn, nil
		}
	}
	for dir := cur; ; dir = filepath.Dir(dir) {
		for _, fn := range []string{filepath.Join(dir, ConfFileName), filepath.Join(dir, "config", ConfFileName)} {
			if isFile(fn) {
				return fn, nil
			}
		}
		if filepath.Dir(dir) == dir {
			break
		}
	}
	return "", ferrors.WrapError(ErrConfigNotFound, ferrors.CategoryNotFound, "configuration not found").
		WithContext("start", start).
		Build()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// loadEnvFiles loads .env and .env.local when present. Existing environment
// variables are never overwritten.
func loadEnvFiles() {
	for _, fn := range []string{".env", ".env.local"} {
		if !isFile(fn) {
			continue
		}
		if err := godotenv.Load(fn); err != nil {
			slog.Warn("Failed to load environment file", logfields.File(fn), logfields.Error(err))
			continue
		}
		slog.Debug("Loaded environment variables", logfields.File(fn))
	}
}
