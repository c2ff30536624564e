package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const exampleConfig = `project:
  name: manual
  tag: manual
  title: Project Manual
  url: https://docs.example.com
paths:
  output: build
  source: source
  includes: source/includes
  images: source/images
  buildsystem: build/docs-tools
  tools: build/docs-tools
  builddata: config
runstate:
  runner: process
  language: en
system:
  make:
    generated: []
    static: []
`

// Init writes an example build_conf.yaml under <dir>/config.
func Init(dir string, force bool) (string, error) {
	path := filepath.Join(dir, "config", ConfFileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}
	return path, nil
}
