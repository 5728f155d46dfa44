package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	env "github.com/caarlos0/env/v6"
	"gopkg.in/yaml.v3"
)

// Load reads a configuration document from path, dispatching on file
// extension exactly like the teacher's loadFromSource (TOML is the
// default for anything that isn't .yaml/.yml, per spec.md §6's explicit
// TOML mention), then overlays any IRCD_*-tagged environment variables.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if err := cfg.loadFromFile(path); err != nil {
		return nil, err
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: environment overlay: %w", err)
	}
	cfg.Source = path
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	switch {
	case strings.HasSuffix(path, ".yaml"), strings.HasSuffix(path, ".yml"):
		err = yaml.Unmarshal(data, c)
	default:
		err = toml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// LoadMOTD reads a plain-text MOTD file into lines, trimming trailing
// whitespace per line. A missing path or missing file is not an error —
// the caller falls back to the built-in one-line banner.
func LoadMOTD(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open motd file: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read motd file: %w", err)
	}
	return lines, nil
}
