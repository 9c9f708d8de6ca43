package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigFile is the configuration file looked up in the current
	// and home directories.
	DefaultConfigFile = ".linkscan"

	// XDGConfigFile is the configuration file name inside XDGConfigDir.
	XDGConfigFile = "config.yaml"
)

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile reads a .linkscan file. Unknown keys are rejected so that
// a misspelled "maxpages" does not silently fall back to the default.
// Site keys may be written as host names or URLs; they are stored as the
// lower-cased host (with port) that SiteConfigFor looks up.
func LoadConfigFile(path string) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}
	defer f.Close()

	var cf File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cf); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	if err := validateSiteConfig("defaults", cf.Defaults); err != nil {
		return nil, err
	}

	sites := make(map[string]SiteConfig, len(cf.Sites))
	for key, site := range cf.Sites {
		host := HostOf(key)
		if host == "" {
			return nil, fmt.Errorf("%w: invalid site %q", ErrInvalidSiteConfig, key)
		}
		if err := validateSiteConfig(host, site); err != nil {
			return nil, err
		}
		sites[host] = site
	}
	cf.Sites = sites

	return &cf, nil
}

func validateSiteConfig(name string, site SiteConfig) error {
	if site.MaxPages < 0 || site.MaxPages > DefaultMaxPages {
		return fmt.Errorf("%w: %s: maxPages must be between 1 and %d", ErrInvalidSiteConfig, name, DefaultMaxPages)
	}
	if strings.ContainsAny(site.Cookie, "\r\n") {
		return fmt.Errorf("%w: %s: cookie must be a single line", ErrInvalidSiteConfig, name)
	}
	return nil
}

// ConfigSearchPaths lists the locations FindConfigFile tries when no path
// is given, in order:
//  1. .linkscan in the current directory
//  2. config.yaml in the XDG config directory (~/.config/linkscan on Linux)
//  3. .linkscan in the home directory
func ConfigSearchPaths() []string {
	paths := make([]string, 0, 3)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, DefaultConfigFile))
	}
	paths = append(paths, filepath.Join(XDGConfigDir(), XDGConfigFile))
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, DefaultConfigFile))
	}
	return paths
}

// FindConfigFile returns configPath when it exists, or the first existing
// entry of ConfigSearchPaths when configPath is empty. It returns "" when
// nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	for _, path := range ConfigSearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
