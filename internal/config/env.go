package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables read by linkscan.
const (
	// EnvWebhookURL holds the notification webhook URL.
	EnvWebhookURL = "LINKSCAN_WEBHOOK_URL"

	// EnvDefaultURL holds the URL scanned when no target is given.
	EnvDefaultURL = "LINKSCAN_DEFAULT_URL"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set.
// Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}
	}
	return nil
}

// ApplyEnv copies environment settings into empty fields of c.
func (c *Config) ApplyEnv() {
	if c.WebhookURL == "" {
		c.WebhookURL = os.Getenv(EnvWebhookURL)
	}
	if c.DefaultURL == "" {
		c.DefaultURL = os.Getenv(EnvDefaultURL)
	}
}
