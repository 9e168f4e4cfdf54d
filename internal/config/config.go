// Package config resolves the tool's settings from flags, environment
// variables and an optional JSON config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Default values applied when neither flags, environment nor the config
// file say otherwise.
const (
	DefaultSchool       = "sgu"
	DefaultCalendarName = "Class Schedule"
	DefaultTimeZone     = "Asia/Ho_Chi_Minh"
	DefaultTokenPath    = "token.json"
)

// GoogleCredentials represents the structure of Google OAuth credentials JSON file.
type GoogleCredentials struct {
	Installed struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"installed"`
	Web struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	} `json:"web"`
}

// LoadGoogleCredentials loads Google OAuth credentials from a JSON file.
func LoadGoogleCredentials(path string) (clientID, clientSecret string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds GoogleCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return "", "", fmt.Errorf("failed to parse credentials file: %w", err)
	}

	// Try "installed" first (for desktop apps), then "web"
	if creds.Installed.ClientID != "" {
		return creds.Installed.ClientID, creds.Installed.ClientSecret, nil
	}
	if creds.Web.ClientID != "" {
		return creds.Web.ClientID, creds.Web.ClientSecret, nil
	}

	return "", "", fmt.Errorf("no client_id found in credentials file (expected 'installed' or 'web' section)")
}

// Config holds the settings for the schedule tool. The portal password is
// deliberately not part of the config file: it only ever comes from the
// CLASSCAL_PASSWORD environment variable or an interactive prompt.
type Config struct {
	School          string `json:"school,omitempty"`
	Username        string `json:"username,omitempty"`
	Password        string `json:"-"`
	CredentialsPath string `json:"credentials_path,omitempty"`
	TokenPath       string `json:"token_path,omitempty"`
	CalendarName    string `json:"calendar_name,omitempty"`
	TimeZone        string `json:"time_zone,omitempty"`
	ProfilesPath    string `json:"profiles_path,omitempty"`
}

// LoadConfigFromFile loads configuration from a JSON file.
func LoadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// LoadConfig loads configuration with the following precedence (highest to lowest):
// 1. Command-line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
// The credentials path has no default and may come back empty; only the
// modes that talk to Google need it.
func LoadConfig(configFile, schoolFlag, usernameFlag, credentialsPathFlag, tokenPathFlag, calendarNameFlag, timeZoneFlag, profilesPathFlag string) (*Config, error) {
	// A local .env file is optional.
	_ = godotenv.Load()

	var config Config

	// Step 1: Load from config file if provided
	if configFile != "" {
		fileConfig, err := LoadConfigFromFile(configFile)
		if err != nil {
			return nil, err
		}
		config = *fileConfig
	}

	// Step 2: Override with environment variables
	if school := os.Getenv("CLASSCAL_SCHOOL"); school != "" {
		config.School = school
	}
	if username := os.Getenv("CLASSCAL_USERNAME"); username != "" {
		config.Username = username
	}
	if credentialsPath := os.Getenv("CLASSCAL_CREDENTIALS"); credentialsPath != "" {
		config.CredentialsPath = credentialsPath
	}
	if tokenPath := os.Getenv("CLASSCAL_TOKEN"); tokenPath != "" {
		config.TokenPath = tokenPath
	}
	if calendarName := os.Getenv("CLASSCAL_CALENDAR"); calendarName != "" {
		config.CalendarName = calendarName
	}
	if timeZone := os.Getenv("CLASSCAL_TIMEZONE"); timeZone != "" {
		config.TimeZone = timeZone
	}
	if profilesPath := os.Getenv("CLASSCAL_PROFILES"); profilesPath != "" {
		config.ProfilesPath = profilesPath
	}

	// The environment is the only non-interactive way to hand over the
	// portal password.
	config.Password = os.Getenv("CLASSCAL_PASSWORD")

	// Step 3: Override with command-line flags (highest priority)
	if schoolFlag != "" {
		config.School = schoolFlag
	}
	if usernameFlag != "" {
		config.Username = usernameFlag
	}
	if credentialsPathFlag != "" {
		config.CredentialsPath = credentialsPathFlag
	}
	if tokenPathFlag != "" {
		config.TokenPath = tokenPathFlag
	}
	if calendarNameFlag != "" {
		config.CalendarName = calendarNameFlag
	}
	if timeZoneFlag != "" {
		config.TimeZone = timeZoneFlag
	}
	if profilesPathFlag != "" {
		config.ProfilesPath = profilesPathFlag
	}

	// Step 4: Apply defaults and validate required fields
	if config.School == "" {
		config.School = DefaultSchool
	}
	if config.CalendarName == "" {
		config.CalendarName = DefaultCalendarName
	}
	if config.TimeZone == "" {
		config.TimeZone = DefaultTimeZone
	}
	if config.TokenPath == "" {
		config.TokenPath = DefaultTokenPath
	}

	if _, err := time.LoadLocation(config.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", config.TimeZone, err)
	}

	return &config, nil
}

// Location returns the configured time zone, which LoadConfig has already
// validated.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}
