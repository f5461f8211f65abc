/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AppConfig is the user-editable configuration persisted to a YAML file in
// the user scope. Environment variables are read-only overrides at runtime.
//
// config_version: bump when the structure changes in a backward-incompatible way.

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	Theme          string `yaml:"theme"` // "system" | "light" | "dark"
	Workspace      string `yaml:"workspace"`
}

type FormServiceConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type SyncConfig struct {
	Enable    bool   `yaml:"enable"`
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	// Token is not stored on disk; it lives in the OS keychain.
}

type HubConfig struct {
	APIBase  string `yaml:"api_base"`
	ClientID string `yaml:"client_id"`
	Owner    string `yaml:"owner"`
	Repo     string `yaml:"repo"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

type AppConfig struct {
	ConfigVersion int               `yaml:"config_version"`
	General       GeneralConfig     `yaml:"general"`
	FormService   FormServiceConfig `yaml:"form_service"`
	Sync          SyncConfig        `yaml:"sync"`
	Hub           HubConfig         `yaml:"hub"`
	Logging       LoggingConfig     `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: 1,
		General:       GeneralConfig{TelemetryOptIn: false, Theme: "system"},
		FormService:   FormServiceConfig{BaseURL: "http://localhost:8090", TimeoutMs: 60000},
		Sync:          SyncConfig{Enable: false, BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Hub:           HubConfig{APIBase: "https://api.github.com"},
		Logging:       LoggingConfig{Level: "info", Format: "console", File: ""},
	}
}

// Env var names used as overrides.
const (
	EnvWorkspace          = "BCV_WORKSPACE"
	EnvFormServiceURL     = "BCV_FORM_SERVICE_URL"
	EnvFormServiceTimeout = "BCV_FORM_SERVICE_TIMEOUT_MS"
	EnvSyncEnable         = "BCV_SYNC_ENABLE"
	EnvSyncURL            = "BCV_SYNC_URL"
	EnvTelemetryOptIn     = "BCV_TELEMETRY_OPT_IN"
	EnvHubAPIBase         = "BCV_HUB_API_BASE"
	EnvLogLevel           = "BCV_LOG_LEVEL"
	EnvLogFormat          = "BCV_LOG_FORMAT"
	EnvLogFile            = "BCV_LOG_FILE"
)

// Service/keys for the OS keyring.
const (
	keyringService = "BlockCanvas"
	keyringSyncKey = "sync_token"
	keyringHubKey  = "hub_token"
)

// TokenStore abstracts the keyring so tests can stub it.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

var tokenStore TokenStore = &osKeyring{}

// SetTokenStore swaps the keyring backend, returning the previous one.
// Intended for tests.
func SetTokenStore(s TokenStore) TokenStore {
	prev := tokenStore
	tokenStore = s
	return prev
}

// SyncToken reads the backend sync token from the keyring.
func SyncToken() (string, error) { return tokenStore.Get(keyringService, keyringSyncKey) }

// SetSyncToken stores or clears the backend sync token.
func SetSyncToken(tok string) error {
	if tok == "" {
		return tokenStore.Delete(keyringService, keyringSyncKey)
	}
	return tokenStore.Set(keyringService, keyringSyncKey, tok)
}

// HubToken reads the collaboration hub token from the keyring.
func HubToken() (string, error) { return tokenStore.Get(keyringService, keyringHubKey) }

// SetHubToken stores or clears the collaboration hub token.
func SetHubToken(tok string) error {
	if tok == "" {
		return tokenStore.Delete(keyringService, keyringHubKey)
	}
	return tokenStore.Set(keyringService, keyringHubKey, tok)
}

// Path returns the per-user config file path.
func Path() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "BlockCanvas")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "BlockCanvas")
	default:
		base = filepath.Join(os.Getenv("HOME"), ".config", "blockcanvas")
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return filepath.Join(base, "config.yaml"), nil
}

// Load reads the user config file (if present), applies defaults, and merges
// environment overrides.
func Load() (AppConfig, error) {
	cfg := Defaults()
	path, err := Path()
	if err != nil {
		return cfg, err
	}
	if data, rerr := os.ReadFile(path); rerr == nil {
		var fileCfg AppConfig
		if uerr := yaml.Unmarshal(data, &fileCfg); uerr == nil {
			mergeInto(&cfg, &fileCfg)
		}
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes the user config YAML.
func Save(cfg AppConfig) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	if strings.TrimSpace(src.General.Workspace) != "" {
		dst.General.Workspace = strings.TrimSpace(src.General.Workspace)
	}
	// booleans: copy directly from the file so user preferences persist
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	dst.Sync.Enable = src.Sync.Enable
	if src.FormService.BaseURL != "" {
		dst.FormService.BaseURL = src.FormService.BaseURL
	}
	if src.FormService.TimeoutMs != 0 {
		dst.FormService.TimeoutMs = src.FormService.TimeoutMs
	}
	if src.Sync.BaseURL != "" {
		dst.Sync.BaseURL = src.Sync.BaseURL
	}
	if src.Sync.TimeoutMs != 0 {
		dst.Sync.TimeoutMs = src.Sync.TimeoutMs
	}
	if src.Hub.APIBase != "" {
		dst.Hub.APIBase = src.Hub.APIBase
	}
	if src.Hub.ClientID != "" {
		dst.Hub.ClientID = src.Hub.ClientID
	}
	if src.Hub.Owner != "" {
		dst.Hub.Owner = src.Hub.Owner
	}
	if src.Hub.Repo != "" {
		dst.Hub.Repo = src.Hub.Repo
	}
	if strings.TrimSpace(src.Logging.Level) != "" {
		dst.Logging.Level = strings.ToLower(strings.TrimSpace(src.Logging.Level))
	}
	if strings.TrimSpace(src.Logging.Format) != "" {
		dst.Logging.Format = strings.ToLower(strings.TrimSpace(src.Logging.Format))
	}
	if strings.TrimSpace(src.Logging.File) != "" {
		dst.Logging.File = strings.TrimSpace(src.Logging.File)
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvWorkspace)); v != "" {
		cfg.General.Workspace = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormServiceURL)); v != "" {
		cfg.FormService.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvFormServiceTimeout)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FormService.TimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvSyncEnable)); v != "" {
		cfg.Sync.Enable = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvSyncURL)); v != "" {
		cfg.Sync.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTelemetryOptIn)); v != "" {
		cfg.General.TelemetryOptIn = isTruthy(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvHubAPIBase)); v != "" {
		cfg.Hub.APIBase = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
}

func isTruthy(v string) bool {
	lv := strings.ToLower(v)
	return lv == "1" || lv == "true" || lv == "on" || lv == "yes"
}

// DefaultWorkspace resolves the workspace directory: configured path first,
// otherwise a per-user data directory.
func DefaultWorkspace(cfg AppConfig) string {
	if cfg.General.Workspace != "" {
		return cfg.General.Workspace
	}
	switch runtime.GOOS {
	case "windows":
		return filepath.Join(os.Getenv("USERPROFILE"), "BlockCanvas")
	case "darwin":
		return filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "BlockCanvas", "workspace")
	default:
		return filepath.Join(os.Getenv("HOME"), ".local", "share", "blockcanvas")
	}
}
