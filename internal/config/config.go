// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/jeranaias/avatarchat/internal/storage"
	"github.com/jeranaias/avatarchat/internal/util"
)

// =============================================================================
// PROVIDER NAMES
// =============================================================================

// Recognized provider identifiers. These are the values accepted by the
// provider setting, environment overrides, and the auto-link query parameter.
const (
	ProviderGemini     = "gemini"
	ProviderOpenRouter = "openrouter"
	ProviderOpenClaw   = "openclaw"
)

// ValidProvider reports whether name is a recognized provider identifier.
func ValidProvider(name string) bool {
	switch name {
	case ProviderGemini, ProviderOpenRouter, ProviderOpenClaw:
		return true
	}
	return false
}

// SettingsBlobKey is the fixed blob-store key for the persisted settings.
const SettingsBlobKey = "settings"

// =============================================================================
// SETTINGS STRUCTURES
// =============================================================================

// Settings represents the complete avatarchat configuration.
type Settings struct {
	// Provider selects the active backend: "gemini", "openrouter", "openclaw".
	// Exactly one provider is active; the other groups are preserved.
	Provider string `toml:"provider" json:"provider"`

	// Gemini (hosted LLM) configuration
	Gemini GeminiSettings `toml:"gemini" json:"gemini"`

	// OpenRouter (model aggregator) configuration
	OpenRouter OpenRouterSettings `toml:"openrouter" json:"openrouter"`

	// OpenClaw (custom agent endpoint) configuration
	OpenClaw OpenClawSettings `toml:"openclaw" json:"openclaw"`

	// Speech configuration
	Speech SpeechSettings `toml:"speech" json:"speech"`

	// Scene configuration
	Scene SceneSettings `toml:"scene" json:"scene"`
}

// GeminiSettings contains hosted-LLM provider configuration.
type GeminiSettings struct {
	// APIKey is the Gemini API key
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is the Gemini model id
	Model string `toml:"model" json:"model"`
}

// OpenRouterSettings contains aggregator provider configuration.
type OpenRouterSettings struct {
	// APIKey is the OpenRouter API key
	APIKey string `toml:"api_key" json:"api_key"`
	// Model is the upstream model id (e.g. "openai/gpt-4o-mini")
	Model string `toml:"model" json:"model"`
}

// OpenClawSettings contains custom-agent endpoint configuration.
type OpenClawSettings struct {
	// BaseURL is the agent chat endpoint (typically ending in /chat)
	BaseURL string `toml:"base_url" json:"base_url"`
	// AgentID optionally selects a specific agent on the server
	AgentID string `toml:"agent_id" json:"agent_id"`
	// AuthToken is forwarded as both a bearer token and X-Api-Key
	AuthToken string `toml:"auth_token" json:"auth_token"`
}

// SpeechSettings contains speech synthesis and recognition configuration.
type SpeechSettings struct {
	// Voice is the synthesis voice identifier
	Voice string `toml:"voice" json:"voice"`
	// STTProvider selects speech-to-text: "browser" or "whisper"
	STTProvider string `toml:"stt_provider" json:"stt_provider"`
	// STTEndpoint is the endpoint used when STTProvider is "whisper"
	STTEndpoint string `toml:"stt_endpoint" json:"stt_endpoint"`
}

// SceneSettings contains 3D scene configuration.
type SceneSettings struct {
	// LightIntensity scales the scene lighting (0.0-10.0)
	LightIntensity float64 `toml:"light_intensity" json:"light_intensity"`
	// AvatarID is the active avatar
	AvatarID string `toml:"avatar_id" json:"avatar_id"`
}

// =============================================================================
// DEFAULT SETTINGS
// =============================================================================

// Default returns Settings with sensible default values.
func Default() *Settings {
	return &Settings{
		Provider: ProviderGemini,

		Gemini: GeminiSettings{
			APIKey: "",
			Model:  "gemini-2.0-flash",
		},

		OpenRouter: OpenRouterSettings{
			APIKey: "",
			Model:  "openai/gpt-4o-mini",
		},

		OpenClaw: OpenClawSettings{
			BaseURL:   "",
			AgentID:   "",
			AuthToken: "",
		},

		Speech: SpeechSettings{
			Voice:       "default",
			STTProvider: "browser",
			STTEndpoint: "",
		},

		Scene: SceneSettings{
			LightIntensity: 1.0,
			AvatarID:       "default",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the avatarchat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".avatarchat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ensureSecurePermissions checks and fixes permissions on config files.
// SECURITY: Config files should be 0600 (owner read/write only) to protect API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}

	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads settings from the operator config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
func Load() (*Settings, error) {
	cfg := Default()

	tomlPath, err := ConfigPathTOML()
	if err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				return nil, fmt.Errorf("failed to load TOML config: %w", err)
			}
			return cfg, nil
		}
	}

	jsonPath, err := ConfigPathJSON()
	if err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				return nil, fmt.Errorf("failed to load JSON config: %w", err)
			}
			return cfg, nil
		}
	}

	return cfg, nil
}

// LoadTOML loads settings from a TOML file.
// SECURITY: Checks and fixes file permissions on load.
func LoadTOML(cfg *Settings, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		// Permissions might not be fixable on all systems
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// LoadJSON loads settings from a JSON file.
// SECURITY: Checks and fixes file permissions on load.
func LoadJSON(cfg *Settings, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	fillDefaults(cfg)
	return nil
}

// fillDefaults fills in any missing values with defaults.
func fillDefaults(cfg *Settings) {
	defaults := Default()

	if cfg.Provider == "" {
		cfg.Provider = defaults.Provider
	}
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = defaults.Gemini.Model
	}
	if cfg.OpenRouter.Model == "" {
		cfg.OpenRouter.Model = defaults.OpenRouter.Model
	}
	if cfg.Speech.Voice == "" {
		cfg.Speech.Voice = defaults.Speech.Voice
	}
	if cfg.Speech.STTProvider == "" {
		cfg.Speech.STTProvider = defaults.Speech.STTProvider
	}
	if cfg.Scene.LightIntensity == 0 {
		cfg.Scene.LightIntensity = defaults.Scene.LightIntensity
	}
	if cfg.Scene.AvatarID == "" {
		cfg.Scene.AvatarID = defaults.Scene.AvatarID
	}
}

// =============================================================================
// RESOLUTION
// =============================================================================

// Resolve layers the full settings stack: defaults, operator config file,
// persisted settings blob, then environment overrides. The result is validated
// before being returned. URL auto-link parameters are applied separately per
// page load (see ApplyAutoLink).
func Resolve(store *storage.BlobStore) (*Settings, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	// Overlay the persisted blob. Unmarshaling into the already-populated
	// struct gives shallow-merge semantics: fields absent from an older
	// blob keep their defaults rather than becoming zero values.
	if store != nil && store.Exists(SettingsBlobKey) {
		data, err := store.Get(SettingsBlobKey)
		if err != nil {
			return nil, fmt.Errorf("failed to read persisted settings: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to decode persisted settings: %w", err)
		}
		fillDefaults(cfg)
	}

	cfg.ApplyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveToStore persists the settings wholesale to the blob store.
// This is the only write path: a save atomically replaces the whole blob.
func (s *Settings) SaveToStore(store *storage.BlobStore) error {
	return store.PutJSON(SettingsBlobKey, s)
}

// SaveTOML saves the settings to a TOML file.
// SECURITY: Creates config files with 0600 permissions (owner read/write only).
func SaveTOML(cfg *Settings, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	// SECURITY: Ensure permissions are correct even if file already existed
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set config file permissions: %w", err)
	}

	fmt.Fprintln(file, "# avatarchat configuration file")
	fmt.Fprintln(file, "# Generated by avatarchat - edit with care")
	fmt.Fprintln(file, "")

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

// SaveJSON saves the settings to a JSON file.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveJSON(cfg *Settings, path string) error {
	if err := EnsureConfigDir(); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	// SECURITY: Write with restrictive permissions (0600 = owner read/write only)
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a settings validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the settings and returns any errors.
func (s *Settings) Validate() error {
	var errs ValidateErrors

	if !ValidProvider(s.Provider) {
		errs = append(errs, ValidationError{
			Field:   "provider",
			Message: fmt.Sprintf("invalid provider '%s', must be one of: gemini, openrouter, openclaw", s.Provider),
		})
	}

	if s.OpenClaw.BaseURL != "" {
		if u, err := url.Parse(s.OpenClaw.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, ValidationError{
				Field:   "openclaw.base_url",
				Message: fmt.Sprintf("invalid URL '%s'", s.OpenClaw.BaseURL),
			})
		}
	}

	if s.Speech.STTProvider != "" {
		validSTT := map[string]bool{"browser": true, "whisper": true}
		if !validSTT[strings.ToLower(s.Speech.STTProvider)] {
			errs = append(errs, ValidationError{
				Field:   "speech.stt_provider",
				Message: fmt.Sprintf("invalid provider '%s', must be one of: browser, whisper", s.Speech.STTProvider),
			})
		}
	}

	if s.Scene.LightIntensity < 0 || s.Scene.LightIntensity > 10 {
		errs = append(errs, ValidationError{
			Field:   "scene.light_intensity",
			Message: fmt.Sprintf("must be between 0.0 and 10.0, got %s", strconv.FormatFloat(s.Scene.LightIntensity, 'f', 2, 64)),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the settings.
//
// Supported environment variables:
//   - AVATARCHAT_PROVIDER: overrides provider
//   - AVATARCHAT_MODEL: overrides the active provider's model field
//   - GEMINI_API_KEY: overrides gemini.api_key
//   - OPENROUTER_API_KEY: overrides openrouter.api_key
//   - AVATARCHAT_OPENCLAW_URL: overrides openclaw.base_url
//   - AVATARCHAT_OPENCLAW_AGENT: overrides openclaw.agent_id
//   - AVATARCHAT_OPENCLAW_TOKEN: overrides openclaw.auth_token
func (s *Settings) ApplyEnvOverrides() {
	if provider := os.Getenv("AVATARCHAT_PROVIDER"); provider != "" && ValidProvider(provider) {
		s.Provider = provider
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		s.Gemini.APIKey = key
	}

	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		s.OpenRouter.APIKey = key
	}

	if baseURL := os.Getenv("AVATARCHAT_OPENCLAW_URL"); baseURL != "" {
		s.OpenClaw.BaseURL = baseURL
	}

	if agentID := os.Getenv("AVATARCHAT_OPENCLAW_AGENT"); agentID != "" {
		s.OpenClaw.AgentID = agentID
	}

	if token := os.Getenv("AVATARCHAT_OPENCLAW_TOKEN"); token != "" {
		s.OpenClaw.AuthToken = token
	}

	// Model routes to the field of whichever provider is active
	if model := os.Getenv("AVATARCHAT_MODEL"); model != "" {
		switch s.Provider {
		case ProviderGemini:
			s.Gemini.Model = model
		case ProviderOpenRouter:
			s.OpenRouter.Model = model
		}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

// Clone creates a copy of the settings. Settings contain only value types,
// so a struct copy is a full copy; callers get an independent instance that
// can be mutated and swapped in wholesale.
func (s *Settings) Clone() *Settings {
	clone := *s
	return &clone
}

// String returns a string representation of the settings for debugging.
// SECURITY: Redacts credentials to prevent accidental exposure in logs.
func (s *Settings) String() string {
	safe := s.Clone()

	if safe.Gemini.APIKey != "" {
		safe.Gemini.APIKey = "[REDACTED]"
	}
	if safe.OpenRouter.APIKey != "" {
		safe.OpenRouter.APIKey = "[REDACTED]"
	}
	if safe.OpenClaw.AuthToken != "" {
		safe.OpenClaw.AuthToken = "[REDACTED]"
	}

	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
