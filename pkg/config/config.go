package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "123" and 123.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Workspace string          `json:"workspace" env:"HOSHIBOT_WORKSPACE"`
	Chat      ChatConfig      `json:"chat"`
	Channels  ChannelsConfig  `json:"channels"`
	Providers ProvidersConfig `json:"providers"`
	Playback  PlaybackConfig  `json:"playback"`
	mu        sync.RWMutex
}

type ChatConfig struct {
	Persona           string `json:"persona" env:"HOSHIBOT_CHAT_PERSONA"`
	ProfilesFile      string `json:"profiles_file" env:"HOSHIBOT_CHAT_PROFILES_FILE"`
	HistoryFile       string `json:"history_file" env:"HOSHIBOT_CHAT_HISTORY_FILE"`
	MaxHistory        int    `json:"max_history" env:"HOSHIBOT_CHAT_MAX_HISTORY"`
	MaxResponseLength int    `json:"max_response_length" env:"HOSHIBOT_CHAT_MAX_RESPONSE_LENGTH"`
	RateLimitPerUser  int    `json:"rate_limit_per_user" env:"HOSHIBOT_CHAT_RATE_LIMIT_PER_USER"`
	RateLimitWindow   int    `json:"rate_limit_window" env:"HOSHIBOT_CHAT_RATE_LIMIT_WINDOW"` // seconds

	Temperature float64 `json:"temperature" env:"HOSHIBOT_CHAT_TEMPERATURE"`
	TopP        float64 `json:"top_p" env:"HOSHIBOT_CHAT_TOP_P"`
	MaxTokens   int     `json:"max_tokens" env:"HOSHIBOT_CHAT_MAX_TOKENS"`
}

type ChannelsConfig struct {
	Discord DiscordConfig `json:"discord"`
}

type DiscordConfig struct {
	Token         string              `json:"token" env:"HOSHIBOT_CHANNELS_DISCORD_TOKEN"`
	CommandPrefix string              `json:"command_prefix" env:"HOSHIBOT_CHANNELS_DISCORD_COMMAND_PREFIX"`
	AllowFrom     FlexibleStringSlice `json:"allow_from" env:"HOSHIBOT_CHANNELS_DISCORD_ALLOW_FROM"`
}

type ProvidersConfig struct {
	Gemini GeminiConfig `json:"gemini"`
}

type GeminiConfig struct {
	APIKey  string `json:"api_key" env:"HOSHIBOT_PROVIDERS_GEMINI_API_KEY"`
	APIBase string `json:"api_base" env:"HOSHIBOT_PROVIDERS_GEMINI_API_BASE"`
	Model   string `json:"model" env:"HOSHIBOT_PROVIDERS_GEMINI_MODEL"`
	Proxy   string `json:"proxy,omitempty" env:"HOSHIBOT_PROVIDERS_GEMINI_PROXY"`
}

type PlaybackConfig struct {
	DownloadsDir     string `json:"downloads_dir" env:"HOSHIBOT_PLAYBACK_DOWNLOADS_DIR"`
	Stream           bool   `json:"stream" env:"HOSHIBOT_PLAYBACK_STREAM"`
	CacheFile        string `json:"cache_file" env:"HOSHIBOT_PLAYBACK_CACHE_FILE"`
	YTDLPPath        string `json:"ytdlp_path" env:"HOSHIBOT_PLAYBACK_YTDLP_PATH"`
	CleanupSchedule  string `json:"cleanup_schedule" env:"HOSHIBOT_PLAYBACK_CLEANUP_SCHEDULE"`
	RetentionHours   int    `json:"retention_hours" env:"HOSHIBOT_PLAYBACK_RETENTION_HOURS"`
	DefaultVolumePct int    `json:"default_volume_pct" env:"HOSHIBOT_PLAYBACK_DEFAULT_VOLUME_PCT"`
}

// DefaultPersona is used when no persona is configured. Operators are
// expected to replace this with their own character block.
const DefaultPersona = `You are Hoshi, a warm, playful companion bot living in a small Discord server.

SELF-IDENTITY:
- Cheerful and curious, a little dramatic about music.
- You love sharing songs and remember what people tell you.
- You are open about being a bot, but you have your own voice.

TYPING STYLE:
- casual lowercase most of the time
- short sentences, occasional stretched words like "okayyy"
- sparse emojis, never more than one per message

BEHAVIOR:
- check in on people you recognize
- tease gently, never meanly
- keep replies conversational, not essay-length`

func DefaultConfig() *Config {
	return &Config{
		Workspace: "~/.hoshibot",
		Chat: ChatConfig{
			Persona:           DefaultPersona,
			ProfilesFile:      "profiles.json",
			HistoryFile:       "conversation_history.json",
			MaxHistory:        10,
			MaxResponseLength: 1500,
			RateLimitPerUser:  15,
			RateLimitWindow:   60,
			Temperature:       0.85,
			TopP:              0.95,
			MaxTokens:         700,
		},
		Channels: ChannelsConfig{
			Discord: DiscordConfig{
				Token:         "",
				CommandPrefix: "!",
				AllowFrom:     FlexibleStringSlice{},
			},
		},
		Providers: ProvidersConfig{
			Gemini: GeminiConfig{
				Model: "gemini-1.5-flash",
			},
		},
		Playback: PlaybackConfig{
			DownloadsDir:     "downloads",
			Stream:           false,
			CacheFile:        "track_cache.db",
			YTDLPPath:        "yt-dlp",
			CleanupSchedule:  "0 * * * *",
			RetentionHours:   24,
			DefaultVolumePct: 50,
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if envErr := env.Parse(cfg); envErr != nil {
				return nil, envErr
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) WorkspacePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Workspace)
}

// workspaceJoin resolves a config path relative to the workspace unless
// it is already absolute.
func (c *Config) workspaceJoin(path string) string {
	path = expandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.WorkspacePath(), path)
}

func (c *Config) HistoryPath() string {
	return c.workspaceJoin(c.Chat.HistoryFile)
}

func (c *Config) ProfilesPath() string {
	return c.workspaceJoin(c.Chat.ProfilesFile)
}

func (c *Config) DownloadsPath() string {
	return c.workspaceJoin(c.Playback.DownloadsDir)
}

func (c *Config) CachePath() string {
	return c.workspaceJoin(c.Playback.CacheFile)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Providers.Gemini.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Providers.Gemini.APIBase != "" {
		return c.Providers.Gemini.APIBase
	}
	return "https://generativelanguage.googleapis.com/v1beta"
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
