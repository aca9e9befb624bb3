package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Port             int      `toml:"port"`
	DataPath         string   `toml:"data_path"`
	DBPath           string   `toml:"db_path"`
	BlobPath         string   `toml:"blob_path"`
	DebugAudioPath   string   `toml:"debug_audio_path"`
	PublicBaseURL    string   `toml:"public_base_url"`
	MaxDownloadBytes int64    `toml:"max_download_bytes"`
	SpeechRegion     string   `toml:"speech_region"`
	SpeechAPIVersion string   `toml:"speech_api_version"`
	SpeechKey        string   `toml:"speech_key"`
	ListenNotesURL   string   `toml:"listennotes_url"`
	ListenNotesKey   string   `toml:"listennotes_key"`
	CORSOrigins      []string `toml:"cors_origins"`
}

// Load builds the config in three layers: defaults, then an optional TOML
// file named by CONFIG_PATH, then environment variables. Env always wins.
func Load() *Config {
	cfg := defaults()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			log.Fatalf("Failed to load config file %s: %v", path, err)
		}
	}

	applyEnv(cfg)

	if cfg.SpeechKey == "" {
		log.Println("WARNING: SPEECH_KEY not set, provider submissions will be rejected. Set SPEECH_KEY env var or speech_key in the config file.")
	}
	if cfg.DBPath == "" {
		cfg.DBPath = cfg.DataPath + "/podcasts.db"
	}
	if cfg.BlobPath == "" {
		cfg.BlobPath = cfg.DataPath + "/blobs"
	}
	if cfg.DebugAudioPath == "" {
		cfg.DebugAudioPath = cfg.DataPath + "/debug-audio"
	}

	return cfg
}

func defaults() *Config {
	return &Config{
		Port:             8080,
		DataPath:         "/data",
		PublicBaseURL:    "http://localhost:8080",
		MaxDownloadBytes: 10 * 1024 * 1024,
		SpeechRegion:     "eastus",
		SpeechAPIVersion: "v3.1",
		CORSOrigins:      []string{"*"},
	}
}

func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return toml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("DATA_PATH"); v != "" {
		cfg.DataPath = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("BLOB_PATH"); v != "" {
		cfg.BlobPath = v
	}
	if v := os.Getenv("DEBUG_AUDIO_PATH"); v != "" {
		cfg.DebugAudioPath = v
	}
	if v := os.Getenv("PUBLIC_BASE_URL"); v != "" {
		cfg.PublicBaseURL = v
	}
	if v := os.Getenv("MAX_DOWNLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxDownloadBytes = n
		}
	}
	if v := os.Getenv("SPEECH_REGION"); v != "" {
		cfg.SpeechRegion = v
	}
	if v := os.Getenv("SPEECH_API_VERSION"); v != "" {
		cfg.SpeechAPIVersion = v
	}
	if v := os.Getenv("SPEECH_KEY"); v != "" {
		cfg.SpeechKey = v
	}
	if v := os.Getenv("LISTENNOTES_URL"); v != "" {
		cfg.ListenNotesURL = v
	}
	if v := os.Getenv("LISTENNOTES_KEY"); v != "" {
		cfg.ListenNotesKey = v
	}

	// CORS origins: comma-separated list or "*" (default)
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		cfg.CORSOrigins = make([]string, 0, len(origins))
		for _, o := range origins {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
}
