// Package config provides configuration loading for the vibecheck engine.
// Settings come from an optional YAML file with environment-variable
// overrides, so the engine runs with zero configuration in development.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Defaults for the engine.
const (
	DefaultListenAddr = ":8090"
	DefaultModelDir   = "models"
	DefaultLogLevel   = "info"

	// Default model asset locations. Weights are fetched once and cached
	// in ModelDir for the life of the installation.
	DefaultFaceModelURL    = "https://github.com/opencv/opencv_zoo/raw/main/models/face_detection_yunet/face_detection_yunet_2023mar.onnx"
	DefaultEmotionModelURL = "https://github.com/onnx/models/raw/main/validated/vision/body_analysis/emotion_ferplus/model/emotion-ferplus-8.onnx"
)

// Config holds all engine settings.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ModelDir is where downloaded model weights are cached.
	ModelDir string `yaml:"model_dir"`

	// FaceModelURL and EmotionModelURL point at the ONNX model assets.
	FaceModelURL    string `yaml:"face_model_url"`
	EmotionModelURL string `yaml:"emotion_model_url"`

	// CameraDevice is the capture device index for the live feed.
	CameraDevice int `yaml:"camera_device"`

	// DetectionIntervalMS is the minimum gap between live-feed
	// verification attempts, in milliseconds.
	DetectionIntervalMS int `yaml:"detection_interval_ms"`
}

// Default returns the zero-configuration defaults.
func Default() Config {
	return Config{
		ListenAddr:          DefaultListenAddr,
		LogLevel:            DefaultLogLevel,
		ModelDir:            DefaultModelDir,
		FaceModelURL:        DefaultFaceModelURL,
		EmotionModelURL:     DefaultEmotionModelURL,
		CameraDevice:        0,
		DetectionIntervalMS: 150,
	}
}

// Load reads the config file at path if it exists, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Run on defaults.
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks for settings that would prevent startup.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	if c.ModelDir == "" {
		return fmt.Errorf("config: model_dir is required")
	}
	if c.DetectionIntervalMS < 0 {
		return fmt.Errorf("config: detection_interval_ms must be >= 0")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MOODFI_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("MOODFI_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MOODFI_MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}
	if v := os.Getenv("MOODFI_CAMERA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CameraDevice = n
		}
	}
}
