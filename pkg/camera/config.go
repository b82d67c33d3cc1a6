// Package camera provides scoped access to the capture device that
// feeds the live mood view. The device is exclusively owned by one
// consumer at a time and is always released on the way out.
package camera

import "fmt"

// Config holds capture device settings.
type Config struct {
	// Device is the capture device index.
	Device int `yaml:"device" json:"device"`

	// Width and Height are the requested frame size in pixels.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`

	// FPS is the requested capture rate.
	FPS int `yaml:"fps" json:"fps"`

	// Quality is the JPEG encode quality, 1-100.
	Quality int `yaml:"quality" json:"quality"`
}

// DefaultConfig returns settings suited to webcam mood capture:
// modest resolution keeps per-frame inference fast.
func DefaultConfig() Config {
	return Config{
		Device:  0,
		Width:   640,
		Height:  480,
		FPS:     30,
		Quality: 80,
	}
}

// HDConfig returns settings for higher-quality still captures.
func HDConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 1280
	cfg.Height = 720
	cfg.Quality = 90
	return cfg
}

// Validate checks for settings the device cannot accept.
func (c Config) Validate() error {
	if c.Device < 0 {
		return fmt.Errorf("camera: device index must be >= 0")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("camera: frame size must be positive")
	}
	if c.Quality < 1 || c.Quality > 100 {
		return fmt.Errorf("camera: quality must be 1-100")
	}
	return nil
}
