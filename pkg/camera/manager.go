package camera

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrBusy is returned when the device is already claimed.
var ErrBusy = errors.New("camera: device already claimed")

// AcquisitionError wraps hardware or permission failures opening the
// capture device.
type AcquisitionError struct {
	Device int
	Err    error
}

// Error implements the error interface.
func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("camera: acquire device %d: %v", e.Device, e.Err)
}

// Unwrap returns the underlying error.
func (e *AcquisitionError) Unwrap() error { return e.Err }

// Device is an open capture device. CaptureJPEG satisfies the frame
// source contract of the training loop.
type Device struct {
	mu      sync.Mutex
	cap     *gocv.VideoCapture
	quality int
	closed  bool
	release func()
}

// CaptureJPEG reads one frame and encodes it as JPEG.
func (d *Device) CaptureJPEG() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, errors.New("camera: device closed")
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.cap.Read(&img); !ok || img.Empty() {
		return nil, errors.New("camera: failed to read frame")
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, d.quality})
	if err != nil {
		return nil, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the device handle and the manager's claim. It is
// idempotent and must be called on every exit path.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	err := d.cap.Close()
	if d.release != nil {
		d.release()
	}
	return err
}

// Manager hands out exclusive access to the configured capture
// device. Only one consumer reads frames at a time; a second Acquire
// fails with ErrBusy until the first Device is closed.
type Manager struct {
	mu      sync.Mutex
	config  Config
	claimed bool
}

// NewManager creates a camera manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{config: cfg}, nil
}

// Config returns the manager's device settings.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Claimed reports whether the device is currently held.
func (m *Manager) Claimed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.claimed
}

// Acquire opens the capture device for the caller's exclusive use.
// The returned Device must be closed; closing releases the claim and
// the hardware handle.
func (m *Manager) Acquire() (*Device, error) {
	m.mu.Lock()
	if m.claimed {
		m.mu.Unlock()
		return nil, ErrBusy
	}
	m.claimed = true
	cfg := m.config
	m.mu.Unlock()

	cap, err := gocv.OpenVideoCapture(cfg.Device)
	if err != nil {
		m.releaseClaim()
		return nil, &AcquisitionError{Device: cfg.Device, Err: err}
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	cap.Set(gocv.VideoCaptureFPS, float64(cfg.FPS))

	return &Device{
		cap:     cap,
		quality: cfg.Quality,
		release: m.releaseClaim,
	}, nil
}

func (m *Manager) releaseClaim() {
	m.mu.Lock()
	m.claimed = false
	m.mu.Unlock()
}
