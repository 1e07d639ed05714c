// Package capture provides square, optionally mirrored camera capture using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings
const (
	DefaultDimension = 300
	DefaultWidth     = 640
	DefaultHeight    = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")

	// ErrDeviceUnavailable is returned when the capture device cannot be opened,
	// either because access was denied or because no device exists.
	ErrDeviceUnavailable = errors.New("camera device unavailable")
)

// Camera defines the interface for camera capture implementations.
type Camera interface {
	Open() error
	Close() error
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// cameraImpl manages video capture from a camera device using GoCV.
// Frames are center-cropped to a square, scaled to dimension and optionally mirrored.
type cameraImpl struct {
	deviceID  int
	dimension int
	mirrored  bool
	capture   *gocv.VideoCapture
	mu        sync.Mutex
	running   bool
}

// NewCamera creates a new Camera for the given device producing dimension x dimension frames.
func NewCamera(deviceID, dimension int, mirrored bool) Camera {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &cameraImpl{
		deviceID:  deviceID,
		dimension: dimension,
		mirrored:  mirrored,
	}
}

// Open opens the camera for capturing frames.
// Failures wrap ErrDeviceUnavailable.
func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrDeviceUnavailable, c.deviceID, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("%w: device %d could not be opened", ErrDeviceUnavailable, c.deviceID)
	}

	capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the camera and releases the device.
func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single square frame from the camera.
// The caller is responsible for closing the returned Mat.
func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	raw := gocv.NewMat()
	defer raw.Close()

	if ok := c.capture.Read(&raw); !ok {
		return nil, errors.New("failed to read frame from camera")
	}
	if raw.Empty() {
		return nil, errors.New("captured frame is empty")
	}

	frame, err := SquareFrame(raw, c.dimension, c.mirrored)
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

// IsOpen returns true if the camera is currently open.
func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}

// SquareFrame center-crops src to a square, scales it to dimension and mirrors it
// horizontally when mirrored is set. The caller owns the returned Mat.
func SquareFrame(src gocv.Mat, dimension int, mirrored bool) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("source frame is empty")
	}
	if dimension <= 0 {
		return gocv.NewMat(), fmt.Errorf("invalid dimension %d", dimension)
	}

	side := src.Cols()
	if src.Rows() < side {
		side = src.Rows()
	}
	x := (src.Cols() - side) / 2
	y := (src.Rows() - side) / 2

	region := src.Region(image.Rect(x, y, x+side, y+side))
	defer region.Close()

	dst := gocv.NewMat()
	gocv.Resize(region, &dst, image.Pt(dimension, dimension), 0, 0, gocv.InterpolationArea)

	if mirrored {
		gocv.Flip(dst, &dst, 1)
	}

	return dst, nil
}
