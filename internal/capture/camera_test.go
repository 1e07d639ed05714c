package capture

import (
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestNewCamera(t *testing.T) {
	tests := []struct {
		name      string
		deviceID  int
		dimension int
	}{
		{name: "default device", deviceID: 0, dimension: 300},
		{name: "device 1", deviceID: 1, dimension: 224},
		{name: "zero dimension falls back", deviceID: 0, dimension: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewCamera(tt.deviceID, tt.dimension, true)
			if cam == nil {
				t.Fatal("NewCamera returned nil")
			}
			if cam.IsOpen() {
				t.Error("camera should not be open initially")
			}
		})
	}
}

func TestSquareFrame(t *testing.T) {
	tests := []struct {
		name       string
		rows, cols int
		dimension  int
		mirrored   bool
	}{
		{name: "landscape", rows: 480, cols: 640, dimension: 300},
		{name: "portrait", rows: 640, cols: 480, dimension: 300},
		{name: "already square", rows: 300, cols: 300, dimension: 300},
		{name: "mirrored", rows: 480, cols: 640, dimension: 128, mirrored: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := gocv.NewMatWithSize(tt.rows, tt.cols, gocv.MatTypeCV8UC3)
			defer src.Close()

			dst, err := SquareFrame(src, tt.dimension, tt.mirrored)
			if err != nil {
				t.Fatalf("SquareFrame() error = %v", err)
			}
			defer dst.Close()

			if dst.Rows() != tt.dimension || dst.Cols() != tt.dimension {
				t.Errorf("SquareFrame() = %dx%d, want %dx%d", dst.Cols(), dst.Rows(), tt.dimension, tt.dimension)
			}
		})
	}
}

func TestSquareFrame_MirrorsHorizontally(t *testing.T) {
	src := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC1)
	defer src.Close()
	src.SetUCharAt(0, 0, 255)

	dst, err := SquareFrame(src, 4, true)
	if err != nil {
		t.Fatalf("SquareFrame() error = %v", err)
	}
	defer dst.Close()

	if got := dst.GetUCharAt(0, 3); got != 255 {
		t.Errorf("mirrored pixel = %d, want 255", got)
	}
	if got := dst.GetUCharAt(0, 0); got != 0 {
		t.Errorf("original pixel position = %d, want 0", got)
	}
}

func TestSquareFrame_Invalid(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	if _, err := SquareFrame(empty, 300, false); err == nil {
		t.Error("expected error for empty frame")
	}

	src := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer src.Close()
	if _, err := SquareFrame(src, 0, false); err == nil {
		t.Error("expected error for zero dimension")
	}
}

func TestCamera_OpenClose_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	cam := NewCamera(0, DefaultDimension, true)

	err := cam.Open()
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			t.Errorf("Open() error should wrap ErrDeviceUnavailable, got %v", err)
		}
		t.Skipf("skipping test - camera not available: %v", err)
	}

	if !cam.IsOpen() {
		t.Error("IsOpen() should return true after Open()")
	}

	mat, err := cam.ReadFrame()
	if err != nil {
		t.Errorf("ReadFrame() failed: %v", err)
	} else {
		if mat.Cols() != DefaultDimension || mat.Rows() != DefaultDimension {
			t.Errorf("frame = %dx%d, want square %d", mat.Cols(), mat.Rows(), DefaultDimension)
		}
		mat.Close()
	}

	if err := cam.Close(); err != nil {
		t.Errorf("Close() failed: %v", err)
	}
	if cam.IsOpen() {
		t.Error("IsOpen() should return false after Close()")
	}
}

func TestCamera_ReadFrame_NotOpened(t *testing.T) {
	cam := NewCamera(0, DefaultDimension, false)

	_, err := cam.ReadFrame()
	if !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("ReadFrame() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestCamera_Close_NotOpened(t *testing.T) {
	cam := NewCamera(0, DefaultDimension, false)

	// Close on not opened camera should not panic and return nil
	if err := cam.Close(); err != nil {
		t.Errorf("Close() on not opened camera should return nil, got: %v", err)
	}
}
