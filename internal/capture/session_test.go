package capture

import (
	"errors"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestSession_RefreshUpdatesPreview(t *testing.T) {
	frame := gocv.NewMatWithSize(300, 300, gocv.MatTypeCV8UC3)
	defer frame.Close()

	cam := NewMockCamera([]*gocv.Mat{&frame}, true)
	if err := cam.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	preview := NewPreview(true)
	s := NewSession(cam, 300, true, preview)

	if s.ID == "" {
		t.Error("session should have an ID")
	}

	mat, err := s.Refresh()
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	mat.Close()

	data, seq, ok := preview.Latest()
	if !ok || len(data) == 0 {
		t.Fatal("preview should hold a frame after Refresh()")
	}
	if seq == 0 {
		t.Error("preview sequence should advance on update")
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	cam := NewMockCamera(nil, true)
	cam.Open()

	s := NewSession(cam, 300, false, nil)
	if !s.Running() {
		t.Fatal("new session should be running")
	}

	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if s.Running() {
		t.Error("session should not be running after Close()")
	}
	if cam.Closes() != 1 {
		t.Errorf("camera closed %d times, want 1", cam.Closes())
	}
	if _, err := s.Refresh(); !errors.Is(err, ErrCameraNotOpen) {
		t.Errorf("Refresh() after Close() error = %v, want ErrCameraNotOpen", err)
	}
}

func TestPreview_Viewers(t *testing.T) {
	p := NewPreview(true)
	if p.Visible() {
		t.Error("preview without viewers should not be visible")
	}

	detach1 := p.Attach()
	detach2 := p.Attach()
	if !p.Visible() {
		t.Error("preview with viewers should be visible")
	}

	detach1()
	detach1()
	if !p.Visible() {
		t.Error("detaching twice should only remove one viewer")
	}

	detach2()
	if p.Visible() {
		t.Error("preview should be hidden after all viewers detach")
	}
}

func TestPreview_DisabledIgnoresUpdates(t *testing.T) {
	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	p := NewPreview(false)
	p.Update(&frame)
	detach := p.Attach()
	defer detach()

	if _, _, ok := p.Latest(); ok {
		t.Error("disabled preview should not store frames")
	}
	if !p.Visible() {
		t.Error("attached views count even when drawing is disabled")
	}
}

func TestPreview_Clear(t *testing.T) {
	frame := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer frame.Close()

	p := NewPreview(true)
	p.Update(&frame)
	_, before, _ := p.Latest()

	p.Clear()
	_, after, ok := p.Latest()
	if ok {
		t.Error("preview should be empty after Clear()")
	}
	if after <= before {
		t.Error("Clear() should advance the sequence")
	}
}

func TestCadence_String(t *testing.T) {
	tests := []struct {
		cadence Cadence
		want    string
	}{
		{Cadence{Mode: FrameSynced}, "frame-synced"},
		{Cadence{Mode: FixedInterval, Interval: 50 * time.Millisecond}, "fixed-interval(50ms)"},
	}
	for _, tt := range tests {
		if got := tt.cadence.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
