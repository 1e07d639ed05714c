package testdata

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"

	"gocv.io/x/gocv"
)

//go:embed models
var modelsFS embed.FS

// Models returns the model fixtures rooted at the models directory.
// Each subdirectory (asl, isl, broken) is a model base path.
func Models() fs.FS {
	sub, err := fs.Sub(modelsFS, "models")
	if err != nil {
		panic(err)
	}
	return sub
}

// LoadModelFile reads one file of a model fixture
func LoadModelFile(model, name string) ([]byte, error) {
	data, err := modelsFS.ReadFile("models/" + model + "/" + name)
	if err != nil {
		return nil, fmt.Errorf("load model file %s/%s: %w", model, name, err)
	}
	return data, nil
}

// ModelServer serves the model fixtures over HTTP.
// Model base URLs look like server.URL + "/asl/".
func ModelServer() *httptest.Server {
	return httptest.NewServer(http.FileServer(http.FS(Models())))
}

// SolidFrame creates a size x size BGR frame filled with one color.
// The caller must close it.
func SolidFrame(size int, b, g, r float64) *gocv.Mat {
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(b, g, r, 0), size, size, gocv.MatTypeCV8UC3)
	return &mat
}

// FrameSequence creates n frames of increasing brightness for playback through a mock camera.
func FrameSequence(n, size int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		v := float64((i * 255) / max(n, 1))
		frames = append(frames, SolidFrame(size, v, v, v))
	}
	return frames
}

// CloseFrames closes every frame
func CloseFrames(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
