// Package app wires the signbridge translator together: camera and artifact resources,
// the acquisition loop, the pose fetcher, the mode controller and the plugin sinks.
package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/config"
	"github.com/ayusman/signbridge/internal/inference"
	"github.com/ayusman/signbridge/internal/loop"
	"github.com/ayusman/signbridge/internal/mode"
	"github.com/ayusman/signbridge/internal/observability"
	"github.com/ayusman/signbridge/internal/plugin"
	"github.com/ayusman/signbridge/internal/pose"
	"github.com/ayusman/signbridge/internal/recognize"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/sign"
	"github.com/ayusman/signbridge/internal/speech"
	"github.com/ayusman/signbridge/internal/store"
)

// Plugin sink sizing and history retention.
const (
	PluginWorkers   = 2
	PluginQueueSize = 32
	HistoryKeep     = 1000
)

// Config holds the application dependencies. Nil fields get their production default.
type Config struct {
	Settings *config.Config
	Store    *store.Store

	Cameras     resource.CameraFactory
	Loader      inference.Loader
	Looker      pose.Looker
	Runner      plugin.Runner
	Transcriber speech.Transcriber
	Synthesizer speech.Synthesizer
}

// App owns every long-lived component of the translator.
type App struct {
	settings *config.Config
	store    *store.Store
	logger   zerolog.Logger

	preview     *capture.Preview
	resources   *resource.Manager
	loop        *loop.Loop
	recognizer  *recognize.Debouncer
	fetcher     *pose.Fetcher
	ctrl        *mode.Controller
	plugins     *plugin.Manager
	sink        *plugin.Sink
	transcriber speech.Transcriber
	synthesizer speech.Synthesizer

	ownsRuntime bool

	mu      sync.Mutex
	started bool
	stopped bool
	unsub   func()
	saved   chan struct{}
}

// New builds the component graph without starting it.
func New(cfg Config) (*App, error) {
	s := cfg.Settings
	if s == nil {
		return nil, fmt.Errorf("app: settings are required")
	}

	a := &App{
		settings: s,
		store:    cfg.Store,
		logger:   observability.Component("app"),
		preview:  capture.NewPreview(s.PreviewEnabled),
	}

	cameras := cfg.Cameras
	if cameras == nil {
		cameraID := s.CameraID
		cameras = func(dimension int, mirrored bool) capture.Camera {
			return capture.NewCamera(cameraID, dimension, mirrored)
		}
	}
	a.resources = resource.NewManager(cameras, a.preview)

	loader := cfg.Loader
	if loader == nil {
		if err := inference.InitRuntime(s.OnnxRuntimeLib); err != nil {
			return nil, fmt.Errorf("failed to initialize onnx runtime: %w", err)
		}
		a.ownsRuntime = true
		loader = inference.NewDispatcher(inference.NewModelClient(0), inference.NewOnnxBinding)
	}

	looker := cfg.Looker
	if looker == nil {
		var client *http.Client
		if timeout := s.FetchTimeout(); timeout > 0 {
			client = &http.Client{Timeout: timeout}
		}
		looker = pose.NewClient(s.PoseEndpoint, s.SpokenLanguage, client)
	}

	a.transcriber = cfg.Transcriber
	if a.transcriber == nil {
		a.transcriber = speech.NewDeepgramTranscriber(speech.DeepgramConfig{
			APIKey:   s.DeepgramAPIKey,
			Model:    s.DeepgramModel,
			Language: s.DeepgramLanguage,
		})
	}
	a.synthesizer = cfg.Synthesizer
	if a.synthesizer == nil {
		a.synthesizer = speech.NewHTTPSynthesizer(speech.SynthConfig{
			APIKey:   s.TTSAPIKey,
			Endpoint: s.TTSEndpoint,
			VoiceID:  s.TTSVoiceID,
			ModelID:  s.TTSModelID,
		}, nil)
	}

	runner := cfg.Runner
	if runner == nil {
		runner = plugin.NewExecutor(plugin.DefaultTimeout)
	}

	dataDir := s.DataDir
	if dataDir == "" && cfg.Store != nil {
		dataDir = filepath.Dir(cfg.Store.Path())
	}
	a.plugins = plugin.NewManager(s.PluginPath(dataDir))
	a.sink = plugin.NewSink(a.plugins, runner, PluginWorkers, PluginQueueSize, a.recordDelivery)

	initial := mode.State{Direction: sign.TextToSign, Variant: sign.ASL}
	if a.store != nil {
		dir, variant, err := a.store.Settings().Mode(initial.Direction, initial.Variant)
		if err != nil {
			a.logger.Warn().Err(err).Msg("failed to restore mode, using defaults")
		} else {
			initial = mode.State{Direction: dir, Variant: variant}
		}
	}

	// ctrl is assigned below; the callbacks only fire once the loop and fetcher run.
	var ctrl *mode.Controller
	a.recognizer = recognize.New(s.ConfidenceThreshold, s.PredictionSettle(), func(label string) {
		ctrl.Stabilized(label)
	})

	a.loop = loop.New(loop.Config{
		Dimension:       s.CaptureDimension,
		Mirrored:        s.CaptureMirrored,
		Cadence:         cadence(s),
		RefreshInterval: s.RefreshInterval(),
		Visible:         a.preview.Visible,
	}, a.resources, loader, a.recognizer.OnPrediction)

	a.fetcher = pose.NewFetcher(looker, a.resources, pose.FetcherConfig{
		Settle:     s.FetchSettle(),
		Timeout:    s.FetchTimeout(),
		Slot:       pose.DefaultSlot,
		OnSettled:  func(text string) { ctrl.Settled(text) },
		OnArtifact: func(h *resource.Handle) { ctrl.ArtifactInstalled(h) },
	})

	ctrl = mode.New(mode.Config{
		Initial: initial,
		ModelURLs: map[sign.Variant]string{
			sign.ASL: s.ModelURLASL,
			sign.ISL: s.ModelURLISL,
		},
		VariantSettle:   s.VariantSettle(),
		DictationSettle: s.DictationSettle(),
		Diagnostics:     s.DiagnosticsEnabled,
		Slot:            pose.DefaultSlot,
		Hooks: mode.Hooks{
			Stable:    a.onStable,
			Installed: a.onInstalled,
		},
	}, a.loop, a.recognizer, a.fetcher, a.resources)
	a.loop.OnStateChange(ctrl.LoopChanged)
	a.ctrl = ctrl

	return a, nil
}

func cadence(s *config.Config) capture.Cadence {
	if s.Cadence == config.CadenceFrame {
		return capture.Cadence{Mode: capture.FrameSynced}
	}
	return capture.Cadence{Mode: capture.FixedInterval, Interval: s.CadenceDelay()}
}

// Start discovers plugins and starts the mode controller.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return fmt.Errorf("app: already stopped")
	}
	if a.started {
		return nil
	}

	if err := a.plugins.Discover(); err != nil {
		a.logger.Warn().Err(err).Msg("plugin discovery failed")
	}
	a.logger.Info().Int("plugins", len(a.plugins.List())).Str("dir", a.plugins.PluginDir()).Msg("plugins discovered")

	if a.store != nil {
		if removed, err := a.store.History().Prune(HistoryKeep); err != nil {
			a.logger.Warn().Err(err).Msg("failed to prune history")
		} else if removed > 0 {
			a.logger.Info().Int64("removed", removed).Msg("pruned translation history")
		}
	}

	a.ctrl.Start()
	a.watchMode()
	a.started = true

	st := a.ctrl.Mode()
	a.logger.Info().Stringer("direction", st.Direction).Stringer("variant", st.Variant).Msg("translator started")
	return nil
}

// Stop closes the controller, which stops the loop and releases every resource,
// then drains the plugin sinks.
func (a *App) Stop() {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return
	}
	a.stopped = true
	unsub, saved := a.unsub, a.saved
	a.mu.Unlock()

	if err := a.ctrl.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("error closing mode controller")
	}
	a.fetcher.Wait()
	if unsub != nil {
		unsub()
		<-saved
	}
	a.sink.Close()

	if a.ownsRuntime {
		if err := inference.ShutdownRuntime(); err != nil {
			a.logger.Warn().Err(err).Msg("error shutting down onnx runtime")
		}
	}

	a.logger.Info().Msg("translator stopped")
}

// Controller returns the mode controller.
func (a *App) Controller() *mode.Controller {
	return a.ctrl
}

// Resources returns the resource manager.
func (a *App) Resources() *resource.Manager {
	return a.resources
}

// Preview returns the camera preview surface.
func (a *App) Preview() *capture.Preview {
	return a.preview
}

// Loop returns the acquisition loop.
func (a *App) Loop() *loop.Loop {
	return a.loop
}

// PluginManager returns the plugin manager.
func (a *App) PluginManager() *plugin.Manager {
	return a.plugins
}

// Transcriber returns the dictation transcriber.
func (a *App) Transcriber() speech.Transcriber {
	return a.transcriber
}

// Synthesizer returns the speech synthesizer.
func (a *App) Synthesizer() speech.Synthesizer {
	return a.synthesizer
}

// HealthChecks returns the dependency checks reported by the health endpoint.
func (a *App) HealthChecks() map[string]observability.HealthCheckFunc {
	checks := map[string]observability.HealthCheckFunc{
		"camera": func(context.Context) error {
			if a.loop.State() == loop.Error {
				return a.loop.LastError()
			}
			return nil
		},
		"dictation": func(context.Context) error {
			if !a.settings.DictationEnabled() {
				return speech.ErrDisabled
			}
			return nil
		},
		"speech": func(context.Context) error {
			if !a.settings.SpeechEnabled() {
				return speech.ErrDisabled
			}
			return nil
		},
	}
	if a.store != nil {
		checks["store"] = func(ctx context.Context) error {
			return a.store.DB().PingContext(ctx)
		}
	}
	return checks
}
