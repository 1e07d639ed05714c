package pose

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ayusman/signbridge/internal/capture"
	"github.com/ayusman/signbridge/internal/resource"
	"github.com/ayusman/signbridge/internal/sign"
)

type poseServer struct {
	*httptest.Server
	mu       sync.Mutex
	queries  []url.Values
	status   atomic.Int32
	delay    atomic.Int64
	requests atomic.Int32
}

func newPoseServer(t *testing.T) *poseServer {
	t.Helper()
	s := &poseServer{}
	s.status.Store(http.StatusOK)
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		s.mu.Lock()
		s.queries = append(s.queries, r.URL.Query())
		s.mu.Unlock()

		if d := time.Duration(s.delay.Load()); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}

		w.WriteHeader(int(s.status.Load()))
		w.Write([]byte("pose:" + r.URL.Query().Get("signed") + ":" + r.URL.Query().Get("text")))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *poseServer) lastQuery() url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queries) == 0 {
		return nil
	}
	return s.queries[len(s.queries)-1]
}

type artifactLog struct {
	mu      sync.Mutex
	handles []*resource.Handle
	ch      chan *resource.Handle
}

func newArtifactLog() *artifactLog {
	return &artifactLog{ch: make(chan *resource.Handle, 16)}
}

func (a *artifactLog) record(h *resource.Handle) {
	a.mu.Lock()
	a.handles = append(a.handles, h)
	a.mu.Unlock()
	a.ch <- h
}

func (a *artifactLog) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.handles)
}

func (a *artifactLog) next(t *testing.T) *resource.Handle {
	t.Helper()
	select {
	case h := <-a.ch:
		return h
	case <-time.After(2 * time.Second):
		t.Fatal("no artifact callback")
		return nil
	}
}

func newFetcher(t *testing.T, srv *poseServer, settle time.Duration) (*Fetcher, *resource.Manager, *artifactLog) {
	t.Helper()
	artifacts := resource.NewManager(func(int, bool) capture.Camera { return nil }, nil)
	log := newArtifactLog()
	f := NewFetcher(NewClient(srv.URL, "en", srv.Client()), artifacts, FetcherConfig{
		Settle:     settle,
		OnArtifact: log.record,
	})
	t.Cleanup(func() {
		f.Cancel()
		f.Wait()
	})
	return f, artifacts, log
}

func readHandle(t *testing.T, h *resource.Handle) string {
	t.Helper()
	data, release, err := h.Acquire()
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer release()
	return string(data)
}

func TestClient_URL(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		variant  sign.Variant
		text     string
		want     url.Values
	}{
		{
			name:     "asl",
			endpoint: "https://pose.example.com/spoken_text_to_signed_pose",
			variant:  sign.ASL,
			text:     "hello",
			want:     url.Values{"spoken": {"en"}, "signed": {"ase"}, "text": {"hello"}},
		},
		{
			name:     "isl with spaces",
			endpoint: "https://pose.example.com/lookup",
			variant:  sign.ISL,
			text:     "good morning",
			want:     url.Values{"spoken": {"en"}, "signed": {"ins"}, "text": {"good morning"}},
		},
		{
			name:     "endpoint with existing query",
			endpoint: "https://pose.example.com/lookup?format=pose",
			variant:  sign.ASL,
			text:     "a&b",
			want:     url.Values{"format": {"pose"}, "spoken": {"en"}, "signed": {"ase"}, "text": {"a&b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewClient(tt.endpoint, "en", nil)
			raw, err := c.URL(tt.variant, tt.text)
			if err != nil {
				t.Fatalf("URL() error = %v", err)
			}
			u, err := url.Parse(raw)
			if err != nil {
				t.Fatalf("URL() produced unparsable %q", raw)
			}
			got := u.Query()
			for k, v := range tt.want {
				if got.Get(k) != v[0] {
					t.Errorf("query %s = %q, want %q", k, got.Get(k), v[0])
				}
			}
		})
	}
}

func TestClient_Lookup(t *testing.T) {
	srv := newPoseServer(t)
	c := NewClient(srv.URL, "en", srv.Client())

	data, err := c.Lookup(context.Background(), sign.ASL, "hello")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if string(data) != "pose:ase:hello" {
		t.Errorf("Lookup() = %q", data)
	}

	srv.status.Store(http.StatusInternalServerError)
	if _, err := c.Lookup(context.Background(), sign.ASL, "hello"); !errors.Is(err, ErrFetch) {
		t.Errorf("Lookup() on 500 error = %v, want ErrFetch", err)
	}
}

func TestClient_LookupTransportError(t *testing.T) {
	c := NewClient("http://127.0.0.1:1/lookup", "en", nil)
	if _, err := c.Lookup(context.Background(), sign.ASL, "hello"); !errors.Is(err, ErrFetch) {
		t.Errorf("Lookup() error = %v, want ErrFetch", err)
	}
}

func TestFetcher_CoalescesEdits(t *testing.T) {
	srv := newPoseServer(t)
	f, artifacts, log := newFetcher(t, srv, 40*time.Millisecond)

	var settled atomic.Value
	f.cfg.OnSettled = func(text string) { settled.Store(text) }

	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		f.Submit(sign.ASL, text)
		time.Sleep(3 * time.Millisecond)
	}

	h := log.next(t)
	time.Sleep(80 * time.Millisecond)

	if n := srv.requests.Load(); n != 1 {
		t.Errorf("issued %d requests, want 1", n)
	}
	q := srv.lastQuery()
	if q.Get("signed") != "ase" || q.Get("text") != "hello" || q.Get("spoken") != "en" {
		t.Errorf("request query = %v", q)
	}
	if got := readHandle(t, h); got != "pose:ase:hello" {
		t.Errorf("artifact = %q", got)
	}
	if artifacts.Current(DefaultSlot) != h {
		t.Error("installed handle should be current in the slot")
	}
	if settled.Load() != "hello" {
		t.Errorf("OnSettled got %v, want hello", settled.Load())
	}
}

func TestFetcher_InstallReleasesPrevious(t *testing.T) {
	srv := newPoseServer(t)
	f, _, log := newFetcher(t, srv, 5*time.Millisecond)

	f.Submit(sign.ASL, "hello")
	first := log.next(t)
	f.Submit(sign.ASL, "world")
	second := log.next(t)

	if !first.Revoked() {
		t.Error("previous artifact should be released on install")
	}
	if got := readHandle(t, second); got != "pose:ase:world" {
		t.Errorf("artifact = %q", got)
	}
}

func TestFetcher_BlankTextClears(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{name: "empty", text: ""},
		{name: "spaces", text: "   "},
		{name: "whitespace mix", text: "\t\n "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newPoseServer(t)
			f, artifacts, log := newFetcher(t, srv, 5*time.Millisecond)

			f.Submit(sign.ASL, "hello")
			prev := log.next(t)

			f.Submit(sign.ASL, tt.text)
			if h := log.next(t); h != nil {
				t.Errorf("blank text produced artifact %v", h)
			}

			if n := srv.requests.Load(); n != 1 {
				t.Errorf("issued %d requests, want only the first", n)
			}
			if !prev.Revoked() || artifacts.Current(DefaultSlot) != nil {
				t.Error("blank text should clear the displayed artifact")
			}
		})
	}
}

func TestFetcher_FailureKeepsPrevious(t *testing.T) {
	srv := newPoseServer(t)
	f, artifacts, log := newFetcher(t, srv, 5*time.Millisecond)

	f.Submit(sign.ASL, "hello")
	prev := log.next(t)

	srv.status.Store(http.StatusBadGateway)
	f.Submit(sign.ASL, "world")

	time.Sleep(60 * time.Millisecond)
	if srv.requests.Load() != 2 {
		t.Fatalf("requests = %d, want 2", srv.requests.Load())
	}
	if log.count() != 1 {
		t.Error("failed lookup should not call OnArtifact")
	}
	if prev.Revoked() || artifacts.Current(DefaultSlot) != prev {
		t.Error("failed lookup must keep the previous artifact")
	}
}

func TestFetcher_LookupNowBypassesDebounce(t *testing.T) {
	srv := newPoseServer(t)
	f, _, log := newFetcher(t, srv, time.Hour)

	f.Submit(sign.ASL, "pending")
	f.LookupNow(sign.ISL, "hello")

	h := log.next(t)
	if got := readHandle(t, h); got != "pose:ins:hello" {
		t.Errorf("artifact = %q, want ISL lookup", got)
	}
	if srv.requests.Load() != 1 {
		t.Errorf("requests = %d, want 1", srv.requests.Load())
	}
}

func TestFetcher_SupersededResponseDiscarded(t *testing.T) {
	srv := newPoseServer(t)
	srv.delay.Store(int64(200 * time.Millisecond))
	f, _, log := newFetcher(t, srv, time.Hour)

	f.LookupNow(sign.ASL, "slow")
	time.Sleep(20 * time.Millisecond)
	srv.delay.Store(0)
	f.LookupNow(sign.ASL, "fast")

	h := log.next(t)
	if got := readHandle(t, h); got != "pose:ase:fast" {
		t.Errorf("artifact = %q, want the newest lookup", got)
	}

	f.Wait()
	if log.count() != 1 {
		t.Errorf("OnArtifact called %d times, want 1", log.count())
	}
}

func TestFetcher_CancelSuppressesCallbacks(t *testing.T) {
	srv := newPoseServer(t)
	srv.delay.Store(int64(50 * time.Millisecond))
	f, artifacts, log := newFetcher(t, srv, 5*time.Millisecond)

	f.LookupNow(sign.ASL, "hello")
	time.Sleep(10 * time.Millisecond)
	f.Cancel()
	f.Submit(sign.ASL, "queued")
	f.Cancel()

	f.Wait()
	time.Sleep(30 * time.Millisecond)
	if log.count() != 0 {
		t.Errorf("OnArtifact called %d times after Cancel", log.count())
	}
	if artifacts.Current(DefaultSlot) != nil {
		t.Error("cancelled lookup must not install an artifact")
	}
}

func TestFetcher_CancelWhileSettling(t *testing.T) {
	srv := newPoseServer(t)
	f, artifacts, log := newFetcher(t, srv, 5*time.Millisecond)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.cfg.OnSettled = func(string) {
		close(entered)
		<-unblock
	}

	f.Submit(sign.ASL, "hello")
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("edit never settled")
	}
	f.Cancel()
	close(unblock)

	time.Sleep(40 * time.Millisecond)
	f.Wait()
	if n := srv.requests.Load(); n != 0 {
		t.Errorf("issued %d requests after Cancel, want 0", n)
	}
	if log.count() != 0 {
		t.Errorf("OnArtifact called %d times after Cancel", log.count())
	}
	if artifacts.Current(DefaultSlot) != nil {
		t.Error("cancelled edit must not install an artifact")
	}
}

func TestFetcher_LookupNowWhileSettling(t *testing.T) {
	srv := newPoseServer(t)
	f, _, log := newFetcher(t, srv, 5*time.Millisecond)

	entered := make(chan struct{})
	unblock := make(chan struct{})
	f.cfg.OnSettled = func(string) {
		close(entered)
		<-unblock
	}

	f.Submit(sign.ASL, "typed")
	<-entered
	f.LookupNow(sign.ASL, "spoken")
	close(unblock)

	h := log.next(t)
	if got := readHandle(t, h); got != "pose:ase:spoken" {
		t.Errorf("artifact = %q, want the immediate lookup", got)
	}
	time.Sleep(40 * time.Millisecond)
	if n := srv.requests.Load(); n != 1 {
		t.Errorf("issued %d requests, want 1", n)
	}
}
