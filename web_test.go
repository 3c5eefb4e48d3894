package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/sticky/checkins"
	"github.com/Seednode/sticky/games"
)

// zeroRand always draws 0, which selects the math game with 1 × 1.
type zeroRand struct{}

func (zeroRand) Float64() float64 { return 0 }

type testServer struct {
	app    *App
	pub    *recordingPublisher
	gm     *GameManager
	srv    *httptest.Server
	client *http.Client
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := &Config{
		dbDriver:     checkins.DriverSQLite,
		dbPath:       filepath.Join(t.TempDir(), "sticky.db"),
		maxPhotoSize: 1 << 20,
		port:         8080,
	}

	store, err := checkins.Open(context.Background(), cfg.dbDriver, cfg.dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	pub := &recordingPublisher{}

	app := newApp(cfg, store, pub)
	app.newRand = func(games.Seeds) games.Rand { return zeroRand{} }

	errs := make(chan error, 64)
	go func() {
		for err := range errs {
			t.Logf("handler error: %v", err)
		}
	}()

	mux, gm := newRouter(app, errs)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	t.Cleanup(gm.close)

	return &testServer{
		app:    app,
		pub:    pub,
		gm:     gm,
		srv:    srv,
		client: &http.Client{Jar: newJar(t), Timeout: 10 * time.Second},
	}
}

func newJar(t *testing.T) http.CookieJar {
	t.Helper()

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	return jar
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}

	return resp, string(data)
}

func pngDataURI(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		for y := range 8 {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 90, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestStaticRoutes(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/version", http.StatusOK, "text/plain", "sticky v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain", "Disallow: /api/"},
		{"/favicon.svg", http.StatusOK, "image/svg+xml", "<svg"},
		{"/assets/app.js", http.StatusOK, "text/javascript", "WebSocket"},
		{"/assets/app.css", http.StatusOK, "text/css", "--paper"},
		{"/assets/missing.js", http.StatusNotFound, "text/html", "Not Found"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodGet, tt.path, "")

			if resp.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, resp.StatusCode)
			}
			if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, tt.contentType) {
				t.Errorf("expected content type %s, got %s", tt.contentType, ct)
			}
			if !strings.Contains(body, tt.contains) {
				t.Errorf("expected body to contain %q, got %q", tt.contains, body)
			}
			if resp.Header.Get("X-Content-Type-Options") != "nosniff" {
				t.Error("expected security headers to be set")
			}
		})
	}
}

func TestHomePage(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if !strings.Contains(body, "Start today's challenge") {
		t.Error("expected a link to today's challenge")
	}
	for _, m := range checkins.Moods {
		if !strings.Contains(body, m) {
			t.Errorf("expected mood %s in the picker", m)
		}
	}

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/", nil)
	if len(ts.client.Jar.Cookies(req.URL)) == 0 {
		t.Error("expected the player cookie to be set")
	}
}

func TestHealthCheckFailsWithClosedStore(t *testing.T) {
	ts := newTestServer(t)

	ts.app.store.Close()

	resp, _ := ts.do(t, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1.0 kB"},
		{1500000, "1.5 MB"},
	}

	for _, tt := range tests {
		if got := humanReadableSize(tt.in); got != tt.want {
			t.Errorf("humanReadableSize(%d): expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestPhotoBytes(t *testing.T) {
	ct, data, err := photoBytes("data:image/jpeg;base64,AAEC")
	if err != nil {
		t.Fatal(err)
	}
	if ct != "image/jpeg" || !bytes.Equal(data, []byte{0, 1, 2}) {
		t.Errorf("unexpected %s %v", ct, data)
	}

	for _, bad := range []string{"", "AAEC", "data:text/plain;base64,AAEC", "data:image/png,AAEC", "data:image/png;base64,***"} {
		if _, _, err := photoBytes(bad); err == nil {
			t.Errorf("expected an error for %q", bad)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{dbDriver: checkins.DriverSQLite, dbPath: "x.db", maxPhotoSize: 1 << 20, port: 8080}
	}

	if err := valid().validate(); err != nil {
		t.Fatalf("expected a valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.port = 0 }},
		{"driver", func(c *Config) { c.dbDriver = "mysql" }},
		{"db", func(c *Config) { c.dbPath = "" }},
		{"photo size", func(c *Config) { c.maxPhotoSize = 10 }},
		{"tls pair", func(c *Config) { c.tlsCert = "cert.pem" }},
	}

	for _, tt := range tests {
		c := valid()
		tt.mutate(c)
		if err := c.validate(); err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
	}
}
