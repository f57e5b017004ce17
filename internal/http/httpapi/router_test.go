package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"promptpix/internal/http/handlers"
	"promptpix/internal/imagegen"
	"promptpix/internal/infra"
	"promptpix/internal/providers/imgbb"
	"promptpix/internal/providers/together"
)

type upstreams struct {
	together     *httptest.Server
	imgbb        *httptest.Server
	togetherHits atomic.Int32
	imgbbHits    atomic.Int32
	lastPrompt   atomic.Value
	lastBody     atomic.Value
}

func newUpstreams(t *testing.T, imgbbStatus int, imgbbBody string) *upstreams {
	t.Helper()
	u := &upstreams{}
	u.together = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.togetherHits.Add(1)
		if r.URL.Path != "/v1/images/generations" || r.Header.Get("Authorization") != "Bearer tg-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		u.lastBody.Store(string(raw))
		var payload map[string]any
		_ = json.Unmarshal(raw, &payload)
		u.lastPrompt.Store(payload["prompt"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data":[{"b64_json":"AAAA"}]}`)
	}))
	u.imgbb = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.imgbbHits.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("key") != "ib-key" || r.PostForm.Get("image") != "AAAA" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		w.WriteHeader(imgbbStatus)
		_, _ = io.WriteString(w, imgbbBody)
	}))
	t.Cleanup(func() {
		u.together.Close()
		u.imgbb.Close()
	})
	return u
}

func newTestRouter(cfg *infra.Config) http.Handler {
	logger := zerolog.Nop()
	pipeline := imagegen.NewPipeline(imagegen.Options{
		Settings: imagegen.SettingsFromConfig(cfg),
		Generator: together.NewClient(together.Options{
			APIKey:  cfg.TogetherAPIKey,
			BaseURL: cfg.TogetherBaseURL,
		}),
		Uploader: imgbb.NewClient(imgbb.Options{
			APIKey:  cfg.ImgBBAPIKey,
			BaseURL: cfg.ImgBBBaseURL,
		}),
		Logger: logger,
	})
	return NewRouter(handlers.NewApp(cfg, logger, pipeline, nil), nil)
}

func testConfig(u *upstreams) *infra.Config {
	return &infra.Config{
		TogetherAPIKey:  "tg-key",
		TogetherBaseURL: u.together.URL,
		ImgBBAPIKey:     "ib-key",
		ImgBBBaseURL:    u.imgbb.URL,
		UpstreamTimeout: 5 * time.Second,
	}
}

func generate(t *testing.T, h http.Handler) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	body := `{"prompt":"a red cube","width":512,"height":512,"steps":4,"n":1}`
	req := httptest.NewRequest(http.MethodPost, "/generate-image", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return rec, out
}

func TestGenerateImageEndToEnd(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, `{"data":{"url":"https://i.ibb.co/xyz.png"},"success":true,"status":200}`)
	rec, body := generate(t, newTestRouter(testConfig(u)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %v", rec.Code, body)
	}
	if body["image"] != "AAAA" || body["imgbbUrl"] != "https://i.ibb.co/xyz.png" {
		t.Fatalf("unexpected body: %v", body)
	}
	if u.togetherHits.Load() != 1 || u.imgbbHits.Load() != 1 {
		t.Fatalf("hits together=%d imgbb=%d", u.togetherHits.Load(), u.imgbbHits.Load())
	}
	if u.lastPrompt.Load() != "a red cube" {
		t.Fatalf("prompt forwarded = %v", u.lastPrompt.Load())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestGenerateImageForwardsBodyUnchanged(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "fractional width",
			body: `{"prompt":"a red cube","width":512.5,"height":512,"steps":4,"n":1}`,
			want: `{"model":"black-forest-labs/FLUX.1-schnell-Free","prompt":"a red cube","width":512.5,"height":512,"steps":4,"n":1,"response_format":"b64_json"}`,
		},
		{
			name: "string width",
			body: `{"prompt":"a red cube","width":"512","height":512,"steps":4,"n":1}`,
			want: `{"model":"black-forest-labs/FLUX.1-schnell-Free","prompt":"a red cube","width":"512","height":512,"steps":4,"n":1,"response_format":"b64_json"}`,
		},
		{
			name: "absent fields omitted",
			body: `{"prompt":"a red cube"}`,
			want: `{"model":"black-forest-labs/FLUX.1-schnell-Free","prompt":"a red cube","response_format":"b64_json"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			u := newUpstreams(t, http.StatusOK, `{"data":{"url":"https://i.ibb.co/xyz.png"}}`)
			req := httptest.NewRequest(http.MethodPost, "/generate-image", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			newTestRouter(testConfig(u)).ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			if u.togetherHits.Load() != 1 {
				t.Fatalf("together hits = %d", u.togetherHits.Load())
			}
			if got, _ := u.lastBody.Load().(string); got != tc.want {
				t.Fatalf("generation payload:\n got %s\nwant %s", got, tc.want)
			}
		})
	}
}

func TestGenerateImageEndToEndHostingRejects(t *testing.T) {
	u := newUpstreams(t, http.StatusBadRequest, "bad key")
	rec, body := generate(t, newTestRouter(testConfig(u)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "400") || !strings.Contains(msg, "bad key") {
		t.Fatalf("error = %q", msg)
	}
	if u.imgbbHits.Load() != 1 {
		t.Fatalf("imgbb hits = %d", u.imgbbHits.Load())
	}
}

func TestGenerateImageEndToEndMissingKey(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, `{"data":{"url":"https://i.ibb.co/xyz.png"}}`)
	cfg := testConfig(u)
	cfg.TogetherAPIKey = ""
	rec, body := generate(t, newTestRouter(cfg))

	if rec.Code != http.StatusInternalServerError || body["error"] != "API key is not configured" {
		t.Fatalf("response = %d %v", rec.Code, body)
	}
	if u.togetherHits.Load()+u.imgbbHits.Load() != 0 {
		t.Fatalf("outbound calls made with missing key")
	}
}

func TestRouterJSONFallbacks(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, `{}`)
	h := newTestRouter(testConfig(u))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), `"error"`) {
		t.Fatalf("not found = %d %s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/generate-image", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("method not allowed = %d", rec.Code)
	}
}

func TestRouterServesLocalizedPage(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, `{}`)
	h := newTestRouter(testConfig(u))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "id-ID,id;q=0.9")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Pembuat Gambar") {
		t.Fatalf("page = %d", rec.Code)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	u := newUpstreams(t, http.StatusOK, `{}`)
	cfg := testConfig(u)
	cfg.CORSAllowedOrigins = []string{"https://app.example"}
	h := newTestRouter(cfg)

	req := httptest.NewRequest(http.MethodOptions, "/generate-image", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example" {
		t.Fatalf("preflight = %d %v", rec.Code, rec.Header())
	}
}

