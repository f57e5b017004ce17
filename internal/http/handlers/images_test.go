package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/imagegen"
	"promptpix/internal/infra"
)

type stubGenerator struct {
	calls int
	image string
	err   error
}

func (s *stubGenerator) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.GenerationResult{ImageData: s.image}, nil
}

type stubUploader struct {
	calls int
	url   string
	err   error
}

func (s *stubUploader) Upload(ctx context.Context, image string) (*domain.HostedImage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.HostedImage{URL: s.url}, nil
}

type stubRepo struct {
	creates int
	id      int64
	err     error
	records []domain.GenerationRecord
	limit   int
}

func (s *stubRepo) Create(ctx context.Context, rec *domain.GenerationRecord) (int64, error) {
	s.creates++
	if s.err != nil {
		return 0, s.err
	}
	return s.id, nil
}

func (s *stubRepo) ListRecent(ctx context.Context, limit int) ([]domain.GenerationRecord, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

type fixture struct {
	gen  *stubGenerator
	up   *stubUploader
	repo *stubRepo
	app  *App
}

func newFixture(settings imagegen.Settings) *fixture {
	f := &fixture{
		gen:  &stubGenerator{image: "AAAA"},
		up:   &stubUploader{url: "https://i.ibb.co/xyz.png"},
		repo: &stubRepo{id: 42},
	}
	pipeline := imagegen.NewPipeline(imagegen.Options{
		Settings:  settings,
		Generator: f.gen,
		Uploader:  f.up,
		Recorder:  f.repo,
		Logger:    zerolog.Nop(),
	})
	f.app = NewApp(&infra.Config{}, zerolog.Nop(), pipeline, f.repo)
	return f
}

func keys() imagegen.Settings {
	return imagegen.Settings{TogetherAPIKey: "tg", ImgBBAPIKey: "ib", CallTimeout: time.Minute}
}

func postGenerate(app *App, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/generate-image", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	app.GenerateImage(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return out
}

const redCube = `{"prompt":"a red cube","width":512,"height":512,"steps":4,"n":1}`

func TestGenerateImageSuccess(t *testing.T) {
	f := newFixture(keys())
	rec := postGenerate(f.app, redCube)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["image"] != "AAAA" || body["imgbbUrl"] != "https://i.ibb.co/xyz.png" {
		t.Fatalf("unexpected body: %v", body)
	}
	if _, ok := body["dbId"]; ok {
		t.Fatalf("dbId must be absent without persistence: %v", body)
	}
	if f.gen.calls != 1 || f.up.calls != 1 || f.repo.creates != 0 {
		t.Fatalf("calls gen=%d up=%d db=%d", f.gen.calls, f.up.calls, f.repo.creates)
	}
}

func TestGenerateImageWithPersistence(t *testing.T) {
	settings := keys()
	settings.PersistenceEnabled = true
	settings.DatabaseURL = "postgres://example"
	f := newFixture(settings)

	rec := postGenerate(f.app, redCube)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["dbId"] != float64(42) {
		t.Fatalf("dbId = %v", body["dbId"])
	}
	if f.repo.creates != 1 {
		t.Fatalf("repository called %d times", f.repo.creates)
	}
}

func TestGenerateImageUpstreamStatusPassthrough(t *testing.T) {
	f := newFixture(keys())
	f.gen.err = &domain.UpstreamError{Service: "Together", StatusCode: http.StatusTooManyRequests, Body: "rate limited\n"}

	rec := postGenerate(f.app, redCube)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "API error: 429 rate limited" {
		t.Fatalf("error = %v", got)
	}
	if f.up.calls != 0 || f.repo.creates != 0 {
		t.Fatalf("downstream calls up=%d db=%d", f.up.calls, f.repo.creates)
	}
}

func TestGenerateImageUploadFailure(t *testing.T) {
	settings := keys()
	settings.PersistenceEnabled = true
	settings.DatabaseURL = "postgres://example"
	f := newFixture(settings)
	f.up.err = &domain.UpstreamError{Service: "ImgBB", StatusCode: http.StatusBadRequest, Body: "bad key"}

	rec := postGenerate(f.app, redCube)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	msg, _ := decodeBody(t, rec)["error"].(string)
	if msg != "Failed to generate or upload image: ImgBB API error: 400 bad key" {
		t.Fatalf("error = %q", msg)
	}
	if f.repo.creates != 0 {
		t.Fatalf("repository called after upload failure")
	}
}

func TestGenerateImageMissingSecret(t *testing.T) {
	settings := keys()
	settings.ImgBBAPIKey = ""
	f := newFixture(settings)

	rec := postGenerate(f.app, redCube)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "ImgBB API key is not configured" {
		t.Fatalf("error = %v", got)
	}
	if f.gen.calls+f.up.calls+f.repo.creates != 0 {
		t.Fatalf("outbound calls made with missing secret")
	}
}

func TestGenerateImageInvalidBody(t *testing.T) {
	f := newFixture(keys())
	rec := postGenerate(f.app, `{"prompt":`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "invalid request body" {
		t.Fatalf("error = %v", got)
	}
	if f.gen.calls != 0 {
		t.Fatalf("generator called for invalid body")
	}
}

func TestGenerateImageForwardsLooselyTypedBody(t *testing.T) {
	for _, body := range []string{
		`{"prompt":"a red cube","width":"512","height":512.5}`,
		`{"prompt":"a red cube"}`,
		`[]`,
	} {
		f := newFixture(keys())
		rec := postGenerate(f.app, body)
		if rec.Code != http.StatusOK {
			t.Fatalf("body %s: status = %d, %s", body, rec.Code, rec.Body.String())
		}
		if f.gen.calls != 1 {
			t.Fatalf("body %s: generator calls = %d", body, f.gen.calls)
		}
	}
}

func TestRunErrorResponse(t *testing.T) {
	stage := func(s imagegen.Stage, err error) error { return &imagegen.StageError{Stage: s, Err: err} }

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "configuration",
			err:        stage(imagegen.StageValidatingConfig, &domain.ConfigurationError{Setting: "TOGETHER_API_KEY", Message: "API key is not configured"}),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "API key is not configured",
		},
		{
			name:       "generation upstream status",
			err:        stage(imagegen.StageGenerating, &domain.UpstreamError{Service: "Together", StatusCode: 503, Body: "overloaded"}),
			wantStatus: 503,
			wantMsg:    "API error: 503 overloaded",
		},
		{
			name:       "generation timeout",
			err:        stage(imagegen.StageGenerating, &domain.UpstreamError{Service: "Together", Timeout: true, Err: context.DeadlineExceeded}),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to generate or upload image: Together API error: request timed out",
		},
		{
			name:       "generation contract violation",
			err:        stage(imagegen.StageGenerating, &domain.ContractViolation{Service: "Together", Detail: "data is empty"}),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Unexpected API response structure",
		},
		{
			name:       "upload contract violation",
			err:        stage(imagegen.StageUploading, &domain.ContractViolation{Service: "ImgBB", Detail: "data.url is missing"}),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to generate or upload image: unexpected ImgBB API response structure: data.url is missing",
		},
		{
			name:       "persistence",
			err:        stage(imagegen.StagePersisting, &domain.PersistenceError{Op: "insert generation", Err: errors.New("connection refused")}),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "Failed to save generation record: persistence: insert generation: connection refused",
		},
		{
			name:       "foreign error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "internal server error",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			status, msg := runErrorResponse(tc.err)
			if status != tc.wantStatus || msg != tc.wantMsg {
				t.Fatalf("runErrorResponse() = %d %q, want %d %q", status, msg, tc.wantStatus, tc.wantMsg)
			}
		})
	}
}
