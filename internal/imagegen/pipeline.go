package imagegen

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"promptpix/internal/domain"
	"promptpix/internal/infra"
)

// Generator produces an image for a request.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error)
}

// Uploader hosts a base64 image and returns its public location.
type Uploader interface {
	Upload(ctx context.Context, imageBase64 string) (*domain.HostedImage, error)
}

// Recorder stores a completed generation and returns the row id.
type Recorder interface {
	Create(ctx context.Context, record *domain.GenerationRecord) (int64, error)
}

// Archiver keeps a local copy of a generated image. Failures never fail a run.
type Archiver interface {
	Archive(ctx context.Context, imageBase64 string) (string, error)
}

// Settings carries the secrets and switches a run depends on. It is checked on
// every run so that a missing key is reported without any outbound call.
type Settings struct {
	TogetherAPIKey     string
	ImgBBAPIKey        string
	PersistenceEnabled bool
	DatabaseURL        string
	CallTimeout        time.Duration
}

// SettingsFromConfig derives run settings from the loaded configuration.
func SettingsFromConfig(cfg *infra.Config) Settings {
	if cfg == nil {
		return Settings{}
	}
	return Settings{
		TogetherAPIKey:     cfg.TogetherAPIKey,
		ImgBBAPIKey:        cfg.ImgBBAPIKey,
		PersistenceEnabled: cfg.PersistenceEnabled,
		DatabaseURL:        cfg.DatabaseURL,
		CallTimeout:        cfg.UpstreamTimeout,
	}
}

// Options wires the collaborators of a Pipeline. Recorder is only consulted when
// persistence is enabled; Archiver is optional.
type Options struct {
	Settings  Settings
	Generator Generator
	Uploader  Uploader
	Recorder  Recorder
	Archiver  Archiver
	Logger    zerolog.Logger
}

// Outcome is the result of a completed run.
type Outcome struct {
	Image     string
	HostedURL string
	DeleteURL string
	RecordID  *int64
	Archived  string
}

// Pipeline runs generate, upload and the optional persist step for one request.
type Pipeline struct {
	settings  Settings
	generator Generator
	uploader  Uploader
	recorder  Recorder
	archiver  Archiver
	logger    zerolog.Logger
}

func NewPipeline(opts Options) *Pipeline {
	return &Pipeline{
		settings:  opts.Settings,
		generator: opts.Generator,
		uploader:  opts.Uploader,
		recorder:  opts.Recorder,
		archiver:  opts.Archiver,
		logger:    opts.Logger,
	}
}

// PersistenceEnabled reports whether completed runs are recorded.
func (p *Pipeline) PersistenceEnabled() bool {
	return p.settings.PersistenceEnabled
}

// Run executes the chain once. Every collaborator is invoked at most once and a
// later stage never runs after an earlier one failed. Errors are *StageError.
func (p *Pipeline) Run(ctx context.Context, req domain.GenerationRequest) (*Outcome, error) {
	if err := p.validate(); err != nil {
		return nil, fail(StageValidatingConfig, err)
	}

	log := p.logger.With().
		Int("width", domain.IntValue(req.Width)).
		Int("height", domain.IntValue(req.Height)).
		Int("steps", domain.IntValue(req.Steps)).
		Int("n", domain.IntValue(req.N)).
		Logger()

	log.Debug().Str("stage", string(StageGenerating)).Msg("imagegen: stage start")
	generated, err := p.generate(ctx, req)
	if err != nil {
		return nil, fail(StageGenerating, err)
	}

	log.Debug().Str("stage", string(StageUploading)).Msg("imagegen: stage start")
	hosted, err := p.upload(ctx, generated.ImageData)
	if err != nil {
		return nil, fail(StageUploading, err)
	}

	out := &Outcome{Image: generated.ImageData, HostedURL: hosted.URL, DeleteURL: hosted.DeleteURL}

	if p.settings.PersistenceEnabled {
		log.Debug().Str("stage", string(StagePersisting)).Msg("imagegen: stage start")
		id, err := p.persist(ctx, domain.NewGenerationRecord(req, hosted.URL))
		if err != nil {
			return nil, fail(StagePersisting, err)
		}
		out.RecordID = &id
	}

	// Only completed runs leave a local copy behind.
	if p.archiver != nil {
		if key, err := p.archiver.Archive(ctx, generated.ImageData); err != nil {
			log.Warn().Err(err).Msg("imagegen: archive copy failed")
		} else {
			out.Archived = key
		}
	}

	log.Info().
		Str("stage", string(StageDone)).
		Str("url", out.HostedURL).
		Str("delete_url", hosted.DeleteURL).
		Msg("imagegen: generation complete")
	return out, nil
}

func (p *Pipeline) validate() error {
	s := p.settings
	if strings.TrimSpace(s.TogetherAPIKey) == "" {
		return &domain.ConfigurationError{Setting: "TOGETHER_API_KEY", Message: "API key is not configured"}
	}
	if strings.TrimSpace(s.ImgBBAPIKey) == "" {
		return &domain.ConfigurationError{Setting: "IMGBB_API_KEY", Message: "ImgBB API key is not configured"}
	}
	if s.PersistenceEnabled {
		if strings.TrimSpace(s.DatabaseURL) == "" {
			return &domain.ConfigurationError{Setting: "DATABASE_URL", Message: "Database connection string is not configured"}
		}
		if p.recorder == nil {
			return &domain.ConfigurationError{Setting: "DATABASE_URL", Message: "Database connection is not available"}
		}
	}
	if p.generator == nil || p.uploader == nil {
		return &domain.ConfigurationError{Setting: "pipeline", Message: "image pipeline is not wired"}
	}
	return nil
}

func (p *Pipeline) generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResult, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()
	res, err := p.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if res == nil || res.ImageData == "" {
		return nil, &domain.ContractViolation{Service: "Together", Detail: "no image data returned"}
	}
	return res, nil
}

func (p *Pipeline) upload(ctx context.Context, image string) (*domain.HostedImage, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()
	hosted, err := p.uploader.Upload(ctx, image)
	if err != nil {
		return nil, err
	}
	if hosted == nil || hosted.URL == "" {
		return nil, &domain.ContractViolation{Service: "ImgBB", Detail: "data.url is missing"}
	}
	return hosted, nil
}

func (p *Pipeline) persist(ctx context.Context, rec *domain.GenerationRecord) (int64, error) {
	ctx, cancel := p.callContext(ctx)
	defer cancel()
	id, err := p.recorder.Create(ctx, rec)
	if err != nil {
		var perr *domain.PersistenceError
		if errors.As(err, &perr) {
			return 0, err
		}
		return 0, &domain.PersistenceError{Op: "insert generation", Err: err}
	}
	return id, nil
}

func (p *Pipeline) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.settings.CallTimeout > 0 {
		return context.WithTimeout(ctx, p.settings.CallTimeout)
	}
	return context.WithCancel(ctx)
}

func fail(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}
