package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

const tracerName = "github.com/jsamuelsen/print-quote-service/internal/app"

// BuildEnvelope is the printable volume in millimetres.
type BuildEnvelope struct {
	MaxX float64
	MaxY float64
	MaxZ float64
}

// AnalyzerConfig contains the file and printer constraints applied to uploads.
type AnalyzerConfig struct {
	AllowedExtensions []string
	MaxFileSize       int64
	Envelope          BuildEnvelope
}

// Analyzer turns a staged mesh file into an unpriced line item.
// It never moves or deletes the file it reads.
type Analyzer struct {
	loader  ports.MeshLoader
	cfg     AnalyzerConfig
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewAnalyzer creates an analyzer. It panics without a mesh loader.
func NewAnalyzer(loader ports.MeshLoader, cfg AnalyzerConfig, logger *slog.Logger, metrics *Metrics) *Analyzer {
	if loader == nil {
		panic("analyzer requires a mesh loader")
	}

	if logger == nil {
		logger = slog.Default()
	}

	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = []string{".stl"}
	}

	return &Analyzer{
		loader:  loader,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "analyzer")),
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// Config returns the constraints the analyzer enforces.
func (a *Analyzer) Config() AnalyzerConfig {
	return a.cfg
}

// CheckExtension reports a validation error unless filename has an allowed extension.
func (a *Analyzer) CheckExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	if !slices.ContainsFunc(a.cfg.AllowedExtensions, func(allowed string) bool {
		return strings.EqualFold(allowed, ext)
	}) {
		return domain.NewValidationErrorWithValue("filename",
			fmt.Sprintf("Invalid file extension for %s. Allowed: %s", filename, strings.Join(a.cfg.AllowedExtensions, ", ")),
			filename)
	}

	return nil
}

// Analyze validates the staged file at path, measures its mesh and returns
// a line item with zero pricing. filename is the name the customer uploaded.
func (a *Analyzer) Analyze(
	ctx context.Context,
	path, filename string,
	material domain.Material,
	quantity int,
) (domain.LineItem, error) {
	ctx, span := a.tracer.Start(ctx, "analyzer.Analyze", trace.WithAttributes(
		attribute.String("mesh.filename", filename),
		attribute.String("mesh.material", material.String()),
		attribute.Int("mesh.quantity", quantity),
	))
	defer span.End()

	item, err := a.analyze(ctx, path, filename, material, quantity)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		return domain.LineItem{}, err
	}

	span.SetAttributes(
		attribute.Float64("mesh.volume_mm3", item.Volume),
		attribute.Bool("mesh.watertight", item.IsWatertight),
	)

	return item, nil
}

func (a *Analyzer) analyze(
	ctx context.Context,
	path, filename string,
	material domain.Material,
	quantity int,
) (domain.LineItem, error) {
	if err := ctx.Err(); err != nil {
		return domain.LineItem{}, err
	}

	if err := a.CheckExtension(filename); err != nil {
		return domain.LineItem{}, err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.LineItem{}, domain.NewValidationErrorWithValue("file", "File not found: "+filename, filename)
	}

	if err != nil {
		return domain.LineItem{}, fmt.Errorf("inspecting %s: %w", filename, err)
	}

	if info.Size() == 0 {
		return domain.LineItem{}, domain.NewValidationErrorWithValue("file", "File is empty", filename)
	}

	if a.cfg.MaxFileSize > 0 && info.Size() > a.cfg.MaxFileSize {
		return domain.LineItem{}, domain.NewValidationErrorWithValue("file",
			fmt.Sprintf("File too large: %d bytes (max: %d)", info.Size(), a.cfg.MaxFileSize),
			info.Size())
	}

	if err := domain.ValidateQuantity(quantity); err != nil {
		return domain.LineItem{}, err
	}

	if !material.Valid() {
		return domain.LineItem{}, domain.NewValidationErrorWithValue("material",
			"Invalid material type: "+material.String(), material.String())
	}

	start := time.Now()

	mesh, err := a.loader.Load(ctx, path)

	if a.metrics != nil {
		a.metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	}

	if err != nil {
		return domain.LineItem{}, err
	}

	if err := ctx.Err(); err != nil {
		return domain.LineItem{}, err
	}

	box := mesh.Bounds()
	if err := a.checkEnvelope(box); err != nil {
		return domain.LineItem{}, err
	}

	item := domain.LineItem{
		Filename:     filename,
		FilePath:     path,
		FileSize:     info.Size(),
		Volume:       mesh.Volume(),
		BoundingBox:  box,
		IsWatertight: mesh.IsWatertight(),
		Material:     material,
		Quantity:     quantity,
		ProcessedAt:  a.now().UTC(),
	}

	a.logger.DebugContext(ctx, "mesh analyzed",
		slog.String("filename", filename),
		slog.Int("triangles", len(mesh.Triangles)),
		slog.Float64("volume_mm3", item.Volume),
		slog.Bool("watertight", item.IsWatertight),
	)

	if !item.IsWatertight {
		a.logger.WarnContext(ctx, "mesh may not be watertight", slog.String("filename", filename))
	}

	return item, nil
}

// checkEnvelope rejects parts that do not fit the build volume.
func (a *Analyzer) checkEnvelope(box domain.BoundingBox) error {
	x, y, z := box.Dimensions()
	env := a.cfg.Envelope

	switch {
	case env.MaxX > 0 && x > env.MaxX:
		return domain.NewValidationErrorWithValue("dimensions.x",
			fmt.Sprintf("Part width (%.2fmm) exceeds printer max X (%vmm)", x, env.MaxX), x)
	case env.MaxY > 0 && y > env.MaxY:
		return domain.NewValidationErrorWithValue("dimensions.y",
			fmt.Sprintf("Part depth (%.2fmm) exceeds printer max Y (%vmm)", y, env.MaxY), y)
	case env.MaxZ > 0 && z > env.MaxZ:
		return domain.NewValidationErrorWithValue("dimensions.z",
			fmt.Sprintf("Part height (%.2fmm) exceeds printer max Z (%vmm)", z, env.MaxZ), z)
	default:
		return nil
	}
}
