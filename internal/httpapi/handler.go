// Package httpapi adapts the one HTTP route the core exposes,
// POST /api/v1/medium (spec §6), onto the Ingestion Service. It
// assumes an already-authenticated ingestion.Identity is present on
// the request context; OAuth/JWT verification is an external
// collaborator's responsibility (spec §1, §6).
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/ovacore/photonic/internal/apperr"
	"github.com/ovacore/photonic/internal/ingestion"
	"github.com/ovacore/photonic/internal/repository/media"
)

var tracer = otel.Tracer("photonic/httpapi")

type identityKey struct{}

// WithIdentity attaches an authenticated identity to ctx, the hook the
// external auth collaborator uses before calling into this handler.
func WithIdentity(ctx context.Context, id ingestion.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func identityFromContext(ctx context.Context) (ingestion.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(ingestion.Identity)
	return id, ok
}

// rawOptions mirrors the query parameters spec §6 names, decoded via
// mapstructure the way the teacher decodes loosely-typed request
// params into typed structs.
type rawOptions struct {
	Filename    string   `mapstructure:"filename"`
	Extension   string   `mapstructure:"extension"`
	Priority    string   `mapstructure:"priority"`
	Tags        []string `mapstructure:"tags"`
	MediumType  string   `mapstructure:"medium_type"`
	AlbumID     string   `mapstructure:"album_id"`
	DateTaken   string   `mapstructure:"date_taken"`
	CameraMake  string   `mapstructure:"camera_make"`
	CameraModel string   `mapstructure:"camera_model"`
}

// Handler serves the upload route.
type Handler struct {
	ingestion *ingestion.Service
	log       *zap.Logger
}

func New(ingestionSvc *ingestion.Service, log *zap.Logger) *Handler {
	return &Handler{ingestion: ingestionSvc, log: log}
}

// Register attaches the route to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/medium", h.upload)
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "POST /api/v1/medium")
	defer span.End()

	identity, ok := identityFromContext(ctx)
	if !ok {
		span.SetStatus(codes.Error, "unauthenticated")
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	span.SetAttributes(attribute.String("user.id", identity.ID.String()))

	opts, err := parseOptions(r)
	if err != nil {
		span.RecordError(err)
		h.writeError(w, err)
		return
	}

	declaredSize := r.ContentLength
	mime := r.Header.Get("Content-Type")

	mediumID, err := h.ingestion.Upload(ctx, identity, declaredSize, mime, r.Body, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.writeError(w, err)
		return
	}
	span.SetAttributes(attribute.String("medium.id", mediumID.String()))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write([]byte(`"` + mediumID.String() + `"`))
}

func parseOptions(r *http.Request) (ingestion.Options, error) {
	q := r.URL.Query()
	// Query params arrive as an untyped map (mapstructure's usual input
	// shape, see the teacher's analytics event handler): every value is
	// its raw string except "tags", which keeps its []string shape.
	payload := map[string]interface{}{
		"filename":     q.Get("filename"),
		"extension":    q.Get("extension"),
		"priority":     q.Get("priority"),
		"tags":         q["tags"],
		"medium_type":  q.Get("medium_type"),
		"album_id":     q.Get("album_id"),
		"date_taken":   q.Get("date_taken"),
		"camera_make":  q.Get("camera_make"),
		"camera_model": q.Get("camera_model"),
	}

	var decoded rawOptions
	if err := mapstructure.Decode(payload, &decoded); err != nil {
		return ingestion.Options{}, apperr.Wrap(apperr.KindParseFailure, "decode upload options", err)
	}

	if decoded.Filename == "" || decoded.Extension == "" {
		return ingestion.Options{}, apperr.New(apperr.KindParseFailure, "filename and extension are required")
	}

	opts := ingestion.Options{
		Filename:  decoded.Filename,
		Extension: decoded.Extension,
		Priority:  10,
		Tags:      decoded.Tags,
	}

	if decoded.Priority != "" {
		p, err := strconv.Atoi(decoded.Priority)
		if err != nil {
			return ingestion.Options{}, apperr.Wrap(apperr.KindParseFailure, "invalid priority", err)
		}
		opts.Priority = p
	}

	if decoded.MediumType != "" {
		mt := media.Type(decoded.MediumType)
		opts.MediumType = &mt
	}

	if decoded.AlbumID != "" {
		id, err := uuid.Parse(decoded.AlbumID)
		if err != nil {
			return ingestion.Options{}, apperr.Wrap(apperr.KindParseFailure, "invalid album_id", err)
		}
		opts.AlbumID = &id
	}

	if decoded.DateTaken != "" {
		t, err := time.Parse(time.RFC3339, decoded.DateTaken)
		if err != nil {
			return ingestion.Options{}, apperr.Wrap(apperr.KindParseFailure, "invalid date_taken", err)
		}
		opts.DateTaken = &t
	}

	if decoded.CameraMake != "" {
		opts.CameraMake = &decoded.CameraMake
	}
	if decoded.CameraModel != "" {
		opts.CameraModel = &decoded.CameraModel
	}

	return opts, nil
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperr.Error
	status := http.StatusInternalServerError
	if errors.As(err, &appErr) {
		status = appErr.Kind.HTTPStatus()
	}
	if h.log != nil && status == http.StatusInternalServerError {
		h.log.Error("upload failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}
