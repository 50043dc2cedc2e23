package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/eugenenazirov/atlas-packer/internal/atlas"
	"github.com/eugenenazirov/atlas-packer/internal/manifest"
	"github.com/eugenenazirov/atlas-packer/internal/packer"
	"github.com/eugenenazirov/atlas-packer/internal/storage"
)

const defaultMaxBodyBytes = 1 << 20

var encodeManifest = manifest.Encode

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires packer, atlas builder and storage dependencies into HTTP handlers.
type Handler struct {
	packer  packer.Packer
	builder *atlas.Builder
	storage storage.Storage

	clock        func() time.Time
	maxBodyBytes int64
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMaxBodyBytes limits the size of request bodies. Values <= 0 keep the default.
func WithMaxBodyBytes(limit int64) HandlerOption {
	return func(h *Handler) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(p packer.Packer, builder *atlas.Builder, store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		packer:  p,
		builder: builder,
		storage: store,
		clock: func() time.Time {
			return time.Now().UTC()
		},
		maxBodyBytes: defaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handlePack(w http.ResponseWriter, r *http.Request) {
	var req packRequest
	if !h.decode(w, r, &req) {
		return
	}

	start := time.Now()
	pack, err := h.packer.Pack(req.Rectangles)
	elapsed := time.Since(start)
	if err != nil {
		writePackError(w, err)
		return
	}

	placements := make([]placementResponse, len(pack.Placements))
	for i, p := range pack.Placements {
		placements[i] = placementResponse{X: p.Position.X, Y: p.Position.Y, Index: p.Index}
	}

	resp := packResponse{
		Placements:        placements,
		Dimensions:        pack.Dimensions,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateAtlas(w http.ResponseWriter, r *http.Request) {
	var req createAtlasRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Invalid request", "name must not be empty")
		return
	}

	built, err := h.builder.Build(req.Name, req.Sprites)
	if err != nil {
		switch {
		case errors.Is(err, atlas.ErrEmptySpriteID), errors.Is(err, atlas.ErrDuplicateSprite):
			writeError(w, http.StatusBadRequest, "Invalid sprites", err.Error())
		default:
			writePackError(w, err)
		}
		return
	}

	if err := h.storage.Save(r.Context(), built); err != nil {
		if errors.Is(err, storage.ErrCapacityExceeded) {
			writeError(w, http.StatusInsufficientStorage, "Storage full", err.Error(), "Delete unused atlases and retry")
			return
		}
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Location", "/api/atlases/"+built.ID)
	writeJSON(w, http.StatusCreated, built)
}

func (h *Handler) handleListAtlases(w http.ResponseWriter, r *http.Request) {
	list, err := h.storage.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	summaries := make([]atlasSummary, len(list))
	for i, a := range list {
		summaries[i] = atlasSummary{
			ID:        a.ID,
			Name:      a.Name,
			Width:     a.Width,
			Height:    a.Height,
			Sprites:   len(a.Regions),
			CreatedAt: a.CreatedAt,
		}
	}
	writeJSON(w, http.StatusOK, atlasListResponse{Atlases: summaries})
}

func (h *Handler) handleGetAtlas(w http.ResponseWriter, r *http.Request) {
	format, err := manifest.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid format", err.Error(),
			fmt.Sprintf("Use one of %v", manifest.Formats()))
		return
	}

	a, ok := h.lookupAtlas(r.Context(), w, r.PathValue("id"))
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := encodeManifest(&buf, a, format); err != nil {
		writeInternalError(w, err)
		return
	}

	w.Header().Set("Content-Type", manifest.ContentType(format))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (h *Handler) handleDeleteAtlas(w http.ResponseWriter, r *http.Request) {
	if err := h.storage.Delete(r.Context(), r.PathValue("id")); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) lookupAtlas(ctx context.Context, w http.ResponseWriter, id string) (atlas.Atlas, bool) {
	a, err := h.storage.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Not found", err.Error())
			return atlas.Atlas{}, false
		}
		writeInternalError(w, err)
		return atlas.Atlas{}, false
	}
	return a, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request too large",
				fmt.Sprintf("body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return false
	}
	return true
}

func writePackError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, packer.ErrTooManyRectangles):
		writeError(w, http.StatusRequestEntityTooLarge, "Too many rectangles", err.Error(), "Split the input into several atlases")
	case errors.Is(err, packer.ErrDegenerateRectangle):
		writeError(w, http.StatusUnprocessableEntity, "Degenerate rectangle", err.Error(), "Remove zero-sized rectangles or give them a width and height")
	case errors.Is(err, packer.ErrDimensionOverflow):
		writeError(w, http.StatusUnprocessableEntity, "Layout too large", err.Error(), "Reduce rectangle sizes so the packed layout fits in 32-bit coordinates")
	default:
		writeInternalError(w, err)
	}
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type packRequest struct {
	Rectangles []packer.Size `json:"rectangles"`
}

type createAtlasRequest struct {
	Name    string         `json:"name"`
	Sprites []atlas.Sprite `json:"sprites"`
}

type placementResponse struct {
	X     uint32 `json:"x"`
	Y     uint32 `json:"y"`
	Index int    `json:"index"`
}

type packResponse struct {
	Placements        []placementResponse `json:"placements"`
	Dimensions        packer.Size         `json:"dimensions"`
	CalculationTimeMs int64               `json:"calculationTimeMs"`
}

type atlasSummary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     uint32    `json:"width"`
	Height    uint32    `json:"height"`
	Sprites   int       `json:"sprites"`
	CreatedAt time.Time `json:"createdAt"`
}

type atlasListResponse struct {
	Atlases []atlasSummary `json:"atlases"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
