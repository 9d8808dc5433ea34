package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
)

const maxBodyBytes = 4 << 20

type proposeRequest struct {
	Source      string `json:"source" validate:"required"`
	Destination string `json:"destination" validate:"required"`
	// PlaylistID names a remote playlist; Text carries a typed playlist for the text platform.
	PlaylistID string `json:"playlist_id" validate:"required_without=Text"`
	Text       string `json:"text"`
}

type commitRequest struct {
	Source           string           `json:"source" validate:"required"`
	Destination      string           `json:"destination" validate:"required"`
	Title            string           `json:"title" validate:"required,max=150"`
	Public           bool             `json:"public"`
	SourcePlaylistID string           `json:"source_playlist_id"`
	Mappings         []models.Mapping `json:"mappings"`
}

type errorBody struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Platform string `json:"platform,omitempty"`
}

// TransferHandler serves the playlist and transfer endpoints.
type TransferHandler struct {
	engine   tasks.TransferEngine
	validate *validator.Validate
	logger   *log.Logger
}

// NewTransferHandler creates a new TransferHandler
func NewTransferHandler(engine tasks.TransferEngine, logger *log.Logger) *TransferHandler {
	return &TransferHandler{
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

// NewRouter wires every route of the service.
func NewRouter(engine tasks.TransferEngine, logger *log.Logger) *BasicRouter {
	h := NewTransferHandler(engine, shared.WithLogger(logger, "component", "http"))

	r := NewBasicRouter()
	r.Use(chimiddleware.RequestID, chimiddleware.Recoverer, RequestLogger(h.logger))

	r.Handle(http.MethodGet, "/health", http.HandlerFunc(h.Health))
	r.Handle(http.MethodGet, "/metrics", promhttp.Handler())

	api := func(fn http.HandlerFunc) http.Handler { return RequireUser(fn) }
	r.Handle(http.MethodGet, "/api/playlists/{platform}/{id}", api(h.Playlist))
	r.Handle(http.MethodPost, "/api/transfers/propose", api(h.Propose))
	r.Handle(http.MethodPost, "/api/transfers/commit", api(h.Commit))
	r.Handle(http.MethodGet, "/api/transfers", api(h.History))
	return r
}

func (h *TransferHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Playlist returns a playlist from a remote platform.
func (h *TransferHandler) Playlist(w http.ResponseWriter, r *http.Request) {
	platform, err := parsePlatform(chi.URLParam(r, "platform"))
	if err != nil {
		h.fail(w, err)
		return
	}

	pl, err := h.engine.FetchPlaylist(r.Context(), UserID(r.Context()), platform, chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pl)
}

// Propose fetches the source playlist and returns proposed mappings for review.
func (h *TransferHandler) Propose(w http.ResponseWriter, r *http.Request) {
	var req proposeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	src, dst, err := parsePair(req.Source, req.Destination)
	if err != nil {
		h.fail(w, err)
		return
	}
	if err := h.engine.CheckPair(src, dst); err != nil {
		h.fail(w, err)
		return
	}

	id := req.PlaylistID
	if src.IsText() {
		id = req.Text
	}

	userID := UserID(r.Context())
	pl, err := h.engine.FetchPlaylist(r.Context(), userID, src, id)
	if err != nil {
		h.fail(w, err)
		return
	}

	proposal, err := h.engine.Propose(r.Context(), tasks.ProposeRequest{
		UserID:      userID,
		Source:      src,
		Destination: dst,
		Playlist:    pl,
	}, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, proposal)
}

// Commit creates the destination playlist from reviewed mappings.
func (h *TransferHandler) Commit(w http.ResponseWriter, r *http.Request) {
	var req commitRequest
	if err := h.decode(w, r, &req); err != nil {
		h.fail(w, err)
		return
	}
	src, dst, err := parsePair(req.Source, req.Destination)
	if err != nil {
		h.fail(w, err)
		return
	}

	res, err := h.engine.Commit(r.Context(), tasks.CommitRequest{
		UserID:             UserID(r.Context()),
		Source:             src,
		Destination:        dst,
		Mappings:           req.Mappings,
		Title:              req.Title,
		Public:             req.Public,
		OriginalPlaylistID: req.SourcePlaylistID,
	}, nil)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// History lists the caller's transfers, newest first. ?limit= bounds the list.
func (h *TransferHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrInvalidArgument))
			return
		}
		limit = n
	}

	records, err := h.engine.History(r.Context(), UserID(r.Context()), limit)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"transfers": records})
}

func (h *TransferHandler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", shared.ErrInvalidInput, err)
	}
	if err := h.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return nil
}

func parsePlatform(s string) (models.Platform, error) {
	p, err := models.ParsePlatform(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return p, nil
}

func parsePair(source, destination string) (models.Platform, models.Platform, error) {
	src, err := parsePlatform(source)
	if err != nil {
		return "", "", err
	}
	dst, err := parsePlatform(destination)
	if err != nil {
		return "", "", err
	}
	return src, dst, nil
}

// fail maps err onto a status code and writes it.
func (h *TransferHandler) fail(w http.ResponseWriter, err error) {
	status, code := classify(err)
	platform, _ := shared.AuthPlatform(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "status", status, "error", err)
	}
	writeError(w, status, code, err.Error(), platform)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrAuthRequired):
		return http.StatusUnauthorized, "auth_required"
	case errors.Is(err, shared.ErrEmptyResult):
		return http.StatusUnprocessableEntity, "empty_result"
	case errors.Is(err, shared.ErrUnsupportedPair), errors.Is(err, shared.ErrUnsupported):
		return http.StatusBadRequest, "unsupported"
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidArgument), errors.Is(err, shared.ErrMissingArgument):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, shared.ErrPlaylistNotFound), errors.Is(err, shared.ErrTrackNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, shared.ErrAPIRequest), errors.Is(err, shared.ErrServiceUnavailable):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message, platform string) {
	writeJSON(w, status, errorBody{Error: apiError{Code: code, Message: message, Platform: platform}})
}
