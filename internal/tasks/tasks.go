package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/metrics"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
)

// MappingStore is the cache the engine reads during proposals and teaches during commits.
type MappingStore interface {
	MappingLookup
	SaveMatches(ctx context.Context, matches []models.CachedMatch) error
}

// TransferStore records committed transfers.
type TransferStore interface {
	CreateTransfer(ctx context.Context, record *models.TransferRecord) error
	ListTransfers(ctx context.Context, userID string, limit int) ([]models.TransferRecord, error)
}

// TransferEngine defines the operations exposed to the CLI and HTTP layers.
type TransferEngine interface {
	// CheckPair rejects a (source, destination) pair that no proposal could serve, before any remote work.
	CheckPair(source, destination models.Platform) error

	// FetchPlaylist loads a playlist. For the text platform playlistID is the playlist text itself.
	FetchPlaylist(ctx context.Context, userID string, platform models.Platform, playlistID string) (*models.Playlist, error)

	// Propose maps every track of a playlist to the destination platform without writing anything.
	Propose(ctx context.Context, req ProposeRequest, progress chan<- ProgressUpdate) (*Proposal, error)

	// Commit learns reviewed mappings, creates the destination playlist and records the transfer.
	Commit(ctx context.Context, req CommitRequest, progress chan<- ProgressUpdate) (*CommitResult, error)

	// History lists a user's transfers, newest first.
	History(ctx context.Context, userID string, limit int) ([]models.TransferRecord, error)
}

// ProposeRequest asks for mappings of Playlist's tracks onto Destination.
type ProposeRequest struct {
	UserID      string
	Source      models.Platform
	Destination models.Platform
	Playlist    *models.Playlist
}

// Proposal is the reviewable result of [Engine.Propose].
// Export is set instead of Mappings when the destination is the text platform.
type Proposal struct {
	Source      models.Platform  `json:"source"`
	Destination models.Platform  `json:"destination"`
	Mappings    []models.Mapping `json:"mappings"`
	Export      string           `json:"export,omitempty"`
	Matched     int              `json:"matched"`
	Unmatched   int              `json:"unmatched"`
}

// CommitRequest carries reviewed mappings back for commit.
type CommitRequest struct {
	UserID             string
	Source             models.Platform
	Destination        models.Platform
	Mappings           []models.Mapping
	Title              string
	Public             bool
	OriginalPlaylistID string
}

// CommitResult describes the created playlist.
type CommitResult struct {
	PlaylistID string                 `json:"playlist_id"`
	Added      int                    `json:"added"`
	Failed     []string               `json:"failed,omitempty"`
	Record     *models.TransferRecord `json:"record,omitempty"`
}

// EngineOptions wires an [Engine].
type EngineOptions struct {
	Services  map[models.Platform]services.Service
	Tokens    map[models.Platform]services.TokenProvider
	Mappings  MappingStore
	Transfers TransferStore
	// Completion enables the AI fallback; nil disables it.
	Completion       services.CompletionClient
	Registry         *Registry
	MaxConcurrency   int
	DescriptionWords int
	Logger           *log.Logger
}

// Engine implements [TransferEngine].
type Engine struct {
	services  map[models.Platform]services.Service
	tokens    map[models.Platform]services.TokenProvider
	mappings  MappingStore
	transfers TransferStore
	registry  *Registry
	matcher   *Matcher
	logger    *log.Logger
}

var _ TransferEngine = (*Engine)(nil)

// NewEngine creates a new Engine from opts.
func NewEngine(opts EngineOptions) *Engine {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry(opts.DescriptionWords)
	}
	if opts.Services == nil {
		opts.Services = map[models.Platform]services.Service{}
	}
	if _, ok := opts.Services[models.PlatformText]; !ok {
		opts.Services[models.PlatformText] = services.NewTextService()
	}

	var resolver *AIResolver
	if opts.Completion != nil {
		resolver = NewAIResolver(opts.Completion, opts.DescriptionWords, opts.Logger)
	}

	var lookup MappingLookup
	if opts.Mappings != nil {
		lookup = opts.Mappings
	}

	return &Engine{
		services:  opts.Services,
		tokens:    opts.Tokens,
		mappings:  opts.Mappings,
		transfers: opts.Transfers,
		registry:  opts.Registry,
		matcher:   NewMatcher(lookup, resolver, opts.MaxConcurrency, opts.Logger),
		logger:    shared.WithLogger(opts.Logger, "component", "engine"),
	}
}

// FetchPlaylist loads a playlist from platform.
func (e *Engine) FetchPlaylist(ctx context.Context, userID string, platform models.Platform, playlistID string) (*models.Playlist, error) {
	svc, ok := e.services[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrUnsupported, platform)
	}
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id is required", shared.ErrMissingArgument)
	}

	token, err := e.accessToken(ctx, platform, userID)
	if err != nil {
		return nil, err
	}
	return svc.GetPlaylist(ctx, token, playlistID)
}

// CheckPair reports whether source can be proposed onto destination. The same platform on both sides is
// invalid input; a pair without a pipeline or a configured destination is unsupported. Any source may
// be exported to text.
func (e *Engine) CheckPair(source, destination models.Platform) error {
	if source == destination {
		return fmt.Errorf("%w: source and destination are both %s", shared.ErrInvalidInput, source)
	}
	if _, ok := e.services[source]; !ok {
		return fmt.Errorf("%w: %s is not configured", shared.ErrUnsupportedPair, source)
	}
	if destination.IsText() {
		return nil
	}
	if _, ok := e.registry.Lookup(source, destination); !ok {
		return fmt.Errorf("%w: %s to %s", shared.ErrUnsupportedPair, source, destination)
	}
	if _, ok := e.services[destination]; !ok {
		return fmt.Errorf("%w: %s is not configured", shared.ErrUnsupportedPair, destination)
	}
	return nil
}

// Propose maps the request playlist onto the destination.
func (e *Engine) Propose(ctx context.Context, req ProposeRequest, progress chan<- ProgressUpdate) (*Proposal, error) {
	if err := e.CheckPair(req.Source, req.Destination); err != nil {
		return nil, err
	}
	if req.Playlist == nil {
		return nil, fmt.Errorf("%w: playlist is required", shared.ErrInvalidInput)
	}

	proposal := &Proposal{Source: req.Source, Destination: req.Destination, Mappings: []models.Mapping{}}

	if req.Destination.IsText() {
		proposal.Export = string(formatter.ExportToText(req.Playlist))
		return proposal, nil
	}

	pipeline, _ := e.registry.Lookup(req.Source, req.Destination)
	dest := e.services[req.Destination]

	token, err := e.accessToken(ctx, req.Destination, req.UserID)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("source", req.Source, "destination", req.Destination, "playlist", req.Playlist.Name)
	logger.Info("matching tracks", "tracks", len(req.Playlist.Tracks))

	mappings, err := e.matcher.MatchAll(ctx, pipeline, dest, token, req.Playlist.Tracks, progress)
	if err != nil {
		return nil, err
	}

	proposal.Mappings = mappings
	for _, m := range mappings {
		if m.Matched() {
			proposal.Matched++
		} else {
			proposal.Unmatched++
		}
	}

	logger.Info("proposal ready", "matched", proposal.Matched, "unmatched", proposal.Unmatched)
	return proposal, nil
}

// Commit creates the destination playlist from reviewed mappings.
//
// Nothing is written when no mapping has a destination. Saving mappings and recording the transfer are
// best effort; their failures are logged and the created playlist id is still returned.
func (e *Engine) Commit(ctx context.Context, req CommitRequest, progress chan<- ProgressUpdate) (*CommitResult, error) {
	if req.Source == req.Destination {
		return nil, fmt.Errorf("%w: source and destination are both %s", shared.ErrInvalidInput, req.Source)
	}
	dest, ok := e.services[req.Destination]
	if !ok || req.Destination.IsText() {
		return nil, fmt.Errorf("%w: cannot commit to %s", shared.ErrUnsupportedPair, req.Destination)
	}

	ids := make([]string, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		if m.Matched() {
			ids = append(ids, m.DestinationTrack.ID)
		}
	}
	if len(ids) == 0 {
		return nil, shared.ErrEmptyResult
	}

	token, err := e.accessToken(ctx, req.Destination, req.UserID)
	if err != nil {
		return nil, err
	}

	logger := e.logger.With("user", req.UserID, "source", req.Source, "destination", req.Destination)
	e.learn(ctx, logger, req, progress)

	title := req.Title
	if title == "" {
		title = fmt.Sprintf("Transferred from %s", req.Source.DisplayName())
	}

	sendProgress(progress, createPlaylistUpdate(req.Destination, title))
	playlistID, err := dest.CreatePlaylist(ctx, token, title, req.Public)
	if err != nil {
		return nil, fmt.Errorf("failed to create playlist: %w", err)
	}

	sendProgress(progress, addTracksUpdate(playlistID, len(ids)))
	result := &CommitResult{PlaylistID: playlistID}
	added, err := dest.AddTracks(ctx, token, playlistID, ids)
	switch {
	case err != nil:
		logger.Error("failed to add tracks", "playlist", playlistID, "error", err)
		result.Failed = ids
		if added != nil {
			result.Added = added.Added
			result.Failed = added.Failed
		}
	case added != nil:
		result.Added = added.Added
		result.Failed = added.Failed
	}
	if len(result.Failed) > 0 {
		metrics.TracksAddFailed.WithLabelValues(string(req.Destination)).Add(float64(len(result.Failed)))
		logger.Warn("some tracks were not added", "playlist", playlistID, "added", result.Added, "failed", len(result.Failed))
	}

	record := &models.TransferRecord{
		UserID:                req.UserID,
		SourcePlatform:        req.Source,
		DestinationPlatform:   req.Destination,
		SourcePlaylistID:      req.OriginalPlaylistID,
		DestinationPlaylistID: playlistID,
		Status:                models.TransferCompleted,
		TracksTotal:           len(req.Mappings),
		TracksMatched:         result.Added,
		TracksFailed:          len(req.Mappings) - result.Added,
	}
	if e.transfers != nil {
		if err := e.transfers.CreateTransfer(ctx, record); err != nil {
			logger.Error("failed to record transfer", "playlist", playlistID, "error", err)
		} else {
			result.Record = record
		}
	}

	metrics.TransfersCommitted.WithLabelValues(string(req.Source), string(req.Destination)).Inc()
	sendProgress(progress, recordTransferUpdate(record))
	logger.Info("transfer committed", "playlist", playlistID, "added", result.Added)
	return result, nil
}

// learn saves every reviewed mapping, matched or not, so later proposals hit the cache.
func (e *Engine) learn(ctx context.Context, logger *log.Logger, req CommitRequest, progress chan<- ProgressUpdate) {
	if e.mappings == nil {
		return
	}

	rows := make([]models.CachedMatch, 0, len(req.Mappings))
	for _, m := range req.Mappings {
		if row, ok := models.NewCachedMatch(req.Source, req.Destination, m); ok {
			rows = append(rows, row)
		}
	}
	if len(rows) == 0 {
		return
	}

	sendProgress(progress, saveMappingsUpdate(len(rows)))
	if err := e.mappings.SaveMatches(ctx, rows); err != nil {
		logger.Error("failed to save mappings", "count", len(rows), "error", err)
	}
}

// History lists transfers for userID, newest first. limit <= 0 returns every record.
func (e *Engine) History(ctx context.Context, userID string, limit int) ([]models.TransferRecord, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", shared.ErrMissingArgument)
	}
	if e.transfers == nil {
		return []models.TransferRecord{}, nil
	}
	return e.transfers.ListTransfers(ctx, userID, limit)
}

func (e *Engine) accessToken(ctx context.Context, platform models.Platform, userID string) (string, error) {
	if platform.IsText() {
		return "", nil
	}
	provider, ok := e.tokens[platform]
	if !ok {
		return "", shared.NewAuthRequired(string(platform), fmt.Errorf("%w: no credentials for %s", shared.ErrMissingCredentials, platform))
	}
	return provider.AccessToken(ctx, userID)
}
