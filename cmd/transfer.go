package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/tasks"
)

// TransferPropose fetches the source playlist, matches it onto the destination and writes a review
// file for [Runner.TransferCommit]. A text destination prints the export instead.
func (r *Runner) TransferPropose(ctx context.Context, cmd *cli.Command) error {
	src, err := parsePlatform(cmd.String("from"))
	if err != nil {
		return err
	}
	dst, err := parsePlatform(cmd.String("to"))
	if err != nil {
		return err
	}

	engine, err := r.openEngine(cmd)
	if err != nil {
		return err
	}
	if err := engine.CheckPair(src, dst); err != nil {
		return err
	}

	ref, err := playlistRef(src, cmd.String("playlist"))
	if err != nil {
		return err
	}

	user := userID(cmd)
	playlist, err := engine.FetchPlaylist(ctx, user, src, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}

	progress, stop := r.reportProgress()
	proposal, err := engine.Propose(ctx, tasks.ProposeRequest{
		UserID:      user,
		Source:      src,
		Destination: dst,
		Playlist:    playlist,
	}, progress)
	stop()
	if err != nil {
		return fmt.Errorf("proposal failed: %w", err)
	}

	if dst.IsText() {
		if cmd.IsSet("output") {
			if err := os.WriteFile(cmd.String("output"), []byte(proposal.Export), 0644); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			r.logger.Info("export written", "path", cmd.String("output"))
			return nil
		}
		return r.writePlain("%s", proposal.Export)
	}

	title := cmd.String("title")
	if title == "" {
		title = playlist.Name
	}

	path := cmd.String("output")
	review := &formatter.Review{
		Source:           src,
		Destination:      dst,
		SourcePlaylistID: playlist.ID,
		Title:            title,
		Public:           cmd.Bool("public"),
		Mappings:         proposal.Mappings,
	}
	if err := formatter.WriteReview(review, path); err != nil {
		return err
	}

	if csvPath := cmd.String("csv"); csvPath != "" {
		data, err := formatter.ExportMappingsCSV(proposal.Mappings)
		if err != nil {
			return err
		}
		if err := os.WriteFile(csvPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write csv: %w", err)
		}
	}

	r.writePlain("%s", formatter.RenderReview(title, src, dst, proposal.Mappings))
	return r.writePlainln("Review %s, then run: crossfade transfer commit --review %s", path, path)
}

// TransferCommit reads a review file and creates the destination playlist from its mappings.
func (r *Runner) TransferCommit(ctx context.Context, cmd *cli.Command) error {
	review, err := formatter.ReadReview(cmd.String("review"))
	if err != nil {
		return err
	}

	engine, err := r.openEngine(cmd)
	if err != nil {
		return err
	}

	progress, stop := r.reportProgress()
	result, err := engine.Commit(ctx, tasks.CommitRequest{
		UserID:             userID(cmd),
		Source:             review.Source,
		Destination:        review.Destination,
		Mappings:           review.Mappings,
		Title:              review.Title,
		Public:             review.Public,
		OriginalPlaylistID: review.SourcePlaylistID,
	}, progress)
	stop()
	if err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("%s\n", formatter.Success(fmt.Sprintf("Created %s playlist %s with %d tracks",
		review.Destination.DisplayName(), result.PlaylistID, result.Added)))
	if len(result.Failed) > 0 {
		r.writePlain("%s\n", formatter.Failure(fmt.Sprintf("%d tracks could not be added", len(result.Failed))))
	}
	return nil
}

// TransferHistory lists the user's transfers.
func (r *Runner) TransferHistory(ctx context.Context, cmd *cli.Command) error {
	engine, err := r.openEngine(cmd)
	if err != nil {
		return err
	}

	records, err := engine.History(ctx, userID(cmd), int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(records, true)
	}

	r.writePlainHeader(fmt.Sprintf("Transfers (%d)", len(records)))
	for _, rec := range records {
		r.writePlain("%s  %s → %s  %s  %d/%d added  %s\n",
			rec.CreatedAt.Format("2006-01-02 15:04"),
			rec.SourcePlatform.DisplayName(), rec.DestinationPlatform.DisplayName(),
			rec.DestinationPlaylistID, rec.TracksMatched, rec.TracksTotal, rec.Status)
	}
	return nil
}
