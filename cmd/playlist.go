package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
)

// PlaylistShow fetches a playlist and prints it as text, markdown or JSON.
func (r *Runner) PlaylistShow(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 2 {
		return fmt.Errorf("%w: usage: playlist show <platform> <playlist id or text file>", shared.ErrMissingArgument)
	}

	platform, err := parsePlatform(cmd.Args().Get(0))
	if err != nil {
		return err
	}
	ref, err := playlistRef(platform, cmd.Args().Get(1))
	if err != nil {
		return err
	}

	engine, err := r.openEngine(cmd)
	if err != nil {
		return err
	}

	playlist, err := engine.FetchPlaylist(ctx, userID(cmd), platform, ref)
	if err != nil {
		return fmt.Errorf("failed to fetch playlist: %w", err)
	}
	r.logger.Debug("fetched playlist", "platform", platform, "name", playlist.Name, "tracks", len(playlist.Tracks))

	var out []byte
	switch format := cmd.String("format"); format {
	case "json":
		return r.writeJSON(playlist, true)
	case "markdown", "md":
		out = formatter.ExportToMarkdown(playlist, platform)
	case "text", "":
		out = formatter.ExportToText(playlist)
	default:
		return fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}

	if _, err := r.output.Write(out); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func parsePlatform(s string) (models.Platform, error) {
	platform, err := models.ParsePlatform(s)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrInvalidArgument, err)
	}
	return platform, nil
}

// playlistRef turns a command line playlist reference into what the engine expects. For the text
// platform that is the file contents ("-" reads stdin); other platforms take the id unchanged.
func playlistRef(platform models.Platform, ref string) (string, error) {
	if !platform.IsText() {
		return ref, nil
	}

	var data []byte
	var err error
	if ref == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(ref)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read playlist text: %w", err)
	}
	return string(data), nil
}
