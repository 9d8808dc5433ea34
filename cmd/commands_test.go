package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"

	"github.com/desertthunder/crossfade/internal/formatter"
	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
	tu "github.com/desertthunder/crossfade/internal/testing"
)

type fakeEngine struct {
	playlist   *models.Playlist
	proposal   *tasks.Proposal
	proposeErr error
	commit     *tasks.CommitResult
	commitErr  error
	history    []models.TransferRecord

	fetched   string
	proposed  *tasks.ProposeRequest
	committed *tasks.CommitRequest
	user      string
	limit     int
	pairErr   error
}

func (f *fakeEngine) CheckPair(src, dst models.Platform) error {
	if src == dst {
		return fmt.Errorf("%w: source and destination are both %s", shared.ErrInvalidInput, src)
	}
	return f.pairErr
}

func (f *fakeEngine) FetchPlaylist(_ context.Context, userID string, _ models.Platform, id string) (*models.Playlist, error) {
	f.user, f.fetched = userID, id
	if f.playlist == nil {
		return nil, shared.ErrPlaylistNotFound
	}
	return f.playlist, nil
}

func (f *fakeEngine) Propose(_ context.Context, req tasks.ProposeRequest, progress chan<- tasks.ProgressUpdate) (*tasks.Proposal, error) {
	f.proposed = &req
	progress <- tasks.ProgressUpdate{Phase: tasks.MatchTracks, Step: 1, Total: 1, Message: "matched"}
	return f.proposal, f.proposeErr
}

func (f *fakeEngine) Commit(_ context.Context, req tasks.CommitRequest, _ chan<- tasks.ProgressUpdate) (*tasks.CommitResult, error) {
	f.committed = &req
	return f.commit, f.commitErr
}

func (f *fakeEngine) History(_ context.Context, userID string, limit int) ([]models.TransferRecord, error) {
	f.user, f.limit = userID, limit
	return f.history, nil
}

var (
	yellow    = models.Track{ID: "sp1", Name: "Yellow", Artists: []string{"Coldplay"}}
	fixYou    = models.Track{ID: "sp2", Name: "Fix You", Artists: []string{"Coldplay"}}
	yellowVid = models.Track{ID: "yt1", Name: "Coldplay - Yellow (Official Video)", Artists: []string{"ColdplayVEVO"}}
)

func newTestRunner(t *testing.T, engine *fakeEngine) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	opts := RunnerOpts{
		Config: testConfig(t),
		Logger: log.New(io.Discard),
		Output: output,
	}
	if engine != nil {
		opts.Engine = engine
	}
	runner := NewRunner(opts)
	t.Cleanup(func() { runner.close() })
	return runner, output
}

func TestTransferCommands(t *testing.T) {
	t.Run("Propose Writes A Review File", func(t *testing.T) {
		engine := &fakeEngine{
			playlist: &models.Playlist{ID: "pl1", Name: "Mix", Tracks: []models.Track{yellow, fixYou}},
			proposal: &tasks.Proposal{
				Source:      models.PlatformSpotify,
				Destination: models.PlatformYouTube,
				Mappings: []models.Mapping{
					{SourceTrack: yellow, DestinationTrack: &yellowVid, Stage: models.StageSearch, Confidence: 0.9},
					{SourceTrack: fixYou, Stage: models.StageNone},
				},
				Matched:   1,
				Unmatched: 1,
			},
		}
		runner, output := newTestRunner(t, engine)
		dir := t.TempDir()
		reviewPath := filepath.Join(dir, "review.json")
		csvPath := filepath.Join(dir, "mappings.csv")

		err := run(runner, "transfer", "propose", "--from", "spotify", "--to", "yt", "--playlist", "pl1",
			"--user", "alice", "--output", reviewPath, "--csv", csvPath, "--public")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if engine.fetched != "pl1" || engine.user != "alice" {
			t.Errorf("expected pl1 fetched for alice, got %q for %q", engine.fetched, engine.user)
		}
		if engine.proposed == nil || engine.proposed.Destination != models.PlatformYouTube || engine.proposed.Playlist.Name != "Mix" {
			t.Fatalf("unexpected propose request %+v", engine.proposed)
		}

		review, err := formatter.ReadReview(reviewPath)
		if err != nil {
			t.Fatalf("expected readable review, got %v", err)
		}
		if review.Title != "Mix" || !review.Public || review.SourcePlaylistID != "pl1" || len(review.Mappings) != 2 {
			t.Errorf("unexpected review %+v", review)
		}

		csv := tu.MustReadFile(t, csvPath)
		if !strings.Contains(csv, "yt1") {
			t.Errorf("expected csv to contain the matched id, got %q", csv)
		}

		out := output.String()
		if !strings.Contains(out, "1/2 matched") {
			t.Errorf("expected summary in output, got %q", out)
		}
		if !strings.Contains(out, "transfer commit --review "+reviewPath) {
			t.Errorf("expected commit hint in output, got %q", out)
		}
	})

	t.Run("Propose To Text Prints The Export", func(t *testing.T) {
		engine := &fakeEngine{
			playlist: &models.Playlist{ID: "pl1", Name: "Mix", Tracks: []models.Track{yellow}},
			proposal: &tasks.Proposal{Export: "# Mix\n\nColdplay - Yellow\n"},
		}
		runner, output := newTestRunner(t, engine)

		if err := run(runner, "transfer", "propose", "--from", "spotify", "--to", "text", "--playlist", "pl1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if output.String() != "# Mix\n\nColdplay - Yellow\n" {
			t.Errorf("unexpected export %q", output.String())
		}
	})

	t.Run("Propose Reads Text Sources From A File", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.txt")
		if err := os.WriteFile(path, []byte("Coldplay - Yellow\n"), 0644); err != nil {
			t.Fatal(err)
		}
		engine := &fakeEngine{
			playlist: &models.Playlist{Name: "", Tracks: []models.Track{{Name: "Yellow", Artists: []string{"Coldplay"}}}},
			proposal: &tasks.Proposal{Mappings: []models.Mapping{}},
		}
		runner, _ := newTestRunner(t, engine)

		err := run(runner, "transfer", "propose", "--from", "text", "--to", "spotify", "--playlist", path,
			"--output", filepath.Join(t.TempDir(), "review.json"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if engine.fetched != "Coldplay - Yellow\n" {
			t.Errorf("expected file contents to be passed through, got %q", engine.fetched)
		}
	})

	t.Run("Propose Rejects Unknown Platforms", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{})

		err := run(runner, "transfer", "propose", "--from", "tidal", "--to", "spotify", "--playlist", "x")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Propose Rejects A Pair Before Fetching", func(t *testing.T) {
		tests := []struct {
			name     string
			from, to string
			pairErr  error
			want     error
		}{
			{name: "same platform", from: "spotify", to: "spotify", want: shared.ErrInvalidInput},
			{name: "unsupported pair", from: "youtube", to: "spotify", pairErr: shared.ErrUnsupportedPair, want: shared.ErrUnsupportedPair},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				engine := &fakeEngine{
					playlist: &models.Playlist{ID: "pl1", Tracks: []models.Track{yellow}},
					proposal: &tasks.Proposal{},
					pairErr:  tt.pairErr,
				}
				runner, _ := newTestRunner(t, engine)

				err := run(runner, "transfer", "propose", "--from", tt.from, "--to", tt.to, "--playlist", "pl1",
					"--output", filepath.Join(t.TempDir(), "review.json"))
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
				if engine.fetched != "" || engine.proposed != nil {
					t.Errorf("expected no fetch or proposal, got fetched=%q proposed=%+v", engine.fetched, engine.proposed)
				}
			})
		}
	})

	t.Run("Propose Surfaces Engine Errors", func(t *testing.T) {
		engine := &fakeEngine{
			playlist:   &models.Playlist{ID: "pl1", Tracks: []models.Track{yellow}},
			proposeErr: shared.NewAuthRequired("youtube", nil),
		}
		runner, _ := newTestRunner(t, engine)

		err := run(runner, "transfer", "propose", "--from", "spotify", "--to", "youtube", "--playlist", "pl1",
			"--output", filepath.Join(t.TempDir(), "review.json"))
		if !errors.Is(err, shared.ErrAuthRequired) {
			t.Errorf("expected ErrAuthRequired, got %v", err)
		}
	})

	t.Run("Commit Reads The Reviewed File", func(t *testing.T) {
		reviewPath := filepath.Join(t.TempDir(), "review.json")
		review := &formatter.Review{
			Source:           models.PlatformSpotify,
			Destination:      models.PlatformYouTube,
			SourcePlaylistID: "pl1",
			Title:            "Edited Mix",
			Mappings: []models.Mapping{
				{SourceTrack: yellow, DestinationTrack: &yellowVid},
				{SourceTrack: fixYou},
			},
		}
		if err := formatter.WriteReview(review, reviewPath); err != nil {
			t.Fatal(err)
		}

		engine := &fakeEngine{commit: &tasks.CommitResult{PlaylistID: "new-pl", Added: 1}}
		runner, output := newTestRunner(t, engine)

		if err := run(runner, "transfer", "commit", "--review", reviewPath, "--user", "alice"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		req := engine.committed
		if req == nil {
			t.Fatal("expected commit to be called")
		}
		if req.UserID != "alice" || req.Title != "Edited Mix" || req.OriginalPlaylistID != "pl1" || len(req.Mappings) != 2 {
			t.Errorf("unexpected commit request %+v", req)
		}
		if !strings.Contains(output.String(), "new-pl") {
			t.Errorf("expected playlist id in output, got %q", output.String())
		}
	})

	t.Run("Commit Reports Failed Tracks As JSON", func(t *testing.T) {
		reviewPath := filepath.Join(t.TempDir(), "review.json")
		review := &formatter.Review{
			Source:      models.PlatformYouTube,
			Destination: models.PlatformSpotify,
			Mappings:    []models.Mapping{{SourceTrack: yellowVid, DestinationTrack: &yellow}},
		}
		if err := formatter.WriteReview(review, reviewPath); err != nil {
			t.Fatal(err)
		}

		engine := &fakeEngine{commit: &tasks.CommitResult{PlaylistID: "new-pl", Failed: []string{"sp1"}}}
		runner, output := newTestRunner(t, engine)

		if err := run(runner, "transfer", "commit", "--review", reviewPath, "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var result tasks.CommitResult
		if err := json.Unmarshal(output.Bytes(), &result); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if result.PlaylistID != "new-pl" || len(result.Failed) != 1 {
			t.Errorf("unexpected result %+v", result)
		}
		if engine.committed.UserID != defaultUser {
			t.Errorf("expected default user, got %q", engine.committed.UserID)
		}
	})

	t.Run("Commit Propagates Empty Results", func(t *testing.T) {
		reviewPath := filepath.Join(t.TempDir(), "review.json")
		review := &formatter.Review{Source: models.PlatformSpotify, Destination: models.PlatformYouTube}
		if err := formatter.WriteReview(review, reviewPath); err != nil {
			t.Fatal(err)
		}
		runner, _ := newTestRunner(t, &fakeEngine{commitErr: shared.ErrEmptyResult})

		err := run(runner, "transfer", "commit", "--review", reviewPath)
		if !errors.Is(err, shared.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	})

	t.Run("Commit Rejects A Missing Review File", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{})

		if err := run(runner, "transfer", "commit", "--review", filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("expected an error")
		}
	})

	t.Run("History", func(t *testing.T) {
		engine := &fakeEngine{history: []models.TransferRecord{{
			ID:                    "t1",
			SourcePlatform:        models.PlatformSpotify,
			DestinationPlatform:   models.PlatformYouTube,
			DestinationPlaylistID: "new-pl",
			Status:                models.TransferCompleted,
			TracksTotal:           2,
			TracksMatched:         1,
			CreatedAt:             time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC),
		}}}
		runner, output := newTestRunner(t, engine)

		if err := run(runner, "transfer", "history", "--user", "alice", "--limit", "5"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if engine.user != "alice" || engine.limit != 5 {
			t.Errorf("expected alice/5, got %q/%d", engine.user, engine.limit)
		}
		out := output.String()
		for _, want := range []string{"Transfers (1)", "2026-01-02 03:04", "new-pl", "1/2 added"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output %q", want, out)
			}
		}
	})
}

func TestPlaylistShow(t *testing.T) {
	playlist := &models.Playlist{ID: "pl1", Name: "Mix", Tracks: []models.Track{yellow}}

	tests := []struct {
		name   string
		format string
		want   string
	}{
		{name: "text", format: "text", want: "# Mix\n\nColdplay - Yellow\n"},
		{name: "markdown", format: "markdown", want: "Yellow"},
		{name: "json", format: "json", want: `"name": "Mix"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner, output := newTestRunner(t, &fakeEngine{playlist: playlist})

			if err := run(runner, "playlist", "show", "--format", tt.format, "spotify", "pl1"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if !strings.Contains(output.String(), tt.want) {
				t.Errorf("expected %q in %q", tt.want, output.String())
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{playlist: playlist})

		err := run(runner, "playlist", "show", "--format", "yaml", "spotify", "pl1")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("missing arguments", func(t *testing.T) {
		runner, _ := newTestRunner(t, &fakeEngine{playlist: playlist})

		err := run(runner, "playlist", "show", "spotify")
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("text files go through the real engine", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "mix.txt")
		if err := os.WriteFile(path, []byte("# Road Trip\n\n1. Coldplay - Yellow\n2) Fix You\n"), 0644); err != nil {
			t.Fatal(err)
		}

		output := &bytes.Buffer{}
		runner := NewRunner(RunnerOpts{
			Config: testConfig(t),
			Engine: tasks.NewEngine(tasks.EngineOptions{Logger: log.New(io.Discard)}),
			Logger: log.New(io.Discard),
			Output: output,
		})

		if err := run(runner, "playlist", "show", "text", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		want := "# Road Trip\n\nColdplay - Yellow\nFix You\n"
		if output.String() != want {
			t.Errorf("expected %q, got %q", want, output.String())
		}
	})
}

func TestSetupAndAuthCommands(t *testing.T) {
	t.Run("Setup Database Applies Migrations", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if err := run(runner, "setup", "status", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var statuses []shared.MigrationStatus
		if err := json.Unmarshal(output.Bytes(), &statuses); err != nil {
			t.Fatalf("expected JSON output, got %q: %v", output.String(), err)
		}
		if len(statuses) == 0 {
			t.Fatal("expected migrations")
		}
		for _, s := range statuses {
			if !s.Applied {
				t.Errorf("expected migration %d to be applied", s.Version)
			}
		}
	})

	t.Run("Rollback Reverts The Latest Migration", func(t *testing.T) {
		runner, output := newTestRunner(t, nil)

		if err := run(runner, "setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		runner.close()

		if err := run(runner, "setup", "rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		output.Reset()
		if err := run(runner, "setup", "status"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "pending") {
			t.Errorf("expected a pending migration, got %q", output.String())
		}
	})

	t.Run("Status Requires SQLite", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)
		runner.config.Database.Driver = "bolt"

		if err := run(runner, "setup", "status"); !errors.Is(err, shared.ErrUnsupported) {
			t.Errorf("expected ErrUnsupported, got %v", err)
		}
	})

	t.Run("Setup Config Writes The Template", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := run(runner, "setup", "config", "--config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, path)
		if _, err := shared.LoadConfig(path); err != nil {
			t.Errorf("expected a loadable config, got %v", err)
		}
		if err := run(runner, "setup", "config", "--config", path); err == nil {
			t.Error("expected an error when the file exists")
		}
	})

	t.Run("Auth Set Stores The Refresh Token", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)

		if err := run(runner, "auth", "set", "--platform", "spotify", "--user", "alice", "--token", "refresh-1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		token, err := runner.stores.Tokens.RefreshToken(context.Background(), "alice", models.PlatformSpotify)
		if err != nil || token != "refresh-1" {
			t.Errorf("expected stored token, got %q %v", token, err)
		}
	})

	t.Run("Auth Rejects The Text Platform", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)

		err := run(runner, "auth", "set", "--platform", "text", "--token", "x")
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("Auth Login Requires Credentials", func(t *testing.T) {
		runner, _ := newTestRunner(t, nil)
		runner.config.Credentials.YouTube = shared.OAuthAppConfig{}

		err := run(runner, "auth", "login", "--platform", "youtube", "--no-browser")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})
}

func TestCallbackServerConfig(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		host    string
		port    int
		wantErr bool
	}{
		{name: "loopback", uri: "http://127.0.0.1:8888/callback", host: "127.0.0.1", port: 8888},
		{name: "localhost", uri: "http://localhost:9000/oauth", host: "localhost", port: 9000},
		{name: "no port", uri: "http://localhost/callback", wantErr: true},
		{name: "bad port", uri: "http://localhost:abc/callback", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := callbackServerConfig(tt.uri)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if cfg.Host != tt.host || cfg.Port != tt.port {
				t.Errorf("expected %s:%d, got %s:%d", tt.host, tt.port, cfg.Host, cfg.Port)
			}
		})
	}
}
