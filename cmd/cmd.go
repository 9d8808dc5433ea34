// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

const defaultUser = "local"

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.toml",
		Sources: cli.EnvVars("CROSSFADE_CONFIG"),
	}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "user",
		Aliases: []string{"u"},
		Usage:   "User whose tokens and history are used",
		Value:   defaultUser,
		Sources: cli.EnvVars("CROSSFADE_USER"),
	}
}

func platformFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "platform",
		Aliases:  []string{"p"},
		Usage:    "Platform to authorize (spotify, youtube)",
		Required: true,
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output raw JSON",
	}
}

// setupCommand prepares configuration and storage.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize configuration and the database",
		Commands: []*cli.Command{
			{
				Name:   "config",
				Usage:  "Write a config file from the built-in template",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupConfig,
			},
			{
				Name:   "database",
				Usage:  "Create the database and run migrations",
				Flags:  []cli.Flag{configFlag()},
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations (sqlite only)",
				Flags:  []cli.Flag{configFlag(), jsonFlag()},
				Action: r.MigrationStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration (sqlite only)",
				Flags:  []cli.Flag{configFlag()},
				Action: r.MigrationRollback,
			},
		},
	}
}

// authCommand manages stored refresh tokens.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize crossfade with a streaming platform",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Run the OAuth consent flow in a browser and store the refresh token",
				Flags: []cli.Flag{
					configFlag(), userFlag(), platformFlag(),
					&cli.BoolFlag{
						Name:  "no-browser",
						Usage: "Print the consent URL instead of opening a browser",
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "How long to wait for the callback",
						Value: defaultLoginTimeout,
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:  "set",
				Usage: "Store a refresh token obtained elsewhere",
				Flags: []cli.Flag{
					configFlag(), userFlag(), platformFlag(),
					&cli.StringFlag{
						Name:     "token",
						Usage:    "Refresh token",
						Required: true,
						Sources:  cli.EnvVars("CROSSFADE_REFRESH_TOKEN"),
					},
				},
				Action: r.AuthSet,
			},
		},
	}
}

// playlistCommand reads playlists.
func playlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "playlist",
		Aliases: []string{"pl"},
		Usage:   "Inspect playlists",
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "Fetch a playlist and print its tracks",
				ArgsUsage: "<platform> <playlist id or text file>",
				Flags: []cli.Flag{
					configFlag(), userFlag(),
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format (text, markdown, json)",
						Value:   "text",
					},
				},
				Action: r.PlaylistShow,
			},
		},
	}
}

// transferCommand runs the propose, review and commit workflow.
func transferCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "transfer",
		Aliases: []string{"tx"},
		Usage:   "Transfer playlists between platforms",
		Commands: []*cli.Command{
			{
				Name:  "propose",
				Usage: "Match a playlist onto another platform and write a review file",
				Flags: []cli.Flag{
					configFlag(), userFlag(),
					&cli.StringFlag{
						Name:     "from",
						Usage:    "Source platform (spotify, youtube, text)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "to",
						Usage:    "Destination platform (spotify, youtube, text)",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "playlist",
						Usage:    "Source playlist id, or a file path when --from is text",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Review file to write (or export file when --to is text)",
						Value:   "review.json",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Title for the destination playlist",
					},
					&cli.BoolFlag{
						Name:  "public",
						Usage: "Create the destination playlist as public",
					},
					&cli.StringFlag{
						Name:  "csv",
						Usage: "Also write the mappings as CSV to this path",
					},
				},
				Action: r.TransferPropose,
			},
			{
				Name:  "commit",
				Usage: "Create the destination playlist from a reviewed file",
				Flags: []cli.Flag{
					configFlag(), userFlag(), jsonFlag(),
					&cli.StringFlag{
						Name:    "review",
						Aliases: []string{"r"},
						Usage:   "Review file written by propose",
						Value:   "review.json",
					},
				},
				Action: r.TransferCommit,
			},
			{
				Name:  "history",
				Usage: "List past transfers, newest first",
				Flags: []cli.Flag{
					configFlag(), userFlag(), jsonFlag(),
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of records (0 for all)",
						Value: 20,
					},
				},
				Action: r.TransferHistory,
			},
		},
	}
}

// serveCommand runs the HTTP API.
func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the transfer API over HTTP",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Override the listen address (host:port)",
			},
		},
		Action: r.Serve,
	}
}
