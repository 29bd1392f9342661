// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// rootFlags are shared by every command and read by [Runner.Load].
func rootFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			Value:   "config.toml",
			Sources: cli.EnvVars("SPOTSKILL_CONFIG"),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Override the configured log level (debug, info, warn, error)",
		},
	}
}

// runCommand starts the skill: MQTT intake, cache refresher, and the health/metrics server.
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Connect to the message bus and handle voice commands",
		Action: r.Run,
	}
}

// setupCommand handles setup operations for configuration and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Create the config file if missing, initialize the database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "status",
				Usage:  "Show applied and pending migrations",
				Action: r.SetupStatus,
			},
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent migration",
				Action: r.SetupRollback,
			},
		},
	}
}

// authCommand runs the OAuth2 authorization code flow and stores the token.
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize with Spotify and store the token in the token cache",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-browser",
				Usage: "Print the authorization URL instead of opening a browser",
			},
		},
		Action: r.Auth,
	}
}

// devicesCommand manages the device registry.
func devicesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "devices",
		Aliases: []string{"dev"},
		Usage:   "Device registry operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List registered devices",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "sync",
						Usage: "Fetch devices from Spotify and update the registry first",
					},
					&cli.StringFlag{
						Name:  "room",
						Usage: "Only list devices in this room",
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.DevicesList,
			},
			{
				Name:  "main",
				Usage: "Mark a device as the main device of its room",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "device"},
				},
				Action: r.DevicesMain,
			},
			{
				Name:  "volume",
				Usage: "Set the volume applied when a playlist starts on a device",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "device"},
					&cli.StringArg{Name: "volume"},
				},
				Action: r.DevicesVolume,
			},
		},
	}
}

// playlistsCommand lists the user's playlists in the order voice commands address them.
func playlistsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "playlists",
		Usage: "List Spotify playlists",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of playlists to print",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
			&cli.BoolFlag{
				Name:  "pretty",
				Usage: "Pretty-print output",
				Value: true,
			},
		},
		Action: r.Playlists,
	}
}

// consoleCommand returns the interactive console command.
func consoleCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "console",
		Aliases: []string{"ui"},
		Usage:   "Type commands to the skill in an interactive terminal UI",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "room",
				Usage: "Room the typed commands come from (defaults to skill.default_room)",
			},
			&cli.StringFlag{
				Name:  "log-file",
				Usage: "File receiving log output while the console is open",
				Value: "./tmp/spotskill-console.log",
			},
		},
		Action: r.Console,
	}
}
