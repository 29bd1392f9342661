package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/repositories"
	"github.com/desertthunder/spotskill/internal/services"
	"github.com/desertthunder/spotskill/internal/shared"
	"github.com/desertthunder/spotskill/internal/skill"
	"github.com/desertthunder/spotskill/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Spotify is the part of the Web API client the commands drive.
type Spotify interface {
	tasks.Source
	skill.Player
}

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Databases and the Spotify client are opened on first use so that commands like `setup database`
// work before credentials exist.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    Spotify
	dbs        *shared.Databases
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Spotify    Spotify
	Databases  *shared.Databases
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		spotify:    opts.Spotify,
		dbs:        opts.Databases,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		runCommand, setupCommand, authCommand, devicesCommand, playlistsCommand, consoleCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// Load reads the config file named by the --config flag, falling back to defaults when it does not exist.
//
// Environment overrides and the log level are applied in both cases.
func (r *Runner) Load(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	path := cmd.String("config")
	r.configPath = path

	config, err := shared.LoadConfig(path)
	switch {
	case err == nil:
		r.config = config
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug("config file not found, using defaults", "path", path)
		r.config = shared.DefaultConfig()
		r.config.ApplyEnv(os.Getenv)
	default:
		return ctx, err
	}

	level := r.config.Log.Level
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	shared.SetLogLevel(r.logger, shared.ParseLogLevel(level))
	return ctx, nil
}

// SetLogger replaces the logger, e.g. to keep log output away from a full-screen program.
func (r *Runner) SetLogger(logger *log.Logger) {
	r.logger = logger
}

// databases opens the token and registry handles once.
func (r *Runner) databases() (*shared.Databases, error) {
	if r.dbs != nil {
		return r.dbs, nil
	}

	r.logger.Debug("opening database", "path", r.config.Database.Path)
	dbs, err := shared.OpenDatabases(r.config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.dbs = dbs
	return dbs, nil
}

// spotifyClient returns a Spotify client authenticated through the persisted token cache.
//
// ctx bounds token refreshes, so it should live as long as the client is used.
func (r *Runner) spotifyClient(ctx context.Context) (Spotify, error) {
	if r.spotify != nil {
		return r.spotify, nil
	}

	svc, err := services.NewSpotifyService(r.config.Spotify)
	if err != nil {
		return nil, err
	}
	if err := r.authenticate(ctx, svc); err != nil {
		return nil, err
	}

	r.spotify = svc
	return svc, nil
}

// authenticate backs svc with a token source reading from and saving to the token cache.
func (r *Runner) authenticate(ctx context.Context, svc *services.SpotifyService) error {
	dbs, err := r.databases()
	if err != nil {
		return err
	}

	tokens := repositories.NewTokenRepository(dbs.Tokens)
	source := services.NewPersistingTokenSource(ctx, svc.OAuthConfig(), tokens, r.config.Spotify.User, r.logger)
	svc.Authenticate(ctx, source)
	return nil
}

// registry returns the device repository on the registry handle.
func (r *Runner) registry() (*repositories.DeviceRepository, error) {
	dbs, err := r.databases()
	if err != nil {
		return nil, err
	}
	return repositories.NewDeviceRepository(dbs.Registry), nil
}

// Close releases the databases opened by the runner.
func (r *Runner) Close() error {
	if r.dbs == nil {
		return nil
	}
	err := r.dbs.Close()
	r.dbs = nil
	return err
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
