package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/crossfade/internal/models"
	"github.com/desertthunder/crossfade/internal/repositories"
	"github.com/desertthunder/crossfade/internal/services"
	"github.com/desertthunder/crossfade/internal/shared"
	"github.com/desertthunder/crossfade/internal/tasks"
)

const defaultHTTPTimeout = 30 * time.Second

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Stores and the engine are opened lazily on first use so commands like "setup config" work
// without a database.
type Runner struct {
	config     *shared.Config
	loaded     bool
	stores     *repositories.Stores
	ownsStores bool
	engine     tasks.TransferEngine
	httpClient *http.Client
	logger     *log.Logger
	output     io.Writer
}

// RunnerOpts contains configuration options for creating a Runner.
//
// A non-nil Config is used as-is and the --config flag is ignored.
type RunnerOpts struct {
	Config     *shared.Config
	Stores     *repositories.Stores
	Engine     tasks.TransferEngine
	HTTPClient *http.Client
	Logger     *log.Logger
	Output     io.Writer
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	loaded := opts.Config != nil
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Runner{
		config:     opts.Config,
		loaded:     loaded,
		stores:     opts.Stores,
		engine:     opts.Engine,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		output:     opts.Output,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, playlistCommand, transferCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// loadConfig reads the file named by the command's --config flag once and applies its log level.
func (r *Runner) loadConfig(cmd *cli.Command) (*shared.Config, error) {
	if r.loaded {
		return r.config, nil
	}

	config, err := shared.LoadOrDefault(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	shared.SetLogLevel(r.logger, config.Log.Level)

	r.config = config
	r.loaded = true
	return config, nil
}

// openStores opens the configured database unless stores were injected.
func (r *Runner) openStores(cmd *cli.Command) (*repositories.Stores, error) {
	if r.stores != nil {
		return r.stores, nil
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("opening database", "driver", config.Database.Driver, "path", config.Database.Path)
	stores, err := repositories.Open(config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	r.stores = stores
	r.ownsStores = true
	return stores, nil
}

// openEngine wires the transfer engine from configuration unless one was injected.
func (r *Runner) openEngine(cmd *cli.Command) (tasks.TransferEngine, error) {
	if r.engine != nil {
		return r.engine, nil
	}

	stores, err := r.openStores(cmd)
	if err != nil {
		return nil, err
	}
	r.engine = newEngine(r.config, stores, r.httpClient, r.logger)
	return r.engine, nil
}

// newEngine connects both platform clients (rate limited and behind circuit breakers), their OAuth
// token providers, the two-level mapping cache and the optional AI fallback.
func newEngine(config *shared.Config, stores *repositories.Stores, client *http.Client, logger *log.Logger) *tasks.Engine {
	guard := services.GuardOptions{
		Timeout:           config.Matching.SearchTimeout,
		RequestsPerSecond: config.Limits.RequestsPerSecond,
		Burst:             config.Limits.Burst,
		Failures:          config.Limits.BreakerFailures,
		Cooldown:          config.Limits.BreakerCooldown,
		Logger:            logger,
	}

	spotify := services.NewSpotifyService(services.SpotifyOptions{
		APIURL:     config.Credentials.Spotify.APIURL,
		BatchSize:  config.Limits.SpotifyBatchSize,
		BatchDelay: config.Limits.SpotifyBatchDelay,
		HTTPClient: client,
		Logger:     logger,
	})
	youtube := services.NewYouTubeService(services.YouTubeOptions{
		APIURL:      config.Credentials.YouTube.APIURL,
		InsertDelay: config.Limits.YouTubeInsertDelay,
		HTTPClient:  client,
		Logger:      logger,
	})

	var completion services.CompletionClient
	if config.AI.Enabled() {
		completion = services.NewOpenAIClient(config.AI, client, logger)
	} else {
		logger.Debug("AI fallback disabled, no api key configured")
	}

	return tasks.NewEngine(tasks.EngineOptions{
		Services: map[models.Platform]services.Service{
			models.PlatformSpotify: services.NewGuard(spotify, guard),
			models.PlatformYouTube: services.NewGuard(youtube, guard),
		},
		Tokens: map[models.Platform]services.TokenProvider{
			models.PlatformSpotify: services.NewOAuthTokenProvider(models.PlatformSpotify, config.Credentials.Spotify, stores.Tokens, client, logger),
			models.PlatformYouTube: services.NewOAuthTokenProvider(models.PlatformYouTube, config.Credentials.YouTube, stores.Tokens, client, logger),
		},
		Mappings:         repositories.NewMappingCache(stores.Matches, logger),
		Transfers:        stores.Transfers,
		Completion:       completion,
		MaxConcurrency:   config.Matching.MaxConcurrency,
		DescriptionWords: config.Matching.DescriptionWords,
		Logger:           logger,
	})
}

// close releases stores opened by the runner itself.
func (r *Runner) close() error {
	if !r.ownsStores || r.stores == nil {
		return nil
	}
	err := r.stores.Close()
	r.stores = nil
	r.ownsStores = false
	return err
}

// reportProgress logs engine updates until the returned stop func is called.
func (r *Runner) reportProgress() (chan<- tasks.ProgressUpdate, func()) {
	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "step", update.Step, "total", update.Total)
		}
	}()
	return progress, func() {
		close(progress)
		<-done
	}
}

func userID(cmd *cli.Command) string {
	if id := cmd.String("user"); id != "" {
		return id
	}
	return defaultUser
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
