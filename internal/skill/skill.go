package skill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/spotskill/internal/actions"
	"github.com/desertthunder/spotskill/internal/formatter"
	"github.com/desertthunder/spotskill/internal/models"
	"github.com/desertthunder/spotskill/internal/shared"
)

const (
	defaultQueueSize      = 16
	defaultCommandTimeout = 30 * time.Second
	fallbackText          = "Sorry, something went wrong."
)

// Publisher delivers a response to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, resp models.Response) error
}

// Options configures a [Skill].
type Options struct {
	// Name is the keyword that gives the skill full certainty.
	Name               string
	CertaintyThreshold float64
	QueueSize          int
	DefaultRoom        string
	OutputTopic        string
	CommandTimeout     time.Duration
}

// OptionsFromConfig builds [Options] from the loaded configuration.
func OptionsFromConfig(cfg *shared.Config) Options {
	return Options{
		Name:               cfg.Skill.Name,
		CertaintyThreshold: cfg.Skill.CertaintyThreshold,
		QueueSize:          cfg.Skill.QueueSize,
		DefaultRoom:        cfg.Skill.DefaultRoom,
		OutputTopic:        cfg.MQTT.OutputTopic,
		CommandTimeout:     2*shared.Duration(cfg.Spotify.Timeout, 15*time.Second) + shared.Duration(cfg.Skill.ActivationDelay, 0),
	}
}

// Skill turns intents into Spotify commands and spoken responses.
//
// Intents are queued by [Skill.Enqueue] and handled one at a time by [Skill.Run].
type Skill struct {
	opts      Options
	executor  *Executor
	catalog   *formatter.Catalog
	publisher Publisher
	queue     chan models.Intent
	logger    *log.Logger
}

// New creates a skill. publisher may be nil when responses are only consumed through [Skill.Process].
func New(opts Options, executor *Executor, catalog *formatter.Catalog, publisher Publisher, logger *log.Logger) *Skill {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	if opts.Name == "" {
		opts.Name = "spotify"
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = defaultCommandTimeout
	}

	return &Skill{
		opts:      opts,
		executor:  executor,
		catalog:   catalog,
		publisher: publisher,
		queue:     make(chan models.Intent, opts.QueueSize),
		logger:    logger.With("component", "skill"),
	}
}

// Certainty is 1 when the skill name is among the intent's nouns or the words of its text, else 0.
func (s *Skill) Certainty(intent models.Intent) float64 {
	if intent.HasNoun(s.opts.Name) {
		return 1
	}
	for _, token := range actions.Tokenize(intent.ClientRequest.Text) {
		if strings.EqualFold(token, s.opts.Name) {
			return 1
		}
	}
	return 0
}

// Enqueue queues intent for the worker without blocking. It reports false when the queue is full
// and the intent was dropped.
func (s *Skill) Enqueue(intent models.Intent) bool {
	select {
	case s.queue <- intent:
		queueDepth.Set(float64(len(s.queue)))
		return true
	default:
		droppedTotal.Inc()
		s.logger.Warn("command queue full, dropping intent", "id", intent.ID, "text", intent.ClientRequest.Text)
		return false
	}
}

// Run handles queued intents until ctx is cancelled.
func (s *Skill) Run(ctx context.Context) error {
	s.logger.Info("worker started", "queue", cap(s.queue))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("worker stopped")
			return nil
		case intent := <-s.queue:
			queueDepth.Set(float64(len(s.queue)))
			s.handle(ctx, intent)
		}
	}
}

func (s *Skill) handle(ctx context.Context, intent models.Intent) {
	cctx, cancel := context.WithTimeout(ctx, s.opts.CommandTimeout)
	defer cancel()

	resp, ok := s.Process(cctx, intent)
	if !ok || s.publisher == nil {
		return
	}

	topic := intent.ClientRequest.OutputTopic
	if topic == "" {
		topic = s.opts.OutputTopic
	}
	if err := s.publisher.Publish(ctx, topic, resp); err != nil {
		s.logger.Error("failed to publish response", "topic", topic, "error", err)
	}
}

// Process handles one intent end to end and returns its response. It reports false when the
// intent is not for this skill or names no known action.
func (s *Skill) Process(ctx context.Context, intent models.Intent) (models.Response, bool) {
	if c := s.Certainty(intent); c < s.opts.CertaintyThreshold {
		ignoredTotal.WithLabelValues("certainty").Inc()
		s.logger.Debug("ignoring intent below threshold", "id", intent.ID, "certainty", c)
		return models.Response{}, false
	}

	action, ok := actions.ResolveText(intent.ClientRequest.Text)
	if !ok {
		ignoredTotal.WithLabelValues("unmatched").Inc()
		s.logger.Error("unrecognized action", "text", intent.ClientRequest.Text)
		return models.Response{}, false
	}

	room := s.room(intent)
	start := time.Now()
	cmd := Command{Action: action, Room: room, Params: actions.Extract(action, intent)}

	data, err := s.execute(ctx, cmd)
	name := action.String()
	result := "success"
	if err != nil {
		name = errorTemplate(err)
		result = name
		s.logger.Error("command failed", "action", action, "room", room, "error", err)
	}

	text := s.render(name, data)
	commandsTotal.WithLabelValues(action.String(), result).Inc()
	commandDuration.WithLabelValues(action.String()).Observe(time.Since(start).Seconds())

	id := intent.ClientRequest.ID
	if id == "" {
		id = shared.GenerateID()
	}
	return models.Response{ID: id, Text: text, Room: room}, true
}

// execute runs cmd, turning a panic into an error so the worker survives it.
func (s *Skill) execute(ctx context.Context, cmd Command) (data formatter.Data, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while executing %s: %v", cmd.Action, r)
		}
	}()
	return s.executor.Execute(ctx, cmd)
}

func (s *Skill) render(name string, data formatter.Data) string {
	text, err := s.catalog.Render(name, data)
	if err == nil {
		return text
	}

	s.logger.Error("failed to render response", "template", name, "error", err)
	if text, err := s.catalog.Render(formatter.Error, data); err == nil {
		return text
	}
	return fallbackText
}

func (s *Skill) room(intent models.Intent) string {
	room := intent.ClientRequest.Room
	if room == "" && len(intent.Rooms) > 0 {
		room = intent.Rooms[0]
	}
	if room == "" {
		room = s.opts.DefaultRoom
	}
	return models.NormalizeRoom(room)
}

// errorTemplate picks the response template for a failed command.
func errorTemplate(err error) string {
	switch {
	case errors.Is(err, shared.ErrInvalidInput):
		return formatter.InvalidInput
	case errors.Is(err, shared.ErrNoDeviceForRoom):
		return formatter.NoDevice
	case shared.IsRemote(err):
		return formatter.RemoteError
	default:
		return formatter.Error
	}
}
