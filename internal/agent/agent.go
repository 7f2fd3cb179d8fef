// Package agent is a reference bot agent. It honors the shared-record
// contract: it polls the command slot, acknowledges what it executed by
// sequence number, and only ever writes status, activity and last-seen.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/responder"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 5 * time.Second
	defaultGreeting = "Hello everyone!"
	testAIPrompt    = "Hello! Are you a bot?"
)

// ErrStopped is returned by Step and Run after a STOP command was executed.
var ErrStopped = errors.New("agent stopped by command")

// ChatDriver is the automated chat client session.
type ChatDriver interface {
	JoinRoom(ctx context.Context, room string) error
	Send(ctx context.Context, text string) error
	// LastMessage returns the newest chat line in the current room, or "".
	LastMessage(ctx context.Context) (string, error)
}

// EngineFactory builds a reply engine for the current configuration.
type EngineFactory func(ctx context.Context, cfg models.BotConfig) (*responder.Engine, error)

type Agent struct {
	store     storage.AgentStore
	botID     string
	driver    ChatDriver
	newEngine EngineFactory
	interval  time.Duration
	logger    *zap.Logger

	status      models.Status
	activity    string
	room        string
	lastMessage string
}

func New(store storage.AgentStore, botID string, driver ChatDriver, newEngine EngineFactory, interval time.Duration, logger *zap.Logger) *Agent {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Agent{
		store:     store,
		botID:     botID,
		driver:    driver,
		newEngine: newEngine,
		interval:  interval,
		logger:    logger.With(zap.String("bot_id", botID)),
		status:    models.StatusOnline,
		activity:  "Waiting for commands",
	}
}

// VaultEngineFactory builds engines whose provider keys are resolved through resolve.
func VaultEngineFactory(resolve responder.KeyResolver, logger *zap.Logger) EngineFactory {
	return func(ctx context.Context, cfg models.BotConfig) (*responder.Engine, error) {
		providers, err := responder.BuildProviders(ctx, cfg, resolve, logger)
		if err != nil {
			return nil, err
		}
		return responder.NewEngine(cfg, providers, logger), nil
	}
}

// Run announces the agent, auto-joins the configured room and then steps on
// every interval until ctx is done or a STOP command arrives.
func (a *Agent) Run(ctx context.Context) error {
	rec, err := a.store.GetBot(ctx, a.botID)
	if err != nil {
		return fmt.Errorf("loading bot record: %w", err)
	}
	a.report(ctx, models.StatusOnline, "Logged in successfully")

	if room := rec.Config.TargetRoom; room != "" && !rec.HasPendingCommand() {
		a.join(ctx, rec.Config, room)
	}

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		if err := a.Step(ctx); err != nil {
			if errors.Is(err, ErrStopped) {
				return nil
			}
			a.logger.Error("Agent step failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			a.report(context.WithoutCancel(ctx), models.StatusOffline, "Agent shut down")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Step performs one poll: execute the pending command if there is one,
// otherwise answer chat, then heartbeat.
func (a *Agent) Step(ctx context.Context) error {
	rec, err := a.store.GetBot(ctx, a.botID)
	if err != nil {
		return fmt.Errorf("polling bot record: %w", err)
	}

	if rec.HasPendingCommand() {
		return a.execute(ctx, rec)
	}

	if a.room != "" {
		a.monitor(ctx, rec.Config)
	}
	return a.heartbeat(ctx)
}

func (a *Agent) execute(ctx context.Context, rec *models.BotRecord) error {
	seq := rec.CommandSeq
	cmd, err := models.ParseCommand(rec.Command, rec.CommandExtras)
	if err != nil {
		a.logger.Warn("Ignoring unknown command", zap.String("command", string(rec.Command)))
		return a.ack(ctx, seq)
	}
	a.logger.Info("Executing command", zap.String("command", string(cmd.Kind())), zap.Int64("seq", seq))

	switch c := cmd.(type) {
	case models.Stop:
		a.report(ctx, models.StatusStopped, "Stopped by user")
		if err := a.ack(ctx, seq); err != nil {
			return err
		}
		return ErrStopped

	case models.JoinRoom:
		room := c.TargetRoom
		if room == "" {
			room = rec.Config.TargetRoom
		}
		a.join(ctx, rec.Config, room)

	case models.SendMessage:
		if err := a.driver.Send(ctx, c.Text); err != nil {
			a.report(ctx, models.StatusError, "Failed to send message: "+err.Error())
		} else {
			a.report(ctx, models.StatusOnline, "Sent message")
		}

	case models.TestAI:
		a.report(ctx, models.StatusWorking, "Testing AI response")
		a.testAI(ctx, rec.Config)
	}
	return a.ack(ctx, seq)
}

func (a *Agent) join(ctx context.Context, cfg models.BotConfig, room string) {
	if err := models.ValidateRoomRef(room); err != nil {
		a.report(ctx, models.StatusError, "No valid room to join")
		return
	}
	a.report(ctx, models.StatusWorking, "Joining "+room)
	if err := a.driver.JoinRoom(ctx, room); err != nil {
		a.logger.Error("Failed to join room", zap.Error(err), zap.String("room", room))
		a.report(ctx, models.StatusError, "Failed to join "+room)
		return
	}
	a.room = room
	a.lastMessage = ""

	if cfg.GreetingEnabled {
		greeting := cfg.GreetingMessage
		if greeting == "" {
			greeting = defaultGreeting
		}
		if err := a.driver.Send(ctx, greeting); err != nil {
			a.logger.Error("Failed to send greeting", zap.Error(err))
		}
	}
	a.report(ctx, models.StatusOnline, "In room "+room)
}

func (a *Agent) testAI(ctx context.Context, cfg models.BotConfig) {
	engine, err := a.newEngine(ctx, cfg)
	if err != nil {
		a.logger.Error("Failed to build reply engine", zap.Error(err))
		a.report(ctx, models.StatusError, "AI Test Failed: "+err.Error())
		return
	}
	reply, err := engine.Generate(ctx, testAIPrompt)
	if err != nil {
		a.report(ctx, models.StatusError, "AI Test Failed (check API key or quota)")
		return
	}
	a.report(ctx, models.StatusOnline, "AI Test Success: "+truncate(reply.Text, 30))
}

func (a *Agent) monitor(ctx context.Context, cfg models.BotConfig) {
	msg, err := a.driver.LastMessage(ctx)
	if err != nil {
		a.logger.Warn("Failed to read chat", zap.Error(err))
		return
	}
	if msg == "" || msg == a.lastMessage {
		return
	}
	a.lastMessage = msg

	engine, err := a.newEngine(ctx, cfg)
	if err != nil {
		a.logger.Error("Failed to build reply engine", zap.Error(err))
		return
	}
	reply, err := engine.Reply(ctx, msg)
	if err != nil {
		if !errors.Is(err, responder.ErrNoReply) {
			a.logger.Warn("No reply generated", zap.Error(err))
		}
		return
	}
	if err := a.driver.Send(ctx, reply.Text); err != nil {
		a.logger.Error("Failed to send reply", zap.Error(err))
		return
	}
	a.logger.Info("Replied to chat", zap.String("source", reply.Source))
}

func (a *Agent) report(ctx context.Context, status models.Status, activity string) {
	a.status = status
	a.activity = activity
	if err := a.heartbeat(ctx); err != nil {
		a.logger.Error("Failed to update status", zap.Error(err))
	}
}

func (a *Agent) heartbeat(ctx context.Context) error {
	return a.store.WriteStatus(ctx, a.botID, models.StatusReport{
		Status:   a.status,
		Activity: a.activity,
		SeenAt:   time.Now(),
	})
}

func (a *Agent) ack(ctx context.Context, seq int64) error {
	if err := a.store.AckCommand(ctx, a.botID, seq); err != nil {
		return fmt.Errorf("acknowledging command %d: %w", seq, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
