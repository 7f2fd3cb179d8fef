// Package panel implements the operator-facing actions of the dashboard on
// top of the record store, the dispatcher and the per-user poller.
package panel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/xaenox/botpanel/internal/botconfig"
	"github.com/xaenox/botpanel/internal/dispatcher"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/secrets"
	"github.com/xaenox/botpanel/internal/storage"
	"go.uber.org/zap"
)

// Sealer turns plaintext secrets into handles.
type Sealer interface {
	Seal(ctx context.Context, plaintext string) (string, error)
}

// Refresher is notified after every accepted write so the view catches up
// without applying the write optimistically.
type Refresher interface {
	Refresh(ctx context.Context) (bool, error)
}

type CreateBotRequest struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// SettingsForm is a settings submission. Password and provider API keys may
// be plaintext or existing secret handles.
type SettingsForm struct {
	Username string           `json:"username"`
	Password string           `json:"password"`
	Config   models.BotConfig `json:"config"`
}

type Service struct {
	store      storage.OperatorStore
	sealer     Sealer
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger
}

func NewService(store storage.OperatorStore, sealer Sealer, d *dispatcher.Dispatcher, logger *zap.Logger) *Service {
	return &Service{store: store, sealer: sealer, dispatcher: d, logger: logger}
}

// CreateBot provisions a bot record in the STOPPED state.
func (s *Service) CreateBot(ctx context.Context, req CreateBotRequest, refresh Refresher) (*models.BotRecord, error) {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		id = "bot-" + uuid.NewString()[:8]
	}
	if _, err := s.store.GetBot(ctx, id); err == nil {
		return nil, storage.ErrConflict
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	var sealed []string
	passwordRef, err := s.seal(ctx, req.Password, &sealed)
	if err != nil {
		return nil, fmt.Errorf("sealing bot password: %w", err)
	}

	rec := &models.BotRecord{
		ID: id,
		Credentials: models.Credentials{
			Username:    strings.TrimSpace(req.Username),
			PasswordRef: passwordRef,
		},
		Status: models.StatusStopped,
	}
	if err := s.store.CreateBot(ctx, rec); err != nil {
		s.logger.Error("Failed to create bot", zap.Error(err), zap.String("bot_id", id))
		s.logOrphans(id, sealed)
		return nil, err
	}

	s.logger.Info("Bot created", zap.String("bot_id", id))
	s.refresh(ctx, refresh)
	return rec, nil
}

// SaveSettings validates the form, seals its secrets and writes only the
// config and credentials of the selected bot.
func (s *Service) SaveSettings(ctx context.Context, botID string, form SettingsForm, refresh Refresher) (models.BotConfig, error) {
	if strings.TrimSpace(botID) == "" {
		return models.BotConfig{}, &models.ValidationError{Field: "bot_id", Reason: "a bot must be selected"}
	}

	cfg, err := botconfig.Validate(form.Config)
	if err != nil {
		return models.BotConfig{}, err
	}
	if _, err := s.store.GetBot(ctx, botID); err != nil {
		return models.BotConfig{}, err
	}

	var sealed []string
	for i := range cfg.Providers {
		handle, err := s.seal(ctx, cfg.Providers[i].APIKey, &sealed)
		if err != nil {
			return models.BotConfig{}, fmt.Errorf("sealing %s API key: %w", cfg.Providers[i].Name, err)
		}
		cfg.Providers[i].APIKey = handle
	}
	passwordRef, err := s.seal(ctx, form.Password, &sealed)
	if err != nil {
		return models.BotConfig{}, fmt.Errorf("sealing bot password: %w", err)
	}
	creds := models.Credentials{Username: strings.TrimSpace(form.Username), PasswordRef: passwordRef}

	if err := s.store.WriteConfig(ctx, botID, cfg, creds); err != nil {
		s.logger.Error("Failed to save settings", zap.Error(err), zap.String("bot_id", botID))
		s.logOrphans(botID, sealed)
		return models.BotConfig{}, err
	}

	s.logger.Info("Settings saved", zap.String("bot_id", botID))
	s.refresh(ctx, refresh)
	return cfg, nil
}

// SendMessage dispatches a manual chat message to the selected bot.
func (s *Service) SendMessage(ctx context.Context, botID, text string, refresh Refresher) (*dispatcher.Ack, error) {
	return s.Command(ctx, botID, models.SendMessage{Text: text}, refresh)
}

func (s *Service) Command(ctx context.Context, botID string, cmd models.Command, refresh Refresher) (*dispatcher.Ack, error) {
	ack, err := s.dispatcher.Dispatch(ctx, botID, cmd)
	if err != nil {
		return nil, err
	}
	s.refresh(ctx, refresh)
	return ack, nil
}

// seal seals v and records the handle in fresh when a new secret was stored.
func (s *Service) seal(ctx context.Context, v string, fresh *[]string) (string, error) {
	handle, err := s.sealer.Seal(ctx, v)
	if err != nil {
		return "", err
	}
	if handle != v {
		*fresh = append(*fresh, handle)
	}
	return handle, nil
}

// logOrphans reports handles sealed for a record write that then failed.
func (s *Service) logOrphans(botID string, handles []string) {
	if len(handles) == 0 {
		return
	}
	s.logger.Warn("Sealed secrets left without a record",
		zap.String("bot_id", botID),
		zap.Strings("handles", handles))
}

func (s *Service) refresh(ctx context.Context, r Refresher) {
	if r == nil {
		return
	}
	if _, err := r.Refresh(ctx); err != nil {
		s.logger.Warn("Refresh after write failed", zap.Error(err))
	}
}

// RedactSecrets returns a copy of rec in which any password or API key that
// is not a vault handle is blanked.
func RedactSecrets(rec *models.BotRecord) *models.BotRecord {
	out := rec.Clone()
	if !secrets.IsHandle(out.Credentials.PasswordRef) {
		out.Credentials.PasswordRef = ""
	}
	for i := range out.Config.Providers {
		if !secrets.IsHandle(out.Config.Providers[i].APIKey) {
			out.Config.Providers[i].APIKey = ""
		}
	}
	return out
}
