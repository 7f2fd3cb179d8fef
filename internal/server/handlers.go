package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xaenox/botpanel/internal/models"
	"github.com/xaenox/botpanel/internal/panel"
)

type BotsResponse struct {
	Bots      []*models.BotRecord `json:"bots"`
	FetchedAt time.Time           `json:"fetched_at"`
	LastError string              `json:"last_error,omitempty"`
}

type CommandRequest struct {
	Command models.CommandKind   `json:"command" binding:"required"`
	Extras  models.CommandExtras `json:"extras"`
}

type MessageRequest struct {
	Text string `json:"text"`
}

func (s *Server) session(c *gin.Context) (*panel.Session, bool) {
	sess, err := s.sessions.Get(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) listBots(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	snap := sess.Snapshot()
	resp := BotsResponse{
		Bots:      make([]*models.BotRecord, 0, len(snap.Records)),
		FetchedAt: snap.FetchedAt,
	}
	for _, rec := range snap.Records {
		resp.Bots = append(resp.Bots, panel.RedactSecrets(rec))
	}
	if snap.LastError != nil {
		resp.LastError = snap.LastError.Error()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) summary(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	sum := sess.Summary()
	if sum.FocusBot != nil {
		sum.FocusBot = panel.RedactSecrets(sum.FocusBot)
	}
	c.JSON(http.StatusOK, sum)
}

func (s *Server) createBot(c *gin.Context) {
	var req panel.CreateBotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}

	rec, err := s.service.CreateBot(c.Request.Context(), req, sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, panel.RedactSecrets(rec))
}

func (s *Server) saveSettings(c *gin.Context) {
	var form panel.SettingsForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}

	cfg, err := s.service.SaveSettings(c.Request.Context(), c.Param("id"), form, sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"config": cfg})
}

func (s *Server) sendCommand(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	cmd, err := models.ParseCommand(req.Command, req.Extras)
	if err != nil {
		s.fail(c, err)
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}

	ack, err := s.service.Command(c.Request.Context(), c.Param("id"), cmd, sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

func (s *Server) sendMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}

	ack, err := s.service.SendMessage(c.Request.Context(), c.Param("id"), req.Text, sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, ack)
}

func (s *Server) refresh(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	ran, err := sess.Refresh(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"refreshed": ran})
}
