package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"flaparena/game"
)

const adminTimeout = 2 * time.Second

// api HTTP 处理器共享的依赖
type api struct {
	m *Manager
}

// session 解析 ?session=<id>，为空时使用默认会话；找不到时已写出 404
func (h *api) session(c *gin.Context) (*Session, bool) {
	id := c.Query("session")
	s, ok := h.m.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrSessionNotFound.Error(), "session": id})
		return nil, false
	}
	return s, true
}

// commandStatus 将 Tick 线程返回的错误映射为 HTTP 状态码
func commandStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidRules), errors.Is(err, game.ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// getConfig GET /admin/config?session=<id>
func (h *api) getConfig(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	v := s.View()
	c.JSON(http.StatusOK, gin.H{
		"session":    s.ID,
		"round":      v.Round,
		"rules":      v.Rules,
		"roundRules": v.RoundRules,
	})
}

// updateConfig POST /admin/config?session=<id>
// 只更新载荷中出现的字段，新规则从下一回合开始生效
func (h *api) updateConfig(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var body struct {
		PlayerCount *int `json:"playerCount"`
		StartLives  *int `json:"startLives"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "details": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), adminTimeout)
	defer cancel()
	var applied game.Rules
	err := s.Do(ctx, func(reg *game.Registry) error {
		rules := reg.Rules()
		if body.PlayerCount != nil {
			rules.PlayerCount = *body.PlayerCount
		}
		if body.StartLives != nil {
			rules.StartLives = *body.StartLives
		}
		if err := reg.SetRules(rules); err != nil {
			return err
		}
		applied = rules
		return nil
	})
	if err != nil {
		c.JSON(commandStatus(err), gin.H{"error": err.Error()})
		return
	}
	Log.Infow("rules updated", "session", s.ID, "playerCount", applied.PlayerCount, "startLives", applied.StartLives)
	c.JSON(http.StatusOK, gin.H{"ok": true, "rules": applied})
}

// setRound POST /admin/round?session=<id>  {"state":"playing"}
func (h *api) setRound(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	var body struct {
		State string `json:"state" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "details": err.Error()})
		return
	}
	state, err := game.ParseRoundState(body.State)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), adminTimeout)
	defer cancel()
	if err := s.SetRound(ctx, state); err != nil {
		c.JSON(commandStatus(err), gin.H{"error": err.Error()})
		return
	}
	Log.Infow("round state changed", "session", s.ID, "state", state)
	c.JSON(http.StatusOK, gin.H{"ok": true, "round": s.View().Round})
}

// players GET /admin/players?session=<id>
func (h *api) players(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	v := s.View()
	c.JSON(http.StatusOK, gin.H{
		"session":         s.ID,
		"tick":            v.Tick,
		"records":         v.Records,
		"agents":          v.Agents,
		"eliminated":      v.Eliminated,
		"pendingRespawns": v.PendingRespawns,
	})
}

// metrics GET /metrics?session=<id>
func (h *api) metrics(c *gin.Context) {
	s, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s.ID,
		"tick":    s.View().Tick,
		"metrics": s.Metrics().Snapshot(),
	})
}

// listSessions GET /admin/sessions
func (h *api) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.m.List()})
}

// createSession POST /admin/sessions  {"id":"..."}，id 为空时自动生成
func (h *api) createSession(c *gin.Context) {
	var body struct {
		ID string `json:"id"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json", "details": err.Error()})
			return
		}
	}
	s, err := h.m.Create(body.ID)
	switch {
	case errors.Is(err, ErrSessionExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "session": body.ID})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	Log.Infow("session created via admin", "session", s.ID)
	c.JSON(http.StatusCreated, gin.H{"session": s.ID})
}

// closeSession DELETE /admin/sessions/:id
func (h *api) closeSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.m.Close(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "session": id})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
