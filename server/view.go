package server

import (
	"encoding/json"

	"flaparena/game"
)

// StateView 某一帧结束时的只读快照，广播给客户端并供 HTTP 读取
type StateView struct {
	Type            string              `json:"type"`
	Session         string              `json:"session"`
	Tick            uint64              `json:"tick"`
	Round           game.RoundState     `json:"round"`
	Rules           game.Rules          `json:"rules"`      // 下一回合生效
	RoundRules      game.Rules          `json:"roundRules"` // 当前回合
	Eliminated      int                 `json:"eliminated"`
	PendingRespawns int                 `json:"pendingRespawns"`
	Records         []game.PlayerRecord `json:"records"`
	Agents          []game.AgentState   `json:"agents"`
}

// EventMessage 总线事件的出站格式
type EventMessage struct {
	Type string          `json:"type"`
	Seq  uint64          `json:"seq"`
	Tick uint64          `json:"tick"`
	Kind string          `json:"kind"`
	Clip string          `json:"clip,omitempty"` // 需要播放的音效资源
	Data json.RawMessage `json:"data"`
}

func buildView(sessionID string, reg *game.Registry) *StateView {
	return &StateView{
		Type:            "state",
		Session:         sessionID,
		Tick:            reg.Tick(),
		Round:           reg.State(),
		Rules:           reg.Rules(),
		RoundRules:      reg.RoundRules(),
		Eliminated:      reg.Eliminated(),
		PendingRespawns: reg.PendingRespawns(),
		Records:         reg.Records(),
		Agents:          reg.Agents(),
	}
}
