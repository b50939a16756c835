package game

import (
	"fmt"
	"strings"
)

// RoundState 回合状态机：Idle 仅为初始化前的瞬间，之后在 Selecting 与 Playing 间切换
type RoundState int

const (
	StateIdle RoundState = iota
	StateSelecting
	StatePlaying
)

func (s RoundState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSelecting:
		return "selecting"
	case StatePlaying:
		return "playing"
	}
	return fmt.Sprintf("RoundState(%d)", int(s))
}

func (s RoundState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseRoundState 解析 UI 层传入的状态名（不区分大小写）
func ParseRoundState(name string) (RoundState, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "idle":
		return StateIdle, nil
	case "selecting", "select":
		return StateSelecting, nil
	case "playing", "play":
		return StatePlaying, nil
	}
	return StateIdle, fmt.Errorf("unknown round state %q", name)
}

// PlayerRecord 座位战绩的只读快照
type PlayerRecord struct {
	Seat  SeatID `json:"seat"`
	Lives int    `json:"lives"`
	Kills int    `json:"kills"`
	Alive bool   `json:"alive"` // 当前是否有存活的 Agent
}

// record 注册表内部的可变记录，只允许 Registry 写
type record struct {
	seat  SeatID
	lives int
	kills int
	agent *Agent
}

func (r *record) snapshot() PlayerRecord {
	return PlayerRecord{
		Seat:  r.seat,
		Lives: r.lives,
		Kills: r.kills,
		Alive: r.agent != nil && r.agent.Alive(),
	}
}

// AgentState Agent 的只读快照，供广播与调试
type AgentState struct {
	Seat         SeatID `json:"seat"`
	Position     Vec2   `json:"position"`
	Velocity     Vec2   `json:"velocity"`
	Grounded     bool   `json:"grounded"`
	Flipped      bool   `json:"flipped"`
	Visible      bool   `json:"visible"`
	Alive        bool   `json:"alive"`
	Invulnerable bool   `json:"invulnerable"`
}

func (a *Agent) State() AgentState {
	return AgentState{
		Seat:         a.seat,
		Position:     a.body.Position(),
		Velocity:     a.body.Velocity(),
		Grounded:     a.grounded,
		Flipped:      a.flipped,
		Visible:      a.visible,
		Alive:        a.Alive(),
		Invulnerable: a.Invulnerable(),
	}
}
