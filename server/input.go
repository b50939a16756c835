package server

import (
	"math"

	"flaparena/game"
)

// InputMessage 入站 JSON 消息（WebSocket 文本消息）
// 示例：{"type":"input","seat":0,"axis":-1,"flight":true}
//
//	{"type":"round","state":"playing"}
type InputMessage struct {
	Type   string  `json:"type"`
	Seat   int     `json:"seat"`
	Axis   float64 `json:"axis"`
	Flight bool    `json:"flight"`
	State  string  `json:"state,omitempty"`
}

// seatInput 某条连接对某个座位的输入
type seatInput struct {
	from *ClientConn
	game.Controls
}

// InputBoard 各座位当前按键状态；只在 Tick 线程读写，实现 game.InputSource
// 输入是电平式的：客户端在按键变化时发送，服务端保持到下一次变化
type InputBoard struct {
	seats int
	state map[game.SeatID]seatInput
}

func NewInputBoard(seats int) *InputBoard {
	return &InputBoard{seats: seats, state: make(map[game.SeatID]seatInput)}
}

// Poll 供 Agent 每帧读取
func (b *InputBoard) Poll(seat game.SeatID) game.Controls {
	return b.state[seat].Controls
}

// Apply 写入一条输入；座位越界或数值非法时返回 false
func (b *InputBoard) Apply(from *ClientConn, msg InputMessage) bool {
	if msg.Seat < 0 || msg.Seat >= b.seats || math.IsNaN(msg.Axis) {
		return false
	}
	axis := math.Max(-1, math.Min(1, msg.Axis))
	b.state[game.SeatID(msg.Seat)] = seatInput{from: from, Controls: game.Controls{Axis: axis, Flight: msg.Flight}}
	return true
}

// Release 连接断开时松开它控制的所有座位
func (b *InputBoard) Release(from *ClientConn) {
	for seat, in := range b.state {
		if in.from == from {
			delete(b.state, seat)
		}
	}
}

// Reset 新回合开始时清空所有按键
func (b *InputBoard) Reset() {
	clear(b.state)
}
