package game

// EventKind 事件类型
type EventKind int

const (
	KindPlayerSpawned EventKind = iota + 1
	KindPlayerKilled
	KindRoundStarted
	KindRoundEnded
	KindStateChanged
	KindIntent
)

var kindNames = map[EventKind]string{
	KindPlayerSpawned: "player_spawned",
	KindPlayerKilled:  "player_killed",
	KindRoundStarted:  "round_started",
	KindRoundEnded:    "round_ended",
	KindStateChanged:  "state_changed",
	KindIntent:        "intent",
}

func (k EventKind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseEventKind 按名称查找事件类型
func ParseEventKind(name string) (EventKind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return 0, false
}

// Event 总线上传递的事件，均为值拷贝，订阅者无法回写注册表
type Event interface {
	Kind() EventKind
}

// PlayerSpawned 座位生成了新的 Agent
type PlayerSpawned struct {
	Record   PlayerRecord `json:"record"`
	Position Vec2         `json:"position"`
}

// PlayerKilled 击杀结算后的双方记录
type PlayerKilled struct {
	Killer PlayerRecord `json:"killer"`
	Victim PlayerRecord `json:"victim"`
}

type RoundStarted struct {
	PlayerCount int `json:"playerCount"`
	StartLives  int `json:"startLives"`
}

// RoundEnded 携带清场前的最终战绩；Winner 仅在 HasWinner 时有效
type RoundEnded struct {
	Standings []PlayerRecord `json:"standings"`
	Winner    SeatID         `json:"winner"`
	HasWinner bool           `json:"hasWinner"`
}

type StateChanged struct {
	From RoundState `json:"from"`
	To   RoundState `json:"to"`
}

// Intent 发给动画/音效/UI 的表现意图（fire-and-forget）
type Intent struct {
	Seat  SeatID     `json:"seat"`
	Type  IntentKind `json:"type"`
	On    bool       `json:"on,omitempty"`
	Value float64    `json:"value,omitempty"`
}

func (PlayerSpawned) Kind() EventKind { return KindPlayerSpawned }
func (PlayerKilled) Kind() EventKind  { return KindPlayerKilled }
func (RoundStarted) Kind() EventKind  { return KindRoundStarted }
func (RoundEnded) Kind() EventKind    { return KindRoundEnded }
func (StateChanged) Kind() EventKind  { return KindStateChanged }
func (Intent) Kind() EventKind        { return KindIntent }

// IntentKind 表现意图类型
type IntentKind int

const (
	IntentLand IntentKind = iota + 1
	IntentFall
	IntentFlap
	IntentGrounded
	IntentSpeed
	IntentAcceleration
	IntentSpawn
	IntentKill
	IntentBounce
	IntentCollide
	IntentStop
	IntentStopStop
	IntentFlip
	IntentVisible
)

var intentNames = map[IntentKind]string{
	IntentLand:         "Land",
	IntentFall:         "Fall",
	IntentFlap:         "Flap",
	IntentGrounded:     "Grounded",
	IntentSpeed:        "Speed",
	IntentAcceleration: "Acceleration",
	IntentSpawn:        "Spawn",
	IntentKill:         "Kill",
	IntentBounce:       "Bounce",
	IntentCollide:      "Collide",
	IntentStop:         "Stop",
	IntentStopStop:     "StopStop",
	IntentFlip:         "Flip",
	IntentVisible:      "Visible",
}

func (k IntentKind) String() string {
	if n, ok := intentNames[k]; ok {
		return n
	}
	return "unknown"
}

func (k IntentKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Clip 意图对应的音效名，没有音效返回空串
func (k IntentKind) Clip() string {
	switch k {
	case IntentSpawn:
		return "Spawn"
	case IntentKill:
		return "Kill"
	case IntentCollide:
		return "Collide"
	case IntentBounce:
		return "Bounce"
	case IntentStop, IntentStopStop:
		return "Stop"
	case IntentFlap:
		return "Flap"
	}
	return ""
}
