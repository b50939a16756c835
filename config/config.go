package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"flaparena/game"
	"flaparena/physics"
)

// EnvPrefix 环境变量前缀，如 ARENA_GAME_PLAYER_COUNT
const EnvPrefix = "ARENA"

var (
	ErrInvalid     = errors.New("invalid config")
	ErrUnknownClip = errors.New("unknown audio clip")
	ErrEmptyClip   = errors.New("empty audio clip name")
)

type Config struct {
	Server  ServerConfig     `mapstructure:"server"`
	Log     LogConfig        `mapstructure:"log"`
	Game    GameConfig       `mapstructure:"game"`
	Physics physics.Settings `mapstructure:"physics"`
	Audio   AudioConfig      `mapstructure:"audio"`
}

type ServerConfig struct {
	Addr     string `mapstructure:"addr"`
	Mode     string `mapstructure:"mode"` // gin 模式：debug / release / test
	TickRate int    `mapstructure:"tick_rate"`
	Session  string `mapstructure:"session"` // 默认会话名，为空时生成 uuid
}

type LogConfig struct {
	File       string `mapstructure:"file"`
	Dev        bool   `mapstructure:"dev"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// GameConfig 对应 game.Tuning；PlayerCount / StartLives 之外的参数只在启动时读取
type GameConfig struct {
	PlayerCount       int           `mapstructure:"player_count"`
	StartLives        int           `mapstructure:"start_lives"`
	MoveForce         game.Vec2     `mapstructure:"move_force"`
	BounceForce       game.Vec2     `mapstructure:"bounce_force"`
	MaxSpeedX         float64       `mapstructure:"max_speed_x"`
	WrapAt            float64       `mapstructure:"wrap_at"`
	WrapTo            float64       `mapstructure:"wrap_to"`
	SameHeightEpsilon float64       `mapstructure:"same_height_epsilon"`
	LandNormalMinY    float64       `mapstructure:"land_normal_min_y"`
	BlinkCycles       int           `mapstructure:"blink_cycles"`
	BlinkShown        time.Duration `mapstructure:"blink_shown"`
	BlinkHidden       time.Duration `mapstructure:"blink_hidden"`
	RespawnDelay      time.Duration `mapstructure:"respawn_delay"`
	SpawnPoints       []game.Vec2   `mapstructure:"spawn_points"`
}

// AudioConfig 片段名 -> 资源路径
type AudioConfig struct {
	Clips map[string]string `mapstructure:"clips"`
}

// Options 加载来源；零值表示只用默认值 + 环境变量 + 当前目录下可选的 config.yaml
type Options struct {
	File    string         // 显式指定的配置文件，不存在时报错
	EnvFile string         // 默认 .env，不存在时忽略
	Flags   *pflag.FlagSet // 由 BindFlags 注册过的命令行参数
}

// 命令行参数 -> 配置键
var flagKeys = map[string]string{
	"addr":     "server.addr",
	"mode":     "server.mode",
	"tick":     "server.tick_rate",
	"session":  "server.session",
	"log-file": "log.file",
	"dev":      "log.dev",
	"players":  "game.player_count",
	"lives":    "game.start_lives",
}

// BindFlags 注册命令行参数，未显式传入的参数不会覆盖文件和环境变量
func BindFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "path to config file (yaml)")
	flags.String("addr", "", "http listen address")
	flags.String("mode", "", "gin mode: debug, release or test")
	flags.Int("tick", 0, "simulation ticks per second")
	flags.String("session", "", "name of the default session")
	flags.String("log-file", "", "log file path")
	flags.Bool("dev", false, "development logging (console, debug level, DPanic panics)")
	flags.Int("players", 0, "player count for the next round")
	flags.Int("lives", 0, "starting lives for the next round")
}

func setDefaults(v *viper.Viper) {
	t := game.DefaultTuning()
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.tick_rate", 50)
	v.SetDefault("server.session", "")

	v.SetDefault("log.file", "flaparena.log")
	v.SetDefault("log.dev", false)
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)

	v.SetDefault("game.player_count", t.PlayerCount)
	v.SetDefault("game.start_lives", t.StartLives)
	v.SetDefault("game.move_force", t.MoveForce)
	v.SetDefault("game.bounce_force", t.BounceForce)
	v.SetDefault("game.max_speed_x", t.MaxSpeedX)
	v.SetDefault("game.wrap_at", t.WrapAt)
	v.SetDefault("game.wrap_to", t.WrapTo)
	v.SetDefault("game.same_height_epsilon", t.SameHeightEpsilon)
	v.SetDefault("game.land_normal_min_y", t.LandNormalMinY)
	v.SetDefault("game.blink_cycles", t.BlinkCycles)
	v.SetDefault("game.blink_shown", t.BlinkShown)
	v.SetDefault("game.blink_hidden", t.BlinkHidden)
	v.SetDefault("game.respawn_delay", t.RespawnDelay)
	v.SetDefault("game.spawn_points", t.SpawnPoints)

	p := physics.DefaultSettings()
	v.SetDefault("physics.gravity", p.Gravity)
	v.SetDefault("physics.body_width", p.BodyW)
	v.SetDefault("physics.body_height", p.BodyH)
	v.SetDefault("physics.mass", p.Mass)
	v.SetDefault("physics.width", p.Width)
	v.SetDefault("physics.height", p.Height)
	v.SetDefault("physics.platforms", p.Platforms)

	v.SetDefault("audio.clips", DefaultClips())
}

// DefaultClips 意图对应的音效资源；viper 会把键转成小写，查找时同样按小写
func DefaultClips() map[string]string {
	return map[string]string{
		"spawn":   "audio/spawn.wav",
		"kill":    "audio/kill.wav",
		"collide": "audio/collide.wav",
		"bounce":  "audio/bounce.wav",
		"stop":    "audio/stop.wav",
		"flap":    "audio/flap.wav",
	}
}

// Load 按 默认值 < 配置文件 < .env/环境变量 < 命令行 的优先级合并配置并校验
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := opts.File
	if file == "" && opts.Flags != nil {
		if f := opts.Flags.Lookup("config"); f != nil {
			file = f.Value.String()
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			f := opts.Flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate 校验会导致运行期不变量无法成立的配置
func (c *Config) Validate() error {
	g := c.Game
	var problems []string
	if g.PlayerCount < 2 || g.PlayerCount > len(g.SpawnPoints) {
		problems = append(problems, fmt.Sprintf("game.player_count %d must be within [2, %d spawn points]", g.PlayerCount, len(g.SpawnPoints)))
	}
	if g.StartLives < 1 {
		problems = append(problems, fmt.Sprintf("game.start_lives %d must be positive", g.StartLives))
	}
	if g.MaxSpeedX <= 0 {
		problems = append(problems, "game.max_speed_x must be positive")
	}
	if g.BlinkCycles < 0 || g.BlinkShown < 0 || g.BlinkHidden < 0 || g.RespawnDelay < 0 {
		problems = append(problems, "game blink/respawn timings must not be negative")
	}
	if g.WrapTo > g.WrapAt {
		problems = append(problems, "game.wrap_to must not exceed game.wrap_at")
	}
	if c.Server.TickRate < 1 || c.Server.TickRate > 240 {
		problems = append(problems, fmt.Sprintf("server.tick_rate %d must be within [1, 240]", c.Server.TickRate))
	}
	for name := range c.Audio.Clips {
		if strings.TrimSpace(name) == "" {
			problems = append(problems, "audio.clips contains an empty clip name")
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

// TickInterval 每帧时长
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.Server.TickRate)
}

// Tuning 映射为模拟核心的参数
func (c *Config) Tuning() game.Tuning {
	g := c.Game
	return game.Tuning{
		MoveForce:         g.MoveForce,
		BounceForce:       g.BounceForce,
		MaxSpeedX:         g.MaxSpeedX,
		WrapAt:            g.WrapAt,
		WrapTo:            g.WrapTo,
		SameHeightEpsilon: g.SameHeightEpsilon,
		LandNormalMinY:    g.LandNormalMinY,
		BlinkCycles:       g.BlinkCycles,
		BlinkShown:        g.BlinkShown,
		BlinkHidden:       g.BlinkHidden,
		RespawnDelay:      g.RespawnDelay,
		SpawnPoints:       append([]game.Vec2(nil), g.SpawnPoints...),
		PlayerCount:       g.PlayerCount,
		StartLives:        g.StartLives,
	}
}

// Clip 按片段名查找资源路径
func (c *Config) Clip(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyClip
	}
	path, ok := c.Audio.Clips[strings.ToLower(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownClip, name)
	}
	return path, nil
}
