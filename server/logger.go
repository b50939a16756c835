package server

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log 是全局可用的 SugaredLogger，HTTP 处理器与未注入 logger 的代码使用
var Log = zap.NewNop().Sugar()

// LogOptions 日志输出设置
type LogOptions struct {
	File       string
	Dev        bool // 开发模式：同时输出到控制台，DPanic 直接 panic
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// InitLogger 初始化 zap 日志到本地文件（支持滚动），并替换全局 Log
func InitLogger(opts LogOptions) (*zap.SugaredLogger, error) {
	// 文件滚动策略：默认 10MB 每文件，保留3个备份，7天
	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10), // MB
		MaxBackups: orDefault(opts.MaxBackups, 3),
		MaxAge:     orDefault(opts.MaxAgeDays, 7), // days
		Compress:   false,
	}

	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}
	level := zapcore.InfoLevel
	if opts.Dev {
		level = zapcore.DebugLevel
	}
	var core zapcore.Core = zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(lj), level)

	zopts := []zap.Option{zap.AddCaller()}
	if opts.Dev {
		// 控制台彩色输出，便于本地调试
		devCfg := encCfg
		devCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		console := zapcore.NewCore(zapcore.NewConsoleEncoder(devCfg), zapcore.Lock(os.Stderr), level)
		core = zapcore.NewTee(core, console)
		zopts = append(zopts, zap.Development())
	}

	Log = zap.New(core, zopts...).Sugar()
	return Log, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// SyncLogger 清理和同步缓冲
func SyncLogger() {
	if Log != nil {
		_ = Log.Sync()
	}
}
