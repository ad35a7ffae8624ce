package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config del logger de proceso.
type Config struct {
	Env   string // "dev" | "prod"
	Level string // debug, info, warn, error

	ServiceName string
	Version     string
	// NodeName se conoce recién después del bootstrap en el daemon; el
	// configtool lo deja vacío.
	NodeName string
}

var (
	once     sync.Once
	instance *zap.Logger
)

// Init arma el logger de proceso. Llamadas posteriores no hacen nada.
func Init(cfg Config) {
	once.Do(func() { instance = build(cfg) })
}

// L devuelve el logger de proceso; sin Init, uno de dev en info.
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

func Named(component string) *zap.Logger { return L().Named(component) }

// S es la variante sugared, usada en los main para logs key/value sueltos.
func S() *zap.SugaredLogger { return L().Sugar() }

func Sync() error {
	if instance == nil {
		return nil
	}
	return instance.Sync()
}

func build(cfg Config) *zap.Logger {
	var zcfg zap.Config
	opts := []zap.Option{zap.AddCaller()}
	if strings.EqualFold(cfg.Env, "prod") {
		zcfg = zap.NewProductionConfig()
		zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zcfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		zcfg.DisableStacktrace = true
	}
	zcfg.Level = zap.NewAtomicLevelAt(parseLevel(cfg.Level))
	zcfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := zcfg.Build(opts...)
	if err != nil {
		l, _ = zap.NewProduction()
	}

	var base []zap.Field
	if cfg.ServiceName != "" {
		base = append(base, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	if cfg.NodeName != "" {
		base = append(base, NodeName(cfg.NodeName))
	}
	return l.With(base...)
}

func parseLevel(lvl string) zapcore.Level {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(lvl)))); err != nil {
		return zapcore.InfoLevel
	}
	if l > zapcore.ErrorLevel {
		return zapcore.ErrorLevel
	}
	return l
}
