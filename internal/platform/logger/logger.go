package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Options struct {
	Env string
	// File, when set, receives JSON logs with size-based rotation in addition to stdout.
	File string
}

// New builds the process logger: JSON in production, colored console output otherwise.
func New(opts Options) (*zap.Logger, error) {
	var zapConfig zap.Config
	if opts.Env == "production" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapConfig.EncoderConfig.TimeKey = "ts"
	zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if opts.File == "" {
		return zapConfig.Build(zap.AddCaller())
	}

	rotator := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    64, // megabytes
		MaxBackups: 7,
		MaxAge:     7, // days
	}
	fileEncoder := zap.NewProductionEncoderConfig()
	fileEncoder.TimeKey = "ts"
	fileEncoder.EncodeTime = zapcore.ISO8601TimeEncoder

	var consoleEncoder zapcore.Encoder
	if opts.Env == "production" {
		consoleEncoder = zapcore.NewJSONEncoder(zapConfig.EncoderConfig)
	} else {
		consoleEncoder = zapcore.NewConsoleEncoder(zapConfig.EncoderConfig)
	}

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoder), zapcore.AddSync(rotator), zapConfig.Level),
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapConfig.Level),
	)
	return zap.New(core, zap.AddCaller()), nil
}
