// Package logging 提供基于zap的客户端日志实现
// 支持控制台输出、文件输出和日志轮转，并适配 ui.Logger 接口
package logging

import (
	"os"
	"strings"

	"github.com/retromint/v1/pkg/ux/ui"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options 日志配置选项
type Options struct {
	Level     string `json:"level"`      // 日志级别 (debug, info, warn, error)
	ToConsole bool   `json:"to_console"` // 是否输出到控制台
	FilePath  string `json:"file_path"`  // 日志文件路径（为空则不写文件）

	// 轮转配置
	MaxSize    int  `json:"max_size"`    // 单个日志文件最大大小(MB)
	MaxBackups int  `json:"max_backups"` // 最大备份文件数
	MaxAge     int  `json:"max_age"`     // 日志文件最大保留天数
	Compress   bool `json:"compress"`    // 是否压缩历史日志文件
}

// DefaultOptions 返回默认日志配置
func DefaultOptions() *Options {
	return &Options{
		Level:      "info",
		ToConsole:  false,
		MaxSize:    10,
		MaxBackups: 3,
		MaxAge:     7,
		Compress:   true,
	}
}

// parseLevel 解析日志级别字符串
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// New 创建zap日志器
//
// 输出目标：
//   - FilePath非空时写入文件（lumberjack轮转）
//   - ToConsole为true时同时输出到stderr（避免污染stdout的JSON数据）
func New(opts *Options) *zap.Logger {
	if opts == nil {
		opts = DefaultOptions()
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	level := parseLevel(opts.Level)
	var cores []zapcore.Core

	if opts.FilePath != "" {
		fileWriter := zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		})
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			fileWriter,
			level,
		))
	}

	if opts.ToConsole {
		consoleEncoderConfig := zap.NewDevelopmentEncoderConfig()
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig),
			zapcore.AddSync(os.Stderr),
			level,
		))
	}

	if len(cores) == 0 {
		return zap.NewNop()
	}

	return zap.New(zapcore.NewTee(cores...))
}

// zapAdapter 将zap日志器适配到 ui.Logger 接口
type zapAdapter struct {
	sugar *zap.SugaredLogger
}

func (a *zapAdapter) Debug(msg string)                          { a.sugar.Debug(msg) }
func (a *zapAdapter) Debugf(format string, args ...interface{}) { a.sugar.Debugf(format, args...) }
func (a *zapAdapter) Info(msg string)                           { a.sugar.Info(msg) }
func (a *zapAdapter) Infof(format string, args ...interface{})  { a.sugar.Infof(format, args...) }
func (a *zapAdapter) Warn(msg string)                           { a.sugar.Warn(msg) }
func (a *zapAdapter) Warnf(format string, args ...interface{})  { a.sugar.Warnf(format, args...) }
func (a *zapAdapter) Error(msg string)                          { a.sugar.Error(msg) }
func (a *zapAdapter) Errorf(format string, args ...interface{}) { a.sugar.Errorf(format, args...) }

// NewUILogger 创建适配 ui.Logger 接口的zap日志器
func NewUILogger(opts *Options) ui.Logger {
	return &zapAdapter{sugar: New(opts).Sugar()}
}
