package logx

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New creates a logger that writes JSON records to a timestamped file inside
// dir and, when console is non-nil, human-readable records to console. The
// returned closer should be closed when logging is no longer needed.
func New(dir string, console io.Writer, verbose bool) (*zap.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure logs directory: %w", err)
	}

	filename := time.Now().Format("20060102-150405") + ".log"
	filePath := filepath.Join(dir, filename)
	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	fileEnc := zap.NewProductionEncoderConfig()
	fileEnc.EncodeTime = zapcore.ISO8601TimeEncoder
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEnc), zapcore.AddSync(file), zapcore.DebugLevel),
	}

	if console != nil {
		level := zapcore.InfoLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		cores = append(cores, zapcore.NewCore(consoleEncoder(), zapcore.AddSync(console), level))
	}

	logger := zap.New(zapcore.NewTee(cores...)).With(zap.String("log_file", filePath))
	return logger, file, nil
}

// Console returns a logger that only writes human-readable records to w.
func Console(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	return zap.New(zapcore.NewCore(consoleEncoder(), zapcore.AddSync(w), level))
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}

func consoleEncoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = ""
	cfg.CallerKey = ""
	cfg.NameKey = ""
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}
