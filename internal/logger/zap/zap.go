package zap

import (
	"encoding/json"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const prefix = "[KEYRELAY]"

type prependEncoder struct {
	// embedded so prependEncoder satisfies zapcore.Encoder
	zapcore.Encoder
	cfg  zapcore.EncoderConfig
	pool buffer.Pool
}

func (e *prependEncoder) Clone() zapcore.Encoder {
	return &prependEncoder{
		Encoder: e.Encoder.Clone(),
		pool:    buffer.NewPool(),
		cfg:     e.cfg,
	}
}

func (e *prependEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := e.pool.Get()
	blue := color.New(color.BgBlue)
	red := color.New(color.BgRed)

	coloredPrefix := blue.Sprint(prefix)
	if entry.Level != zap.InfoLevel {
		coloredPrefix = red.Sprint(prefix)
	}

	buf.AppendString(coloredPrefix)
	buf.AppendString(" ")
	buf.AppendString(levelName(entry.Level))
	buf.AppendString(" | ")
	buf.AppendString(entry.Time.Format(time.RFC3339))
	buf.AppendString(" | ")

	consolebuf, err := e.Encoder.EncodeEntry(entry, fields)
	if err != nil {
		return nil, err
	}
	defer consolebuf.Free()

	_, err = buf.Write(consolebuf.Bytes())
	if err != nil {
		return nil, err
	}
	return buf, nil
}

func levelName(lvl zapcore.Level) string {
	switch lvl {
	case zapcore.DebugLevel:
		return "DEBUG"
	case zapcore.InfoLevel:
		return "INFO"
	case zapcore.WarnLevel:
		return "WARN"
	case zapcore.ErrorLevel:
		return "ERROR"
	case zapcore.FatalLevel:
		return "FATAL"
	}
	return ""
}

// NewLogger returns a json logger at info level in production mode and a
// colored console logger at debug level otherwise.
func NewLogger(mode string) *zap.Logger {
	rawJSON := []byte(`{
		"level": "debug",
		"encoding": "json",
		"outputPaths": ["stdout"],
		"errorOutputPaths": ["stderr"],
		"encoderConfig": {
		  "messageKey": "message",
		  "levelKey": "level",
		  "timeKey": "time",
		  "levelEncoder": "lowercase",
		  "timeEncoder": "rfc3339"
		}
	  }`)

	var cfg zap.Config

	if err := json.Unmarshal(rawJSON, &cfg); err != nil {
		panic(err)
	}

	if mode == "production" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		return zap.Must(cfg.Build())
	}

	cfg.EncoderConfig.LevelKey = zapcore.OmitKey
	cfg.EncoderConfig.TimeKey = zapcore.OmitKey

	enc := &prependEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg.EncoderConfig),
		pool:    buffer.NewPool(),
		cfg:     cfg.EncoderConfig,
	}

	return zap.New(zapcore.NewCore(
		enc,
		zapcore.AddSync(colorable.NewColorableStdout()),
		zapcore.DebugLevel,
	))
}
