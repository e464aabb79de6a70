// Package logging maps the boundary log levels onto zap.
//
// The other side of the boundary sets and reads levels as integers:
//
//	0 debug, 1 info, 2 warn, 3 error, 4 none
//
// A Controller holds the current level in a zap.AtomicLevel so every logger
// built from it follows level changes without being rebuilt.
package logging

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-bridge/errors"
)

// Level is a boundary log level.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelNone
)

// levelOff is above every zap level, so nothing is enabled.
const levelOff = zapcore.FatalLevel + 1

var levelNames = [...]string{"debug", "info", "warn", "error", "none"}

// Valid reports whether l is in [0, 4].
func (l Level) Valid() bool { return l >= LevelDebug && l <= LevelNone }

func (l Level) String() string {
	if l.Valid() {
		return levelNames[l]
	}
	return "level(" + strconv.Itoa(int(l)) + ")"
}

// Zap returns the zap level for l.
func (l Level) Zap() zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelInfo:
		return zapcore.InfoLevel
	case LevelWarn:
		return zapcore.WarnLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return levelOff
	}
}

// ParseLevel accepts a level name or its number.
func ParseLevel(s string) (Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range levelNames {
		if s == name {
			return Level(i), nil
		}
	}
	if n, err := strconv.Atoi(s); err == nil && Level(n).Valid() {
		return Level(n), nil
	}
	return 0, errors.InvalidArgument(errors.PhaseConfig, fmt.Sprintf("unknown log level %q", s), s)
}

// Controller owns the live level.
type Controller struct {
	atom  zap.AtomicLevel
	level atomic.Int32
}

// NewController starts at l. Out-of-range levels start at LevelInfo.
func NewController(l Level) *Controller {
	if !l.Valid() {
		l = LevelInfo
	}
	c := &Controller{atom: zap.NewAtomicLevelAt(l.Zap())}
	c.level.Store(int32(l))
	return c
}

// Set changes the level. Values outside [0, 4] return InvalidArgument and
// leave the level unchanged.
func (c *Controller) Set(level int32) error {
	l := Level(level)
	if !l.Valid() {
		return errors.InvalidArgument(errors.PhaseConfig,
			fmt.Sprintf("log level %d outside [0, 4]", level), level)
	}
	c.atom.SetLevel(l.Zap())
	c.level.Store(level)
	return nil
}

// Get returns the current level.
func (c *Controller) Get() Level { return Level(c.level.Load()) }

// Enabler returns the zap level enabler that tracks c.
func (c *Controller) Enabler() zap.AtomicLevel { return c.atom }

// New builds a console logger writing to w at c's level.
func New(c *Controller, w io.Writer) *zap.Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), c.atom)
	return zap.New(core)
}
