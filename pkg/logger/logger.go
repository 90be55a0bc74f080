// HoshiBot - Discord music & companion chat bot
// License: MIT
//
// Copyright (c) 2026 HoshiBot contributors

package logger

import (
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var (
	mu  sync.RWMutex
	log = newLogger(INFO)
)

func newLogger(level Level) zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(zerologLevel(level)).With().Timestamp().Logger()
}

func zerologLevel(level Level) zerolog.Level {
	switch level {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func SetLevel(level Level) {
	mu.Lock()
	defer mu.Unlock()
	log = newLogger(level)
}

func current() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func emit(event *zerolog.Event, component, msg string, fields map[string]interface{}) {
	event = event.Str("component", component)
	for key, value := range fields {
		event = event.Interface(key, value)
	}
	event.Msg(msg)
}

func DebugC(component, msg string) {
	emit(current().Debug(), component, msg, nil)
}

func DebugCF(component, msg string, fields map[string]interface{}) {
	emit(current().Debug(), component, msg, fields)
}

func InfoC(component, msg string) {
	emit(current().Info(), component, msg, nil)
}

func InfoCF(component, msg string, fields map[string]interface{}) {
	emit(current().Info(), component, msg, fields)
}

func WarnC(component, msg string) {
	emit(current().Warn(), component, msg, nil)
}

func WarnCF(component, msg string, fields map[string]interface{}) {
	emit(current().Warn(), component, msg, fields)
}

func ErrorC(component, msg string) {
	emit(current().Error(), component, msg, nil)
}

func ErrorCF(component, msg string, fields map[string]interface{}) {
	emit(current().Error(), component, msg, fields)
}
