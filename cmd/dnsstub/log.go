// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const timeFormat = "060102 15:04:05.000"

// newLogger returns a logger writing to f at the given level.
func newLogger(f *os.File, level string) (*slog.Logger, error) {
	var handlerLogLevel slog.Level
	if err := handlerLogLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	logHandler := tint.NewHandler(f, &tint.Options{
		AddSource:  handlerLogLevel <= slog.LevelDebug,
		Level:      handlerLogLevel,
		TimeFormat: timeFormat,
		NoColor:    !isatty.IsTerminal(f.Fd()),
	})
	return slog.New(logHandler), nil
}
