// Copyright (C) 2025 Lakeshed Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"

	"github.com/lakeshed/lakeshed/config"
)

// setupLogging configures the process-wide slog default: text to
// stdout, fanned out to a JSON log file when one is configured. Debug
// level comes from LAKESHED_DEBUG.
func setupLogging(cfg *config.Config, servicename string) {
	var opts *slog.HandlerOptions
	if os.Getenv("DEBUG") != "" || os.Getenv("LAKESHED_DEBUG") != "" {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}

	handler := slog.Handler(slog.NewTextHandler(os.Stdout, opts))
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Warn("Cannot open log file, logging to stdout only",
				slog.String("path", cfg.LogFile), slog.Any("error", err))
		} else {
			handler = slogmulti.Fanout(
				handler,
				slog.NewJSONHandler(f, opts),
			)
		}
	}

	slog.SetDefault(slog.New(handler).With(
		slog.String("service", servicename),
	))
}
