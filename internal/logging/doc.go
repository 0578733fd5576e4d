// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured slog loggers used across
// rigrun-stream from the [log] config section.
//
// # Usage
//
//	logger, err := logging.New(cfg.Log, os.Stderr)
//	slog.SetDefault(logger)
//	ctx = logging.WithContext(ctx, logger.With("request_id", id))
package logging
