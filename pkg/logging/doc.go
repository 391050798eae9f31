// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging provides context-based structured logging utilities using Go's standard slog package.
//
// Loggers are stored in and retrieved from [context.Context] values so that agents, tools and
// HTTP handlers share the logger configured by the command line:
//
//	logger, err := logging.New("debug", "text", os.Stderr)
//	if err != nil {
//		return err
//	}
//	ctx = logging.NewContext(ctx, logger)
//
//	// deeper in the call stack
//	logging.FromContext(ctx).Info("agent invoked", slog.String("agent", name))
//
// When no logger is found in the context, [FromContext] returns a JSON logger that writes to
// stdout at INFO level, so logging always works even when nothing was configured.
package logging
