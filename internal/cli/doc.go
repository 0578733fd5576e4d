// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the rigrun-stream command line.
//
// Commands are cobra commands bound to an App, which carries the loaded
// configuration, the logger and the standard streams:
//
//	app := cli.NewApp(os.Stdin, os.Stdout, os.Stderr)
//	err := app.RootCommand().ExecuteContext(ctx)
//
// # Commands Overview
//
//   - render [file|-]: reveal content progressively in a Bubble Tea view, or
//     as plain terminal output with --plain. When stdout is not a terminal
//     the content is written instantly.
//   - analyze [file|-]: print the segments and the adaptive speed
//   - serve: run the WebSocket render server
//   - history [conversation-id]: list or show recorded renders
//   - config show|init|path: inspect or create the config file
//
// Global flags --config, --log-level and --json apply to every command.
package cli
