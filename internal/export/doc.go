// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes recorded render conversations to shareable documents.
//
// # Supported Formats
//
//   - markdown: the rendered content with YAML frontmatter
//   - html: a standalone page; code blocks are highlighted with chroma
//   - json: the complete conversation record
//
// # Usage
//
//	exporter, err := export.ForFormat("html", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, opts)
package export
