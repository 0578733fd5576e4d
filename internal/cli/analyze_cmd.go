// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/source"
	"github.com/jeranaias/rigrun-stream/internal/util"
)

// AnalyzeResult is the analyze command output.
type AnalyzeResult struct {
	Segments      []render.Segment `json:"segments"`
	Tokens        int              `json:"tokens"`
	AdaptiveSpeed string           `json:"adaptive_speed"`
	DominantMode  string           `json:"dominant_mode"`
}

func (a *App) analyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze [file|-]",
		Short: "Show how content is segmented and paced",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			content, err := source.Open(name, a.In)
			if err != nil {
				return err
			}
			return a.printAnalysis(analyze(content))
		},
	}
}

func analyze(content string) AnalyzeResult {
	segments := render.Analyze(content)
	adaptive := render.AdaptiveSpeedOf(segments)
	return AnalyzeResult{
		Segments:      segments,
		Tokens:        len(render.Tokenize(segments)),
		AdaptiveSpeed: adaptive.SpeedConfig().String(),
		DominantMode:  string(adaptive.Mode),
	}
}

func (a *App) printAnalysis(res AnalyzeResult) error {
	if a.jsonOutput {
		return NewJSONResponse("analyze", res).Print(a.Out)
	}

	fmt.Fprintln(a.Out, headerStyle.Render("Segments"))
	for i, seg := range res.Segments {
		preview := strings.ReplaceAll(util.FirstLine(seg.Content), "\t", " ")
		extra := ""
		switch {
		case seg.Language != "":
			extra = " lang=" + seg.Language
		case seg.Depth > 0:
			extra = fmt.Sprintf(" depth=%d", seg.Depth)
		}
		fmt.Fprintf(a.Out, "%3d  %s %s %s  %s\n",
			i+1,
			labelStyle.Render(util.PadRight(string(seg.Type), 10)),
			util.PadRight(string(seg.Mode), 10),
			util.PadRight(seg.Delay.String()+extra, 16),
			mutedStyle.Render(util.TruncateWidth(preview, 40)),
		)
	}
	fmt.Fprintf(a.Out, "\n%s %d   %s %s (%s)\n",
		labelStyle.Render("tokens:"), res.Tokens,
		labelStyle.Render("adaptive speed:"), res.AdaptiveSpeed, res.DominantMode)
	return nil
}
