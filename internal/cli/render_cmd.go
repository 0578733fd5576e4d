// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/rigrun-stream/internal/config"
	"github.com/jeranaias/rigrun-stream/internal/model"
	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/source"
	"github.com/jeranaias/rigrun-stream/internal/storage"
	"github.com/jeranaias/rigrun-stream/internal/stream"
	"github.com/jeranaias/rigrun-stream/internal/ui/chat"
	"github.com/jeranaias/rigrun-stream/internal/ui/styles"
)

// renderOptions are the render command flags.
type renderOptions struct {
	speed         string
	delayMs       int
	delaySet      bool
	lorem         int
	plain         bool
	save          bool
	title         string
	chunkWords    int
	chunkInterval time.Duration
}

// renderJob is a resolved render request.
type renderJob struct {
	cfg      *config.Config
	content  string
	chunks   []string
	interval time.Duration
	speed    render.SpeedConfig
	adaptive bool
	title    string

	// fromStdin is set when the content was read from stdin, which then
	// cannot deliver key presses.
	fromStdin bool

	store          *storage.MessageStore
	conversationID string
}

func (a *App) renderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render [file|-]",
		Short: "Reveal content progressively",
		Long: `Reveal a file, stdin or generated text progressively.

Keys in the interactive view: space pauses, s skips to the end, +/- change
speed, q quits. When stdout is not a terminal the content is written at once.`,
		Example: `  rigrun-stream render answer.md
  cat answer.md | rigrun-stream render --speed fast
  rigrun-stream render --lorem 4 --chunk-words 6 --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			opts.delaySet = cmd.Flags().Changed("delay")
			return a.runRender(cmd.Context(), name, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.speed, "speed", "s", "", "Speed: slow, normal, fast, instant or adaptive")
	cmd.Flags().IntVar(&opts.delayMs, "delay", 0, "Custom per-token delay in milliseconds")
	cmd.Flags().IntVar(&opts.lorem, "lorem", 0, "Render N generated sections instead of input")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "Write plain terminal output instead of the interactive view")
	cmd.Flags().BoolVar(&opts.save, "save", false, "Record the render in the history database")
	cmd.Flags().StringVar(&opts.title, "title", "", "Title for the view and the saved conversation")
	cmd.Flags().IntVar(&opts.chunkWords, "chunk-words", 0, "Feed the input in chunks of N words, like a streaming model")
	cmd.Flags().DurationVar(&opts.chunkInterval, "chunk-interval", 80*time.Millisecond, "Delay between chunks with --chunk-words")

	return cmd
}

func (a *App) runRender(ctx context.Context, name string, opts renderOptions) error {
	job, err := a.prepareRender(ctx, name, opts)
	if err != nil {
		return err
	}
	if job.store != nil {
		defer job.store.Close()
	}

	if !a.isTTY() {
		// Nothing can be animated on a pipe or file.
		job.speed = render.PresetSpeed(render.SpeedInstant)
		job.adaptive = false
		job.interval = 0
		return a.renderPlain(ctx, job)
	}
	if opts.plain {
		return a.renderPlain(ctx, job)
	}
	return a.renderTUI(ctx, job)
}

func (a *App) prepareRender(ctx context.Context, name string, opts renderOptions) (*renderJob, error) {
	cfg := a.cfg.Clone()
	if opts.speed != "" {
		cfg.Render.Speed = opts.speed
	}
	if opts.delaySet {
		if opts.delayMs < 0 {
			return nil, NewValidationErrorWithExample("delay", strconv.Itoa(opts.delayMs), "delay cannot be negative", "--delay 30")
		}
		cfg.Render.Speed = config.SpeedCustom
		cfg.Render.CustomDelayMs = opts.delayMs
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewValidationErrorWithExample("speed", opts.speed, err.Error(), "--speed fast")
	}
	speed, err := cfg.SpeedConfig()
	if err != nil {
		return nil, err
	}
	if opts.chunkWords < 0 {
		return nil, NewValidationError("chunk-words", strconv.Itoa(opts.chunkWords), "must not be negative")
	}

	var content string
	if opts.lorem > 0 {
		content = source.NewLorem().Document(opts.lorem)
	} else {
		content, err = source.Open(name, a.In)
		if err != nil {
			return nil, err
		}
	}
	fromStdin := opts.lorem <= 0 && (name == "" || name == "-")

	job := &renderJob{
		cfg:      cfg,
		content:  content,
		chunks:   []string{content},
		speed:    speed,
		adaptive: cfg.Adaptive(),
		title:    opts.title,

		fromStdin: fromStdin,
	}
	if opts.chunkWords > 0 {
		job.chunks = source.Chunk(content, opts.chunkWords)
		job.interval = opts.chunkInterval
	}
	if job.title == "" {
		job.title = model.TitleFrom(content)
	}

	if opts.save {
		store, err := storage.Open(ctx, cfg.Storage.Path)
		if err != nil {
			return nil, err
		}
		conv, err := store.CreateConversation(ctx, job.title)
		if err != nil {
			store.Close()
			return nil, err
		}
		job.store = store
		job.conversationID = conv.ID
	}
	return job, nil
}

// sessionOptions returns the per-session options shared by both front ends.
// The typing cue outlives individual sessions; release closes it once the
// render is over.
func (a *App) sessionOptions(job *renderJob) (opts []render.Option, release func()) {
	release = func() {}
	if job.cfg.Render.Sound && a.isTTY() {
		bell := render.NewBellAudio(a.Out, job.cfg.Render.SoundPerSecond, nil)
		opts = append(opts, render.WithAudio(bell))
		release = func() {
			if err := bell.Close(); err != nil {
				a.logger.Debug("audio close failed", "error", err)
			}
		}
	}
	return opts, release
}

func (a *App) startRecorder(ctx context.Context, job *renderJob, c *stream.Controller) (*stream.Recorder, error) {
	if job.store == nil {
		return nil, nil
	}
	return stream.NewRecorder(ctx, job.store, job.conversationID, c,
		stream.WithRecorderLogger(a.logger))
}

// =============================================================================
// PLAIN OUTPUT
// =============================================================================

func (a *App) renderPlain(ctx context.Context, job *renderJob) error {
	// Pipes and files get the raw text; terminals get wrapping and styling.
	var (
		sink   render.Sink
		writer *render.WriterSink
	)
	if a.isTTY() {
		sink = render.NewTerminalSink(a.Out,
			render.WithColorProfile(ColorProfile(a.Out)),
			render.WithWrapWidth(min(job.cfg.UI.WordWrap, TerminalWidth(a.Out))))
	} else {
		writer = render.NewWriterSink(a.Out, "")
		sink = writer
	}

	sessOpts, releaseAudio := a.sessionOptions(job)
	defer releaseAudio()

	ctrlOpts := []stream.Option{
		stream.WithSpeed(job.speed),
		stream.WithFrames(render.NewTimerFrames(job.cfg.FrameInterval())),
		stream.WithSink(sink),
		stream.WithLogger(a.logger),
		stream.WithSessionOptions(sessOpts...),
	}
	if job.adaptive {
		ctrlOpts = append(ctrlOpts, stream.WithAdaptiveSpeed())
	}
	c, err := stream.NewController(ctrlOpts...)
	if err != nil {
		return err
	}
	defer c.Close()

	done := make(chan struct{})
	var once sync.Once
	unsubscribe := c.Subscribe(func(s stream.Snapshot) {
		if s.IsComplete && s.InputClosed {
			once.Do(func() { close(done) })
		}
	})
	defer unsubscribe()

	rec, err := a.startRecorder(ctx, job, c)
	if err != nil {
		return err
	}

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() {
		for chunk := range source.Stream(feedCtx, job.chunks, job.interval) {
			if err := c.Feed(chunk); err != nil {
				a.logger.Warn("feed failed", "error", err)
				return
			}
		}
		if feedCtx.Err() == nil {
			_ = c.Finish()
		}
	}()

	var runErr error
	select {
	case <-done:
	case <-ctx.Done():
		runErr = ctx.Err()
	}
	if writer != nil && runErr == nil {
		runErr = writer.Err()
	}
	if job.content != "" && !strings.HasSuffix(job.content, "\n") {
		fmt.Fprintln(a.Out)
	}

	if rec != nil {
		if err := rec.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// =============================================================================
// INTERACTIVE VIEW
// =============================================================================

func (a *App) renderTUI(ctx context.Context, job *renderJob) error {
	theme, err := styles.NewTheme(job.cfg.UI.Theme)
	if err != nil {
		return err
	}

	sessOpts, releaseAudio := a.sessionOptions(job)
	defer releaseAudio()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	view, err := chat.NewStreamView(chat.Config{
		Title:          job.title,
		Speed:          job.speed,
		Adaptive:       job.adaptive,
		FrameInterval:  job.cfg.FrameInterval(),
		Theme:          theme,
		WordWrap:       job.cfg.UI.WordWrap,
		Markdown:       job.cfg.UI.Markdown,
		ShowMetrics:    job.cfg.UI.ShowMetrics,
		SessionOptions: sessOpts,
		Logger:         a.logger,
		Source:         source.Stream(feedCtx, job.chunks, job.interval),
	})
	if err != nil {
		return err
	}

	rec, err := a.startRecorder(ctx, job, view.Controller())
	if err != nil {
		return err
	}

	progOpts := []tea.ProgramOption{
		tea.WithContext(ctx),
		tea.WithOutput(a.Out),
		tea.WithAltScreen(),
	}
	if job.fromStdin {
		progOpts = append(progOpts, tea.WithInputTTY())
	} else {
		progOpts = append(progOpts, tea.WithInput(a.In))
	}
	p := tea.NewProgram(view, progOpts...)

	if path := a.configFile(); path != "" {
		w, err := config.NewWatcher(path, func(cfg *config.Config) {
			if cfg.Adaptive() {
				return
			}
			if speed, err := cfg.SpeedConfig(); err == nil {
				p.Send(chat.SpeedMsg{Speed: speed})
			}
		}, config.WithWatchLogger(a.logger))
		if err != nil {
			a.logger.Warn("config hot reload disabled", "error", err)
		} else {
			defer w.Close()
		}
	}

	final, runErr := p.Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = ctx.Err()
	}
	if v, ok := final.(chat.StreamView); ok && v.Err() != nil && runErr == nil {
		runErr = v.Err()
	}

	if rec != nil {
		if err := rec.Close(); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}
