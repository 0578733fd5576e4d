// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/rigrun-stream/internal/render"
	"github.com/jeranaias/rigrun-stream/internal/stream"
	"github.com/jeranaias/rigrun-stream/internal/ui/components"
	"github.com/jeranaias/rigrun-stream/internal/ui/styles"
)

// speedSteps is the order Faster and Slower move through.
var speedSteps = []render.Speed{
	render.SpeedSlow,
	render.SpeedNormal,
	render.SpeedFast,
	render.SpeedInstant,
}

// =============================================================================
// CONFIG
// =============================================================================

// Config configures a StreamView.
type Config struct {
	Title          string
	Speed          render.SpeedConfig
	Adaptive       bool
	FrameInterval  time.Duration
	Theme          *styles.Theme
	WordWrap       int
	Markdown       bool
	ShowMetrics    bool
	ExitOnComplete bool
	SessionOptions []render.Option
	Logger         *slog.Logger

	// Source, when set, is read chunk by chunk until closed.
	Source <-chan string
}

// =============================================================================
// STREAM VIEW
// =============================================================================

// StreamView is a Bubble Tea model revealing streamed content.
type StreamView struct {
	cfg        Config
	keys       KeyMap
	theme      *styles.Theme
	frames     *TeaFrames
	controller *stream.Controller
	message    *components.TokenizedMessage

	help     help.Model
	progress progress.Model
	spinner  spinner.Model
	viewport viewport.Model

	logger   *slog.Logger
	speed    render.SpeedConfig
	adaptive bool
	width    int
	height   int
	ready    bool
	ticking  bool
	ended    bool
	quitting bool
	err      error
}

// NewStreamView creates the view and its controller.
func NewStreamView(cfg Config) (StreamView, error) {
	theme := cfg.Theme
	if theme == nil {
		theme = styles.DefaultTheme()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	frames := NewTeaFrames(cfg.FrameInterval)

	opts := []stream.Option{
		stream.WithSpeed(cfg.Speed),
		stream.WithFrames(frames),
		stream.WithLogger(logger),
		stream.WithSessionOptions(cfg.SessionOptions...),
	}
	if cfg.Adaptive {
		opts = append(opts, stream.WithAdaptiveSpeed())
	}
	controller, err := stream.NewController(opts...)
	if err != nil {
		return StreamView{}, err
	}

	wrap := cfg.WordWrap
	if wrap <= 0 {
		wrap = 80
	}

	return StreamView{
		cfg:        cfg,
		keys:       DefaultKeyMap(),
		theme:      theme,
		frames:     frames,
		controller: controller,
		message:    components.NewTokenizedMessage(theme, wrap, cfg.Markdown),
		help:       help.New(),
		progress: progress.New(
			progress.WithGradient(styles.GradientStart, styles.GradientEnd),
			progress.WithoutPercentage(),
			progress.WithWidth(20),
		),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Line)),
		logger:   logger,
		speed:    cfg.Speed,
		adaptive: cfg.Adaptive,
	}, nil
}

// Controller returns the controller driving the view, for recorders and
// tests.
func (v StreamView) Controller() *stream.Controller {
	return v.controller
}

// Err returns the upstream error, if one was reported.
func (v StreamView) Err() error {
	return v.err
}

// Init starts the frame loop and the source reader.
func (v StreamView) Init() tea.Cmd {
	cmds := []tea.Cmd{v.spinner.Tick}
	if v.cfg.Source != nil {
		cmds = append(cmds, WaitForChunk(v.cfg.Source))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model.
func (v StreamView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return v.handleResize(msg)

	case tea.KeyMsg:
		return v.handleKey(msg)

	case FrameMsg:
		return v.handleFrame(msg)

	case ContentMsg:
		if err := v.controller.SetContent(msg.Content); err != nil {
			v.err = err
		}
		return v.startTicking()

	case ChunkMsg:
		if err := v.controller.Feed(msg.Text); err != nil {
			v.err = err
		}
		m, cmd := v.startTicking()
		if v.cfg.Source != nil {
			cmd = tea.Batch(cmd, WaitForChunk(v.cfg.Source))
		}
		return m, cmd

	case EndMsg:
		v.ended = true
		if err := v.controller.Finish(); err != nil {
			v.err = err
		}
		return v.startTicking()

	case ErrMsg:
		v.err = msg.Err
		v.ended = true
		if err := v.controller.Finish(); err != nil {
			v.logger.Debug("finish after error failed", "error", err)
		}
		return v.startTicking()

	case SpeedMsg:
		if err := v.controller.SetSpeed(msg.Speed); err != nil {
			v.err = err
			return v, nil
		}
		v.speed = msg.Speed
		v.adaptive = false
		return v, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		v.spinner, cmd = v.spinner.Update(msg)
		return v, cmd
	}
	return v, nil
}

func (v StreamView) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	v.width = msg.Width
	v.height = msg.Height

	const (
		titleHeight  = 2
		statusHeight = 2
		helpHeight   = 1
	)
	chrome := statusHeight + helpHeight
	if v.cfg.Title != "" {
		chrome += titleHeight
	}
	height := msg.Height - chrome
	if height < 1 {
		height = 1
	}

	if !v.ready {
		v.viewport = viewport.New(msg.Width, height)
		v.ready = true
	} else {
		v.viewport.Width = msg.Width
		v.viewport.Height = height
	}

	wrap := v.cfg.WordWrap
	if wrap <= 0 || wrap > msg.Width {
		wrap = msg.Width
	}
	v.message.SetWidth(wrap)
	v.help.Width = msg.Width
	v.refresh()
	return v, nil
}

func (v StreamView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, v.keys.Quit):
		v.quitting = true
		v.controller.Close()
		return v, tea.Quit

	case key.Matches(msg, v.keys.Pause):
		v.controller.Toggle()
		return v.startTicking()

	case key.Matches(msg, v.keys.Skip):
		v.controller.Skip()
		v.refresh()
		return v.afterFrame()

	case key.Matches(msg, v.keys.Faster):
		return v.stepSpeed(1)

	case key.Matches(msg, v.keys.Slower):
		return v.stepSpeed(-1)

	case key.Matches(msg, v.keys.Help):
		v.help.ShowAll = !v.help.ShowAll
		return v, nil

	case key.Matches(msg, v.keys.Up):
		v.viewport.LineUp(1)
	case key.Matches(msg, v.keys.Down):
		v.viewport.LineDown(1)
	case key.Matches(msg, v.keys.PageUp):
		v.viewport.HalfViewUp()
	case key.Matches(msg, v.keys.PageDown):
		v.viewport.HalfViewDown()
	}
	return v, nil
}

func (v StreamView) stepSpeed(dir int) (tea.Model, tea.Cmd) {
	idx := 1
	if !v.speed.Custom && !v.adaptive {
		for i, s := range speedSteps {
			if s == v.speed.Preset {
				idx = i
			}
		}
	}
	idx += dir
	if idx < 0 {
		idx = 0
	}
	if idx >= len(speedSteps) {
		idx = len(speedSteps) - 1
	}

	cfg := render.PresetSpeed(speedSteps[idx])
	if err := v.controller.SetSpeed(cfg); err != nil {
		v.err = err
		return v, nil
	}
	v.speed = cfg
	v.adaptive = false
	return v, nil
}

func (v StreamView) handleFrame(msg FrameMsg) (tea.Model, tea.Cmd) {
	v.ticking = false
	v.frames.Fire(msg.Time)
	v.refresh()
	return v.afterFrame()
}

// afterFrame keeps the tick loop alive until the content is complete and
// upstream has ended.
func (v StreamView) afterFrame() (tea.Model, tea.Cmd) {
	snap := v.controller.Snapshot()
	if snap.IsComplete && (v.ended || snap.InputClosed) {
		if v.cfg.ExitOnComplete {
			v.quitting = true
			return v, tea.Quit
		}
		return v, nil
	}
	return v.startTicking()
}

func (v StreamView) startTicking() (tea.Model, tea.Cmd) {
	if v.ticking || v.quitting {
		return v, nil
	}
	v.ticking = true
	return v, v.frames.Tick()
}

// refresh re-renders revealed content into the viewport.
func (v *StreamView) refresh() {
	if !v.ready {
		return
	}
	snap := v.controller.Snapshot()
	content := v.message.Render(snap.DisplayedContent, snap.IsComplete && snap.InputClosed)
	follow := v.viewport.AtBottom()
	v.viewport.SetContent(lipgloss.NewStyle().Width(v.message.Width).Render(content))
	if follow || !snap.IsComplete {
		v.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the model.
func (v StreamView) View() string {
	snap := v.controller.Snapshot()
	var sb strings.Builder

	if v.cfg.Title != "" {
		sb.WriteString(v.theme.Heading.Render(v.cfg.Title))
		sb.WriteString("\n\n")
	}

	if v.ready {
		sb.WriteString(v.viewport.View())
	} else {
		sb.WriteString(v.message.Render(snap.DisplayedContent, snap.IsComplete && snap.InputClosed))
	}
	sb.WriteString("\n")

	if v.err != nil {
		sb.WriteString(v.theme.Error.Render("error: " + v.err.Error()))
		sb.WriteString("\n")
	}

	if v.cfg.ShowMetrics {
		sb.WriteString(v.statusLine(snap))
		sb.WriteString("\n")
	}
	if !v.quitting {
		sb.WriteString(v.help.View(v.keys))
	}
	return sb.String()
}

func (v StreamView) statusLine(snap stream.Snapshot) string {
	state := render.StateIdle
	switch {
	case snap.IsComplete:
		state = render.StateComplete
	case snap.IsPaused:
		state = render.StatePaused
	case snap.Metrics.TotalTokens > 0 || snap.Metrics.IsActive:
		state = render.StateRunning
	}

	status := components.StatusFromMetrics(state, snap.Metrics, v.speedLabel())
	status.Progress = snap.ProgressPercent
	status.Waiting = state == render.StateRunning && !snap.InputClosed &&
		snap.Metrics.CurrentIndex >= snap.Metrics.TotalTokens

	line := components.RenderStatusLine(v.theme, status, v.progress.ViewAs(snap.ProgressPercent/100), v.width)
	if status.Waiting {
		line = v.spinner.View() + " " + line
	}
	return line
}

func (v StreamView) speedLabel() string {
	if v.adaptive {
		return "adaptive"
	}
	return v.speed.String()
}
