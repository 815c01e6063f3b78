// Package notify delivers user-facing lifecycle messages. The supervisor
// reports permission problems through it and the reloader announces
// start, restart and stop progress.
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Image classifies a notification
type Image string

const (
	ImagePending Image = "pending"
	ImageSuccess Image = "success"
	ImageFailed  Image = "failed"
)

// Options decorate a notification
type Options struct {
	Title string
	Image Image
}

// Notifier receives informational lines and notifications
type Notifier interface {
	Info(msg string)
	Notify(msg string, opts Options)
}

// Terminal writes notifications to a terminal, colored when the writer
// supports it.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer

	infoStyle    lipgloss.Style
	titleStyle   lipgloss.Style
	imageStyles  map[Image]lipgloss.Style
	defaultStyle lipgloss.Style
}

// NewTerminal creates a Terminal notifier writing to w
func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		out:        w,
		infoStyle:  r.NewStyle().Foreground(dimColor),
		titleStyle: r.NewStyle().Bold(true),
		imageStyles: map[Image]lipgloss.Style{
			ImagePending: r.NewStyle().Foreground(pendingColor),
			ImageSuccess: r.NewStyle().Foreground(successColor).Bold(true),
			ImageFailed:  r.NewStyle().Foreground(failedColor).Bold(true),
		},
		defaultStyle: r.NewStyle(),
	}
}

// Info writes a plain informational line
func (t *Terminal) Info(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintln(t.out, t.infoStyle.Render(msg))
}

// Notify writes a notification prefixed by its image badge and title
func (t *Terminal) Notify(msg string, opts Options) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style, ok := t.imageStyles[opts.Image]
	if !ok {
		style = t.defaultStyle
	}

	line := style.Render(badge(opts.Image))
	if opts.Title != "" {
		line += " " + t.titleStyle.Render(opts.Title)
	}
	line += " " + msg
	fmt.Fprintln(t.out, line)
}

func badge(img Image) string {
	if img == "" {
		return "[info]"
	}
	return "[" + string(img) + "]"
}

// Nop discards everything
type Nop struct{}

func (Nop) Info(string)            {}
func (Nop) Notify(string, Options) {}
