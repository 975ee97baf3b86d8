// Package cliui provides terminal helpers for dragon commands: a step spinner,
// shared lipgloss styles and glamour markdown rendering.
package cliui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	KeyStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("111"))
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("229"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	noteStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const frameInterval = 80 * time.Millisecond

// Step runs fn and prints one result line: a mark, msg, elapsed time and
// whatever note fn returns (e.g. "cache hit"). On a terminal a spinner
// animates in place until fn returns.
func Step(w io.Writer, msg string, fn func() (string, error)) error {
	var stop func()
	if isTerminal(w) {
		stop = spin(w, msg)
	}

	start := time.Now()
	note, err := fn()
	elapsed := time.Since(start)

	if stop != nil {
		stop()
	}

	parts := []string{FormatDuration(elapsed)}
	if note != "" {
		parts = append(parts, note)
	}
	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg, noteStyle.Render("("+strings.Join(parts, ", ")+")"))
	return err
}

// spin draws frames until the returned func is called. The func blocks until
// the last frame is written.
func spin(w io.Writer, msg string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(frameInterval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders a summary for the terminal, wrapping at width
// (80 when width <= 0). On failure the raw text is returned with the error.
func RenderMarkdown(text string, width int) (string, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return text, err
	}
	out, err := r.Render(text)
	if err != nil {
		return text, err
	}
	return out, nil
}
