package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"text/tabwriter"
	"time"
)

// Engine plays one entry at a time. Play always starts from the beginning.
type Engine interface {
	Play(ctx context.Context, e Entry) error
	Stop() error
}

// ProcessEngine hands each track to an external player process.
type ProcessEngine struct {
	command string
	args    []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

func NewProcessEngine(command, args string) *ProcessEngine {
	return &ProcessEngine{command: command, args: strings.Fields(args)}
}

func (p *ProcessEngine) Play(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.Stop(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	args := append(append([]string{}, p.args...), e.Locator)
	cmd := exec.Command(p.command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", p.command, err)
	}
	log.Printf("▶️ Playing %q (%s)", e.Title, e.Locator)

	done := make(chan struct{})
	p.cmd, p.done = cmd, done

	go func() {
		if err := cmd.Wait(); err != nil {
			log.Printf("⏹️ Player exited for %q: %v", e.Title, err)
		}
		close(done)
	}()
	return nil
}

// Stop kills the running player, if any, and waits for it to exit.
func (p *ProcessEngine) Stop() error {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd, p.done = nil, nil
	p.mu.Unlock()

	if cmd == nil {
		return nil
	}

	select {
	case <-done:
		return nil
	default:
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-done
	return nil
}

// DryEngine prints what would be played instead of playing it.
type DryEngine struct {
	mu      sync.Mutex
	w       *tabwriter.Writer
	playing string
	header  bool
	now     func() time.Time
}

func NewDryEngine(out io.Writer) *DryEngine {
	return &DryEngine{
		w:   tabwriter.NewWriter(out, 0, 0, 3, ' ', 0),
		now: time.Now,
	}
}

func (d *DryEngine) Play(_ context.Context, e Entry) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	source := "static"
	if e.BlobID != "" {
		source = "blob"
	}
	d.row("PLAY", e.Title, source, e.Locator)
	d.playing = e.Title
	return nil
}

func (d *DryEngine) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.playing == "" {
		return nil
	}
	d.row("STOP", d.playing, "---", "---")
	d.playing = ""
	return nil
}

func (d *DryEngine) row(action, title, source, locator string) {
	if !d.header {
		fmt.Fprintln(d.w, "TIME\tACTION\tTITLE\tSOURCE\tLOCATOR")
		fmt.Fprintln(d.w, "----\t------\t-----\t------\t-------")
		d.header = true
	}
	fmt.Fprintf(d.w, "%s\t%s\t%s\t%s\t%s\n",
		d.now().Format("15:04:05"), action, truncate(title, 30), source, locator)
	d.w.Flush()
}

// truncate shortens s to max runes so multi-byte titles are never split.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) > max {
		return string(r[:max-3]) + "..."
	}
	return s
}
