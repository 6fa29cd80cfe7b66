package cmd

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2ecc71")).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#e74c3c")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#3498db"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7f8c8d"))
)

// awaitWindow is how long a submitted gid may stay unseen by the poll loop
// before it stops holding the process open. Dedup by name can hide a gid.
const awaitWindow = types.ConfirmAttempts*types.ConfirmInterval + 3*types.PollInterval

// consoleConsumer prints engine events and keeps track of unfinished work so
// the CLI knows when it can exit.
type consoleConsumer struct {
	out          io.Writer
	openOnFinish bool
	folder       string
	open         func(string) error

	mu        sync.Mutex
	transfers map[string]bool      // direct transfer ids still running
	awaited   map[string]time.Time // daemon gids not yet seen, with a deadline
	slots     map[string]bool      // gids with an open, unfinished slot
	followers map[string][]string  // gid -> gids that replace it on completion
	finished  map[string]bool      // ids that settled, possibly before Expect saw them
}

func newConsoleConsumer(out io.Writer, openOnFinish bool, folder string) *consoleConsumer {
	return &consoleConsumer{
		out:          out,
		openOnFinish: openOnFinish,
		folder:       folder,
		open:         utils.OpenFolder,
		transfers:    make(map[string]bool),
		awaited:      make(map[string]time.Time),
		slots:        make(map[string]bool),
		followers:    make(map[string][]string),
		finished:     make(map[string]bool),
	}
}

// Consume prints every message until the stream closes.
func (c *consoleConsumer) Consume(stream <-chan any) {
	for msg := range stream {
		c.Handle(msg)
	}
}

// Expect registers the work a batch started.
func (c *consoleConsumer) Expect(results []types.EntryResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range results {
		if r.Error != "" || r.ID == "" || c.finished[r.ID] {
			continue
		}
		if r.Kind == types.KindDirect {
			c.transfers[r.ID] = true
			continue
		}
		if !c.slots[r.ID] {
			c.awaited[r.ID] = now.Add(awaitWindow)
		}
	}
}

// Settled reports whether nothing is outstanding at now.
func (c *consoleConsumer) Settled(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for gid, deadline := range c.awaited {
		if now.After(deadline) {
			utils.Debug("gid %s never showed up, no longer waiting", gid)
			delete(c.awaited, gid)
		}
	}
	return len(c.transfers) == 0 && len(c.awaited) == 0 && len(c.slots) == 0
}

// Observe folds a listing into the outstanding set, covering events a slow
// console may have dropped.
func (c *consoleConsumer) Observe(ov *types.Overview) {
	if ov == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range ov.Transfers {
		if t.Status == "completed" || t.Status == "error" {
			c.finished[t.ID] = true
			delete(c.transfers, t.ID)
		}
	}
	for _, slot := range ov.Slots {
		if slot.Completed {
			c.finished[slot.ID] = true
			delete(c.slots, slot.ID)
			delete(c.awaited, slot.ID)
		}
	}
}

// Handle updates the outstanding set and prints the message, if it is printable.
func (c *consoleConsumer) Handle(msg any) {
	c.track(msg)

	if line := formatEvent(msg); line != "" {
		fmt.Fprintln(c.out, line)
	}

	if _, ok := msg.(events.DownloadCompleteMsg); ok && c.openOnFinish {
		c.openFolder()
	}
	if m, ok := msg.(events.TransferCompleteMsg); ok && !m.Staging && c.openOnFinish {
		c.openFolder()
	}
}

func (c *consoleConsumer) openFolder() {
	if c.folder == "" || c.open == nil {
		return
	}
	if err := c.open(c.folder); err != nil {
		utils.Debug("open folder %s: %v", c.folder, err)
	}
}

func (c *consoleConsumer) track(msg any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch m := msg.(type) {
	case events.DownloadAddedMsg:
		delete(c.awaited, m.GID)
		c.slots[m.GID] = true
		c.followers[m.GID] = m.Record.FollowedBy
	case events.DownloadUpdatedMsg:
		if len(m.Record.FollowedBy) > 0 {
			c.followers[m.GID] = m.Record.FollowedBy
		}
	case events.DownloadCompleteMsg:
		c.finished[m.GID] = true
		delete(c.slots, m.GID)
		// A magnet's metadata job hands over to the real download
		for _, next := range c.followers[m.GID] {
			if !c.slots[next] && !c.finished[next] {
				c.awaited[next] = time.Now().Add(awaitWindow)
			}
		}
		delete(c.followers, m.GID)
	case events.DownloadErrorMsg:
		c.finished[m.GID] = true
		delete(c.slots, m.GID)
		delete(c.followers, m.GID)
	case events.TransferCompleteMsg:
		c.finished[m.TransferID] = true
		delete(c.transfers, m.TransferID)
	case events.TransferErrorMsg:
		c.finished[m.TransferID] = true
		delete(c.transfers, m.TransferID)
	}
}

// formatEvent renders one engine event as a console line. Progress updates
// and unknown messages render as "".
func formatEvent(msg any) string {
	switch m := msg.(type) {
	case events.DownloadAddedMsg:
		return infoStyle.Render("Added: ") + fmt.Sprintf("%s [%s]", m.Name, shortID(m.GID))
	case events.DownloadCompleteMsg:
		return successStyle.Render("Completed: ") + fmt.Sprintf("%s [%s]", m.Name, shortID(m.GID))
	case events.DownloadErrorMsg:
		return errorStyle.Render("Error: ") + fmt.Sprintf("%s [%s]", m.Name, shortID(m.GID))
	case events.TransferQueuedMsg:
		if m.Staging {
			return mutedStyle.Render(fmt.Sprintf("Fetching metafile: %s", truncate(m.URL, 60)))
		}
		return infoStyle.Render("Queued: ") + fmt.Sprintf("%s [%s]", truncate(m.URL, 60), shortID(m.TransferID))
	case events.TransferCompleteMsg:
		if m.Staging {
			return ""
		}
		return successStyle.Render("Completed: ") + fmt.Sprintf("%s [%s]", m.DestPath, shortID(m.TransferID))
	case events.TransferErrorMsg:
		return errorStyle.Render("Error: ") + fmt.Sprintf("[%s]: %v", shortID(m.TransferID), m.Err)
	case events.EntryFailedMsg:
		return errorStyle.Render("Failed: ") + fmt.Sprintf("%s: %v", truncate(m.Entry.URL, 60), m.Err)
	case events.PollErrorMsg:
		return mutedStyle.Render(fmt.Sprintf("Poll failed: %v", m.Err))
	case events.DaemonStateMsg:
		return mutedStyle.Render("Daemon: " + m.State)
	case events.CleanupMsg:
		if m.Removed == 0 {
			return ""
		}
		return mutedStyle.Render(fmt.Sprintf("Cleared %d finished result(s) from an earlier session", m.Removed))
	}
	return ""
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	if n <= 3 || len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func speedOrDash(bytesPerSec int64) string {
	if s := utils.FormatSpeed(bytesPerSec); s != "" {
		return s
	}
	return "-"
}

func percentOrDash(p int) string {
	if p < 0 {
		return "-"
	}
	return fmt.Sprintf("%d%%", p)
}
