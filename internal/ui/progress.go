package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/parrotnavy/rn-native-updates/pkg/update"
)

// InstallProgress renders install-state notifications. On a terminal it
// redraws one line; otherwise it prints status changes and every 10%.
type InstallProgress struct {
	out     io.Writer
	isTTY   bool
	colors  *ColorConfig
	indent  string
	last    update.InstallStatus
	lastPct int
	drawn   bool
}

// NewInstallProgress creates a renderer writing to out (stdout if nil).
func NewInstallProgress(out io.Writer, colors *ColorConfig) *InstallProgress {
	if out == nil {
		out = os.Stdout
	}
	isTTY := false
	if f, ok := out.(*os.File); ok {
		isTTY = term.IsTerminal(int(f.Fd()))
	}
	if colors == nil {
		colors = NewColorConfig()
	}
	return &InstallProgress{out: out, isTTY: isTTY, colors: colors, indent: "  ", lastPct: -1}
}

// Update renders one notification.
func (p *InstallProgress) Update(s update.InstallState) {
	if p.isTTY {
		p.renderTTY(s)
		return
	}

	if s.Status != p.last {
		fmt.Fprintf(p.out, "%s%s\n", p.indent, statusLine(s))
		p.last = s.Status
	}
	if s.Status == update.InstallStatusDownloading {
		step := s.DownloadProgress / 10 * 10
		if step > p.lastPct {
			p.lastPct = step
			fmt.Fprintf(p.out, "%sDownloading... %d%%\n", p.indent, step)
		}
	}
}

func (p *InstallProgress) renderTTY(s update.InstallState) {
	width := 80
	if f, ok := p.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			width = w
		}
	}
	barWidth := width - 50 - len(p.indent)
	if barWidth > 40 {
		barWidth = 40
	}

	bytes := ""
	if s.TotalBytesToDownload > 0 {
		bytes = fmt.Sprintf("%s/%s", FormatBytes(s.BytesDownloaded), FormatBytes(s.TotalBytesToDownload))
	}
	// \033[K clears the rest of the line
	fmt.Fprintf(p.out, "\r%s[%s] %3d%%   %-19s %s\033[K",
		p.indent,
		p.colors.Bar(float64(s.DownloadProgress), barWidth),
		s.DownloadProgress,
		bytes,
		p.colors.Description(s.Status.String()),
	)
	p.drawn = true
	p.last = s.Status
}

// Finish ends the progress line.
func (p *InstallProgress) Finish() {
	if p.isTTY && p.drawn {
		fmt.Fprintln(p.out)
	}
}

func statusLine(s update.InstallState) string {
	name := strings.ToUpper(s.Status.String()[:1]) + s.Status.String()[1:]
	if s.TotalBytesToDownload > 0 && s.Status != update.InstallStatusDownloading {
		return fmt.Sprintf("%s (%s)", name, FormatBytes(s.TotalBytesToDownload))
	}
	return name
}

// FormatBytes renders a byte count for humans, e.g. "21 MB".
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.Bytes(uint64(n))
}
