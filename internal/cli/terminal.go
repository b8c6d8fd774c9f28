package cli

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/bastiangx/dotsearch/internal/utils"
	"github.com/bastiangx/dotsearch/pkg/query"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	freeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "#286983", Dark: "#9ccfd8"})
	reservedStyle = lipgloss.NewStyle().Faint(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#b4637a", Dark: "#eb6f92"})
	mutedStyle = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#797593", Dark: "#908caa"})
	errorStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#b4637a", Dark: "#eb6f92"})
)

// Renderer writes styled CLI output. Its methods are safe to call from the
// input loop and the result subscriber at the same time.
type Renderer struct {
	mu  sync.Mutex
	out io.Writer
}

// NewRenderer creates a Renderer writing to out.
func NewRenderer(out io.Writer) *Renderer {
	return &Renderer{out: out}
}

// Banner prints the usage header.
func (r *Renderer) Banner() {
	r.println(titleStyle.Render("dotsearch"))
	r.println(mutedStyle.Render("words | prefixes | postfixes | min | max   (:stats, :retry, :q)"))
}

// Prompt prints the input prompt.
func (r *Renderer) Prompt() {
	r.print(mutedStyle.Render("> "))
}

// Result prints one published result.
func (r *Renderer) Result(res query.Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s %s\n", titleStyle.Render("free"), mutedStyle.Render("("+utils.FormatWithCommas(len(res.Free))+")"))
	for _, name := range res.Free {
		b.WriteString("  " + freeStyle.Render(name) + "\n")
	}
	fmt.Fprintf(&b, "%s %s\n", titleStyle.Render("reserved"), mutedStyle.Render("("+utils.FormatWithCommas(len(res.Reserved))+")"))
	for _, name := range res.Reserved {
		b.WriteString("  " + reservedStyle.Render(name) + "\n")
	}
	r.print(b.String())
}

// Stats prints session counters in key order.
func (r *Renderer) Stats(stats map[string]int) {
	parts := make([]string, 0, len(stats))
	for _, k := range slices.Sorted(maps.Keys(stats)) {
		parts = append(parts, fmt.Sprintf("%s=%d", k, stats[k]))
	}
	r.println(mutedStyle.Render(strings.Join(parts, " ")))
}

// Errorf prints an input error.
func (r *Renderer) Errorf(format string, args ...any) {
	r.println(errorStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *Renderer) print(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, s)
}

func (r *Renderer) println(s string) {
	r.print(s + "\n")
}
