package output

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

const minMarkdownWidth = 20

// renderers caches one glamour renderer per wrap width and style
var renderers = struct {
	sync.Mutex
	m map[rendererKey]*glamour.TermRenderer
}{m: make(map[rendererKey]*glamour.TermRenderer)}

type rendererKey struct {
	width int
	tty   bool
}

// RenderMarkdown renders markdown for stdout, wrapped to the terminal width
func RenderMarkdown(text string) (string, error) {
	return RenderMarkdownWithWidth(text, TerminalWidth(0))
}

// RenderMarkdownWithWidth renders markdown wrapped at width. Output that
// is not a terminal gets the plain notty style.
func RenderMarkdownWithWidth(text string, width int) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	r, err := renderer(max(width, minMarkdownWidth), IsTerminal())
	if err != nil {
		return "", err
	}
	rendered, err := r.Render(text)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(rendered, "\n"), nil
}

func renderer(width int, tty bool) (*glamour.TermRenderer, error) {
	renderers.Lock()
	defer renderers.Unlock()

	key := rendererKey{width: width, tty: tty}
	if r, ok := renderers.m[key]; ok {
		return r, nil
	}

	style := glamour.WithStandardStyle("notty")
	if tty {
		style = glamour.WithAutoStyle()
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil, err
	}
	renderers.m[key] = r
	return r, nil
}
