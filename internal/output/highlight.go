package output

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

const syntaxTheme = "monokai"

// HighlightGo renders Go source with terminal colors. It returns src
// unchanged if highlighting fails.
func HighlightGo(src []byte) string {
	lexer := lexers.Get("go")
	if lexer == nil {
		return string(src)
	}
	style := styles.Get(syntaxTheme)
	if style == nil {
		style = styles.Fallback
	}
	formatter := formatters.Get("terminal256")
	if formatter == nil {
		return string(src)
	}

	iterator, err := chroma.Coalesce(lexer).Tokenise(nil, string(src))
	if err != nil {
		return string(src)
	}
	var b strings.Builder
	if err := formatter.Format(&b, style, iterator); err != nil {
		return string(src)
	}
	return b.String()
}
