package ideabox

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// commentHeadingLevel is the only heading level comments are rendered with.
const commentHeadingLevel = 6

// headingFlattener lowers every heading of a comment, including the ones nested in
// quotes or lists, so that no comment stands out of the discussion.
type headingFlattener struct{}

func (headingFlattener) Transform(doc *ast.Document, reader text.Reader, pc parser.Context) {
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if heading, ok := n.(*ast.Heading); ok && entering {
			heading.Level = commentHeadingLevel
		}
		return ast.WalkContinue, nil
	})
}

var commentMarkdown = goldmark.New(
	goldmark.WithExtensions(
		extension.NewLinkify(
			extension.WithLinkifyAllowedProtocols([][]byte{
				[]byte("http:"),
				[]byte("https:"),
			}),
		),
	),
	goldmark.WithParserOptions(
		parser.WithASTTransformers(util.Prioritized(headingFlattener{}, 100)),
	),
)

// renderText renders the text of a comment as markdown. Raw HTML is omitted by
// goldmark's default renderer, and text that fails to render is escaped as is.
func renderText(body string) string {
	var buf bytes.Buffer
	if err := commentMarkdown.Convert([]byte(body), &buf); err != nil {
		return html.EscapeString(body)
	}

	return buf.String()
}
