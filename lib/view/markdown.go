// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// bodyMarkdown parses with the same extensions the client renders
// formatted_body with on send.
var bodyMarkdown = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))

// bodyStyles pins the ANSI256 profile. lipgloss otherwise re-detects
// the profile from the environment and drops color when stdout is not a
// terminal.
var bodyStyles = func() *lipgloss.Renderer {
	renderer := lipgloss.NewRenderer(io.Discard, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return renderer
}()

const (
	wrapBreakpoints = " ,.;-+|"

	// minBodyWidth keeps deeply quoted or nested text readable on
	// narrow terminals.
	minBodyWidth = 8
)

// renderBody renders a message body as styled terminal text wrapped to
// width. Line breaks in the body are kept: chat messages are not
// hard-wrapped prose.
func renderBody(body string, theme Theme, width int) string {
	source := []byte(body)
	document := bodyMarkdown.Parser().Parse(text.NewReader(source))
	writer := &bodyWriter{source: source, theme: theme, width: max(width, 1)}
	_ = ast.Walk(document, writer.walk)
	return strings.Join(writer.lines, "\n")
}

// bodyWriter accumulates inline content per block and wraps it when the
// block closes.
type bodyWriter struct {
	source []byte
	theme  Theme
	width  int

	lines  []string
	inline strings.Builder

	bold, italic, strike int

	// indents holds one entry per open quote or list item. bullet, when
	// set, replaces the indentation of the next line written.
	indents []string
	bullet  string
	lists   []bodyList
}

type bodyList struct {
	ordered bool
	next    int
}

func (w *bodyWriter) walk(node ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := node.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		if !entering {
			w.flush()
		}

	case *ast.Heading:
		if entering {
			w.bold++
		} else {
			w.bold--
			w.flush()
		}

	case *ast.FencedCodeBlock:
		if entering {
			w.code(blockText(node.Lines(), w.source), string(node.Language(w.source)))
		}
		return ast.WalkSkipChildren, nil

	case *ast.CodeBlock:
		if entering {
			w.code(blockText(node.Lines(), w.source), "")
		}
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock:
		if entering {
			w.emit(w.faint(strings.TrimRight(blockText(node.Lines(), w.source), "\n")))
		}
		return ast.WalkSkipChildren, nil

	case *ast.Blockquote:
		if entering {
			w.indents = append(w.indents, "│ ")
		} else {
			w.indents = w.indents[:len(w.indents)-1]
		}

	case *ast.List:
		if entering {
			w.lists = append(w.lists, bodyList{ordered: node.IsOrdered(), next: node.Start})
		} else {
			w.lists = w.lists[:len(w.lists)-1]
		}

	case *ast.ListItem:
		if entering {
			marker := "- "
			if len(w.lists) > 0 && w.lists[len(w.lists)-1].ordered {
				top := &w.lists[len(w.lists)-1]
				marker = fmt.Sprintf("%d. ", top.next)
				top.next++
			}
			w.bullet = w.indent() + marker
			w.indents = append(w.indents, strings.Repeat(" ", len(marker)))
		} else {
			if w.bullet != "" {
				w.emit("")
			}
			w.indents = w.indents[:len(w.indents)-1]
		}

	case *ast.ThematicBreak:
		if entering {
			rule := strings.Repeat("─", max(w.width-ansi.StringWidth(w.indent()), 1))
			w.emit(bodyStyles.NewStyle().Foreground(w.theme.BorderColor).Render(rule))
		}

	case *ast.Text:
		if entering {
			w.inline.WriteString(w.styled(string(node.Segment.Value(w.source))))
			if node.SoftLineBreak() || node.HardLineBreak() {
				w.inline.WriteString("\n")
			}
		}

	case *ast.String:
		if entering {
			w.inline.WriteString(w.styled(string(node.Value)))
		}

	case *ast.Emphasis:
		counter := &w.italic
		if node.Level >= 2 {
			counter = &w.bold
		}
		if entering {
			*counter++
		} else {
			*counter--
		}

	case *extast.Strikethrough:
		if entering {
			w.strike++
		} else {
			w.strike--
		}

	case *ast.CodeSpan:
		if entering {
			w.inline.WriteString(w.faint(inlineText(node, w.source)))
		}
		return ast.WalkSkipChildren, nil

	case *ast.Link:
		if !entering && len(node.Destination) > 0 {
			w.inline.WriteString(" " + w.faint("("+string(node.Destination)+")"))
		}

	case *ast.AutoLink:
		if entering {
			w.inline.WriteString(bodyStyles.NewStyle().
				Foreground(w.theme.FaintText).
				Underline(true).
				Render(string(node.URL(w.source))))
		}

	case *ast.Image:
		if entering {
			w.inline.WriteString(w.faint("[image: " + inlineText(node, w.source) + "]"))
		}
		return ast.WalkSkipChildren, nil

	case *ast.RawHTML:
		if entering {
			var raw strings.Builder
			for index := range node.Segments.Len() {
				segment := node.Segments.At(index)
				raw.Write(segment.Value(w.source))
			}
			w.inline.WriteString(w.faint(raw.String()))
		}
	}
	return ast.WalkContinue, nil
}

func (w *bodyWriter) indent() string {
	return strings.Join(w.indents, "")
}

// emit appends content line by line under the current indentation.
func (w *bodyWriter) emit(content string) {
	for _, line := range strings.Split(content, "\n") {
		lead := w.indent()
		if w.bullet != "" {
			lead, w.bullet = w.bullet, ""
		}
		w.lines = append(w.lines, lead+line)
	}
}

// flush wraps the pending inline content to the width left after
// indentation and emits it.
func (w *bodyWriter) flush() {
	content := w.inline.String()
	w.inline.Reset()
	if content == "" {
		return
	}
	available := max(w.width-ansi.StringWidth(w.indent()), minBodyWidth)
	w.emit(ansi.Wrap(content, available, wrapBreakpoints))
}

// code emits a code block, highlighted when it names a language chroma
// knows. Long lines are broken rather than word-wrapped.
func (w *bodyWriter) code(source, language string) {
	source = strings.TrimRight(source, "\n")
	rendered := w.faint(source)
	if language != "" {
		var highlighted strings.Builder
		if err := quick.Highlight(&highlighted, source, language, "terminal256", "monokai"); err == nil {
			rendered = strings.TrimRight(highlighted.String(), "\n")
		}
	}
	available := max(w.width-ansi.StringWidth(w.indent()), minBodyWidth)
	w.emit(ansi.Hardwrap(rendered, available, true))
}

func (w *bodyWriter) styled(content string) string {
	return bodyStyles.NewStyle().
		Foreground(w.theme.NormalText).
		Bold(w.bold > 0).
		Italic(w.italic > 0).
		Strikethrough(w.strike > 0).
		Render(content)
}

func (w *bodyWriter) faint(content string) string {
	return bodyStyles.NewStyle().Foreground(w.theme.FaintText).Render(content)
}

func blockText(lines *text.Segments, source []byte) string {
	var out strings.Builder
	for index := range lines.Len() {
		segment := lines.At(index)
		out.Write(segment.Value(source))
	}
	return out.String()
}

// inlineText is the unstyled text under node.
func inlineText(node ast.Node, source []byte) string {
	var out strings.Builder
	_ = ast.Walk(node, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch child := child.(type) {
		case *ast.Text:
			out.Write(child.Segment.Value(source))
		case *ast.String:
			out.Write(child.Value)
		}
		return ast.WalkContinue, nil
	})
	return out.String()
}
