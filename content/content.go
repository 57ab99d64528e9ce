// Package content validates, converts and renders the ordered blocks that
// make up a post body.
package content

import (
	"bytes"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"portfolio/models"
)

// ValidationError is a client mistake in submitted post data. Its message is
// safe to return to the caller as is.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// raw HTML is dropped: paragraph text comes from an admin form but ends up on public pages
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
)

var headingLevels = map[string]int{
	models.BlockHeading1: 1,
	models.BlockHeading2: 2,
	models.BlockHeading3: 3,
	models.BlockHeading4: 4,
}

// imageURLPattern matches the id at the end of a stored image URL.
var imageURLPattern = regexp.MustCompile(`/api/images/([^/]+)$`)

// Validate checks every block type and returns a normalized copy in which
// heading blocks carry their level.
func Validate(blocks []models.ContentBlock) ([]models.ContentBlock, error) {
	out := make([]models.ContentBlock, 0, len(blocks))
	for i, block := range blocks {
		switch block.Type {
		case models.BlockParagraph, models.BlockImage:
		case models.BlockHeading1, models.BlockHeading2, models.BlockHeading3, models.BlockHeading4:
			want := headingLevels[block.Type]
			if block.Level == 0 {
				block.Level = want
			} else if block.Level != want {
				return nil, invalid("Content block %d: %s must have level %d", i, block.Type, want)
			}
		case "":
			return nil, invalid("Content block %d: type is required", i)
		default:
			return nil, invalid("Content block %d: unknown type %q", i, block.Type)
		}
		out = append(out, block)
	}
	return out, nil
}

// HeadingBlock returns the block type for a heading level, clamped to 1..4.
func HeadingBlock(level int) string {
	switch {
	case level <= 1:
		return models.BlockHeading1
	case level == 2:
		return models.BlockHeading2
	case level == 3:
		return models.BlockHeading3
	default:
		return models.BlockHeading4
	}
}

// FromMarkdown turns a Markdown document into content blocks. Headings map
// to heading blocks, a paragraph holding a single image becomes an image
// block, and any other block keeps its text as a paragraph.
func FromMarkdown(src string) []models.ContentBlock {
	source := []byte(src)
	doc := md.Parser().Parse(text.NewReader(source))

	blocks := []models.ContentBlock{}
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			typ := HeadingBlock(node.Level)
			blocks = append(blocks, models.ContentBlock{
				Type:  typ,
				Level: headingLevels[typ],
				Text:  linesText(node, source),
			})
		case *ast.Paragraph:
			if img, ok := soleImage(node); ok {
				blocks = append(blocks, models.ContentBlock{
					Type:    models.BlockImage,
					Src:     string(img.Destination),
					Alt:     plainText(img, source),
					Caption: string(img.Title),
				})
				continue
			}
			if t := linesText(node, source); t != "" {
				blocks = append(blocks, models.ContentBlock{Type: models.BlockParagraph, Text: t})
			}
		case *ast.ThematicBreak:
		default:
			if t := descendantText(n, source); t != "" {
				blocks = append(blocks, models.ContentBlock{Type: models.BlockParagraph, Text: t})
			}
		}
	}
	return blocks
}

// RenderInline renders paragraph text as Markdown, without the wrapping <p>.
func RenderInline(s string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	out := strings.TrimSpace(buf.String())
	if strings.HasPrefix(out, "<p>") && strings.HasSuffix(out, "</p>") && strings.Count(out, "<p>") == 1 {
		out = strings.TrimSuffix(strings.TrimPrefix(out, "<p>"), "</p>")
	}
	return template.HTML(out)
}

// ImageID extracts the image id from a "/api/images/{id}" URL.
func ImageID(url string) (string, bool) {
	m := imageURLPattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ImageIDs collects the ids of stored images a post points at: the featured
// image and the src of every image block. Order is kept, duplicates dropped.
func ImageIDs(featuredImage string, blocks []models.ContentBlock) []string {
	seen := map[string]bool{}
	var ids []string
	add := func(url string) {
		if id, ok := ImageID(url); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	add(featuredImage)
	for _, block := range blocks {
		if block.Type == models.BlockImage && block.Src != "" {
			add(block.Src)
		}
	}
	return ids
}

func soleImage(p *ast.Paragraph) (*ast.Image, bool) {
	if p.ChildCount() != 1 {
		return nil, false
	}
	img, ok := p.FirstChild().(*ast.Image)
	return img, ok
}

func linesText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		parts = append(parts, strings.TrimRight(string(seg.Value(source)), "\r\n"))
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func plainText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := child.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

func descendantText(n ast.Node, source []byte) string {
	var parts []string
	_ = ast.Walk(n, func(child ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || child.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if t := linesText(child, source); t != "" {
			parts = append(parts, t)
		}
		return ast.WalkContinue, nil
	})
	return strings.Join(parts, "\n")
}
