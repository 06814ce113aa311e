package bundle

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/conneroisu/assetpack/internal/fragment"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// pageAssets are the URLs a page links to, in document order.
type pageAssets struct {
	Styles  []string
	Scripts []string
	Module  bool
}

// renderPage renders a page template and injects its stylesheets into the
// head and its scripts at the end of the body.
func renderPage(page *fragment.HTMLPage, assets pageAssets) ([]byte, error) {
	var source string
	switch page.Engine {
	case fragment.EngineNunjucks:
		out, err := renderNunjucks(page.Template, page.SearchPaths)
		if err != nil {
			return nil, err
		}
		source = out
	default:
		data, err := os.ReadFile(page.Template)
		if err != nil {
			return nil, fmt.Errorf("reading page template: %w", err)
		}
		source = string(data)
	}

	return injectAssets(source, assets)
}

func injectAssets(source string, assets pageAssets) ([]byte, error) {
	doc, err := html.Parse(strings.NewReader(source))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	head := findElement(doc, atom.Head)
	body := findElement(doc, atom.Body)
	if head == nil || body == nil {
		// html.Parse always synthesises both.
		return nil, fmt.Errorf("page has no head or body")
	}

	for _, href := range assets.Styles {
		head.AppendChild(&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Link,
			Data:     "link",
			Attr: []html.Attribute{
				{Key: "rel", Val: "stylesheet"},
				{Key: "href", Val: href},
			},
		})
	}

	for _, src := range assets.Scripts {
		attrs := []html.Attribute{{Key: "src", Val: src}}
		if assets.Module {
			attrs = append([]html.Attribute{{Key: "type", Val: "module"}}, attrs...)
		}
		body.AppendChild(&html.Node{
			Type:     html.ElementNode,
			DataAtom: atom.Script,
			Data:     "script",
			Attr:     attrs,
		})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
