package leadimage

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/docutag/leadimage/imagekey"
	"github.com/docutag/leadimage/models"
)

// ExtractPlacements walks rendered document HTML and returns one
// Placement per img element, in document order. The file key is taken
// from a data-file-key attribute when the renderer provides one and
// recovered from the src URL otherwise; images with neither are
// skipped.
func ExtractPlacements(r io.Reader) ([]Placement, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var placements []Placement
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "img" {
			if p, ok := placementFromNode(n); ok {
				placements = append(placements, p)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return placements, nil
}

func placementFromNode(n *html.Node) (Placement, bool) {
	var p Placement
	var src string

	for _, attr := range n.Attr {
		switch attr.Key {
		case "data-file-key":
			p.FileKey = attr.Val
		case "src":
			src = attr.Val
		case "width":
			if v, err := strconv.Atoi(attr.Val); err == nil && v > 0 {
				p.DeclaredWidth = &v
			}
		case "height":
			if v, err := strconv.Atoi(attr.Val); err == nil && v > 0 {
				p.DeclaredHeight = &v
			}
		case "data-file-width":
			if v, err := strconv.Atoi(attr.Val); err == nil && v > 0 {
				p.FullWidth = v
			}
		case "data-file-height":
			if v, err := strconv.Atoi(attr.Val); err == nil && v > 0 {
				p.FullHeight = v
			}
		case "class":
			p.Hints = hintsFromClass(attr.Val)
		}
	}

	if p.FileKey == "" && src != "" {
		p.FileKey = imagekey.FromImageURL(src)
	}
	if p.FileKey == "" {
		return Placement{}, false
	}
	return p, true
}

// hintsFromClass maps renderer class tokens to layout hints.
func hintsFromClass(class string) []string {
	var hints []string
	seen := make(map[string]bool)

	add := func(hint string) {
		if !seen[hint] {
			seen[hint] = true
			hints = append(hints, hint)
		}
	}

	for _, token := range strings.Fields(class) {
		switch strings.ToLower(token) {
		case "thumb", "thumbimage":
			add(models.HintThumbnail)
		case "frame", "framed":
			add(models.HintFramed)
		case "frameless":
			add(models.HintFrameless)
		}
	}
	return hints
}
