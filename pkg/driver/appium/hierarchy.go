package appium

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/devicelab-dev/appscript/pkg/core"
)

// Node is one element of an Android UI hierarchy dump.
type Node struct {
	Class       string      `json:"class"`
	Text        string      `json:"text,omitempty"`
	ResourceID  string      `json:"resourceId,omitempty"`
	ContentDesc string      `json:"contentDesc,omitempty"`
	Bounds      core.Bounds `json:"bounds"`
	Clickable   bool        `json:"clickable,omitempty"`
	Enabled     bool        `json:"enabled"`
	Displayed   bool        `json:"displayed"`
	Depth       int         `json:"depth"`
}

// Locator suggests the most stable locator for the node: accessibility id,
// then resource-id, then exact text.
func (n *Node) Locator() (By, bool) {
	switch {
	case n.ContentDesc != "":
		return AccessibilityID(n.ContentDesc), true
	case n.ResourceID != "":
		return ID(n.ResourceID), true
	case n.Text != "":
		return NewUiSelector().Text(n.Text).By(), true
	}
	return By{}, false
}

// ParseHierarchy parses UiAutomator2 page source into a flat, depth-first
// list of nodes.
func ParseHierarchy(source string) ([]*Node, error) {
	decoder := xml.NewDecoder(strings.NewReader(source))

	var nodes []*Node
	depth := -1
	foundHierarchy := false

	for {
		token, err := decoder.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("invalid page source: %w", err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "hierarchy" {
				foundHierarchy = true
				continue
			}
			depth++
			nodes = append(nodes, nodeFromElement(t, depth))
		case xml.EndElement:
			if t.Name.Local != "hierarchy" {
				depth--
			}
		}
	}

	if !foundHierarchy {
		return nil, fmt.Errorf("invalid page source: no hierarchy element found")
	}
	return nodes, nil
}

func nodeFromElement(t xml.StartElement, depth int) *Node {
	n := &Node{Class: t.Name.Local, Depth: depth, Displayed: true}
	for _, attr := range t.Attr {
		switch attr.Name.Local {
		case "class":
			n.Class = attr.Value
		case "text":
			n.Text = attr.Value
		case "resource-id":
			n.ResourceID = attr.Value
		case "content-desc":
			n.ContentDesc = attr.Value
		case "bounds":
			n.Bounds = parseBounds(attr.Value)
		case "clickable":
			n.Clickable = attr.Value == "true"
		case "enabled":
			n.Enabled = attr.Value == "true"
		case "displayed":
			n.Displayed = attr.Value != "false"
		}
	}
	return n
}

// parseBounds parses Android bounds string "[x1,y1][x2,y2]".
func parseBounds(s string) core.Bounds {
	s = strings.ReplaceAll(s, "][", ",")
	s = strings.Trim(s, "[]")
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return core.Bounds{}
	}

	x1, _ := strconv.Atoi(parts[0])
	y1, _ := strconv.Atoi(parts[1])
	x2, _ := strconv.Atoi(parts[2])
	y2, _ := strconv.Atoi(parts[3])

	return core.Bounds{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Hierarchy fetches and parses the current page source.
func (c *Client) Hierarchy() ([]*Node, error) {
	source, err := c.Source()
	if err != nil {
		return nil, err
	}
	return ParseHierarchy(source)
}
