// Package diagram is the built-in flowchart engine used by the deferred
// coordinator. It understands a compact subset of the mermaid flowchart
// syntax and lays graphs out in ranks, producing standalone SVG.
package diagram

import (
	"fmt"
	"strings"
)

// Direction is the flow direction of a graph.
type Direction string

const (
	TopDown   Direction = "TD"
	BottomUp  Direction = "BT"
	LeftRight Direction = "LR"
	RightLeft Direction = "RL"
)

// Shape of a node.
type Shape int

const (
	ShapeRect Shape = iota
	ShapeRound
	ShapeDiamond
	ShapeCircle
)

// Node is a graph vertex.
type Node struct {
	ID    string
	Label string
	Shape Shape
	order int
}

// EdgeStyle describes how an edge is drawn.
type EdgeStyle int

const (
	EdgeSolid EdgeStyle = iota
	EdgeDotted
	EdgeThick
)

// Edge connects two nodes.
type Edge struct {
	From  string
	To    string
	Label string
	Arrow bool
	Style EdgeStyle
}

// Graph is a parsed flowchart.
type Graph struct {
	Direction Direction
	Nodes     []*Node
	Edges     []Edge
	byID      map[string]*Node
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.byID[id]
	return n, ok
}

// SyntaxError reports where parsing stopped.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error on line %d: %s", e.Line, e.Msg)
}

// Parse reads a flowchart definition.
func Parse(src string) (*Graph, error) {
	g := &Graph{Direction: TopDown, byID: make(map[string]*Node)}
	header := false

	for i, raw := range strings.Split(strings.ReplaceAll(src, "\r\n", "\n"), "\n") {
		lineNo := i + 1
		line := stripComment(raw)
		for _, stmt := range strings.Split(line, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if !header {
				dir, err := parseHeader(stmt)
				if err != nil {
					return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
				}
				g.Direction = dir
				header = true
				continue
			}
			if ignoredStatement(stmt) {
				continue
			}
			if err := g.parseStatement(stmt); err != nil {
				return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
			}
		}
	}

	if !header {
		return nil, &SyntaxError{Line: 1, Msg: "diagram is empty"}
	}
	if len(g.Nodes) == 0 {
		return nil, &SyntaxError{Line: 1, Msg: "diagram has no nodes"}
	}
	return g, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "%%"); i >= 0 {
		return line[:i]
	}
	return line
}

func parseHeader(stmt string) (Direction, error) {
	fields := strings.Fields(stmt)
	switch strings.ToLower(fields[0]) {
	case "graph", "flowchart":
	default:
		return "", fmt.Errorf("expected \"graph\" or \"flowchart\", got %q", fields[0])
	}
	if len(fields) == 1 {
		return TopDown, nil
	}
	if len(fields) > 2 {
		return "", fmt.Errorf("unexpected %q after direction", strings.Join(fields[2:], " "))
	}
	switch strings.ToUpper(fields[1]) {
	case "TD", "TB":
		return TopDown, nil
	case "BT":
		return BottomUp, nil
	case "LR":
		return LeftRight, nil
	case "RL":
		return RightLeft, nil
	default:
		return "", fmt.Errorf("unknown direction %q", fields[1])
	}
}

// Styling and interaction statements are accepted and ignored; subgraphs are
// flattened.
func ignoredStatement(stmt string) bool {
	first := strings.ToLower(strings.Fields(stmt)[0])
	switch first {
	case "classdef", "class", "style", "linkstyle", "click", "subgraph", "end", "direction":
		return true
	}
	return false
}

type cursor struct {
	s   string
	pos int
}

func (c *cursor) eof() bool { return c.pos >= len(c.s) }

func (c *cursor) skipSpace() {
	for c.pos < len(c.s) && (c.s[c.pos] == ' ' || c.s[c.pos] == '\t') {
		c.pos++
	}
}

func (c *cursor) hasPrefix(p string) bool {
	return strings.HasPrefix(c.s[c.pos:], p)
}

func isIDChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (g *Graph) parseStatement(stmt string) error {
	c := &cursor{s: stmt}
	from, err := g.parseNode(c)
	if err != nil {
		return err
	}
	for {
		c.skipSpace()
		if c.eof() {
			return nil
		}
		arrow, style, label, err := parseLink(c)
		if err != nil {
			return err
		}
		c.skipSpace()
		if lbl, ok, err := parsePipeLabel(c); err != nil {
			return err
		} else if ok {
			label = lbl
		}
		c.skipSpace()
		to, err := g.parseNode(c)
		if err != nil {
			return err
		}
		g.Edges = append(g.Edges, Edge{From: from.ID, To: to.ID, Label: label, Arrow: arrow, Style: style})
		from = to
	}
}

func (g *Graph) parseNode(c *cursor) (*Node, error) {
	c.skipSpace()
	start := c.pos
	for c.pos < len(c.s) && isIDChar(c.s[c.pos]) {
		c.pos++
	}
	id := c.s[start:c.pos]
	if id == "" {
		if c.eof() {
			return nil, fmt.Errorf("expected node id at end of statement")
		}
		return nil, fmt.Errorf("expected node id at %q", c.s[c.pos:])
	}

	shape, label, explicit, err := parseShape(c)
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", id, err)
	}

	n, ok := g.byID[id]
	if !ok {
		n = &Node{ID: id, Label: id, Shape: ShapeRect, order: len(g.Nodes)}
		g.byID[id] = n
		g.Nodes = append(g.Nodes, n)
	}
	if explicit {
		n.Label = label
		n.Shape = shape
	}
	return n, nil
}

func parseShape(c *cursor) (Shape, string, bool, error) {
	var shape Shape
	var closer string
	switch {
	case c.hasPrefix("(("):
		shape, closer = ShapeCircle, "))"
		c.pos += 2
	case c.hasPrefix("["):
		shape, closer = ShapeRect, "]"
		c.pos++
	case c.hasPrefix("("):
		shape, closer = ShapeRound, ")"
		c.pos++
	case c.hasPrefix("{"):
		shape, closer = ShapeDiamond, "}"
		c.pos++
	default:
		return ShapeRect, "", false, nil
	}

	label, err := readUntil(c, closer)
	if err != nil {
		return 0, "", false, err
	}
	return shape, label, true, nil
}

// readUntil reads a label up to closer. A label wrapped in double quotes may
// contain the closer.
func readUntil(c *cursor, closer string) (string, error) {
	rest := c.s[c.pos:]
	trimmed := strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(trimmed, `"`) {
		open := len(rest) - len(trimmed)
		end := strings.Index(trimmed[1:], `"`)
		if end < 0 {
			return "", fmt.Errorf("unterminated quoted label")
		}
		label := trimmed[1 : end+1]
		c.pos += open + end + 2
		c.skipSpace()
		if !c.hasPrefix(closer) {
			return "", fmt.Errorf("expected %q after quoted label", closer)
		}
		c.pos += len(closer)
		return label, nil
	}

	end := strings.Index(rest, closer)
	if end < 0 {
		return "", fmt.Errorf("missing %q", closer)
	}
	c.pos += end + len(closer)
	return strings.TrimSpace(rest[:end]), nil
}

var links = []struct {
	token string
	arrow bool
	style EdgeStyle
}{
	{"-.->", true, EdgeDotted},
	{"-.-", false, EdgeDotted},
	{"==>", true, EdgeThick},
	{"===", false, EdgeThick},
	{"-->", true, EdgeSolid},
	{"---", false, EdgeSolid},
}

func parseLink(c *cursor) (arrow bool, style EdgeStyle, label string, err error) {
	for _, l := range links {
		if c.hasPrefix(l.token) {
			c.pos += len(l.token)
			return l.arrow, l.style, "", nil
		}
	}

	// A -- text --> B
	if c.hasPrefix("--") {
		rest := c.s[c.pos+2:]
		for _, closer := range []struct {
			token string
			arrow bool
		}{{"-->", true}, {"---", false}} {
			if i := strings.Index(rest, closer.token); i >= 0 {
				label = strings.TrimSpace(rest[:i])
				c.pos += 2 + i + len(closer.token)
				return closer.arrow, EdgeSolid, label, nil
			}
		}
		return false, 0, "", fmt.Errorf("unterminated link text")
	}

	return false, 0, "", fmt.Errorf("expected a link such as --> at %q", c.s[c.pos:])
}

func parsePipeLabel(c *cursor) (string, bool, error) {
	if !c.hasPrefix("|") {
		return "", false, nil
	}
	end := strings.Index(c.s[c.pos+1:], "|")
	if end < 0 {
		return "", false, fmt.Errorf("unterminated edge label")
	}
	label := strings.TrimSpace(c.s[c.pos+1 : c.pos+1+end])
	c.pos += end + 2
	return strings.Trim(label, `"`), true, nil
}
