package diagram

import (
	"fmt"
	"strconv"

	"github.com/beevik/etree"
)

type theme struct {
	fill, stroke, text, edge, background string
}

var themes = map[string]theme{
	"default": {fill: "#ECECFF", stroke: "#9370DB", text: "#333333", edge: "#333333", background: "none"},
	"neutral": {fill: "#EEEEEE", stroke: "#999999", text: "#333333", edge: "#666666", background: "none"},
	"dark":    {fill: "#1F2020", stroke: "#CCCCCC", text: "#E0E0E0", edge: "#CCCCCC", background: "#333333"},
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// renderSVG draws a laid-out graph. idPrefix keeps marker ids unique when
// several diagrams share a page.
func renderSVG(g *Graph, l *layout, cfg Config, idPrefix string) (string, error) {
	th, ok := themes[cfg.Theme]
	if !ok {
		th = themes["default"]
	}
	markerID := idPrefix + "-arrow"

	doc := etree.NewDocument()
	svg := doc.CreateElement("svg")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("class", "tc-diagram-svg")
	svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %s %s", f(l.width), f(l.height)))
	svg.CreateAttr("width", f(l.width))
	svg.CreateAttr("height", f(l.height))
	svg.CreateAttr("role", "img")
	svg.CreateAttr("data-direction", string(g.Direction))

	if th.background != "none" {
		bg := svg.CreateElement("rect")
		bg.CreateAttr("width", "100%")
		bg.CreateAttr("height", "100%")
		bg.CreateAttr("fill", th.background)
	}

	defs := svg.CreateElement("defs")
	marker := defs.CreateElement("marker")
	marker.CreateAttr("id", markerID)
	marker.CreateAttr("viewBox", "0 0 10 10")
	marker.CreateAttr("refX", "9")
	marker.CreateAttr("refY", "5")
	marker.CreateAttr("markerWidth", "8")
	marker.CreateAttr("markerHeight", "8")
	marker.CreateAttr("orient", "auto-start-reverse")
	tip := marker.CreateElement("path")
	tip.CreateAttr("d", "M 0 0 L 10 5 L 0 10 z")
	tip.CreateAttr("fill", th.edge)

	edges := svg.CreateElement("g")
	edges.CreateAttr("class", "tc-edges")
	for _, e := range g.Edges {
		from, to := l.nodes[e.From], l.nodes[e.To]
		if from == nil || to == nil {
			continue
		}
		drawEdge(edges, e, from, to, th, markerID, cfg)
	}

	nodes := svg.CreateElement("g")
	nodes.CreateAttr("class", "tc-nodes")
	for _, p := range l.order {
		drawNode(nodes, p, th, cfg)
	}

	return doc.WriteToString()
}

func drawEdge(parent *etree.Element, e Edge, from, to *placed, th theme, markerID string, cfg Config) {
	if from == to {
		// self loop
		x, y := from.c.x+from.w/2, from.c.y
		p := parent.CreateElement("path")
		p.CreateAttr("class", "tc-edge")
		p.CreateAttr("d", fmt.Sprintf("M %s %s C %s %s %s %s %s %s",
			f(x), f(y-from.h/4), f(x+cfg.NodeSpacing), f(y-from.h), f(x+cfg.NodeSpacing), f(y+from.h), f(x), f(y+from.h/4)))
		styleEdge(p, e, th, markerID)
		return
	}

	start := from.anchor(to.c)
	end := to.anchor(from.c)
	line := parent.CreateElement("path")
	line.CreateAttr("class", "tc-edge")
	line.CreateAttr("data-from", e.From)
	line.CreateAttr("data-to", e.To)
	line.CreateAttr("d", fmt.Sprintf("M %s %s L %s %s", f(start.x), f(start.y), f(end.x), f(end.y)))
	styleEdge(line, e, th, markerID)

	if e.Label != "" {
		t := parent.CreateElement("text")
		t.CreateAttr("class", "tc-edge-label")
		t.CreateAttr("x", f((start.x+end.x)/2))
		t.CreateAttr("y", f((start.y+end.y)/2-cfg.FontSize/3))
		t.CreateAttr("text-anchor", "middle")
		t.CreateAttr("font-size", f(cfg.FontSize*0.85))
		t.CreateAttr("fill", th.text)
		t.SetText(e.Label)
	}
}

func styleEdge(el *etree.Element, e Edge, th theme, markerID string) {
	el.CreateAttr("fill", "none")
	el.CreateAttr("stroke", th.edge)
	switch e.Style {
	case EdgeThick:
		el.CreateAttr("stroke-width", "3")
	case EdgeDotted:
		el.CreateAttr("stroke-width", "1.5")
		el.CreateAttr("stroke-dasharray", "3 3")
	default:
		el.CreateAttr("stroke-width", "1.5")
	}
	if e.Arrow {
		el.CreateAttr("marker-end", "url(#"+markerID+")")
	}
}

func drawNode(parent *etree.Element, p *placed, th theme, cfg Config) {
	grp := parent.CreateElement("g")
	grp.CreateAttr("class", "tc-node")
	grp.CreateAttr("data-node-id", p.node.ID)

	var shape *etree.Element
	switch p.node.Shape {
	case ShapeDiamond:
		shape = grp.CreateElement("polygon")
		shape.CreateAttr("points", fmt.Sprintf("%s,%s %s,%s %s,%s %s,%s",
			f(p.c.x), f(p.c.y-p.h/2),
			f(p.c.x+p.w/2), f(p.c.y),
			f(p.c.x), f(p.c.y+p.h/2),
			f(p.c.x-p.w/2), f(p.c.y)))
	case ShapeCircle:
		shape = grp.CreateElement("circle")
		shape.CreateAttr("cx", f(p.c.x))
		shape.CreateAttr("cy", f(p.c.y))
		shape.CreateAttr("r", f(p.w/2))
	default:
		shape = grp.CreateElement("rect")
		shape.CreateAttr("x", f(p.c.x-p.w/2))
		shape.CreateAttr("y", f(p.c.y-p.h/2))
		shape.CreateAttr("width", f(p.w))
		shape.CreateAttr("height", f(p.h))
		if p.node.Shape == ShapeRound {
			shape.CreateAttr("rx", f(p.h/2))
		} else {
			shape.CreateAttr("rx", "4")
		}
	}
	shape.CreateAttr("fill", th.fill)
	shape.CreateAttr("stroke", th.stroke)
	shape.CreateAttr("stroke-width", "1.5")

	label := grp.CreateElement("text")
	label.CreateAttr("x", f(p.c.x))
	label.CreateAttr("y", f(p.c.y))
	label.CreateAttr("text-anchor", "middle")
	label.CreateAttr("dominant-baseline", "central")
	label.CreateAttr("font-size", f(cfg.FontSize))
	label.CreateAttr("fill", th.text)
	label.SetText(p.node.Label)
}
