package diagram

// Config controls engine geometry and theme.
type Config struct {
	Theme       string  `yaml:"theme" mapstructure:"theme"`
	FontSize    float64 `yaml:"font_size" mapstructure:"font_size"`
	NodeSpacing float64 `yaml:"node_spacing" mapstructure:"node_spacing"`
	RankSpacing float64 `yaml:"rank_spacing" mapstructure:"rank_spacing"`
	MaxNodes    int     `yaml:"max_nodes" mapstructure:"max_nodes"`
}

// DefaultConfig returns the default geometry.
func DefaultConfig() Config {
	return Config{
		Theme:       "default",
		FontSize:    14,
		NodeSpacing: 40,
		RankSpacing: 60,
		MaxNodes:    500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Theme == "" {
		c.Theme = d.Theme
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	if c.NodeSpacing <= 0 {
		c.NodeSpacing = d.NodeSpacing
	}
	if c.RankSpacing <= 0 {
		c.RankSpacing = d.RankSpacing
	}
	if c.MaxNodes <= 0 {
		c.MaxNodes = d.MaxNodes
	}
	return c
}

type point struct{ x, y float64 }

type placed struct {
	node *Node
	rank int
	pos  int
	w, h float64
	c    point
}

type layout struct {
	nodes         map[string]*placed
	order         []*placed
	width, height float64
}

// assignRanks layers the graph by longest path from the roots. Edges that
// close a cycle (found by depth-first search in declaration order) are
// ignored for ranking.
func assignRanks(g *Graph) map[string]int {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	const (
		white = iota
		grey
		black
	)
	state := make(map[string]int, len(g.Nodes))
	var topo []string
	back := make(map[[2]string]bool)

	var visit func(id string)
	visit = func(id string) {
		state[id] = grey
		for _, next := range adj[id] {
			switch state[next] {
			case white:
				visit(next)
			case grey:
				back[[2]string{id, next}] = true
			}
		}
		state[id] = black
		topo = append(topo, id)
	}
	for _, n := range g.Nodes {
		if state[n.ID] == white {
			visit(n.ID)
		}
	}

	rank := make(map[string]int, len(g.Nodes))
	for i := len(topo) - 1; i >= 0; i-- {
		id := topo[i]
		for _, next := range adj[id] {
			if back[[2]string{id, next}] || next == id {
				continue
			}
			if rank[id]+1 > rank[next] {
				rank[next] = rank[id] + 1
			}
		}
	}
	return rank
}

func nodeSize(n *Node, cfg Config) (float64, float64) {
	charW := cfg.FontSize * 0.6
	w := float64(len([]rune(n.Label)))*charW + 2*cfg.FontSize
	if w < 4*cfg.FontSize {
		w = 4 * cfg.FontSize
	}
	h := cfg.FontSize * 2.8
	switch n.Shape {
	case ShapeDiamond:
		w *= 1.4
		h *= 1.5
	case ShapeCircle:
		if w > h {
			h = w
		} else {
			w = h
		}
	}
	return w, h
}

func computeLayout(g *Graph, cfg Config) *layout {
	ranks := assignRanks(g)
	maxRank := 0
	byRank := make(map[int][]*placed)
	l := &layout{nodes: make(map[string]*placed, len(g.Nodes))}

	for _, n := range g.Nodes {
		w, h := nodeSize(n, cfg)
		r := ranks[n.ID]
		p := &placed{node: n, rank: r, pos: len(byRank[r]), w: w, h: h}
		byRank[r] = append(byRank[r], p)
		l.nodes[n.ID] = p
		l.order = append(l.order, p)
		if r > maxRank {
			maxRank = r
		}
	}

	horizontal := g.Direction == LeftRight || g.Direction == RightLeft

	// along: the flow axis. across: the axis nodes of one rank share.
	rankDepth := make([]float64, maxRank+1)
	rankBreadth := make([]float64, maxRank+1)
	for r := 0; r <= maxRank; r++ {
		for _, p := range byRank[r] {
			depth, breadth := p.h, p.w
			if horizontal {
				depth, breadth = p.w, p.h
			}
			if depth > rankDepth[r] {
				rankDepth[r] = depth
			}
			rankBreadth[r] += breadth
		}
		if n := len(byRank[r]); n > 1 {
			rankBreadth[r] += float64(n-1) * cfg.NodeSpacing
		}
	}

	maxBreadth := 0.0
	for _, b := range rankBreadth {
		if b > maxBreadth {
			maxBreadth = b
		}
	}

	margin := cfg.FontSize
	along := margin
	for r := 0; r <= maxRank; r++ {
		across := margin + (maxBreadth-rankBreadth[r])/2
		for _, p := range byRank[r] {
			breadth := p.w
			if horizontal {
				breadth = p.h
			}
			a := along + rankDepth[r]/2
			b := across + breadth/2
			if horizontal {
				p.c = point{x: a, y: b}
			} else {
				p.c = point{x: b, y: a}
			}
			across += breadth + cfg.NodeSpacing
		}
		along += rankDepth[r] + cfg.RankSpacing
	}
	totalAlong := along - cfg.RankSpacing + margin
	totalAcross := maxBreadth + 2*margin

	if horizontal {
		l.width, l.height = totalAlong, totalAcross
	} else {
		l.width, l.height = totalAcross, totalAlong
	}

	// BT and RL mirror the flow axis.
	for _, p := range l.order {
		switch g.Direction {
		case BottomUp:
			p.c.y = l.height - p.c.y
		case RightLeft:
			p.c.x = l.width - p.c.x
		}
	}
	return l
}

// anchor returns where a line from p toward target leaves p's box.
func (p *placed) anchor(target point) point {
	dx, dy := target.x-p.c.x, target.y-p.c.y
	if dx == 0 && dy == 0 {
		return p.c
	}
	hw, hh := p.w/2, p.h/2
	adx, ady := abs(dx), abs(dy)
	var scale float64
	if adx*hh > ady*hw {
		scale = hw / adx
	} else {
		scale = hh / ady
	}
	return point{x: p.c.x + dx*scale, y: p.c.y + dy*scale}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
