package deferred

import (
	"fmt"
	"math"
	"strconv"
	"unicode"
)

const curveSegments = 32

// PathLength approximates the length of an SVG path. It understands the M,
// L, H, V, C, Q and Z commands in absolute and relative form; curves are
// measured by subdivision.
func PathLength(d string) (float64, error) {
	toks, err := tokenizePath(d)
	if err != nil {
		return 0, err
	}

	var (
		total          float64
		cx, cy, sx, sy float64
		cmd            byte
		i              int
	)
	num := func() (float64, error) {
		if i >= len(toks) || toks[i].cmd != 0 {
			return 0, fmt.Errorf("path command %q is missing a number", cmd)
		}
		v := toks[i].num
		i++
		return v, nil
	}
	nums := func(n int) ([]float64, error) {
		out := make([]float64, n)
		for k := range out {
			v, err := num()
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil
	}

	for i < len(toks) {
		if toks[i].cmd != 0 {
			cmd = toks[i].cmd
			i++
		} else if cmd == 0 {
			return 0, fmt.Errorf("path must start with a command")
		}
		rel := unicode.IsLower(rune(cmd))
		ox, oy := 0.0, 0.0
		if rel {
			ox, oy = cx, cy
		}

		switch unicode.ToUpper(rune(cmd)) {
		case 'M':
			v, err := nums(2)
			if err != nil {
				return 0, err
			}
			cx, cy = ox+v[0], oy+v[1]
			sx, sy = cx, cy
			// further pairs are implicit line-tos
			if rel {
				cmd = 'l'
			} else {
				cmd = 'L'
			}
		case 'L':
			v, err := nums(2)
			if err != nil {
				return 0, err
			}
			nx, ny := ox+v[0], oy+v[1]
			total += math.Hypot(nx-cx, ny-cy)
			cx, cy = nx, ny
		case 'H':
			v, err := num()
			if err != nil {
				return 0, err
			}
			nx := v
			if rel {
				nx += cx
			}
			total += math.Abs(nx - cx)
			cx = nx
		case 'V':
			v, err := num()
			if err != nil {
				return 0, err
			}
			ny := v
			if rel {
				ny += cy
			}
			total += math.Abs(ny - cy)
			cy = ny
		case 'C':
			v, err := nums(6)
			if err != nil {
				return 0, err
			}
			p1x, p1y := ox+v[0], oy+v[1]
			p2x, p2y := ox+v[2], oy+v[3]
			ex, ey := ox+v[4], oy+v[5]
			total += cubicLength(cx, cy, p1x, p1y, p2x, p2y, ex, ey)
			cx, cy = ex, ey
		case 'Q':
			v, err := nums(4)
			if err != nil {
				return 0, err
			}
			px, py := ox+v[0], oy+v[1]
			ex, ey := ox+v[2], oy+v[3]
			total += quadLength(cx, cy, px, py, ex, ey)
			cx, cy = ex, ey
		case 'Z':
			total += math.Hypot(sx-cx, sy-cy)
			cx, cy = sx, sy
			if i < len(toks) && toks[i].cmd == 0 {
				return 0, fmt.Errorf("unexpected number after Z")
			}
		default:
			return 0, fmt.Errorf("unsupported path command %q", cmd)
		}
	}
	return total, nil
}

func cubicLength(x0, y0, x1, y1, x2, y2, x3, y3 float64) float64 {
	length := 0.0
	px, py := x0, y0
	for s := 1; s <= curveSegments; s++ {
		t := float64(s) / curveSegments
		mt := 1 - t
		x := mt*mt*mt*x0 + 3*mt*mt*t*x1 + 3*mt*t*t*x2 + t*t*t*x3
		y := mt*mt*mt*y0 + 3*mt*mt*t*y1 + 3*mt*t*t*y2 + t*t*t*y3
		length += math.Hypot(x-px, y-py)
		px, py = x, y
	}
	return length
}

func quadLength(x0, y0, x1, y1, x2, y2 float64) float64 {
	length := 0.0
	px, py := x0, y0
	for s := 1; s <= curveSegments; s++ {
		t := float64(s) / curveSegments
		mt := 1 - t
		x := mt*mt*x0 + 2*mt*t*x1 + t*t*x2
		y := mt*mt*y0 + 2*mt*t*y1 + t*t*y2
		length += math.Hypot(x-px, y-py)
		px, py = x, y
	}
	return length
}

type pathToken struct {
	cmd byte
	num float64
}

func tokenizePath(d string) ([]pathToken, error) {
	var toks []pathToken
	for i := 0; i < len(d); {
		ch := d[i]
		switch {
		case ch == ' ' || ch == ',' || ch == '\t' || ch == '\n' || ch == '\r':
			i++
		case isPathCommand(ch):
			toks = append(toks, pathToken{cmd: ch})
			i++
		case ch == '-' || ch == '+' || ch == '.' || (ch >= '0' && ch <= '9'):
			j := scanNumber(d, i)
			v, err := strconv.ParseFloat(d[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q in path", d[i:j])
			}
			toks = append(toks, pathToken{num: v})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q in path", ch)
		}
	}
	return toks, nil
}

func isPathCommand(ch byte) bool {
	switch ch {
	case 'M', 'm', 'L', 'l', 'H', 'h', 'V', 'v', 'C', 'c', 'Q', 'q', 'Z', 'z':
		return true
	}
	return false
}

func scanNumber(d string, i int) int {
	j := i
	if d[j] == '-' || d[j] == '+' {
		j++
	}
	dot := false
	for j < len(d) {
		c := d[j]
		if c >= '0' && c <= '9' {
			j++
			continue
		}
		if c == '.' && !dot {
			dot = true
			j++
			continue
		}
		break
	}
	if j < len(d) && (d[j] == 'e' || d[j] == 'E') {
		k := j + 1
		if k < len(d) && (d[k] == '-' || d[k] == '+') {
			k++
		}
		if k < len(d) && d[k] >= '0' && d[k] <= '9' {
			for k < len(d) && d[k] >= '0' && d[k] <= '9' {
				k++
			}
			j = k
		}
	}
	return j
}
