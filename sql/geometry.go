package sql

import (
	"fmt"
	"strings"
)

// GeometryKind identifie la forme d'une géométrie.
type GeometryKind uint8

const (
	GeometryPoint GeometryKind = iota
	GeometryLine
	GeometryPolygon
	GeometryMultiPoint
)

var geometryNames = [...]string{"point", "line", "polygon", "multipoint"}

// Geometry est une géométrie plane. Pour un polygone, Points est l'anneau
// extérieur (fermé implicitement).
type Geometry struct {
	Kind   GeometryKind
	Points [][2]float64
}

func (Geometry) valueNode() {}

// NewPoint crée un point.
func NewPoint(x, y float64) Geometry {
	return Geometry{Kind: GeometryPoint, Points: [][2]float64{{x, y}}}
}

// NewPolygon crée un polygone à partir de son anneau extérieur.
func NewPolygon(pts ...[2]float64) Geometry {
	return Geometry{Kind: GeometryPolygon, Points: pts}
}

// NewLine crée une ligne brisée.
func NewLine(pts ...[2]float64) Geometry {
	return Geometry{Kind: GeometryLine, Points: pts}
}

// TypeName retourne le nom de la forme (point, line, polygon, multipoint).
func (g Geometry) TypeName() string {
	if int(g.Kind) < len(geometryNames) {
		return geometryNames[g.Kind]
	}
	return "geometry"
}

func (g Geometry) equal(o Geometry) bool {
	if g.Kind != o.Kind || len(g.Points) != len(o.Points) {
		return false
	}
	for i := range g.Points {
		if g.Points[i] != o.Points[i] {
			return false
		}
	}
	return true
}

// Contains indique si g contient entièrement o. Seul un polygone peut
// contenir une autre géométrie ; un point ne contient que lui-même.
func (g Geometry) Contains(o Geometry) bool {
	switch g.Kind {
	case GeometryPolygon:
		for _, p := range o.Points {
			if !pointInRing(p, g.Points) {
				return false
			}
		}
		return len(o.Points) > 0
	case GeometryPoint, GeometryMultiPoint:
		for _, p := range o.Points {
			found := false
			for _, q := range g.Points {
				if p == q {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
		return len(o.Points) > 0
	}
	return false
}

// Intersects indique si deux géométries partagent au moins un point.
func (g Geometry) Intersects(o Geometry) bool {
	if g.Kind == GeometryPolygon {
		for _, p := range o.Points {
			if pointInRing(p, g.Points) {
				return true
			}
		}
	}
	if o.Kind == GeometryPolygon {
		for _, p := range g.Points {
			if pointInRing(p, o.Points) {
				return true
			}
		}
	}
	for _, a := range g.segments() {
		for _, b := range o.segments() {
			if segmentsCross(a[0], a[1], b[0], b[1]) {
				return true
			}
		}
	}
	return false
}

func (g Geometry) segments() [][2][2]float64 {
	pts := g.Points
	if len(pts) == 1 {
		return [][2][2]float64{{pts[0], pts[0]}}
	}
	var out [][2][2]float64
	for i := 0; i+1 < len(pts); i++ {
		out = append(out, [2][2]float64{pts[i], pts[i+1]})
	}
	if g.Kind == GeometryPolygon && len(pts) > 2 && pts[0] != pts[len(pts)-1] {
		out = append(out, [2][2]float64{pts[len(pts)-1], pts[0]})
	}
	return out
}

// pointInRing applique le test du rayon (ray casting).
func pointInRing(p [2]float64, ring [][2]float64) bool {
	in := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if (a[1] > p[1]) != (b[1] > p[1]) &&
			p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
			in = !in
		}
	}
	return in
}

func orientation(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p [2]float64) bool {
	return min(a[0], b[0]) <= p[0] && p[0] <= max(a[0], b[0]) &&
		min(a[1], b[1]) <= p[1] && p[1] <= max(a[1], b[1])
}

func segmentsCross(p1, p2, q1, q2 [2]float64) bool {
	d1 := orientation(q1, q2, p1)
	d2 := orientation(q1, q2, p2)
	d3 := orientation(p1, p2, q1)
	d4 := orientation(p1, p2, q2)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

func (g Geometry) String() string {
	parts := make([]string, len(g.Points))
	for i, p := range g.Points {
		parts[i] = fmt.Sprintf("(%g, %g)", p[0], p[1])
	}
	if g.Kind == GeometryPoint && len(parts) == 1 {
		return parts[0]
	}
	return g.TypeName() + "[" + strings.Join(parts, ", ") + "]"
}
