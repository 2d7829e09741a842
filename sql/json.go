package sql

import (
	"encoding/json"
	"math"
)

// ToJSON convertit une valeur en arbre Go natif prêt pour encoding/json.
// Les records sont rendus sous la forme "tb:id", les durées et instants
// sous leur forme textuelle, les géométries en GeoJSON.
func ToJSON(v Value) any {
	switch v := v.(type) {
	case nil, Constant:
		return nil
	case Bool:
		return bool(v)
	case Number:
		switch v.Kind {
		case NumberFloat:
			if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
				return nil
			}
			return v.Float
		case NumberDecimal:
			return json.Number(v.Dec.String())
		}
		return v.Int
	case Strand:
		return string(v)
	case Duration:
		return v.String()
	case Datetime:
		return v.String()
	case Uuid:
		return v.UUID.String()
	case Array:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = ToJSON(x)
		}
		return out
	case Object:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = ToJSON(x)
		}
		return out
	case Geometry:
		return geoJSON(v)
	case Thing:
		return v.String()
	case Table:
		return string(v)
	}
	return Render(v)
}

func geoJSON(g Geometry) map[string]any {
	coords := make([]any, len(g.Points))
	for i, p := range g.Points {
		coords[i] = []float64{p[0], p[1]}
	}
	switch g.Kind {
	case GeometryPoint:
		if len(g.Points) == 1 {
			return map[string]any{"type": "Point", "coordinates": coords[0]}
		}
	case GeometryLine:
		return map[string]any{"type": "LineString", "coordinates": coords}
	case GeometryPolygon:
		return map[string]any{"type": "Polygon", "coordinates": []any{coords}}
	}
	return map[string]any{"type": "MultiPoint", "coordinates": coords}
}

// FromJSON convertit un arbre décodé par encoding/json (avec UseNumber ou
// non) en valeur.
func FromJSON(x any) Value {
	switch x := x.(type) {
	case nil:
		return Null
	case bool:
		return Bool(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return NewInt(int64(x))
		}
		return NewFloat(x)
	case json.Number:
		return ParseNumber(x.String())
	case string:
		return Strand(x)
	case []any:
		out := make(Array, len(x))
		for i, e := range x {
			out[i] = FromJSON(e)
		}
		return out
	case map[string]any:
		out := make(Object, len(x))
		for k, e := range x {
			out[k] = FromJSON(e)
		}
		return out
	}
	return None
}
