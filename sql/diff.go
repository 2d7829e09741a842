package sql

import (
	"strconv"
	"strings"
)

// Diff calcule les opérations JSON Patch (RFC 6902) qui transforment a en b.
// Chaque opération est un objet { op, path[, value] }.
func Diff(a, b Value) Array {
	out := Array{}
	diff(&out, "", a, b)
	return out
}

func diff(out *Array, path string, a, b Value) {
	switch x := a.(type) {
	case Object:
		if y, ok := b.(Object); ok {
			for _, k := range sortedKeys(x) {
				if _, ok := y[k]; !ok {
					*out = append(*out, patchOp("remove", path+"/"+escapePointer(k), nil))
				}
			}
			for _, k := range sortedKeys(y) {
				p := path + "/" + escapePointer(k)
				if old, ok := x[k]; ok {
					diff(out, p, old, y[k])
				} else {
					*out = append(*out, patchOp("add", p, y[k]))
				}
			}
			return
		}
	case Array:
		if y, ok := b.(Array); ok {
			n := min(len(x), len(y))
			for i := 0; i < n; i++ {
				diff(out, path+"/"+strconv.Itoa(i), x[i], y[i])
			}
			for i := len(x) - 1; i >= n; i-- {
				*out = append(*out, patchOp("remove", path+"/"+strconv.Itoa(i), nil))
			}
			for i := n; i < len(y); i++ {
				*out = append(*out, patchOp("add", path+"/"+strconv.Itoa(i), y[i]))
			}
			return
		}
	}
	if !Same(a, b) {
		*out = append(*out, patchOp("replace", path, b))
	}
}

func patchOp(op, path string, v Value) Object {
	o := Object{"op": Strand(op), "path": Strand(path)}
	if v != nil {
		o["value"] = v
	}
	return o
}

// escapePointer applique l'échappement JSON Pointer (RFC 6901).
func escapePointer(s string) string {
	s = strings.ReplaceAll(s, "~", "~0")
	return strings.ReplaceAll(s, "/", "~1")
}

// UnescapePointer inverse escapePointer.
func UnescapePointer(s string) string {
	s = strings.ReplaceAll(s, "~1", "/")
	return strings.ReplaceAll(s, "~0", "~")
}

// PointerToIdiom convertit un chemin JSON Pointer ("/a/0/b") en Idiom.
// Le segment "-" désigne la fin d'un tableau.
func PointerToIdiom(ptr string) Idiom {
	var out Idiom
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		if seg == "" {
			continue
		}
		if seg == "-" {
			out = append(out, Last())
			continue
		}
		if n, err := strconv.ParseInt(seg, 10, 64); err == nil && n >= 0 {
			out = append(out, Index(n))
			continue
		}
		out = append(out, Field(UnescapePointer(seg)))
	}
	return out
}
