package script

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Felmond13/novusgraph/sql"
)

// ---------- Valeurs ----------

// value convertit un nœud en valeur. Les scalaires sans tag suivent les
// types YAML ; les tags locaux (!param, !idiom, !expr...) construisent
// les valeurs calculées.
func value(n *yaml.Node) (sql.Value, error) {
	if n.Kind == yaml.AliasNode {
		return value(n.Alias)
	}
	if isLocalTag(n.Tag) {
		return tagged(n)
	}
	switch n.Kind {
	case yaml.ScalarNode:
		return scalar(n)
	case yaml.SequenceNode:
		out := make(sql.Array, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := value(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.MappingNode:
		out := sql.Object{}
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := value(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			out[n.Content[i].Value] = v
		}
		return out, nil
	}
	return nil, errorf(n, "unexpected node")
}

func scalar(n *yaml.Node) (sql.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return sql.Null, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errorf(n, "%v", err)
		}
		return sql.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errorf(n, "%v", err)
		}
		return sql.NewInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errorf(n, "%v", err)
		}
		return sql.NewFloat(f), nil
	}
	return sql.Strand(n.Value), nil
}

func isLocalTag(tag string) bool {
	return strings.HasPrefix(tag, "!") && !strings.HasPrefix(tag, "!!")
}

// tagged construit une valeur à partir d'un tag local.
func tagged(n *yaml.Node) (sql.Value, error) {
	switch n.Tag {
	case "!none":
		return sql.None, nil
	case "!null":
		return sql.Null, nil
	case "!void":
		return sql.Void, nil
	case "!param":
		return sql.Param(strings.TrimPrefix(n.Value, "$")), nil
	case "!idiom":
		return sql.ParseIdiom(n.Value), nil
	case "!table":
		return sql.Table(n.Value), nil
	case "!thing":
		return thing(n)
	case "!model":
		return model(n, n.Value)
	case "!regex":
		return sql.Regex{Source: n.Value}, nil
	case "!decimal":
		d, err := decimal.NewFromString(n.Value)
		if err != nil {
			return nil, errorf(n, "invalid decimal %q", n.Value)
		}
		return sql.NewDecimal(d), nil
	case "!datetime":
		d, err := sql.ParseDatetime(n.Value)
		if err != nil {
			return nil, errorf(n, "%v", err)
		}
		return d, nil
	case "!duration":
		d, err := sql.ParseDuration(n.Value)
		if err != nil {
			return nil, errorf(n, "%v", err)
		}
		return d, nil
	case "!uuid":
		if n.Value == "" {
			return sql.NewUuid(), nil
		}
		u, err := uuid.Parse(n.Value)
		if err != nil {
			return nil, errorf(n, "invalid uuid %q", n.Value)
		}
		return sql.Uuid{UUID: u}, nil
	case "!expr":
		return expression(n)
	case "!fn":
		name, args, err := call(n)
		if err != nil {
			return nil, err
		}
		return sql.NewFunction(name, args...), nil
	case "!cast":
		name, args, err := call(n)
		if err != nil {
			return nil, err
		}
		if len(args) != 1 {
			return nil, errorf(n, "cast expects one value, got %d", len(args))
		}
		return sql.NewCast(name, args[0]), nil
	case "!future":
		v, err := untagged(n)
		if err != nil {
			return nil, err
		}
		return sql.NewFuture(v), nil
	case "!query":
		stm, err := statement(n)
		if err != nil {
			return nil, err
		}
		return sql.Subquery{Stmt: stm}, nil
	}
	return nil, errorf(n, "unknown tag %s", n.Tag)
}

// untagged décode le contenu d'un nœud tagué comme une valeur ordinaire.
func untagged(n *yaml.Node) (sql.Value, error) {
	c := *n
	c.Tag = ""
	return value(&c)
}

// expression décode !expr [gauche, op, droite].
func expression(n *yaml.Node) (sql.Value, error) {
	if n.Kind != yaml.SequenceNode || len(n.Content) != 3 {
		return nil, errorf(n, "!expr expects [left, operator, right]")
	}
	op, ok := sql.ParseOperator(strings.ToUpper(n.Content[1].Value))
	if !ok {
		return nil, errorf(n.Content[1], "unknown operator %q", n.Content[1].Value)
	}
	l, err := value(n.Content[0])
	if err != nil {
		return nil, err
	}
	r, err := value(n.Content[2])
	if err != nil {
		return nil, err
	}
	return sql.NewExpression(l, op, r), nil
}

// call décode [name, args...] ou un scalaire name pour un appel sans
// argument.
func call(n *yaml.Node) (string, []sql.Value, error) {
	if n.Kind == yaml.ScalarNode {
		return n.Value, nil, nil
	}
	if n.Kind != yaml.SequenceNode || len(n.Content) == 0 {
		return "", nil, errorf(n, "%s expects [name, args...]", n.Tag)
	}
	args := make([]sql.Value, 0, len(n.Content)-1)
	for _, c := range n.Content[1:] {
		v, err := value(c)
		if err != nil {
			return "", nil, err
		}
		args = append(args, v)
	}
	return n.Content[0].Value, args, nil
}

func thing(n *yaml.Node) (sql.Value, error) {
	tb, id, ok := strings.Cut(n.Value, ":")
	if !ok || tb == "" || id == "" {
		return nil, errorf(n, "invalid record id %q", n.Value)
	}
	return sql.Thing{TB: tb, ID: id}, nil
}

func model(n *yaml.Node, s string) (sql.Value, error) {
	tb, count, ok := strings.Cut(strings.Trim(s, "|"), ":")
	c, err := strconv.ParseInt(count, 10, 64)
	if !ok || err != nil || tb == "" || c < 0 {
		return nil, errorf(n, "invalid model %q", s)
	}
	return sql.Model{TB: tb, Count: c}, nil
}

// ---------- Cibles ----------

// target décode une cible d'instruction. Une chaîne sans tag désigne une
// table ("person"), un record ("person:tobie") ou un modèle
// ("|person:10|").
func target(n *yaml.Node) (sql.Value, error) {
	if n.Kind != yaml.ScalarNode || isLocalTag(n.Tag) || n.ShortTag() != "!!str" {
		return value(n)
	}
	switch s := n.Value; {
	case strings.HasPrefix(s, "|") && strings.HasSuffix(s, "|"):
		return model(n, s)
	case strings.Contains(s, ":"):
		return thing(n)
	case s == "":
		return nil, errorf(n, "empty target")
	default:
		return sql.Table(s), nil
	}
}

// targets décode une cible ou une liste de cibles.
func targets(n *yaml.Node) ([]sql.Value, error) {
	if n.Kind != yaml.SequenceNode || isLocalTag(n.Tag) {
		v, err := target(n)
		if err != nil {
			return nil, err
		}
		return []sql.Value{v}, nil
	}
	out := make([]sql.Value, 0, len(n.Content))
	for _, c := range n.Content {
		v, err := target(c)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// idioms décode un chemin ou une liste de chemins.
func idioms(n *yaml.Node) ([]sql.Idiom, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return []sql.Idiom{sql.ParseIdiom(n.Value)}, nil
	case yaml.SequenceNode:
		out := make([]sql.Idiom, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind != yaml.ScalarNode {
				return nil, errorf(c, "expected a field path")
			}
			out = append(out, sql.ParseIdiom(c.Value))
		}
		return out, nil
	}
	return nil, errorf(n, "expected a field path or a list of paths")
}

// ---------- Clauses ----------

// fields décode une projection : "*", un chemin, une valeur taguée ou
// {expr, as}.
func fields(n *yaml.Node) (sql.Fields, error) {
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode && !isLocalTag(n.Tag) {
		items = n.Content
	}
	out := make(sql.Fields, 0, len(items))
	for _, c := range items {
		switch {
		case c.Kind == yaml.ScalarNode && !isLocalTag(c.Tag) && c.Value == "*":
			out = append(out, sql.AllFields())
		case c.Kind == yaml.ScalarNode && !isLocalTag(c.Tag):
			out = append(out, sql.Alone(sql.ParseIdiom(c.Value)))
		case c.Kind == yaml.MappingNode && !isLocalTag(c.Tag):
			m, err := mapping(c)
			if err != nil {
				return nil, err
			}
			expr, ok := m["expr"]
			if !ok {
				return nil, errorf(c, "field needs an expr")
			}
			v, err := projected(expr)
			if err != nil {
				return nil, err
			}
			p := sql.Alone(v)
			if as, ok := m["as"]; ok {
				p = sql.Alias(v, sql.ParseIdiom(as.Value))
			}
			out = append(out, p)
		default:
			v, err := value(c)
			if err != nil {
				return nil, err
			}
			out = append(out, sql.Alone(v))
		}
	}
	return out, nil
}

// projected lit un scalaire sans tag comme un chemin.
func projected(n *yaml.Node) (sql.Value, error) {
	if n.Kind == yaml.ScalarNode && !isLocalTag(n.Tag) {
		return sql.ParseIdiom(n.Value), nil
	}
	return value(n)
}

// assignments décode un mapping SET. La clé est un chemin, suivi de += ou
// -= pour incrémenter ou décrémenter.
func assignments(n *yaml.Node) ([]sql.Assignment, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected a mapping of assignments")
	}
	out := make([]sql.Assignment, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := strings.TrimSpace(n.Content[i].Value)
		op := sql.OpEqual
		switch {
		case strings.HasSuffix(k, "+="):
			op, k = sql.OpInc, strings.TrimSpace(strings.TrimSuffix(k, "+="))
		case strings.HasSuffix(k, "-="):
			op, k = sql.OpDec, strings.TrimSpace(strings.TrimSuffix(k, "-="))
		case strings.HasSuffix(k, "="):
			k = strings.TrimSpace(strings.TrimSuffix(k, "="))
		}
		v, err := value(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out = append(out, sql.Assignment{Path: sql.ParseIdiom(k), Op: op, Value: v})
	}
	return out, nil
}

// output décode une clause RETURN d'écriture.
func output(n *yaml.Node) (*sql.Output, error) {
	if n.Kind == yaml.ScalarNode && !isLocalTag(n.Tag) {
		switch strings.ToLower(n.Value) {
		case "none":
			return &sql.Output{Kind: sql.OutputNone}, nil
		case "null":
			return &sql.Output{Kind: sql.OutputNull}, nil
		case "diff":
			return &sql.Output{Kind: sql.OutputDiff}, nil
		case "after":
			return &sql.Output{Kind: sql.OutputAfter}, nil
		case "before":
			return &sql.Output{Kind: sql.OutputBefore}, nil
		}
	}
	fs, err := fields(n)
	if err != nil {
		return nil, err
	}
	return &sql.Output{Kind: sql.OutputFields, Fields: fs}, nil
}

// order décode "path [asc|desc]" ou une liste de ces clés.
func order(n *yaml.Node) ([]sql.Order, error) {
	items := []*yaml.Node{n}
	if n.Kind == yaml.SequenceNode {
		items = n.Content
	}
	out := make([]sql.Order, 0, len(items))
	for _, c := range items {
		parts := strings.Fields(c.Value)
		if c.Kind != yaml.ScalarNode || len(parts) == 0 || len(parts) > 2 {
			return nil, errorf(c, "expected \"path [asc|desc]\"")
		}
		o := sql.Order{Path: sql.ParseIdiom(parts[0])}
		if len(parts) == 2 {
			switch strings.ToLower(parts[1]) {
			case "asc":
			case "desc":
				o.Desc = true
			default:
				return nil, errorf(c, "unknown direction %q", parts[1])
			}
		}
		out = append(out, o)
	}
	return out, nil
}

func errorf(n *yaml.Node, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, n.Line, fmt.Sprintf(format, args...))
}
