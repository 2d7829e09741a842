// Package script décode les scripts d'instructions YAML en arbres sql.
//
// Un script est une suite de documents YAML. Chaque document est une
// instruction ou une liste d'instructions. Une instruction est un mapping
// dont la première clé est le mot-clé (select, create, use...), ou un
// scalaire pour begin, commit et cancel :
//
//	- use: {ns: test, db: test}
//	- begin
//	- create: person:tobie
//	  set: {name: Tobie, "visits +=": 1}
//	- select: [name]
//	  from: person
//	  where: !expr [!idiom visits, ">", 0]
//	- commit
//
// Les valeurs suivent les types YAML. Les tags locaux construisent les
// valeurs calculées : !param, !idiom, !thing, !table, !model, !expr,
// !fn, !cast, !future, !query, !datetime, !duration, !uuid, !decimal,
// !regex, !none, !null et !void.
package script

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Felmond13/novusgraph/sql"
)

// ErrSyntax indique un script mal formé.
var ErrSyntax = errors.New("script: invalid statement")

// Parse décode un script complet.
func Parse(text string) ([]sql.Statement, error) {
	return Decode(strings.NewReader(text))
}

// ParseFile décode le script contenu dans un fichier.
func ParseFile(path string) ([]sql.Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode lit tous les documents YAML de r.
func Decode(r io.Reader) ([]sql.Statement, error) {
	dec := yaml.NewDecoder(r)
	var out []sql.Statement
	for {
		var doc yaml.Node
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		if len(doc.Content) == 0 {
			continue
		}
		root := doc.Content[0]
		items := []*yaml.Node{root}
		if root.Kind == yaml.SequenceNode {
			items = root.Content
		}
		for _, n := range items {
			stm, err := statement(n)
			if err != nil {
				return nil, err
			}
			out = append(out, stm)
		}
	}
}

// ---------- Instructions ----------

// statement décode une instruction.
func statement(n *yaml.Node) (sql.Statement, error) {
	if n.Kind == yaml.ScalarNode {
		switch strings.ToLower(n.Value) {
		case "begin":
			return &sql.BeginStatement{}, nil
		case "commit":
			return &sql.CommitStatement{}, nil
		case "cancel":
			return &sql.CancelStatement{}, nil
		}
		return nil, errorf(n, "unknown statement %q", n.Value)
	}
	if n.Kind != yaml.MappingNode || len(n.Content) == 0 {
		return nil, errorf(n, "expected a statement mapping")
	}
	m, err := mapping(n)
	if err != nil {
		return nil, err
	}
	kw := strings.ToLower(n.Content[0].Value)
	head := n.Content[1]

	switch kw {
	case "begin":
		return &sql.BeginStatement{}, nil
	case "commit":
		return &sql.CommitStatement{}, nil
	case "cancel":
		return &sql.CancelStatement{}, nil
	case "use":
		return useStatement(head)
	case "option":
		s := &sql.OptionStatement{Name: strings.ToUpper(head.Value), What: true}
		if v, ok := m["value"]; ok {
			if err := v.Decode(&s.What); err != nil {
				return nil, errorf(v, "option value must be a boolean")
			}
		}
		return s, nil
	case "let":
		v, ok := m["value"]
		if !ok {
			return nil, errorf(n, "let needs a value")
		}
		what, err := value(v)
		if err != nil {
			return nil, err
		}
		return &sql.SetStatement{Name: strings.TrimPrefix(head.Value, "$"), What: what}, nil
	case "return":
		what, err := value(head)
		if err != nil {
			return nil, err
		}
		return &sql.OutputStatement{What: what}, nil
	case "if":
		return ifelseStatement(head, m)
	case "select":
		return selectStatement(head, m)
	case "create":
		return createStatement(head, m)
	case "update":
		return updateStatement(head, m)
	case "relate":
		return relateStatement(head, m)
	case "delete":
		return deleteStatement(head, m)
	case "insert":
		return insertStatement(head, m)
	case "info":
		return infoStatement(head, m)
	case "define":
		return defineStatement(head, m)
	case "remove":
		if strings.ToLower(head.Value) != "table" {
			return nil, errorf(head, "only tables can be removed")
		}
		name, err := required(n, m, "name")
		if err != nil {
			return nil, err
		}
		return &sql.RemoveTableStatement{Name: name}, nil
	}
	return nil, errorf(n, "unknown statement %q", kw)
}

func useStatement(n *yaml.Node) (sql.Statement, error) {
	var u struct {
		NS string `yaml:"ns"`
		DB string `yaml:"db"`
	}
	if err := n.Decode(&u); err != nil {
		return nil, errorf(n, "use expects {ns, db}")
	}
	return &sql.UseStatement{NS: u.NS, DB: u.DB}, nil
}

// ifelseStatement décode if: [{when, then}...] avec un else optionnel.
func ifelseStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	branches := head.Content
	if head.Kind != yaml.SequenceNode {
		branches = []*yaml.Node{head}
	}
	s := &sql.IfelseStatement{}
	for _, b := range branches {
		bm, err := mapping(b)
		if err != nil {
			return nil, err
		}
		when, ok1 := bm["when"]
		then, ok2 := bm["then"]
		if !ok1 || !ok2 {
			return nil, errorf(b, "if branch needs when and then")
		}
		c, err := value(when)
		if err != nil {
			return nil, err
		}
		v, err := value(then)
		if err != nil {
			return nil, err
		}
		s.Exprs = append(s.Exprs, [2]sql.Value{c, v})
	}
	if e, ok := m["else"]; ok {
		v, err := value(e)
		if err != nil {
			return nil, err
		}
		s.Close = v
	}
	return s, nil
}

func selectStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.SelectStatement{}
	var err error
	if s.Expr, err = fields(head); err != nil {
		return nil, err
	}
	from, ok := m["from"]
	if !ok {
		return nil, errorf(head, "select needs from")
	}
	if s.What, err = targets(from); err != nil {
		return nil, err
	}
	if s.Cond, err = optional(m, "where"); err != nil {
		return nil, err
	}
	if n, ok := m["split"]; ok {
		if s.Split, err = idioms(n); err != nil {
			return nil, err
		}
	}
	if n, ok := m["group"]; ok {
		if s.Group, err = idioms(n); err != nil {
			return nil, err
		}
	}
	if n, ok := m["order"]; ok {
		if s.Order, err = order(n); err != nil {
			return nil, err
		}
	}
	if s.Limit, err = intClause(m, "limit"); err != nil {
		return nil, err
	}
	if s.Start, err = intClause(m, "start"); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

func createStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.CreateStatement{}
	var err error
	if s.What, err = targets(head); err != nil {
		return nil, err
	}
	if s.Data, err = data(m); err != nil {
		return nil, err
	}
	if s.Output, err = returning(m); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

func updateStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.UpdateStatement{}
	var err error
	if s.What, err = targets(head); err != nil {
		return nil, err
	}
	if s.Data, err = data(m); err != nil {
		return nil, err
	}
	if s.Cond, err = optional(m, "where"); err != nil {
		return nil, err
	}
	if s.Output, err = returning(m); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

func relateStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.RelateStatement{Kind: head.Value}
	from, ok1 := m["from"]
	with, ok2 := m["with"]
	if !ok1 || !ok2 {
		return nil, errorf(head, "relate needs from and with")
	}
	var err error
	if s.From, err = targets(from); err != nil {
		return nil, err
	}
	if s.With, err = targets(with); err != nil {
		return nil, err
	}
	if s.Uniq, err = flag(m, "unique"); err != nil {
		return nil, err
	}
	if s.Data, err = data(m); err != nil {
		return nil, err
	}
	if s.Output, err = returning(m); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

func deleteStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.DeleteStatement{}
	var err error
	if s.What, err = targets(head); err != nil {
		return nil, err
	}
	if s.Cond, err = optional(m, "where"); err != nil {
		return nil, err
	}
	if s.Output, err = returning(m); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

// insertStatement décode insert: table avec values (objet ou liste
// d'objets), ou columns et rows.
func insertStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	s := &sql.InsertStatement{Into: head.Value}
	var err error
	switch {
	case m["values"] != nil:
		v, err := value(m["values"])
		if err != nil {
			return nil, err
		}
		s.Data = &sql.Data{Kind: sql.DataSingle, Value: v}
	case m["columns"] != nil:
		cols, err := idioms(m["columns"])
		if err != nil {
			return nil, err
		}
		rows, ok := m["rows"]
		if !ok || rows.Kind != yaml.SequenceNode {
			return nil, errorf(head, "insert with columns needs rows")
		}
		d := &sql.Data{Kind: sql.DataValues, Columns: cols}
		for _, r := range rows.Content {
			row, err := value(r)
			if err != nil {
				return nil, err
			}
			arr, ok := row.(sql.Array)
			if !ok {
				return nil, errorf(r, "each row must be a list")
			}
			d.Rows = append(d.Rows, arr)
		}
		s.Data = d
	default:
		return nil, errorf(head, "insert needs values or columns")
	}
	if s.Ignore, err = flag(m, "ignore"); err != nil {
		return nil, err
	}
	if n, ok := m["on_duplicate"]; ok {
		if s.Update, err = assignments(n); err != nil {
			return nil, err
		}
	}
	if s.Output, err = returning(m); err != nil {
		return nil, err
	}
	if s.Timeout, s.Parallel, err = tail(m); err != nil {
		return nil, err
	}
	return s, nil
}

// infoStatement décode info: kv|ns|db, ou info: table avec name.
func infoStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	switch strings.ToLower(head.Value) {
	case "kv":
		return &sql.InfoStatement{Level: sql.InfoKV}, nil
	case "ns", "namespace":
		return &sql.InfoStatement{Level: sql.InfoNS}, nil
	case "db", "database":
		return &sql.InfoStatement{Level: sql.InfoDB}, nil
	case "tb", "table":
		name, err := required(head, m, "name")
		if err != nil {
			return nil, err
		}
		return &sql.InfoStatement{Level: sql.InfoTB, Table: name}, nil
	}
	return nil, errorf(head, "unknown info level %q", head.Value)
}

func defineStatement(head *yaml.Node, m map[string]*yaml.Node) (sql.Statement, error) {
	name, err := required(head, m, "name")
	if err != nil {
		return nil, err
	}
	kind := strings.ToLower(head.Value)
	switch kind {
	case "namespace", "ns":
		return &sql.DefineNamespaceStatement{Name: name}, nil
	case "database", "db":
		return &sql.DefineDatabaseStatement{Name: name}, nil
	case "table":
		drop, err := flag(m, "drop")
		if err != nil {
			return nil, err
		}
		return &sql.DefineTableStatement{Name: name, Drop: drop}, nil
	}

	on, err := required(head, m, "on")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "field":
		s := &sql.DefineFieldStatement{Name: sql.ParseIdiom(name), Table: on}
		if s.Value, err = optional(m, "value"); err != nil {
			return nil, err
		}
		if s.Assert, err = optional(m, "assert"); err != nil {
			return nil, err
		}
		return s, nil
	case "event":
		s := &sql.DefineEventStatement{Name: name, Table: on, When: sql.Bool(true)}
		if w, err := optional(m, "when"); err != nil {
			return nil, err
		} else if w != nil {
			s.When = w
		}
		then, ok := m["then"]
		if !ok {
			return nil, errorf(head, "event needs then")
		}
		items := []*yaml.Node{then}
		if then.Kind == yaml.SequenceNode && !isLocalTag(then.Tag) {
			items = then.Content
		}
		for _, c := range items {
			v, err := value(c)
			if err != nil {
				return nil, err
			}
			s.Then = append(s.Then, v)
		}
		return s, nil
	case "index":
		cols, ok := m["columns"]
		if !ok {
			return nil, errorf(head, "index needs columns")
		}
		s := &sql.DefineIndexStatement{Name: name, Table: on}
		if s.Cols, err = idioms(cols); err != nil {
			return nil, err
		}
		if s.Uniq, err = flag(m, "unique"); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, errorf(head, "unknown definition %q", head.Value)
}

// ---------- Clauses communes ----------

// data décode la clause de données : set, content, merge, replace ou patch.
func data(m map[string]*yaml.Node) (*sql.Data, error) {
	if n, ok := m["set"]; ok {
		sets, err := assignments(n)
		if err != nil {
			return nil, err
		}
		return sql.Set(sets...), nil
	}
	for _, k := range []struct {
		name string
		make func(sql.Value) *sql.Data
	}{
		{"content", sql.Content},
		{"merge", sql.Merge},
		{"replace", sql.Replace},
		{"patch", sql.Patch},
	} {
		if n, ok := m[k.name]; ok {
			v, err := value(n)
			if err != nil {
				return nil, err
			}
			return k.make(v), nil
		}
	}
	return nil, nil
}

func returning(m map[string]*yaml.Node) (*sql.Output, error) {
	n, ok := m["return"]
	if !ok {
		return nil, nil
	}
	return output(n)
}

func tail(m map[string]*yaml.Node) (timeout time.Duration, parallel bool, err error) {
	if n, ok := m["timeout"]; ok {
		d, err := sql.ParseDuration(n.Value)
		if err != nil {
			return 0, false, errorf(n, "%v", err)
		}
		timeout = time.Duration(d)
	}
	parallel, err = flag(m, "parallel")
	return timeout, parallel, err
}

func intClause(m map[string]*yaml.Node, k string) (*int, error) {
	n, ok := m[k]
	if !ok {
		return nil, nil
	}
	var i int
	if err := n.Decode(&i); err != nil || i < 0 {
		return nil, errorf(n, "%s expects a positive integer", k)
	}
	return &i, nil
}

func flag(m map[string]*yaml.Node, k string) (bool, error) {
	n, ok := m[k]
	if !ok {
		return false, nil
	}
	var b bool
	if err := n.Decode(&b); err != nil {
		return false, errorf(n, "%s expects a boolean", k)
	}
	return b, nil
}

func optional(m map[string]*yaml.Node, k string) (sql.Value, error) {
	n, ok := m[k]
	if !ok {
		return nil, nil
	}
	return value(n)
}

func required(at *yaml.Node, m map[string]*yaml.Node, k string) (string, error) {
	n, ok := m[k]
	if !ok || n.Value == "" {
		return "", errorf(at, "missing %s", k)
	}
	return n.Value, nil
}

// mapping indexe les clés d'un mapping ; une clé dupliquée est refusée.
func mapping(n *yaml.Node) (map[string]*yaml.Node, error) {
	if n.Kind != yaml.MappingNode {
		return nil, errorf(n, "expected a mapping")
	}
	out := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k := strings.ToLower(n.Content[i].Value)
		if _, dup := out[k]; dup {
			return nil, errorf(n.Content[i], "duplicate key %q", k)
		}
		out[k] = n.Content[i+1]
	}
	return out, nil
}
