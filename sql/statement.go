package sql

import (
	"fmt"
	"strings"
	"time"
)

// ---------- Instructions ----------

// Statement est l'interface commune à toutes les instructions.
type Statement interface {
	statementNode()
	String() string
}

// UseStatement représente USE NS ns DB db.
type UseStatement struct {
	NS string
	DB string
}

func (s *UseStatement) statementNode() {}

func (s *UseStatement) String() string {
	out := "USE"
	if s.NS != "" {
		out += " NS " + s.NS
	}
	if s.DB != "" {
		out += " DB " + s.DB
	}
	return out
}

// OptionStatement représente OPTION NAME [= true|false].
type OptionStatement struct {
	Name string
	What bool
}

func (s *OptionStatement) statementNode() {}

func (s *OptionStatement) String() string {
	if s.What {
		return "OPTION " + s.Name
	}
	return "OPTION " + s.Name + " = false"
}

// BeginStatement représente BEGIN TRANSACTION.
type BeginStatement struct{}

func (s *BeginStatement) statementNode() {}
func (s *BeginStatement) String() string { return "BEGIN TRANSACTION" }

// CancelStatement représente CANCEL TRANSACTION.
type CancelStatement struct{}

func (s *CancelStatement) statementNode() {}
func (s *CancelStatement) String() string { return "CANCEL TRANSACTION" }

// CommitStatement représente COMMIT TRANSACTION.
type CommitStatement struct{}

func (s *CommitStatement) statementNode() {}
func (s *CommitStatement) String() string { return "COMMIT TRANSACTION" }

// SetStatement représente LET $name = what.
type SetStatement struct {
	Name string
	What Value
}

func (s *SetStatement) statementNode() {}

func (s *SetStatement) String() string {
	return "LET $" + s.Name + " = " + Render(s.What)
}

// OutputStatement représente RETURN what.
type OutputStatement struct {
	What Value
}

func (s *OutputStatement) statementNode() {}

func (s *OutputStatement) String() string { return "RETURN " + Render(s.What) }

// IfelseStatement représente IF cond THEN v [ELSE IF ...] [ELSE v] END.
type IfelseStatement struct {
	Exprs [][2]Value
	Close Value
}

func (s *IfelseStatement) statementNode() {}

func (s *IfelseStatement) String() string {
	var b strings.Builder
	for i, e := range s.Exprs {
		if i > 0 {
			b.WriteString(" ELSE ")
		}
		b.WriteString("IF " + Render(e[0]) + " THEN " + Render(e[1]))
	}
	if s.Close != nil {
		b.WriteString(" ELSE " + Render(s.Close))
	}
	b.WriteString(" END")
	return b.String()
}

// SelectStatement représente SELECT ... FROM ... WHERE ... SPLIT ... GROUP ...
// ORDER ... LIMIT ... START ...
type SelectStatement struct {
	Expr     Fields
	What     []Value
	Cond     Value   // nil si pas de WHERE
	Split    []Idiom // SPLIT ON
	Group    []Idiom // GROUP BY
	Order    []Order // ORDER BY
	Limit    *int    // nil si pas de LIMIT
	Start    *int    // nil si pas de START
	Timeout  time.Duration
	Parallel bool
}

func (s *SelectStatement) statementNode() {}

func (s *SelectStatement) String() string {
	var b strings.Builder
	b.WriteString("SELECT " + s.Expr.String() + " FROM " + renderList(s.What))
	if s.Cond != nil {
		b.WriteString(" WHERE " + Render(s.Cond))
	}
	if len(s.Split) > 0 {
		b.WriteString(" SPLIT ON " + idiomList(s.Split))
	}
	if len(s.Group) > 0 {
		b.WriteString(" GROUP BY " + idiomList(s.Group))
	}
	if len(s.Order) > 0 {
		parts := make([]string, len(s.Order))
		for i, o := range s.Order {
			parts[i] = o.String()
		}
		b.WriteString(" ORDER BY " + strings.Join(parts, ", "))
	}
	writeInt(&b, "LIMIT", s.Limit)
	writeInt(&b, "START", s.Start)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

// CreateStatement représente CREATE what [data] [RETURN ...].
type CreateStatement struct {
	What     []Value
	Data     *Data
	Output   *Output
	Timeout  time.Duration
	Parallel bool
}

func (s *CreateStatement) statementNode() {}

func (s *CreateStatement) String() string {
	var b strings.Builder
	b.WriteString("CREATE " + renderList(s.What))
	writeData(&b, s.Data, nil, s.Output)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

// UpdateStatement représente UPDATE what [data] [WHERE cond] [RETURN ...].
type UpdateStatement struct {
	What     []Value
	Data     *Data
	Cond     Value
	Output   *Output
	Timeout  time.Duration
	Parallel bool
}

func (s *UpdateStatement) statementNode() {}

func (s *UpdateStatement) String() string {
	var b strings.Builder
	b.WriteString("UPDATE " + renderList(s.What))
	writeData(&b, s.Data, s.Cond, s.Output)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

// RelateStatement représente RELATE from -> kind -> with.
type RelateStatement struct {
	Kind     string
	From     []Value
	With     []Value
	Uniq     bool
	Data     *Data
	Output   *Output
	Timeout  time.Duration
	Parallel bool
}

func (s *RelateStatement) statementNode() {}

func (s *RelateStatement) String() string {
	var b strings.Builder
	b.WriteString("RELATE " + renderList(s.From) + " -> " + s.Kind + " -> " + renderList(s.With))
	if s.Uniq {
		b.WriteString(" UNIQUE")
	}
	writeData(&b, s.Data, nil, s.Output)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

// DeleteStatement représente DELETE what [WHERE cond] [RETURN ...].
type DeleteStatement struct {
	What     []Value
	Cond     Value
	Output   *Output
	Timeout  time.Duration
	Parallel bool
}

func (s *DeleteStatement) statementNode() {}

func (s *DeleteStatement) String() string {
	var b strings.Builder
	b.WriteString("DELETE " + renderList(s.What))
	writeData(&b, nil, s.Cond, s.Output)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

// InsertStatement représente INSERT [IGNORE] INTO table data
// [ON DUPLICATE KEY UPDATE ...].
type InsertStatement struct {
	Into     string
	Data     *Data
	Ignore   bool
	Update   []Assignment
	Output   *Output
	Timeout  time.Duration
	Parallel bool
}

func (s *InsertStatement) statementNode() {}

func (s *InsertStatement) String() string {
	var b strings.Builder
	b.WriteString("INSERT")
	if s.Ignore {
		b.WriteString(" IGNORE")
	}
	b.WriteString(" INTO " + s.Into)
	if s.Data != nil {
		b.WriteString(" " + s.Data.String())
	}
	if len(s.Update) > 0 {
		parts := make([]string, len(s.Update))
		for i, u := range s.Update {
			parts[i] = u.String()
		}
		b.WriteString(" ON DUPLICATE KEY UPDATE " + strings.Join(parts, ", "))
	}
	writeData(&b, nil, nil, s.Output)
	writeTail(&b, s.Timeout, s.Parallel)
	return b.String()
}

func writeData(b *strings.Builder, data *Data, cond Value, output *Output) {
	if data != nil {
		b.WriteString(" " + data.String())
	}
	if cond != nil {
		b.WriteString(" WHERE " + Render(cond))
	}
	if output != nil {
		b.WriteString(" " + output.String())
	}
}

// ---------- Catalogue ----------

// InfoLevel identifie la portée d'une instruction INFO.
type InfoLevel uint8

const (
	InfoKV InfoLevel = iota
	InfoNS
	InfoDB
	InfoTB
)

// InfoStatement représente INFO FOR KV|NS|DB|TABLE name.
type InfoStatement struct {
	Level InfoLevel
	Table string
}

func (s *InfoStatement) statementNode() {}

func (s *InfoStatement) String() string {
	switch s.Level {
	case InfoNS:
		return "INFO FOR NAMESPACE"
	case InfoDB:
		return "INFO FOR DATABASE"
	case InfoTB:
		return "INFO FOR TABLE " + s.Table
	}
	return "INFO FOR KV"
}

// DefineNamespaceStatement représente DEFINE NAMESPACE name.
type DefineNamespaceStatement struct {
	Name string
}

func (s *DefineNamespaceStatement) statementNode() {}
func (s *DefineNamespaceStatement) String() string {
	return "DEFINE NAMESPACE " + s.Name
}

// DefineDatabaseStatement représente DEFINE DATABASE name.
type DefineDatabaseStatement struct {
	Name string
}

func (s *DefineDatabaseStatement) statementNode() {}
func (s *DefineDatabaseStatement) String() string {
	return "DEFINE DATABASE " + s.Name
}

// DefineTableStatement représente DEFINE TABLE name [DROP].
// Une table DROP n'enregistre aucun record (vue).
type DefineTableStatement struct {
	Name string
	Drop bool
}

func (s *DefineTableStatement) statementNode() {}
func (s *DefineTableStatement) String() string {
	if s.Drop {
		return "DEFINE TABLE " + s.Name + " DROP"
	}
	return "DEFINE TABLE " + s.Name
}

// DefineFieldStatement représente DEFINE FIELD name ON table
// [VALUE expr] [ASSERT expr].
type DefineFieldStatement struct {
	Name   Idiom
	Table  string
	Value  Value
	Assert Value
}

func (s *DefineFieldStatement) statementNode() {}
func (s *DefineFieldStatement) String() string {
	out := "DEFINE FIELD " + s.Name.String() + " ON " + s.Table
	if s.Value != nil {
		out += " VALUE " + Render(s.Value)
	}
	if s.Assert != nil {
		out += " ASSERT " + Render(s.Assert)
	}
	return out
}

// DefineEventStatement représente DEFINE EVENT name ON table WHEN cond THEN (...).
type DefineEventStatement struct {
	Name  string
	Table string
	When  Value
	Then  []Value
}

func (s *DefineEventStatement) statementNode() {}
func (s *DefineEventStatement) String() string {
	return fmt.Sprintf("DEFINE EVENT %s ON %s WHEN %s THEN (%s)", s.Name, s.Table, Render(s.When), renderList(s.Then))
}

// DefineIndexStatement représente DEFINE INDEX name ON table COLUMNS ... [UNIQUE].
type DefineIndexStatement struct {
	Name  string
	Table string
	Cols  []Idiom
	Uniq  bool
}

func (s *DefineIndexStatement) statementNode() {}
func (s *DefineIndexStatement) String() string {
	out := "DEFINE INDEX " + s.Name + " ON " + s.Table + " COLUMNS " + idiomList(s.Cols)
	if s.Uniq {
		out += " UNIQUE"
	}
	return out
}

// RemoveTableStatement représente REMOVE TABLE name.
type RemoveTableStatement struct {
	Name string
}

func (s *RemoveTableStatement) statementNode() {}
func (s *RemoveTableStatement) String() string { return "REMOVE TABLE " + s.Name }

// TimeoutOf retourne la durée TIMEOUT d'une instruction (0 si absente).
func TimeoutOf(stm Statement) time.Duration {
	switch s := stm.(type) {
	case *SelectStatement:
		return s.Timeout
	case *CreateStatement:
		return s.Timeout
	case *UpdateStatement:
		return s.Timeout
	case *RelateStatement:
		return s.Timeout
	case *DeleteStatement:
		return s.Timeout
	case *InsertStatement:
		return s.Timeout
	}
	return 0
}
