package sql

import "encoding/gob"

// Les définitions du catalogue et les sous-requêtes sont encodées avec gob :
// chaque type concret porté par une interface Value ou Statement doit être
// enregistré.
func init() {
	for _, v := range []any{
		Constant(0), Bool(false), Number{}, Strand(""), Duration(0),
		Datetime{}, Uuid{}, Array{}, Object{}, Geometry{}, Param(""),
		Idiom{}, Table(""), Thing{}, Model{}, Regex{}, Function{},
		Subquery{}, Expression{},
	} {
		gob.Register(v)
	}
	for _, s := range []any{
		&SelectStatement{}, &CreateStatement{}, &UpdateStatement{},
		&RelateStatement{}, &DeleteStatement{}, &InsertStatement{},
		&OutputStatement{}, &IfelseStatement{},
		&DefineNamespaceStatement{}, &DefineDatabaseStatement{},
		&DefineTableStatement{}, &DefineFieldStatement{},
		&DefineEventStatement{}, &DefineIndexStatement{},
	} {
		gob.Register(s)
	}
}
