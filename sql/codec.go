package sql

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tinylib/msgp/msgp"
)

// Format binaire des valeurs : chaque valeur est un octet de type suivi de
// sa charge utile, le tout en primitives MessagePack.
//
//	[tag uint8] [payload...]
//
// Les sous-requêtes sont encodées avec gob dans un bloc binaire.

var (
	// ErrCorrupted indique un tampon illisible.
	ErrCorrupted = errors.New("sql: corrupted value encoding")
)

const (
	tagNone uint8 = iota
	tagVoid
	tagNull
	tagFalse
	tagTrue
	tagInt
	tagFloat
	tagDecimal
	tagStrand
	tagDuration
	tagDatetime
	tagUuid
	tagArray
	tagObject
	tagGeometry
	tagParam
	tagIdiom
	tagTable
	tagThing
	tagModel
	tagRegex
	tagFunction
	tagSubquery
	tagExpression
)

// Encode sérialise une valeur.
func Encode(v Value) ([]byte, error) {
	return AppendValue(make([]byte, 0, 64), v)
}

// Decode désérialise une valeur produite par Encode.
func Decode(b []byte) (Value, error) {
	v, rest, err := ReadValue(b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrCorrupted, len(rest))
	}
	return v, nil
}

// AppendValue ajoute l'encodage de v à b.
func AppendValue(b []byte, v Value) ([]byte, error) {
	var err error
	switch v := v.(type) {
	case nil:
		b = msgp.AppendUint8(b, tagNone)
	case Constant:
		switch v {
		case Void:
			b = msgp.AppendUint8(b, tagVoid)
		case Null:
			b = msgp.AppendUint8(b, tagNull)
		default:
			b = msgp.AppendUint8(b, tagNone)
		}
	case Bool:
		if v {
			b = msgp.AppendUint8(b, tagTrue)
		} else {
			b = msgp.AppendUint8(b, tagFalse)
		}
	case Number:
		switch v.Kind {
		case NumberFloat:
			b = msgp.AppendUint8(b, tagFloat)
			b = msgp.AppendFloat64(b, v.Float)
		case NumberDecimal:
			b = msgp.AppendUint8(b, tagDecimal)
			b = msgp.AppendString(b, v.Dec.String())
		default:
			b = msgp.AppendUint8(b, tagInt)
			b = msgp.AppendInt64(b, v.Int)
		}
	case Strand:
		b = msgp.AppendUint8(b, tagStrand)
		b = msgp.AppendString(b, string(v))
	case Duration:
		b = msgp.AppendUint8(b, tagDuration)
		b = msgp.AppendInt64(b, int64(v))
	case Datetime:
		b = msgp.AppendUint8(b, tagDatetime)
		b = msgp.AppendTime(b, v.Time)
	case Uuid:
		b = msgp.AppendUint8(b, tagUuid)
		b = msgp.AppendBytes(b, v.UUID[:])
	case Array:
		b = msgp.AppendUint8(b, tagArray)
		b, err = appendList(b, v)
	case Object:
		b = msgp.AppendUint8(b, tagObject)
		b = msgp.AppendMapHeader(b, uint32(len(v)))
		for _, k := range sortedKeys(v) {
			b = msgp.AppendString(b, k)
			if b, err = AppendValue(b, v[k]); err != nil {
				return nil, err
			}
		}
	case Geometry:
		b = msgp.AppendUint8(b, tagGeometry)
		b = msgp.AppendUint8(b, uint8(v.Kind))
		b = msgp.AppendArrayHeader(b, uint32(len(v.Points)))
		for _, p := range v.Points {
			b = msgp.AppendFloat64(b, p[0])
			b = msgp.AppendFloat64(b, p[1])
		}
	case Param:
		b = msgp.AppendUint8(b, tagParam)
		b = msgp.AppendString(b, string(v))
	case Idiom:
		b = msgp.AppendUint8(b, tagIdiom)
		b, err = appendIdiom(b, v)
	case Table:
		b = msgp.AppendUint8(b, tagTable)
		b = msgp.AppendString(b, string(v))
	case Thing:
		b = msgp.AppendUint8(b, tagThing)
		b = msgp.AppendString(b, v.TB)
		b = msgp.AppendString(b, v.ID)
	case Model:
		b = msgp.AppendUint8(b, tagModel)
		b = msgp.AppendString(b, v.TB)
		b = msgp.AppendInt64(b, v.Count)
	case Regex:
		b = msgp.AppendUint8(b, tagRegex)
		b = msgp.AppendString(b, v.Source)
	case Function:
		b = msgp.AppendUint8(b, tagFunction)
		b = msgp.AppendUint8(b, uint8(v.Kind))
		b = msgp.AppendString(b, v.Name)
		b, err = appendList(b, v.Args)
	case Subquery:
		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(&v); err != nil {
			return nil, fmt.Errorf("sql: encoding subquery: %w", err)
		}
		b = msgp.AppendUint8(b, tagSubquery)
		b = msgp.AppendBytes(b, buf.Bytes())
	case Expression:
		b = msgp.AppendUint8(b, tagExpression)
		b = msgp.AppendInt(b, int(v.O))
		if b, err = AppendValue(b, v.L); err != nil {
			return nil, err
		}
		b, err = AppendValue(b, v.R)
	default:
		return nil, fmt.Errorf("sql: cannot encode %T", v)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func appendList(b []byte, vs []Value) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, uint32(len(vs)))
	var err error
	for _, x := range vs {
		if b, err = AppendValue(b, x); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func appendIdiom(b []byte, i Idiom) ([]byte, error) {
	b = msgp.AppendArrayHeader(b, uint32(len(i)))
	var err error
	for _, p := range i {
		b = msgp.AppendUint8(b, uint8(p.Kind))
		switch p.Kind {
		case PartField:
			b = msgp.AppendString(b, p.Field)
		case PartIndex:
			b = msgp.AppendInt64(b, p.Index)
		case PartWhere:
			if b, err = AppendValue(b, p.Cond); err != nil {
				return nil, err
			}
		}
	}
	return b, nil
}

// ReadValue lit une valeur en tête de b et retourne le reste du tampon.
func ReadValue(b []byte) (Value, []byte, error) {
	tag, b, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return nil, nil, corrupted(err)
	}
	switch tag {
	case tagNone:
		return None, b, nil
	case tagVoid:
		return Void, b, nil
	case tagNull:
		return Null, b, nil
	case tagFalse:
		return False, b, nil
	case tagTrue:
		return True, b, nil
	case tagInt:
		i, rest, err := msgp.ReadInt64Bytes(b)
		return NewInt(i), rest, corrupted(err)
	case tagFloat:
		f, rest, err := msgp.ReadFloat64Bytes(b)
		return NewFloat(f), rest, corrupted(err)
	case tagDecimal:
		s, rest, err := msgp.ReadStringBytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		d, err := decimal.NewFromString(s)
		return NewDecimal(d), rest, corrupted(err)
	case tagStrand:
		s, rest, err := msgp.ReadStringBytes(b)
		return Strand(s), rest, corrupted(err)
	case tagDuration:
		i, rest, err := msgp.ReadInt64Bytes(b)
		return Duration(i), rest, corrupted(err)
	case tagDatetime:
		t, rest, err := msgp.ReadTimeBytes(b)
		return NewDatetime(t), rest, corrupted(err)
	case tagUuid:
		raw, rest, err := msgp.ReadBytesBytes(b, nil)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		u, err := uuid.FromBytes(raw)
		return Uuid{UUID: u}, rest, corrupted(err)
	case tagArray:
		vs, rest, err := readList(b)
		return Array(vs), rest, err
	case tagObject:
		n, rest, err := msgp.ReadMapHeaderBytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		out := make(Object, n)
		for ; n > 0; n-- {
			var k string
			if k, rest, err = msgp.ReadStringBytes(rest); err != nil {
				return nil, nil, corrupted(err)
			}
			var x Value
			if x, rest, err = ReadValue(rest); err != nil {
				return nil, nil, err
			}
			out[k] = x
		}
		return out, rest, nil
	case tagGeometry:
		return readGeometry(b)
	case tagParam:
		s, rest, err := msgp.ReadStringBytes(b)
		return Param(s), rest, corrupted(err)
	case tagIdiom:
		return readIdiom(b)
	case tagTable:
		s, rest, err := msgp.ReadStringBytes(b)
		return Table(s), rest, corrupted(err)
	case tagThing:
		tb, rest, err := msgp.ReadStringBytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		id, rest, err := msgp.ReadStringBytes(rest)
		return Thing{TB: tb, ID: id}, rest, corrupted(err)
	case tagModel:
		tb, rest, err := msgp.ReadStringBytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		n, rest, err := msgp.ReadInt64Bytes(rest)
		return Model{TB: tb, Count: n}, rest, corrupted(err)
	case tagRegex:
		s, rest, err := msgp.ReadStringBytes(b)
		return Regex{Source: s}, rest, corrupted(err)
	case tagFunction:
		kind, rest, err := msgp.ReadUint8Bytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		name, rest, err := msgp.ReadStringBytes(rest)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		args, rest, err := readList(rest)
		return Function{Kind: FunctionKind(kind), Name: name, Args: args}, rest, err
	case tagSubquery:
		raw, rest, err := msgp.ReadBytesBytes(b, nil)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		var s Subquery
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&s); err != nil {
			return nil, nil, corrupted(err)
		}
		return s, rest, nil
	case tagExpression:
		op, rest, err := msgp.ReadIntBytes(b)
		if err != nil {
			return nil, nil, corrupted(err)
		}
		l, rest, err := ReadValue(rest)
		if err != nil {
			return nil, nil, err
		}
		r, rest, err := ReadValue(rest)
		if err != nil {
			return nil, nil, err
		}
		return Expression{L: l, O: Operator(op), R: r}, rest, nil
	}
	return nil, nil, fmt.Errorf("%w: unknown tag %d", ErrCorrupted, tag)
}

func readList(b []byte) ([]Value, []byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, corrupted(err)
	}
	out := make([]Value, 0, n)
	for ; n > 0; n-- {
		var x Value
		if x, rest, err = ReadValue(rest); err != nil {
			return nil, nil, err
		}
		out = append(out, x)
	}
	return out, rest, nil
}

func readGeometry(b []byte) (Value, []byte, error) {
	kind, rest, err := msgp.ReadUint8Bytes(b)
	if err != nil {
		return nil, nil, corrupted(err)
	}
	n, rest, err := msgp.ReadArrayHeaderBytes(rest)
	if err != nil {
		return nil, nil, corrupted(err)
	}
	g := Geometry{Kind: GeometryKind(kind), Points: make([][2]float64, 0, n)}
	for ; n > 0; n-- {
		var x, y float64
		if x, rest, err = msgp.ReadFloat64Bytes(rest); err != nil {
			return nil, nil, corrupted(err)
		}
		if y, rest, err = msgp.ReadFloat64Bytes(rest); err != nil {
			return nil, nil, corrupted(err)
		}
		g.Points = append(g.Points, [2]float64{x, y})
	}
	return g, rest, nil
}

func readIdiom(b []byte) (Value, []byte, error) {
	n, rest, err := msgp.ReadArrayHeaderBytes(b)
	if err != nil {
		return nil, nil, corrupted(err)
	}
	out := make(Idiom, 0, n)
	for ; n > 0; n-- {
		var kind uint8
		if kind, rest, err = msgp.ReadUint8Bytes(rest); err != nil {
			return nil, nil, corrupted(err)
		}
		p := Part{Kind: PartKind(kind)}
		switch p.Kind {
		case PartField:
			if p.Field, rest, err = msgp.ReadStringBytes(rest); err != nil {
				return nil, nil, corrupted(err)
			}
		case PartIndex:
			if p.Index, rest, err = msgp.ReadInt64Bytes(rest); err != nil {
				return nil, nil, corrupted(err)
			}
		case PartWhere:
			if p.Cond, rest, err = ReadValue(rest); err != nil {
				return nil, nil, err
			}
		}
		out = append(out, p)
	}
	return out, rest, nil
}

func corrupted(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrCorrupted, err)
}
