/**
 * PDF object model
 *
 * Minimal COS object representation used by the reader and the
 * incremental-update writer. Only the constructs needed to append
 * annotations are modeled.
 */

package pdf

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Object is any PDF object: Integer, Real, Bool, Null, String, Name,
// Ref, Array, Dict or *Stream.
type Object interface{}

// Integer is a PDF integer
type Integer int64

// Real is a PDF real number
type Real float64

// Bool is a PDF boolean
type Bool bool

// Null is the PDF null object
type Null struct{}

// String is a PDF string (raw bytes, unencrypted)
type String []byte

// Name is a PDF name without the leading slash
type Name string

// Ref is an indirect object reference
type Ref struct {
	Num int
	Gen int
}

// Array is a PDF array
type Array []Object

// Dict is a PDF dictionary
type Dict map[Name]Object

// Stream is a PDF stream with its dictionary and raw (encoded) data
type Stream struct {
	Dict Dict
	Data []byte
}

// Int returns the value under key as an int64
func (d Dict) Int(key Name) (int64, bool) {
	switch v := d[key].(type) {
	case Integer:
		return int64(v), true
	case Real:
		return int64(v), true
	}
	return 0, false
}

// NameValue returns the value under key as a Name
func (d Dict) NameValue(key Name) (Name, bool) {
	v, ok := d[key].(Name)
	return v, ok
}

// Float returns a numeric object as float64
func Float(obj Object) (float64, bool) {
	switch v := obj.(type) {
	case Integer:
		return float64(v), true
	case Real:
		return float64(v), true
	}
	return 0, false
}

// Serialize writes an object in PDF syntax
func Serialize(sb *strings.Builder, obj Object) {
	switch v := obj.(type) {
	case nil, Null:
		sb.WriteString("null")
	case Bool:
		if v {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case Integer:
		sb.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		sb.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 64))
	case String:
		// Hex form avoids escaping concerns
		sb.WriteByte('<')
		for _, b := range v {
			fmt.Fprintf(sb, "%02X", b)
		}
		sb.WriteByte('>')
	case Name:
		sb.WriteByte('/')
		for i := 0; i < len(v); i++ {
			c := v[i]
			if c <= 0x20 || c >= 0x7f || strings.IndexByte("()<>[]{}/%#", c) >= 0 {
				fmt.Fprintf(sb, "#%02X", c)
			} else {
				sb.WriteByte(c)
			}
		}
	case Ref:
		fmt.Fprintf(sb, "%d %d R", v.Num, v.Gen)
	case Array:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteByte(' ')
			}
			Serialize(sb, item)
		}
		sb.WriteByte(']')
	case Dict:
		serializeDict(sb, v)
	case *Stream:
		serializeDict(sb, v.Dict)
		sb.WriteString("\nstream\n")
		sb.Write(v.Data)
		sb.WriteString("\nendstream")
	default:
		panic(fmt.Sprintf("pdf: cannot serialize %T", obj))
	}
}

func serializeDict(sb *strings.Builder, d Dict) {
	// Deterministic key order keeps output reproducible
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	sb.WriteString("<<")
	for _, k := range keys {
		Serialize(sb, Name(k))
		sb.WriteByte(' ')
		Serialize(sb, d[Name(k)])
	}
	sb.WriteString(">>")
}
