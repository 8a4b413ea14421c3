package trigger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Kind is the type of a build parameter value.
type Kind int

const (
	KindString Kind = iota
	KindBool
)

func (k Kind) String() string {
	return [...]string{
		"string",
		"bool",
	}[k]
}

// Value is a build parameter value: either a string or a boolean. Jenkins
// receives booleans for flags such as RUN_ON_EXOTICS and strings for
// everything else.
type Value struct {
	kind Kind
	s    string
	b    bool
}

// String returns a string-typed Value.
func String(s string) Value {
	return Value{kind: KindString, s: s}
}

// Bool returns a boolean-typed Value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

func (v Value) Kind() Kind {
	return v.kind
}

// Text renders the value as it is sent over the wire.
func (v Value) Text() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return v.s
}

func (v Value) String() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return strconv.Quote(v.s)
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindBool {
		return json.Marshal(v.b)
	}
	return json.Marshal(v.s)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = Bool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("parameter value must be a string or a boolean: %w", err)
	}
	*v = String(s)
	return nil
}

// Param is a single named build parameter.
type Param struct {
	Name  string
	Value Value
}

// Params is an ordered set of build parameters. Names are unique; setting an
// existing name replaces its value in place.
type Params struct {
	list  []Param
	index map[string]int
}

func NewParams() *Params {
	return &Params{index: make(map[string]int)}
}

// Set assigns a value, overwriting any previous value for name.
func (p *Params) Set(name string, v Value) {
	if p.index == nil {
		p.index = make(map[string]int)
	}
	if i, ok := p.index[name]; ok {
		p.list[i].Value = v
		return
	}
	p.index[name] = len(p.list)
	p.list = append(p.list, Param{Name: name, Value: v})
}

// SetDefault assigns a value only if name is not already present. It reports
// whether the value was stored.
func (p *Params) SetDefault(name string, v Value) bool {
	if _, ok := p.index[name]; ok {
		return false
	}
	p.Set(name, v)
	return true
}

func (p *Params) Get(name string) (Value, bool) {
	i, ok := p.index[name]
	if !ok {
		return Value{}, false
	}
	return p.list[i].Value, true
}

func (p *Params) Has(name string) bool {
	_, ok := p.index[name]
	return ok
}

func (p *Params) Len() int {
	return len(p.list)
}

// List returns a copy of the parameters in insertion order.
func (p *Params) List() []Param {
	out := make([]Param, len(p.list))
	copy(out, p.list)
	return out
}

func (p *Params) Names() []string {
	out := make([]string, 0, len(p.list))
	for _, prm := range p.list {
		out = append(out, prm.Name)
	}
	return out
}

// Map flattens the parameters for comparisons and display.
func (p *Params) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.list))
	for _, prm := range p.list {
		if prm.Value.kind == KindBool {
			out[prm.Name] = prm.Value.b
		} else {
			out[prm.Name] = prm.Value.s
		}
	}
	return out
}

// Encode renders the parameters as an application/x-www-form-urlencoded body,
// preserving insertion order.
func (p *Params) Encode() string {
	var sb strings.Builder
	for i, prm := range p.list {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(url.QueryEscape(prm.Name))
		sb.WriteByte('=')
		sb.WriteString(url.QueryEscape(prm.Value.Text()))
	}
	return sb.String()
}

// MarshalJSON encodes the parameters as a JSON object, keeping order.
func (p *Params) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prm := range p.list {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(prm.Name)
		if err != nil {
			return nil, err
		}
		v, err := prm.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Params) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("parameters must be a JSON object")
	}
	*p = *NewParams()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var v Value
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		p.Set(name, v)
	}
	_, err = dec.Token()
	return err
}
