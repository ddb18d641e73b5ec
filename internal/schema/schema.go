// Copyright (c) majsoul-match-stats Authors. All Rights Reserved.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// schema parses the proto definition resource fetched from the game server
// into a registry of message types and services. The definition is a
// protobufjs-style JSON document whose layout is only known at connection
// time, so no generated code is involved anywhere.
package schema

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/pingcap/errors"
)

// DefaultNamespace is prepended to bare type names on lookup, since callers
// routinely omit the top-level package of the fetched definition.
const DefaultNamespace = "lq"

// Errors that could be occurred during schema lookups
var (
	ErrUnknownType    = errors.New("unknown message type")
	ErrUnknownService = errors.New("unknown service")
	ErrUnknownMethod  = errors.New("unknown method")
)

// FieldSpec describes a single field of a message type.
type FieldSpec struct {
	ID       int
	Type     string
	Repeated bool
}

// Field pairs a field name with its spec, used for deterministic iteration.
type Field struct {
	Name string
	Spec FieldSpec
}

// MessageType is one registered message definition.
type MessageType struct {
	Name   string
	Fields map[string]FieldSpec

	byID    map[int]Field
	ordered []Field // ascending field id
}

// FieldByID returns the field declared with the given field number.
func (m *MessageType) FieldByID(id int) (Field, bool) {
	f, ok := m.byID[id]
	return f, ok
}

// OrderedFields returns the message fields in ascending field-number order.
// Field numbers are unique within one message type, so the order is total.
func (m *MessageType) OrderedFields() []Field {
	return m.ordered
}

// Method describes one service method with its request/response type names.
type Method struct {
	Name         string
	RequestType  string
	ResponseType string
}

// ServiceType is one registered service definition.
type ServiceType struct {
	Name    string
	Methods map[string]Method
}

// Registry holds every message type and service found in a fetched
// definition, keyed by fully-qualified dotted name. It is built once per
// session and read-only afterwards.
type Registry struct {
	types    map[string]*MessageType
	services map[string]*ServiceType
}

type rawNode struct {
	Fields  map[string]rawField  `json:"fields"`
	Methods map[string]rawMethod `json:"methods"`
	Nested  map[string]rawNode   `json:"nested"`
}

type rawField struct {
	ID   int    `json:"id"`
	Type string `json:"type"`
	Rule string `json:"rule"`
}

type rawMethod struct {
	RequestType  string `json:"requestType"`
	ResponseType string `json:"responseType"`
}

// Parse builds a Registry from the raw proto definition document.
func Parse(raw []byte) (*Registry, error) {
	var root rawNode
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, errors.Annotate(err, "parse proto definition")
	}

	r := &Registry{
		types:    make(map[string]*MessageType),
		services: make(map[string]*ServiceType),
	}
	r.walk("", root)
	return r, nil
}

// walk registers every node of the nested namespace tree under its
// accumulated dotted path. A node with fields is a message type, a node with
// methods is a service; a node may also only exist to hold nested children.
func (r *Registry) walk(prefix string, n rawNode) {
	for name, child := range n.Nested {
		full := name
		if prefix != "" {
			full = prefix + "." + name
		}

		if child.Fields != nil {
			r.types[full] = newMessageType(full, child.Fields)
		} else if child.Methods != nil {
			svc := &ServiceType{Name: full, Methods: make(map[string]Method)}
			for mn, md := range child.Methods {
				svc.Methods[mn] = Method{
					Name:         mn,
					RequestType:  md.RequestType,
					ResponseType: md.ResponseType,
				}
			}
			r.services[full] = svc
		}

		if len(child.Nested) > 0 {
			r.walk(full, child)
		}
	}
}

func newMessageType(name string, raw map[string]rawField) *MessageType {
	m := &MessageType{
		Name:   name,
		Fields: make(map[string]FieldSpec, len(raw)),
		byID:   make(map[int]Field, len(raw)),
	}
	for fn, fd := range raw {
		spec := FieldSpec{ID: fd.ID, Type: fd.Type, Repeated: fd.Rule == "repeated"}
		m.Fields[fn] = spec
		m.byID[fd.ID] = Field{Name: fn, Spec: spec}
	}
	for _, f := range m.byID {
		m.ordered = append(m.ordered, f)
	}
	sort.Slice(m.ordered, func(i, j int) bool {
		return m.ordered[i].Spec.ID < m.ordered[j].Spec.ID
	})
	return m
}

// LookupType resolves a message type by name, trying the literal name first
// and then the name prefixed with the default namespace.
func (r *Registry) LookupType(name string) (*MessageType, error) {
	if m, ok := r.types[name]; ok {
		return m, nil
	}
	if m, ok := r.types[DefaultNamespace+"."+name]; ok {
		return m, nil
	}
	return nil, errors.Annotatef(ErrUnknownType, "type %q", name)
}

// HasType reports whether a message type is registered under the given name
// or its namespaced variant.
func (r *Registry) HasType(name string) bool {
	_, err := r.LookupType(name)
	return err == nil
}

// LookupService resolves a service by name, trying the literal name first and
// then the name prefixed with the default namespace.
func (r *Registry) LookupService(name string) (*ServiceType, error) {
	if s, ok := r.services[name]; ok {
		return s, nil
	}
	if s, ok := r.services[DefaultNamespace+"."+name]; ok {
		return s, nil
	}
	return nil, errors.Annotatef(ErrUnknownService, "service %q", name)
}

// ResolveMethod splits a full method name such as ".lq.Lobby.fetchGameRecord"
// into its service and method parts and returns the method definition.
func (r *Registry) ResolveMethod(full string) (Method, error) {
	parts := strings.Split(strings.TrimPrefix(full, "."), ".")
	if len(parts) < 2 {
		return Method{}, errors.Annotatef(ErrUnknownMethod, "invalid method name %q", full)
	}

	svcName := strings.Join(parts[:len(parts)-1], ".")
	svc, err := r.LookupService(svcName)
	if err != nil {
		return Method{}, errors.Trace(err)
	}

	m, ok := svc.Methods[parts[len(parts)-1]]
	if !ok {
		return Method{}, errors.Annotatef(ErrUnknownMethod, "method %q", full)
	}
	return m, nil
}
