package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// FieldType is the input kind of a dynamic form field
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldDate     FieldType = "date"
	FieldNumber   FieldType = "number"
	FieldSelect   FieldType = "select"
)

// Valid reports whether t is one of the known field types
func (t FieldType) Valid() bool {
	switch t {
	case FieldText, FieldTextarea, FieldDate, FieldNumber, FieldSelect:
		return true
	}
	return false
}

// Stored list names, also used as validation detail keys
const (
	ListFormSchema        = "form_schema"
	ListRequiredDocuments = "required_documents"
)

// FieldDescriptor describes one dynamic form input
type FieldDescriptor struct {
	Name     string    `json:"name"`
	Label    string    `json:"label"`
	Type     FieldType `json:"type"`
	Required bool      `json:"required"`
	Options  []string  `json:"options,omitempty"`
}

// DocumentSlotDescriptor describes one upload requirement. With SubInputs
// set the slot takes one file per sub-label.
type DocumentSlotDescriptor struct {
	Label     string   `json:"label"`
	Required  bool     `json:"required"`
	SubInputs []string `json:"sub_inputs,omitempty"`
}

// Schema is the typed form of a service's stored lists
type Schema struct {
	Fields    []FieldDescriptor        `json:"form_schema"`
	Documents []DocumentSlotDescriptor `json:"required_documents"`
}

// IsEmpty reports whether the schema has neither fields nor slots
func (s Schema) IsEmpty() bool {
	return len(s.Fields) == 0 && len(s.Documents) == 0
}

// SchemaError describes why a stored or submitted list was rejected
type SchemaError struct {
	List   string
	Index  int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("%s: %s", e.List, e.Reason)
	}
	return fmt.Sprintf("%s[%d]: %s", e.List, e.Index, e.Reason)
}

// ValidateFields checks names, types and options of a field list
func ValidateFields(fields []FieldDescriptor) error {
	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		switch {
		case strings.TrimSpace(f.Name) == "":
			return &SchemaError{List: ListFormSchema, Index: i, Reason: "name is required"}
		case f.Name != strings.TrimSpace(f.Name):
			return &SchemaError{List: ListFormSchema, Index: i, Reason: "name must not have surrounding whitespace"}
		case seen[f.Name]:
			return &SchemaError{List: ListFormSchema, Index: i, Reason: fmt.Sprintf("duplicate name %q", f.Name)}
		case !f.Type.Valid():
			return &SchemaError{List: ListFormSchema, Index: i, Reason: fmt.Sprintf("unknown type %q", f.Type)}
		case f.Type == FieldSelect && len(f.Options) == 0:
			return &SchemaError{List: ListFormSchema, Index: i, Reason: "select needs at least one option"}
		case f.Type != FieldSelect && len(f.Options) > 0:
			return &SchemaError{List: ListFormSchema, Index: i, Reason: "options are only allowed on select"}
		}
		seen[f.Name] = true
	}
	return nil
}

// ValidateDocuments checks labels and sub-input labels of a slot list
func ValidateDocuments(slots []DocumentSlotDescriptor) error {
	for i, d := range slots {
		if strings.TrimSpace(d.Label) == "" {
			return &SchemaError{List: ListRequiredDocuments, Index: i, Reason: "label is required"}
		}
		seen := make(map[string]bool, len(d.SubInputs))
		for _, sub := range d.SubInputs {
			if strings.TrimSpace(sub) == "" {
				return &SchemaError{List: ListRequiredDocuments, Index: i, Reason: "sub-input labels must not be empty"}
			}
			if seen[sub] {
				return &SchemaError{List: ListRequiredDocuments, Index: i, Reason: fmt.Sprintf("duplicate sub-input %q", sub)}
			}
			seen[sub] = true
		}
	}
	return nil
}

// DecodeFields strictly decodes a submitted field list: unknown keys and
// trailing data are rejected. Blank text is an empty list. A missing type
// defaults to text.
func DecodeFields(text string) ([]FieldDescriptor, error) {
	return decodeFields(text, true)
}

// DecodeDocuments strictly decodes a submitted slot list.
func DecodeDocuments(text string) ([]DocumentSlotDescriptor, error) {
	return decodeDocuments(text, true)
}

func decodeFields(text string, strict bool) ([]FieldDescriptor, error) {
	var fields []FieldDescriptor
	if err := decodeList(text, ListFormSchema, &fields, strict); err != nil {
		return nil, err
	}
	for i := range fields {
		if fields[i].Type == "" {
			fields[i].Type = FieldText
		}
	}
	if err := ValidateFields(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func decodeDocuments(text string, strict bool) ([]DocumentSlotDescriptor, error) {
	var slots []DocumentSlotDescriptor
	if err := decodeList(text, ListRequiredDocuments, &slots, strict); err != nil {
		return nil, err
	}
	if err := ValidateDocuments(slots); err != nil {
		return nil, err
	}
	return slots, nil
}

func decodeList(text, list string, out interface{}, strict bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	dec := json.NewDecoder(strings.NewReader(text))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(out); err != nil {
		return &SchemaError{List: list, Index: -1, Reason: err.Error()}
	}
	if dec.More() {
		return &SchemaError{List: list, Index: -1, Reason: "unexpected data after list"}
	}
	return nil
}

// ParseSchema reads both stored lists leniently: attributes it does not
// know are ignored, and a list that is absent or fails to decode comes back
// empty with its error returned alongside so the caller can log it. The
// schema is always usable.
func ParseSchema(formSchema, requiredDocuments *string) (Schema, []error) {
	var (
		schema Schema
		errs   []error
	)

	if formSchema != nil {
		fields, err := decodeFields(*formSchema, false)
		if err != nil {
			errs = append(errs, err)
		} else {
			schema.Fields = fields
		}
	}
	if requiredDocuments != nil {
		slots, err := decodeDocuments(*requiredDocuments, false)
		if err != nil {
			errs = append(errs, err)
		} else {
			schema.Documents = slots
		}
	}

	if schema.Fields == nil {
		schema.Fields = []FieldDescriptor{}
	}
	if schema.Documents == nil {
		schema.Documents = []DocumentSlotDescriptor{}
	}
	return schema, errs
}

// EncodeFields serialises a field list. An empty list encodes to nil so it is stored as NULL.
func EncodeFields(fields []FieldDescriptor) (*string, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	return encodeList(fields)
}

// EncodeDocuments serialises a slot list. An empty list encodes to nil.
func EncodeDocuments(slots []DocumentSlotDescriptor) (*string, error) {
	if len(slots) == 0 {
		return nil, nil
	}
	return encodeList(slots)
}

func encodeList(v interface{}) (*string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	text := strings.TrimRight(buf.String(), "\n")
	return &text, nil
}

// EncodeSchema validates both lists, encodes them and decodes the result
// again; the stored text is returned only when that round trip is lossless.
func EncodeSchema(s Schema) (formSchema, requiredDocuments *string, err error) {
	fields := normaliseFields(s.Fields)
	slots := normaliseDocuments(s.Documents)
	if err := ValidateFields(fields); err != nil {
		return nil, nil, err
	}
	if err := ValidateDocuments(slots); err != nil {
		return nil, nil, err
	}

	formSchema, err = EncodeFields(fields)
	if err != nil {
		return nil, nil, &SchemaError{List: ListFormSchema, Index: -1, Reason: err.Error()}
	}
	requiredDocuments, err = EncodeDocuments(slots)
	if err != nil {
		return nil, nil, &SchemaError{List: ListRequiredDocuments, Index: -1, Reason: err.Error()}
	}

	if formSchema != nil {
		back, err := DecodeFields(*formSchema)
		if err != nil {
			return nil, nil, err
		}
		if !reflect.DeepEqual(back, fields) {
			return nil, nil, &SchemaError{List: ListFormSchema, Index: -1, Reason: "list does not survive a round trip"}
		}
	}
	if requiredDocuments != nil {
		back, err := DecodeDocuments(*requiredDocuments)
		if err != nil {
			return nil, nil, err
		}
		if !reflect.DeepEqual(back, slots) {
			return nil, nil, &SchemaError{List: ListRequiredDocuments, Index: -1, Reason: "list does not survive a round trip"}
		}
	}

	return formSchema, requiredDocuments, nil
}

func normaliseFields(fields []FieldDescriptor) []FieldDescriptor {
	out := make([]FieldDescriptor, len(fields))
	copy(out, fields)
	for i := range out {
		if out[i].Type == "" {
			out[i].Type = FieldText
		}
		if len(out[i].Options) == 0 {
			out[i].Options = nil
		}
	}
	return out
}

func normaliseDocuments(slots []DocumentSlotDescriptor) []DocumentSlotDescriptor {
	out := make([]DocumentSlotDescriptor, len(slots))
	copy(out, slots)
	for i := range out {
		if len(out[i].SubInputs) == 0 {
			out[i].SubInputs = nil
		}
	}
	return out
}
