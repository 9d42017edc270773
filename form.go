package sourcewatch

import (
	"bytes"
	"fmt"
	"mime/multipart"
)

// Form is a raw multipart payload, the equivalent of a browser FormData.
type Form struct {
	fields []formField
}

type formField struct {
	name  string
	value string
}

// NewForm builds a form from name/value pairs.
func NewForm(pairs ...string) *Form {
	f := &Form{}
	for i := 0; i+1 < len(pairs); i += 2 {
		f.Add(pairs[i], pairs[i+1])
	}
	return f
}

// Add appends a field. Fields keep insertion order.
func (f *Form) Add(name, value string) {
	f.fields = append(f.fields, formField{name: name, value: value})
}

// Get returns the first value of name.
func (f *Form) Get(name string) string {
	for _, fld := range f.fields {
		if fld.name == name {
			return fld.value
		}
	}
	return ""
}

// encode writes the multipart body and returns it with its content type.
func (f *Form) encode() ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, fld := range f.fields {
		if err := w.WriteField(fld.name, fld.value); err != nil {
			return nil, "", fmt.Errorf("write form field %q: %w", fld.name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

func formFromArgs(args Args, skip map[string]bool) *Form {
	f := &Form{}
	for _, k := range sortedKeys(args) {
		if skip[k] || args[k] == nil {
			continue
		}
		f.Add(k, formatValue(args[k]))
	}
	return f
}
