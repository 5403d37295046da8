package report

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

// Validation is the outcome of checking an XBRL instance. Errors block
// publication, warnings do not.
type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
	Valid    bool     `json:"isValid"`
}

var (
	requiredNamespaces = []string{"xmlns", "xmlns:xsi", "xmlns:csrd"}
	mandatoryTags      = []string{TagScope1, TagScope2, TagScope3, TagTotal}
	recommendedTags    = []string{TagMethodology, TagEntityName, TagGenerated, TagTool}
)

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

// ValidateXBRL checks root identity, namespace declarations and fact tags.
// Each missing mandatory tag produces exactly one error.
func ValidateXBRL(data []byte) Validation {
	v := Validation{Errors: []string{}, Warnings: []string{}}

	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		root  *xml.StartElement
		names = map[string]bool{}
	)
	for {
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			v.Errors = append(v.Errors, fmt.Sprintf("Failed to parse XBRL: %v", err))
			return v
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if root == nil {
			s := start.Copy()
			root = &s
		}
		names[qualified(start.Name)] = true
	}

	if root == nil {
		v.Errors = append(v.Errors, "Invalid XBRL root element")
		return v
	}
	if qualified(root.Name) != "xbrl" {
		v.Errors = append(v.Errors, "Invalid XBRL root element")
	}

	declared := map[string]bool{}
	for _, a := range root.Attr {
		if a.Value != "" {
			declared[qualified(a.Name)] = true
		}
	}
	for _, ns := range requiredNamespaces {
		if !declared[ns] {
			v.Errors = append(v.Errors, "Missing required namespace: "+ns)
		}
	}

	for _, tag := range mandatoryTags {
		if !names[tag] {
			v.Errors = append(v.Errors, "Missing mandatory element: "+tag)
		}
	}
	for _, tag := range recommendedTags {
		if !names[tag] {
			v.Warnings = append(v.Warnings, "Missing recommended element: "+tag)
		}
	}

	v.Valid = len(v.Errors) == 0
	return v
}
