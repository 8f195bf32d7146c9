package instrument

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// parseSystemModel walks a free-form legacy system-info document looking for
// the system model element. The legacy API does not publish a schema, so the
// document is scanned token by token rather than unmarshalled into a fixed
// struct; element casing varies between firmware revisions.
func parseSystemModel(doc []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(doc))
	inModel := false
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			inModel = name == "systemmodel" || name == "system_model"
		case xml.CharData:
			if inModel {
				model := strings.TrimSpace(string(t))
				if model != "" {
					return model, nil
				}
			}
		case xml.EndElement:
			inModel = false
		}
	}
	return "", fmt.Errorf("no system model in document")
}
