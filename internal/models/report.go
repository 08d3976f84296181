package models

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Credential is the API key a user supplies for one interpretation.
// It is passed explicitly to the invoker and never stored.
type Credential struct {
	APIKey string
}

// IsZero reports whether no usable key was supplied.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(c.APIKey) == ""
}

// String redacts the key so a Credential can't leak through logging.
func (c Credential) String() string {
	if c.IsZero() {
		return "credential(none)"
	}
	return "credential(redacted)"
}

// Image is a decoded, validated report photo.
type Image struct {
	MIMEType string
	Data     []byte
	Width    int
	Height   int
}

// DataURL encodes the image for inline display and for the model request.
func (img *Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", img.MIMEType, base64.StdEncoding.EncodeToString(img.Data))
}

// SessionInput is what a user submitted in one interaction.
type SessionInput struct {
	Text  string
	Image *Image
}

func (in SessionInput) HasText() bool {
	return strings.TrimSpace(in.Text) != ""
}

func (in SessionInput) HasImage() bool {
	return in.Image != nil && len(in.Image.Data) > 0
}

// IsEmpty is true when there is neither text nor an image to interpret.
func (in SessionInput) IsEmpty() bool {
	return !in.HasText() && !in.HasImage()
}

type PartKind string

const (
	PartText  PartKind = "text"
	PartImage PartKind = "image"
)

// Part is one element of the ordered request sent to the model.
type Part struct {
	Kind  PartKind
	Text  string
	Image *Image
}

// AnalysisRequest is built fresh for every interpretation.
type AnalysisRequest struct {
	Model string
	Parts []Part
}

// AnalysisResult is the structured reply the model is asked to produce.
type AnalysisResult struct {
	Summary    string      `json:"summary"`
	Indicators []Indicator `json:"indicators"`
}

// Indicator is one measured value from the report.
type Indicator struct {
	Name           string     `json:"name"`
	Value          FlexString `json:"value"`
	Unit           FlexString `json:"unit"`
	Status         string     `json:"status"`
	Interpretation string     `json:"interpretation"`
}

// Level classifies the indicator status.
func (i Indicator) Level() Level {
	return ClassifyStatus(i.Status)
}

// Reading joins value and unit, e.g. "65 U/L".
func (i Indicator) Reading() string {
	value := strings.TrimSpace(string(i.Value))
	unit := strings.TrimSpace(string(i.Unit))
	if unit == "" {
		return value
	}
	if value == "" {
		return unit
	}
	return value + " " + unit
}

// FlexString decodes from a JSON string or a JSON number.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = FlexString(n.String())
	return nil
}
