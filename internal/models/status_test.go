package models

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		raw      string
		level    Level
		abnormal bool
		color    string
	}{
		{raw: "Normal", level: LevelNormal, abnormal: false, color: "green"},
		{raw: "Warning", level: LevelWarning, abnormal: true, color: "orange"},
		{raw: "Critical", level: LevelCritical, abnormal: true, color: "red"},
		{raw: "normal", level: LevelUnrecognized, abnormal: true, color: "red"},
		{raw: " Normal", level: LevelUnrecognized, abnormal: true, color: "red"},
		{raw: "High", level: LevelUnrecognized, abnormal: true, color: "red"},
		{raw: "", level: LevelUnrecognized, abnormal: true, color: "red"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			level := ClassifyStatus(tt.raw)
			require.Equal(t, tt.level, level)
			tr := level.Treatment()
			assert.Equal(t, tt.abnormal, tr.Abnormal)
			assert.Equal(t, tt.color, tr.Color)
		})
	}
}

func TestIndicatorReading(t *testing.T) {
	tests := []struct {
		name string
		ind  Indicator
		want string
	}{
		{name: "value and unit", ind: Indicator{Value: "65", Unit: "U/L"}, want: "65 U/L"},
		{name: "no unit", ind: Indicator{Value: "阴性"}, want: "阴性"},
		{name: "padded", ind: Indicator{Value: " 5.2 ", Unit: " mmol/L"}, want: "5.2 mmol/L"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ind.Reading())
		})
	}
}

func TestFlexStringAcceptsNumbers(t *testing.T) {
	var ind Indicator
	err := json.Unmarshal([]byte(`{"name":"ALT","value":65,"unit":null,"status":"Warning"}`), &ind)
	require.NoError(t, err)
	assert.Equal(t, "65", string(ind.Value))
	assert.Empty(t, ind.Unit)

	assert.Error(t, json.Unmarshal([]byte(`{"value":{"x":1}}`), &ind), "object value should be rejected")
}

func TestCredentialNeverPrintsKey(t *testing.T) {
	cred := Credential{APIKey: "AIzaSecretValue"}
	assert.NotContains(t, cred.String(), "AIza")
	assert.True(t, Credential{APIKey: "   "}.IsZero(), "blank key should be zero")
}

func TestSessionInputIsEmpty(t *testing.T) {
	assert.True(t, SessionInput{Text: "  \n"}.IsEmpty(), "whitespace-only text counts as empty")
	assert.False(t, SessionInput{Image: &Image{MIMEType: "image/png", Data: []byte{1}}}.IsEmpty(), "image-only input is not empty")
	assert.True(t, SessionInput{Image: &Image{}}.IsEmpty(), "image without bytes counts as empty")
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := WrapError(KindNetwork, "invoke", "model call failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Empty(t, KindOf(errors.New("plain")), "plain errors have no kind")

	rewrapped := WrapError(KindMalformedReply, "parse", "ignored", err)
	assert.Equal(t, KindNetwork, KindOf(rewrapped), "rewrapping keeps the original kind")
	assert.NoError(t, WrapError(KindNetwork, "op", "msg", nil))
	assert.Contains(t, err.Error(), "[network:invoke]")
}
