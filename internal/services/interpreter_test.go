package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/medinfo-ai/medinfo/internal/models"
)

// MockInvoker stands in for the external model.
type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) Invoke(ctx context.Context, cred models.Credential, req models.AnalysisRequest) (string, error) {
	args := m.Called(ctx, cred, req)
	return args.String(0), args.Error(1)
}

// replying returns an invoker that answers every call with reply and err.
func replying(reply string, err error) *MockInvoker {
	inv := &MockInvoker{}
	inv.On("Invoke", mock.Anything, mock.Anything, mock.Anything).Return(reply, err)
	return inv
}

// lastRequest returns the request of the most recent call.
func (m *MockInvoker) lastRequest(t *testing.T) models.AnalysisRequest {
	t.Helper()
	require.NotEmpty(t, m.Calls, "model was never called")
	return m.Calls[len(m.Calls)-1].Arguments.Get(2).(models.AnalysisRequest)
}

func newTestInterpreter(inv ModelInvoker) *Interpreter {
	return NewInterpreter(inv, InterpreterConfig{
		DefaultModel:  "gemini-2.5-flash",
		AllowedModels: []string{"gemini-2.5-flash", "gemini-2.5-pro"},
		Timeout:       time.Second,
	})
}

func TestInterpretScenarioText(t *testing.T) {
	inv := &MockInvoker{}
	inv.On("Invoke", mock.Anything, models.Credential{APIKey: "k"}, mock.MatchedBy(func(req models.AnalysisRequest) bool {
		return req.Model == "gemini-2.5-flash"
	})).Return(scenarioReply, nil).Once()
	svc := newTestInterpreter(inv)

	result, err := svc.Interpret(context.Background(), models.Credential{APIKey: "k"}, "", models.SessionInput{Text: "谷丙转氨酶 65 U/L"})

	require.NoError(t, err)
	inv.AssertExpectations(t)
	assert.Equal(t, "别担心", result.Summary)
	require.Len(t, result.Indicators, 1)
	assert.Equal(t, "谷丙转氨酶", result.Indicators[0].Name)
}

func TestInterpretValidationSkipsModel(t *testing.T) {
	tests := []struct {
		name  string
		cred  models.Credential
		input models.SessionInput
		kind  models.Kind
	}{
		{name: "no input", cred: models.Credential{APIKey: "k"}, input: models.SessionInput{}, kind: models.KindEmptyInput},
		{name: "blank text", cred: models.Credential{APIKey: "k"}, input: models.SessionInput{Text: "   "}, kind: models.KindEmptyInput},
		{name: "no credential", cred: models.Credential{}, input: models.SessionInput{Text: "ALT 65"}, kind: models.KindCredential},
		{name: "nothing at all", cred: models.Credential{APIKey: " "}, input: models.SessionInput{}, kind: models.KindCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := replying(scenarioReply, nil)

			_, err := newTestInterpreter(inv).Interpret(context.Background(), tt.cred, "", tt.input)

			assert.Equal(t, tt.kind, models.KindOf(err))
			inv.AssertNotCalled(t, "Invoke", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestInterpretErrors(t *testing.T) {
	text := models.SessionInput{Text: "x"}
	cred := models.Credential{APIKey: "k"}

	t.Run("malformed reply", func(t *testing.T) {
		result, err := newTestInterpreter(replying("not json", nil)).Interpret(context.Background(), cred, "", text)
		assert.Nil(t, result)
		assert.True(t, models.IsKind(err, models.KindMalformedReply), "err = %v", err)
	})

	t.Run("null reply", func(t *testing.T) {
		result, err := newTestInterpreter(replying("null", nil)).Interpret(context.Background(), cred, "", text)
		assert.Nil(t, result)
		assert.True(t, models.IsKind(err, models.KindMalformedReply), "err = %v", err)
	})

	t.Run("untyped invoker error is network", func(t *testing.T) {
		cause := errors.New("connection reset")
		_, err := newTestInterpreter(replying("", cause)).Interpret(context.Background(), cred, "", text)
		assert.True(t, models.IsKind(err, models.KindNetwork))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("typed invoker error keeps kind", func(t *testing.T) {
		rejected := models.NewError(models.KindCredential, "invoke", "API key was rejected")
		_, err := newTestInterpreter(replying("", rejected)).Interpret(context.Background(), cred, "", text)
		assert.Equal(t, models.KindCredential, models.KindOf(err))
	})
}

func TestInterpretAppliesTimeout(t *testing.T) {
	inv := replying(scenarioReply, nil)

	_, err := newTestInterpreter(inv).Interpret(context.Background(), models.Credential{APIKey: "k"}, "", models.SessionInput{Text: "x"})
	require.NoError(t, err)

	ctx := inv.Calls[0].Arguments.Get(0).(context.Context)
	_, hasDeadline := ctx.Deadline()
	assert.True(t, hasDeadline, "model call should run under a deadline")
}

func TestInterpreterModelResolution(t *testing.T) {
	svc := newTestInterpreter(&MockInvoker{})

	assert.Equal(t, "gemini-2.5-pro", svc.ResolveModel("gemini-2.5-pro"))
	assert.Equal(t, "gemini-2.5-flash", svc.ResolveModel("gpt-4o"))
	assert.Equal(t, "gemini-2.5-flash", svc.ResolveModel(""))
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-pro"}, svc.Models())
}

func TestInterpretUsesResolvedModel(t *testing.T) {
	inv := replying(scenarioReply, nil)

	_, err := newTestInterpreter(inv).Interpret(context.Background(), models.Credential{APIKey: "k"}, "gpt-4o", models.SessionInput{Text: "x"})

	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", inv.lastRequest(t).Model)
}

func TestBuildRequestOrderAndPurity(t *testing.T) {
	img := &models.Image{MIMEType: "image/jpeg", Data: []byte{0xFF, 0xD8}}
	input := models.SessionInput{Text: "  ALT 65  ", Image: img}

	first := BuildRequest("inst", "m", input)
	second := BuildRequest("inst", "m", input)

	require.Len(t, first.Parts, 3)
	assert.Equal(t, "inst", first.Parts[0].Text)
	assert.Equal(t, ReportTextPrefix+"ALT 65", first.Parts[1].Text)
	assert.Same(t, img, first.Parts[2].Image)
	assert.Equal(t, first, second)

	imageOnly := BuildRequest("inst", "m", models.SessionInput{Image: img})
	require.Len(t, imageOnly.Parts, 2)
	assert.Equal(t, models.PartImage, imageOnly.Parts[1].Kind)

	textOnly := BuildRequest("inst", "m", models.SessionInput{Text: "x"})
	require.Len(t, textOnly.Parts, 2)
	assert.Equal(t, models.PartText, textOnly.Parts[1].Kind)
}
