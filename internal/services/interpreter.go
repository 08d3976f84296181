package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	reqcontext "github.com/medinfo-ai/medinfo/context"
	"github.com/medinfo-ai/medinfo/internal/models"
)

// ModelInvoker sends an assembled request to an external model and returns
// the raw reply text.
type ModelInvoker interface {
	Invoke(ctx context.Context, cred models.Credential, req models.AnalysisRequest) (string, error)
}

// Interpreter runs one report interpretation end to end.
type Interpreter struct {
	invoker      ModelInvoker
	instruction  string
	defaultModel string
	allowed      map[string]bool
	models       []string
	timeout      time.Duration
}

// InterpreterConfig configures an Interpreter.
type InterpreterConfig struct {
	Instruction   string
	DefaultModel  string
	AllowedModels []string
	Timeout       time.Duration
}

func NewInterpreter(invoker ModelInvoker, cfg InterpreterConfig) *Interpreter {
	instruction := cfg.Instruction
	if instruction == "" {
		instruction = DefaultInstruction
	}
	allowed := map[string]bool{cfg.DefaultModel: true}
	list := []string{cfg.DefaultModel}
	for _, m := range cfg.AllowedModels {
		if !allowed[m] {
			allowed[m] = true
			list = append(list, m)
		}
	}

	return &Interpreter{
		invoker:      invoker,
		instruction:  instruction,
		defaultModel: cfg.DefaultModel,
		allowed:      allowed,
		models:       list,
		timeout:      cfg.Timeout,
	}
}

// Models lists the selectable model identifiers, default first.
func (s *Interpreter) Models() []string {
	return append([]string(nil), s.models...)
}

// ResolveModel returns model if it is allowed, the default otherwise.
func (s *Interpreter) ResolveModel(model string) string {
	if model != "" && s.allowed[model] {
		return model
	}
	return s.defaultModel
}

// Interpret validates the input, calls the model and parses its reply.
// The credential is checked before the input; neither check calls the model.
func (s *Interpreter) Interpret(ctx context.Context, cred models.Credential, model string, input models.SessionInput) (*models.AnalysisResult, error) {
	if cred.IsZero() {
		return nil, models.WrapError(models.KindCredential, "interpret", "missing API key", models.ErrMissingCredential)
	}
	if input.IsEmpty() {
		return nil, models.WrapError(models.KindEmptyInput, "interpret", "nothing to interpret", models.ErrEmptyInput)
	}

	log := reqcontext.Logger(ctx)
	resolved := s.ResolveModel(model)
	if model != "" && resolved != model {
		log.WithField("requested_model", model).Warn("unknown model requested, using default")
	}

	req := BuildRequest(s.instruction, resolved, input)

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.invoker.Invoke(ctx, cred, req)
	if err != nil {
		return nil, models.WrapError(models.KindNetwork, "interpret", "model call failed", err)
	}

	result, err := ParseResult(raw)
	if err != nil {
		log.WithField("reply_bytes", len(raw)).Debug("model reply could not be parsed")
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"model":       resolved,
		"has_text":    input.HasText(),
		"has_image":   input.HasImage(),
		"indicators":  len(result.Indicators),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("report interpreted")

	return result, nil
}
