package controllers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	reqcontext "github.com/medinfo-ai/medinfo/context"
	"github.com/medinfo-ai/medinfo/internal/models"
	"github.com/medinfo-ai/medinfo/internal/views"
)

// APIController exposes the interpretation flow as JSON.
type APIController struct {
	interpreter Interpreter
	images      ImageDecoder
}

func NewAPIController(interpreter Interpreter, images ImageDecoder) *APIController {
	return &APIController{interpreter: interpreter, images: images}
}

// InterpretRequest is the JSON body of POST /api/v1/interpret.
type InterpretRequest struct {
	Text        string `json:"text"`
	ImageBase64 string `json:"image_base64"`
	ImageMIME   string `json:"image_mime"`
	Model       string `json:"model"`
}

// InterpretResponse wraps the rendered result.
type InterpretResponse struct {
	Model  string            `json:"model"`
	Result *views.ResultView `json:"result"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Kind      models.Kind `json:"kind"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
}

// PostInterpret handles POST /api/v1/interpret.
func (c *APIController) PostInterpret(w http.ResponseWriter, r *http.Request) {
	log := reqcontext.Logger(r.Context())

	var body InterpretRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		c.writeError(w, r, http.StatusBadRequest, models.KindInvalidRequest, "invalid JSON body: "+err.Error())
		return
	}

	cred := credentialFromHeader(r)
	if cred.IsZero() {
		c.writeKindedError(w, r, models.WrapError(models.KindCredential, "interpret", "missing API key", models.ErrMissingCredential))
		return
	}

	input := models.SessionInput{Text: body.Text}
	if body.ImageBase64 != "" {
		img, err := c.decodeImage(body.ImageBase64, body.ImageMIME)
		if err != nil {
			c.writeKindedError(w, r, err)
			return
		}
		input.Image = img
	}

	result, err := c.interpreter.Interpret(r.Context(), cred, body.Model, input)
	if err != nil {
		if !models.IsKind(err, models.KindEmptyInput) && !models.IsKind(err, models.KindCredential) {
			log.WithError(err).WithField("kind", models.KindOf(err)).Error("interpretation failed")
		}
		c.writeKindedError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, InterpretResponse{
		Model:  c.interpreter.ResolveModel(body.Model),
		Result: views.NewResultView(result),
	})
}

// decodeImage accepts raw base64 or a data URL. A declared MIME type must
// agree with the sniffed one.
func (c *APIController) decodeImage(encoded, declared string) (*models.Image, error) {
	if strings.HasPrefix(encoded, "data:") {
		if i := strings.Index(encoded, ","); i >= 0 {
			encoded = encoded[i+1:]
		}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, models.WrapError(models.KindInvalidImage, "decode upload", "image is not valid base64", err)
	}
	img, err := c.images.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	if declared != "" && !strings.EqualFold(declared, img.MIMEType) {
		return nil, models.NewError(models.KindInvalidImage, "decode upload",
			fmt.Sprintf("declared type %s does not match image content %s", declared, img.MIMEType))
	}
	return img, nil
}

// credentialFromHeader reads X-Api-Key, falling back to a bearer token.
func credentialFromHeader(r *http.Request) models.Credential {
	if key := r.Header.Get("X-Api-Key"); key != "" {
		return models.Credential{APIKey: key}
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return models.Credential{APIKey: token}
	}
	return models.Credential{}
}

func (c *APIController) writeKindedError(w http.ResponseWriter, r *http.Request, err error) {
	var typed *models.Error
	if !errors.As(err, &typed) {
		c.writeError(w, r, http.StatusInternalServerError, "", err.Error())
		return
	}
	c.writeError(w, r, StatusForKind(typed.Kind), typed.Kind, typed.Description())
}

func (c *APIController) writeError(w http.ResponseWriter, r *http.Request, status int, kind models.Kind, msg string) {
	writeJSON(w, status, ErrorResponse{Error: APIError{
		Kind:      kind,
		Message:   msg,
		RequestID: reqcontext.RequestID(r.Context()),
	}})
}

// StatusForKind maps an error kind to the HTTP status of the JSON API.
func StatusForKind(kind models.Kind) int {
	switch kind {
	case models.KindCredential:
		return http.StatusUnauthorized
	case models.KindEmptyInput, models.KindInvalidImage, models.KindInvalidRequest:
		return http.StatusBadRequest
	case models.KindNetwork, models.KindMalformedReply:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
