package controllers

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"

	reqcontext "github.com/medinfo-ai/medinfo/context"
	"github.com/medinfo-ai/medinfo/internal/models"
	"github.com/medinfo-ai/medinfo/internal/views"
)

// User-facing messages.
const (
	MsgMissingCredential = "请先在左侧边栏输入 API Key"
	MsgEmptyInput        = "请输入文字或上传图片"
	MsgInvalidForm       = "表单数据无效"
	MsgTooLarge          = "上传内容过大"
	MsgSuccess           = "解读完成！"
)

// Interpreter is the orchestration the controller depends on.
type Interpreter interface {
	Interpret(ctx context.Context, cred models.Credential, model string, input models.SessionInput) (*models.AnalysisResult, error)
	Models() []string
	ResolveModel(model string) string
}

// ImageDecoder validates uploaded report photos.
type ImageDecoder interface {
	Decode(r io.Reader) (*models.Image, error)
	DecodeBytes(data []byte) (*models.Image, error)
}

// InterpretController serves the report interpretation page.
type InterpretController struct {
	interpreter    Interpreter
	images         ImageDecoder
	template       *views.Template
	maxUploadBytes int64
	isDevelopment  bool
}

// NewInterpretController creates a new InterpretController.
func NewInterpretController(
	interpreter Interpreter,
	images ImageDecoder,
	tpl *views.Template,
	maxUploadBytes int64,
	isDevelopment bool,
) *InterpretController {
	return &InterpretController{
		interpreter:    interpreter,
		images:         images,
		template:       tpl,
		maxUploadBytes: maxUploadBytes,
		isDevelopment:  isDevelopment,
	}
}

// InterpretPageData holds data for the interpret page template.
type InterpretPageData struct {
	ReportText   string
	Model        string
	Models       []string
	ImagePreview template.URL
	MaxUploadMB  int64
	Result       *views.ResultView
}

// GetInterpret renders the empty form.
func (c *InterpretController) GetInterpret(w http.ResponseWriter, r *http.Request) {
	data := c.pageData(r, InterpretPageData{})
	c.template.ExecuteHTTP(w, r, http.StatusOK, data)
}

// PostInterpret handles the form submission: collect, validate, interpret, render.
func (c *InterpretController) PostInterpret(w http.ResponseWriter, r *http.Request) {
	log := reqcontext.Logger(r.Context())

	if err := r.ParseMultipartForm(c.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.WithError(err).Warn("failed to parse interpret form")
		data := c.pageData(r, InterpretPageData{})
		data.Flash.Error = MsgInvalidForm
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			data.Flash.Error = MsgTooLarge
			status = http.StatusRequestEntityTooLarge
		}
		c.template.ExecuteHTTP(w, r, status, data)
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	cred := models.Credential{APIKey: r.FormValue("api_key")}
	page := InterpretPageData{
		ReportText: r.FormValue("report_text"),
		Model:      c.interpreter.ResolveModel(r.FormValue("model")),
	}
	input := models.SessionInput{Text: page.ReportText}

	// Both checks are reported together, before the upload is decoded, and
	// neither calls the model.
	missingInput := !input.HasText() && !hasUpload(r)
	if cred.IsZero() || missingInput {
		data := c.pageData(r, page)
		if cred.IsZero() {
			data.Flash.Error = MsgMissingCredential
		}
		if missingInput {
			data.Flash.Warning = MsgEmptyInput
		}
		c.template.ExecuteHTTP(w, r, http.StatusUnprocessableEntity, data)
		return
	}

	image, err := c.readImage(r)
	if err != nil {
		log.WithError(err).Info("rejected uploaded image")
		data := c.pageData(r, page)
		data.Flash.Error = userMessage(err)
		c.template.ExecuteHTTP(w, r, http.StatusUnprocessableEntity, data)
		return
	}
	if image != nil {
		input.Image = image
		page.ImagePreview = template.URL(image.DataURL())
	}

	result, err := c.interpreter.Interpret(r.Context(), cred, page.Model, input)
	if err != nil {
		log.WithError(err).WithField("kind", models.KindOf(err)).Error("interpretation failed")
		data := c.pageData(r, page)
		data.Flash.Error = userMessage(err)
		c.template.ExecuteHTTP(w, r, http.StatusOK, data)
		return
	}

	page.Result = views.NewResultView(result)
	data := c.pageData(r, page)
	data.Flash.Success = MsgSuccess
	c.template.ExecuteHTTP(w, r, http.StatusOK, data)
}

// hasUpload reports whether a non-empty report_image file was posted.
func hasUpload(r *http.Request) bool {
	if r.MultipartForm == nil {
		return false
	}
	files := r.MultipartForm.File["report_image"]
	return len(files) > 0 && files[0].Size > 0
}

// readImage returns nil when no file was uploaded.
func (c *InterpretController) readImage(r *http.Request) (*models.Image, error) {
	if !hasUpload(r) {
		return nil, nil
	}
	header := r.MultipartForm.File["report_image"][0]
	file, err := header.Open()
	if err != nil {
		return nil, models.WrapError(models.KindInvalidImage, "read upload", "failed to open uploaded image", err)
	}
	defer file.Close()

	return c.images.Decode(file)
}

func (c *InterpretController) pageData(r *http.Request, page InterpretPageData) *views.TemplateData {
	page.Models = c.interpreter.Models()
	if page.Model == "" {
		page.Model = c.interpreter.ResolveModel("")
	}
	page.MaxUploadMB = c.maxUploadBytes >> 20

	return &views.TemplateData{
		Title:         "智能体检报告解读助手",
		CSRFField:     csrf.TemplateField(r),
		IsDevelopment: c.isDevelopment,
		Data:          page,
	}
}

// userMessage converts an interpretation error into the single message
// shown to the user.
func userMessage(err error) string {
	var typed *models.Error
	if !errors.As(err, &typed) {
		return fmt.Sprintf("发生错误: %v", err)
	}
	switch typed.Kind {
	case models.KindCredential:
		if errors.Is(err, models.ErrMissingCredential) {
			return MsgMissingCredential
		}
		return fmt.Sprintf("API Key 无效: %s", typed.Description())
	case models.KindEmptyInput:
		return MsgEmptyInput
	case models.KindInvalidImage:
		return fmt.Sprintf("图片无法识别: %s", typed.Description())
	default:
		return fmt.Sprintf("发生错误: %s", strings.TrimSpace(typed.Description()))
	}
}
