package services

import (
	"encoding/json"
	"strings"

	"github.com/medinfo-ai/medinfo/internal/models"
)

const fenceMarker = "```"

// StripCodeFence removes a fenced code block wrapper from a model reply.
// The opening marker may carry any info string ("json", "JSON", none) and
// the body may start on the same line. A missing closing marker is tolerated.
func StripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, fenceMarker) {
		return s
	}

	body := s[len(fenceMarker):]
	if i := strings.IndexAny(body, "\n{["); i >= 0 {
		if body[i] == '\n' {
			body = body[i+1:]
		} else {
			body = body[i:]
		}
	} else {
		// nothing but an info string after the marker
		return ""
	}

	if j := strings.LastIndex(body, fenceMarker); j >= 0 {
		body = body[:j]
	}
	return strings.TrimSpace(body)
}

// ParseResult turns a raw model reply into an AnalysisResult.
func ParseResult(raw string) (*models.AnalysisResult, error) {
	text := StripCodeFence(raw)
	if text == "" {
		return nil, models.NewError(models.KindMalformedReply, "parse", "model reply is empty")
	}
	if text[0] != '{' {
		return nil, models.NewError(models.KindMalformedReply, "parse", "model reply is not a JSON object")
	}

	var result models.AnalysisResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, models.WrapError(models.KindMalformedReply, "parse", "model reply is not valid JSON", err)
	}
	return &result, nil
}
