package views

import (
	"strings"

	"github.com/medinfo-ai/medinfo/internal/models"
)

// CardsPerRow is the width of the indicator grid.
const CardsPerRow = 3

// FallbackSummary is shown when the model returned no summary.
const FallbackSummary = "解析失败"

// Card is one indicator as displayed.
type Card struct {
	Name           string           `json:"name"`
	Reading        string           `json:"reading"`
	Interpretation string           `json:"interpretation"`
	Status         string           `json:"status"`
	Level          string           `json:"level"`
	Abnormal       bool             `json:"abnormal"`
	Caption        string           `json:"caption,omitempty"`
	Treatment      models.Treatment `json:"-"`
}

// ResultView is the rendered projection of an AnalysisResult.
type ResultView struct {
	Rows           [][]Card `json:"-"`
	Cards          []Card   `json:"cards"`
	Summary        string   `json:"summary"`
	IndicatorCount int      `json:"indicator_count"`
	AbnormalCount  int      `json:"abnormal_count"`
}

// NewResultView lays out one card per indicator, in order, three per row.
func NewResultView(result *models.AnalysisResult) *ResultView {
	view := &ResultView{Summary: FallbackSummary}
	if result == nil {
		return view
	}
	if strings.TrimSpace(result.Summary) != "" {
		view.Summary = result.Summary
	}

	view.Cards = make([]Card, 0, len(result.Indicators))
	for _, ind := range result.Indicators {
		level := ind.Level()
		tr := level.Treatment()
		card := Card{
			Name:           ind.Name,
			Reading:        ind.Reading(),
			Interpretation: ind.Interpretation,
			Status:         ind.Status,
			Level:          level.String(),
			Abnormal:       tr.Abnormal,
			Treatment:      tr,
		}
		if tr.Abnormal {
			card.Caption = "⚠️ " + captionStatus(ind.Status, tr)
			view.AbnormalCount++
		}
		view.Cards = append(view.Cards, card)
	}
	view.IndicatorCount = len(view.Cards)

	for start := 0; start < len(view.Cards); start += CardsPerRow {
		end := min(start+CardsPerRow, len(view.Cards))
		view.Rows = append(view.Rows, view.Cards[start:end])
	}
	return view
}

func captionStatus(raw string, tr models.Treatment) string {
	if strings.TrimSpace(raw) == "" {
		return tr.Label
	}
	return raw
}
