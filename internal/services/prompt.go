package services

import (
	"strings"

	"github.com/medinfo-ai/medinfo/internal/models"
)

// ReportTextPrefix labels the user's pasted text inside the request.
const ReportTextPrefix = "报告文本内容："

// DefaultInstruction is the fixed instruction sent ahead of every report.
const DefaultInstruction = `你现在是一位经验丰富、和蔼可亲的老医生，也是用户的老朋友。
请分析用户的体检报告（文本或图片）。如果用户只发了图片，请先识别图片中的文字再分析。

你的任务是：
1. 识别报告中的关键指标（特别是异常项）。
2. 用通俗易懂、像聊天一样的语气为他解读：这是啥？严重吗？咋整？
3. 返回结构化的 JSON 数据以便生成可视化卡片。

请返回纯 JSON 格式，不要包含 Markdown 标记（如 ` + "```json" + `）。
JSON 结构如下：
{
    "summary": "用通俗易懂、像聊天一样的语气总结。解释是什么，严重吗，给点生活建议。",
    "indicators": [
        {"name": "指标名称", "value": "数值", "unit": "单位", "status": "Normal/Warning/Critical", "interpretation": "一句话简评"}
    ]
}
status 只能是 Normal、Warning、Critical 三者之一。`

// BuildRequest assembles the ordered parts for one interpretation:
// instruction, then the user's text if any, then the image if any.
func BuildRequest(instruction, model string, input models.SessionInput) models.AnalysisRequest {
	parts := make([]models.Part, 0, 3)
	parts = append(parts, models.Part{Kind: models.PartText, Text: instruction})

	if input.HasText() {
		parts = append(parts, models.Part{
			Kind: models.PartText,
			Text: ReportTextPrefix + strings.TrimSpace(input.Text),
		})
	}
	if input.HasImage() {
		parts = append(parts, models.Part{Kind: models.PartImage, Image: input.Image})
	}

	return models.AnalysisRequest{Model: model, Parts: parts}
}
