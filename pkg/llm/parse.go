package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/straitwatch/strait_radar/pkg/model"
)

// minReportRunes 回覆中 JSON 之後的文字短於此即改用合成報告
const minReportRunes = 100

var (
	lineCommentPattern   = regexp.MustCompile(`(?m)(^|\s)//[^\n]*$`)
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseAnalysis 從 LLM 的自由文字回覆中抽出結構化評估與詳細報
// 告。復原階梯依序嘗試：圍欄 json 區塊、首尾大括號包夾、逐行
// 大括號深度掃描；全部失敗時改用固定備用評估。此函式絕不失敗，
// 永遠回傳結構完整的結果。
func ParseAnalysis(raw string) (*model.AnalysisResult, string) {
	extractors := []func(string) (string, string, bool){
		fencedJSON,
		braceSpan,
		lineScan,
	}

	for _, ex := range extractors {
		jsonStr, rest, ok := ex(raw)
		if !ok {
			continue
		}
		analysis, err := decodeAnalysis(jsonStr)
		if err != nil {
			continue
		}
		return analysis, reportOrSynthesize(rest, analysis.OverallAssessment.Probability)
	}

	analysis := FallbackAnalysis()
	return analysis, reportOrSynthesize("", analysis.OverallAssessment.Probability)
}

// decodeAnalysis 清理已知的壞格式後解析並驗證結構
func decodeAnalysis(jsonStr string) (*model.AnalysisResult, error) {
	cleaned := CleanJSON(jsonStr)

	// 先驗證必要的頂層欄位都在
	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, err
	}
	if _, ok := top["overall_assessment"]; !ok {
		return nil, fmt.Errorf("missing overall_assessment")
	}
	if _, ok := top["indicator_analysis"]; !ok {
		return nil, fmt.Errorf("missing indicator_analysis")
	}

	var analysis model.AnalysisResult
	if err := json.Unmarshal([]byte(cleaned), &analysis); err != nil {
		return nil, err
	}
	return &analysis, nil
}

// CleanJSON 去掉 LLM 常見的兩種壞格式：行尾 // 註解、}] 前的
// 多餘逗號。刻意不做通用 JSON5 解析，只處理已知的失敗模式。
func CleanJSON(s string) string {
	s = lineCommentPattern.ReplaceAllString(s, "$1")
	s = trailingCommaPattern.ReplaceAllString(s, "$1")
	return strings.TrimSpace(s)
}

// fencedJSON 取 ```json 圍欄與下一個圍欄之間的內容
func fencedJSON(raw string) (jsonStr, rest string, ok bool) {
	start := strings.Index(raw, "```json")
	if start < 0 {
		return "", "", false
	}
	body := raw[start+len("```json"):]
	end := strings.Index(body, "```")
	if end < 0 {
		return "", "", false
	}
	return body[:end], body[end+len("```"):], true
}

// braceSpan 取全文第一個 { 到最後一個 } 的範圍
func braceSpan(raw string) (jsonStr, rest string, ok bool) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return "", "", false
	}
	return raw[first : last+1], raw[last+1:], true
}

// lineScan 從第一個以 { 開頭的行起，以大括號深度找出平衡區塊
func lineScan(raw string) (jsonStr, rest string, ok bool) {
	lines := strings.Split(raw, "\n")
	start, end := -1, -1
	depth := 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if start < 0 {
			if strings.HasPrefix(trimmed, "{") {
				start = i
			} else {
				continue
			}
		}
		for _, ch := range line {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
			}
		}
		if start >= 0 && depth == 0 {
			end = i
			break
		}
	}

	if start < 0 || end < 0 {
		return "", "", false
	}
	return strings.Join(lines[start:end+1], "\n"), strings.Join(lines[end+1:], "\n"), true
}

func reportOrSynthesize(rest, probability string) string {
	report := strings.TrimSpace(rest)
	if utf8.RuneCountInString(report) >= minReportRunes {
		return report
	}
	return SynthesizeReport(probability)
}

// FallbackAnalysis 解析完全失敗時的固定備用評估
func FallbackAnalysis() *model.AnalysisResult {
	return &model.AnalysisResult{
		OverallAssessment: model.OverallAssessment{
			Probability:     "15%",
			ConfidenceLevel: "中",
		},
		IndicatorAnalysis: []model.Indicator{
			{Name: "軍事演習動態", CurrentStatus: "AI 回應格式解析中遇到問題，正在使用備用分析", ImpactScore: "25%", Trend: "穩定"},
			{Name: "國內政治壓力", CurrentStatus: "基於當前公開資訊的基本評估", ImpactScore: "20%", Trend: "穩定"},
			{Name: "美軍部署與盟友互動", CurrentStatus: "維持現有軍事平衡", ImpactScore: "30%", Trend: "穩定"},
			{Name: "經濟與制裁情勢", CurrentStatus: "經濟因素持續影響決策", ImpactScore: "15%", Trend: "穩定"},
			{Name: "其他地緣事件", CurrentStatus: "區域情勢相對穩定", ImpactScore: "10%", Trend: "穩定"},
		},
		KeyTriggers: []string{
			"重大政治事件或政策變化",
			"軍事部署顯著變化",
		},
		MitigationFactors: []string{
			"國際社會的外交壓力",
			"經濟相互依存關係",
		},
	}
}

// UnavailableAnalysis LLM 服務不可用時的固定評估與報告
func UnavailableAnalysis(cause error) (*model.AnalysisResult, string) {
	analysis := &model.AnalysisResult{
		OverallAssessment: model.OverallAssessment{
			Probability:     "15%",
			ConfidenceLevel: "中",
		},
		IndicatorAnalysis: []model.Indicator{
			{Name: "軍事演習動態", CurrentStatus: "AI 服務暫時無法使用，請稍後再試", ImpactScore: "N/A", Trend: "穩定"},
		},
		KeyTriggers:       []string{"AI 服務暫時無法使用"},
		MitigationFactors: []string{"請檢查 API 配置或稍後再試"},
	}

	detail := "未知錯誤"
	if cause != nil {
		detail = cause.Error()
	}
	report := fmt.Sprintf(`## AI 服務暫時無法使用

目前 AI 分析服務遇到技術問題，請檢查以下設定：

1. **API 金鑰設定**：確認 OPENAI_API_KEY 環境變數已正確設定
2. **網路連線**：確認伺服器可以連接到上游 API
3. **API 額度**：確認帳戶有足夠的使用額度

請稍後再試，或聯絡系統管理員。

**錯誤詳情**：%s`, detail)

	return analysis, report
}

// SynthesizeReport 回覆中缺少詳細報告時的合成版本
func SynthesizeReport(probability string) string {
	if probability == "" {
		probability = "N/A"
	}
	return fmt.Sprintf(`## 台海情勢分析報告

### 總體評估
根據當前可獲得的公開資訊，未來三個月內台海發生軍事衝突的機率評估為 **%s**。

### 主要考量因素

#### 軍事動態
當前兩岸軍事活動維持在可控範圍內，雖有例行性演習和巡邏活動，但未觀察到大規模軍事集結的明顯跡象。

#### 政治環境
各方政治立場相對穩定，國際社會持續關注台海穩定，這為維持現狀提供了重要的外部約束。

#### 經濟因素
經濟相互依存關係和全球供應鏈的重要性，使得各方都有動機避免可能造成重大經濟損失的軍事衝突。

### 風險評估
雖然存在不確定性，但基於當前情勢分析，維持現狀仍是最可能的情境。持續監控各項指標變化是確保準確評估的關鍵。

### 建議
建議各方繼續通過對話和外交途徑處理分歧，避免可能導致誤判的行為，共同維護台海地區的和平穩定。

*註：此分析基於公開資訊，實際情況可能因未公開因素而有所不同。*`, probability)
}
