package model

// PriceQuote 單一商品的可顯示報價。Price 與 Change 永遠存在：
// 真實來源全數失敗時以同日確定性的模擬值補上，絕不缺欄。
type PriceQuote struct {
	Price      string `json:"price"`
	Change     string `json:"change"`
	Currency   string `json:"currency"`
	Unit       string `json:"unit"`
	LastUpdate string `json:"lastUpdate"`
	Source     string `json:"source"`
}

// Quotes 黃金與小麥報價組
type Quotes struct {
	Gold  PriceQuote `json:"gold"`
	Wheat PriceQuote `json:"wheat"`
}

// OverallAssessment 總體評估
type OverallAssessment struct {
	Probability     string `json:"probability"`
	ConfidenceLevel string `json:"confidence_level"` // 高/中/低
}

// Indicator 單一指標分析
type Indicator struct {
	Name          string `json:"name"`
	CurrentStatus string `json:"current_status"`
	ImpactScore   string `json:"impact_score"`
	Trend         string `json:"trend"` // 升高/穩定/降低
}

// AnalysisResult LLM 回覆解析後的結構化評估，產生後不再變動
type AnalysisResult struct {
	OverallAssessment OverallAssessment `json:"overall_assessment"`
	IndicatorAnalysis []Indicator       `json:"indicator_analysis"`
	KeyTriggers       []string          `json:"key_triggers"`
	MitigationFactors []string          `json:"mitigation_factors"`
}

// Brief 補充給提示詞的文章摘要（加強模式）
type Brief struct {
	Title   string
	Content string
}

// AnalysisRun 一次分析的持久化紀錄
type AnalysisRun struct {
	ID          string `json:"id"`
	Model       string `json:"model"`
	Probability string `json:"probability"`
	Confidence  string `json:"confidence"`
	Enhanced    bool   `json:"enhanced"`
	CreatedAt   string `json:"createdAt,omitempty"`
}
