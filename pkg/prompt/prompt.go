// Package prompt 把市場指標與新聞彙整成固定的分析師提示詞。
// 純字串插值，沒有任何控制流程。
package prompt

import (
	"fmt"
	"strings"

	"github.com/straitwatch/strait_radar/pkg/model"
)

const header = `請你扮演一位專業的國際政治與安全分析師，結合公開資料與歷史案例，評估中華人民共和國在未來三個月內對台灣發動軍事行動的可能性（以百分比形式呈現）。`

const requirements = `## 分析要求

請在分析中考慮以下面向，並特別注意市場指標與新聞動態的影響：
1. 兩岸近期的軍事演習與活動（如共機繞台、海上演習等）
2. 中國國內的政治壓力與決策節奏（例：重要政治會議、領導人動向）
3. 美國及盟國在台灣周邊的軍事部署與外交互動
4. 經濟情勢與對外制裁／反制裁影響（結合當前黃金、小麥價格變化分析）
5. 地緣政治事件（如南海、朝鮮半島局勢）對中國決策的牽動
6. 歷史上類似時機點（如金門炮戰、近年演習升級）之比較
7. **市場避險情緒分析**（黃金價格變化反映的地緣政治風險）
8. **糧食安全考量**（小麥等大宗商品價格對政策決策的影響）

### JSON 格式回覆

請先以以下 JSON 結構回覆，所有欄位皆不可省略，若無資料請填「N/A」：

{
  "overall_assessment": {
    "probability": "xx%",
    "confidence_level": "高/中/低"
  },
  "indicator_analysis": [
    {
      "name": "軍事演習動態",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    },
    {
      "name": "國內政治壓力",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    },
    {
      "name": "美軍部署與盟友互動",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    },
    {
      "name": "經濟與制裁情勢",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    },
    {
      "name": "市場避險情緒",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    },
    {
      "name": "其他地緣事件",
      "current_status": "...",
      "impact_score": "xx%",
      "trend": "升高/穩定/降低"
    }
  ],
  "key_triggers": [
    "觸發點 1：描述…",
    "觸發點 2：描述…"
  ],
  "mitigation_factors": [
    "因應因素 1：描述…",
    "因應因素 2：描述…"
  ]
}

### 最完整的分析報告（繁體中文）

請在上述 JSON 之後另起一段，用最完整、最詳盡的文字形式撰寫一份分析報告，至少 1000 字。
報告可包含以下結構：

1. **背景說明**
2. **各指標深度解讀**
   * 軍事演習動態
   * 國內政治壓力
   * 美軍部署與盟友互動
   * 經濟與制裁情勢
   * **市場指標分析**（黃金、小麥價格的地緣政治意義）
   * 其他地緣事件
3. **新聞動態影響評估**
4. **風險觸發情境舉例**
5. **可能後果**
6. **建議對策**

請以上述 Markdown 結構回覆，切勿省略任何步驟和欄位，若無資料請填「N/A」。特別注意要結合市場數據和新聞動態進行深度分析。`

// SystemPrompt LLM 的 system 角色內容
const SystemPrompt = "你是一位專業的國際政治與安全分析師，專精於台海情勢分析。"

// Build 把報價、新聞與文章摘要插入固定模板
func Build(quotes model.Quotes, news []string, briefs []model.Brief) string {
	var sb strings.Builder

	sb.WriteString(header)
	sb.WriteString("\n\n## 當前市場指標數據\n")
	fmt.Fprintf(&sb, "**黃金價格**: $%s %s/%s (變化: %s%%)\n",
		quotes.Gold.Price, quotes.Gold.Currency, quotes.Gold.Unit, quotes.Gold.Change)
	fmt.Fprintf(&sb, "**小麥價格**: $%s %s/%s (變化: %s%%)\n",
		quotes.Wheat.Price, quotes.Wheat.Currency, quotes.Wheat.Unit, quotes.Wheat.Change)
	fmt.Fprintf(&sb, "*數據來源: %s, %s，更新時間: %s*\n",
		quotes.Gold.Source, quotes.Wheat.Source, quotes.Gold.LastUpdate)

	sb.WriteString("\n## 近期相關新聞動態\n")
	for i, item := range news {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, item)
	}

	if len(briefs) > 0 {
		sb.WriteString("\n## 重點文章摘要\n")
		for _, brief := range briefs {
			fmt.Fprintf(&sb, "### %s\n%s\n\n", brief.Title, brief.Content)
		}
	}

	sb.WriteString("\n")
	sb.WriteString(requirements)
	return sb.String()
}
