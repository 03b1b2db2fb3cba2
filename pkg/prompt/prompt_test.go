package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/straitwatch/strait_radar/pkg/model"
)

func testQuotes() model.Quotes {
	return model.Quotes{
		Gold: model.PriceQuote{
			Price: "2650.35", Change: "-0.50", Currency: "USD", Unit: "盎司",
			LastUpdate: "2026-03-15T08:00:00Z", Source: "yahoo",
		},
		Wheat: model.PriceQuote{
			Price: "550.25", Change: "0.20", Currency: "USD", Unit: "蒲式耳",
			LastUpdate: "2026-03-15T08:00:00Z", Source: "simulated",
		},
	}
}

func TestBuildInterpolatesMarketData(t *testing.T) {
	got := Build(testQuotes(), []string{"頭條一", "頭條二"}, nil)

	assert.Contains(t, got, "$2650.35 USD/盎司")
	assert.Contains(t, got, "變化: -0.50%")
	assert.Contains(t, got, "$550.25 USD/蒲式耳")
	assert.Contains(t, got, "數據來源: yahoo, simulated")
}

func TestBuildNumbersNewsItems(t *testing.T) {
	got := Build(testQuotes(), []string{"頭條一", "頭條二", "頭條三"}, nil)

	assert.Contains(t, got, "1. 頭條一")
	assert.Contains(t, got, "2. 頭條二")
	assert.Contains(t, got, "3. 頭條三")
}

func TestBuildOmitsBriefsWhenEmpty(t *testing.T) {
	got := Build(testQuotes(), []string{"頭條一"}, nil)
	assert.NotContains(t, got, "重點文章摘要")
}

func TestBuildIncludesBriefs(t *testing.T) {
	briefs := []model.Brief{
		{Title: "深度報導標題", Content: "文章正文摘要內容"},
	}

	got := Build(testQuotes(), []string{"頭條一"}, briefs)

	assert.Contains(t, got, "## 重點文章摘要")
	assert.Contains(t, got, "### 深度報導標題")
	assert.Contains(t, got, "文章正文摘要內容")
}

func TestBuildCarriesFixedInstructions(t *testing.T) {
	got := Build(testQuotes(), nil, nil)

	assert.Contains(t, got, "overall_assessment")
	assert.Contains(t, got, "indicator_analysis")
	assert.Contains(t, got, "市場避險情緒")
	assert.Contains(t, got, "至少 1000 字")
	assert.Contains(t, got, "N/A")
	// 模板固定，要求段永遠在結尾
	assert.True(t, strings.HasSuffix(got, "特別注意要結合市場數據和新聞動態進行深度分析。"))
}

func TestBuildDeterministic(t *testing.T) {
	a := Build(testQuotes(), []string{"頭條一"}, nil)
	b := Build(testQuotes(), []string{"頭條一"}, nil)
	assert.Equal(t, a, b)
}
