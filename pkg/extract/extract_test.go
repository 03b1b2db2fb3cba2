package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTitlesArticleAnchor(t *testing.T) {
	html := `<a href="./articles/x"><h3>這是一則超過十五字的測試新聞標題內容</h3></a>`

	got := Titles(html, 15, 10)

	require.Len(t, got, 1)
	assert.Equal(t, "這是一則超過十五字的測試新聞標題內容", got[0])
}

func TestTitlesEmptyHTML(t *testing.T) {
	assert.Empty(t, Titles("", 15, 10))
}

func TestTitlesMinLength(t *testing.T) {
	// 十個字，不超過 15 字門檻
	html := `<h3>台海演習持續進行中啊</h3>`
	assert.Empty(t, Titles(html, 15, 10))

	// 同一串字用較低門檻就收
	assert.Len(t, Titles(html, 5, 10), 1)
}

func TestTitlesDeduplicates(t *testing.T) {
	title := "這是一則超過十五字的測試新聞標題內容"
	html := strings.Repeat(`<h3>`+title+`</h3>`, 4)

	got := Titles(html, 15, 10)

	assert.Equal(t, []string{title}, got)
}

func TestTitlesMaxCount(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 10; i++ {
		sb.WriteString(`<h3>這是一則超過十五字的測試新聞標題內容第`)
		sb.WriteRune(rune('零' + i)) // 保證各標題不同
		sb.WriteString(`號</h3>`)
	}

	got := Titles(sb.String(), 15, 3)
	assert.Len(t, got, 3)
}

func TestTitlesDecodesEntities(t *testing.T) {
	html := `<h3>&quot;台海情勢&quot; &amp; 區域安全最新發展分析報告</h3>`

	got := Titles(html, 15, 10)

	require.Len(t, got, 1)
	assert.Equal(t, `"台海情勢" & 區域安全最新發展分析報告`, got[0])
}

func TestTitlesStripsNestedMarkup(t *testing.T) {
	html := `<h3>台海<span>軍事演習</span>最新動態追蹤與情勢分析</h3>`

	got := Titles(html, 10, 10)

	require.Len(t, got, 1)
	assert.NotContains(t, got[0], "<")
	assert.Equal(t, "台海軍事演習最新動態追蹤與情勢分析", got[0])
}

func TestTitlesQualityGateFallsThrough(t *testing.T) {
	// 結構化 pattern 只有一則，品質不足，應落到 h4 pattern 補齊
	html := `<a href="./articles/a"><h3>這是一則超過十五字的測試新聞標題內容</h3></a>` +
		`<h4>第二則超過十五個字的補充測試新聞標題</h4>` +
		`<h4>第三則超過十五個字的補充測試新聞標題</h4>`

	got := TitlesMin(html, 15, 10, 3)

	assert.Len(t, got, 3)
	assert.Equal(t, "這是一則超過十五字的測試新聞標題內容", got[0])
}

func TestTitlesQualityGateStopsWhenSatisfied(t *testing.T) {
	// 高優先 pattern 已達門檻就不再往下套用
	html := `<a href="./articles/a"><h3>第一則超過十五個字的完整測試新聞標題</h3></a>` +
		`<a href="./articles/b"><h3>第二則超過十五個字的完整測試新聞標題</h3></a>` +
		`<a href="./articles/c"><h3>第三則超過十五個字的完整測試新聞標題</h3></a>` +
		`<h4>不應被收錄的低優先序超長測試標題內容</h4>`

	got := TitlesMin(html, 15, 10, 3)

	assert.Len(t, got, 3)
	assert.NotContains(t, got, "不應被收錄的低優先序超長測試標題內容")
}

func TestTitlesMalformedHTML(t *testing.T) {
	html := `<h3>截斷的標記但內容完整超過十五字的標題</h3><div><a href=`

	got := Titles(html, 15, 10)
	assert.Len(t, got, 1)
}

func TestPriceExtraction(t *testing.T) {
	tests := []struct {
		name string
		html string
		min  float64
		want float64
		ok   bool
	}{
		{
			name: "data-test selector",
			html: `<span data-test="instrument-price-last">2,650.35</span>`,
			min:  1000,
			want: 2650.35,
			ok:   true,
		},
		{
			name: "json embedded",
			html: `{"last":"2701.10","change":"-3.2"}`,
			min:  1000,
			want: 2701.10,
			ok:   true,
		},
		{
			name: "dollar fallback",
			html: `現價 $1,234.56 美元`,
			min:  1000,
			want: 1234.56,
			ok:   true,
		},
		{
			name: "below sanity bound rejected",
			html: `<span data-test="instrument-price-last">12.34</span>`,
			min:  1000,
			ok:   false,
		},
		{
			name: "no price at all",
			html: `<p>頁面改版了</p>`,
			min:  1000,
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Price(tt.html, tt.min)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.want, got, 0.001)
			}
		})
	}
}

func TestChangeExtraction(t *testing.T) {
	html := `<span data-test="instrument-price-change">-12.50</span>`

	got, ok := Change(html)

	require.True(t, ok)
	assert.InDelta(t, -12.50, got, 0.001)
}
