// Package extract 從未必合法的 HTML 中盡力取出新聞標題與報價欄位。
// 以正規表示式為主的抽取不驗證標記是否完整，這是精確率與召回率
// 之間已接受的取捨：來源站改版時寧可少抓，也不拋錯。
package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// DefaultQualityMin 單一 pattern 至少要累積到幾則才不往下嘗試
const DefaultQualityMin = 3

var (
	entityReplacer = strings.NewReplacer(
		"&quot;", `"`,
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&#39;", "'",
	)
	tagPattern = regexp.MustCompile(`<[^>]*>`)

	h3Pattern     = regexp.MustCompile(`(?s)<h3[^>]*>(.*?)</h3>`)
	h4Pattern     = regexp.MustCompile(`(?s)<h4[^>]*>(.*?)</h4>`)
	anchorPattern = regexp.MustCompile(`(?s)<a[^>]*data-n-tid[^>]*>(.*?)</a>`)
)

// titlePattern 一個有優先序的標題抽取器，emit 回傳 false 代表已滿
type titlePattern struct {
	name  string
	apply func(html string, emit func(string) bool)
}

// 依優先序排列：結構化的文章連結選擇器優先於泛用標題標籤
var titlePatterns = []titlePattern{
	{name: "article-anchor", apply: selectorPattern(`a[href^="./articles/"] h3`)},
	{name: "heading-anchor", apply: selectorPattern(`h3 > a`)},
	{name: "h3", apply: regexPattern(h3Pattern)},
	{name: "h4", apply: regexPattern(h4Pattern)},
	{name: "data-n-tid", apply: regexPattern(anchorPattern)},
}

func selectorPattern(selector string) func(string, func(string) bool) {
	return func(html string, emit func(string) bool) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return
		}
		doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			return emit(s.Text())
		})
	}
}

func regexPattern(re *regexp.Regexp) func(string, func(string) bool) {
	return func(html string, emit func(string) bool) {
		for _, m := range re.FindAllStringSubmatch(html, -1) {
			if !emit(m[1]) {
				return
			}
		}
	}
}

// Titles 以預設品質門檻抽取標題
func Titles(html string, minLength, maxCount int) []string {
	return TitlesMin(html, minLength, maxCount, DefaultQualityMin)
}

// TitlesMin 依優先序套用各 pattern 抽取標題。
// 單一 pattern 累積不足 qualityMin 則視為品質不足，落到下一個
// pattern 繼續補；達到 maxCount 即停止。空或殘缺的 HTML 回傳
// 空序列，不報錯。
func TitlesMin(html string, minLength, maxCount, qualityMin int) []string {
	if html == "" || maxCount <= 0 {
		return nil
	}

	titles := make([]string, 0, maxCount)
	seen := make(map[string]struct{})

	emit := func(raw string) bool {
		title := Clean(raw)
		if utf8.RuneCountInString(title) <= minLength {
			return true
		}
		if _, dup := seen[title]; dup {
			return true
		}
		seen[title] = struct{}{}
		titles = append(titles, title)
		return len(titles) < maxCount
	}

	for _, p := range titlePatterns {
		p.apply(html, emit)
		if len(titles) >= maxCount || len(titles) >= qualityMin {
			break
		}
	}
	return titles
}

// Clean 去除內嵌標記、解碼五個標準 HTML 實體並修剪空白
func Clean(raw string) string {
	s := tagPattern.ReplaceAllString(raw, "")
	s = entityReplacer.Replace(s)
	return strings.TrimSpace(s)
}

var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`data-test="instrument-price-last"[^>]*>([^<]+)<`),
		regexp.MustCompile(`class="text-2xl[^>]*>([^<]+)<`),
		regexp.MustCompile(`pid-[0-9]+-last[^>]*>([^<]+)<`),
		regexp.MustCompile(`"last":"([^"]+)"`),
		regexp.MustCompile(`\$([0-9,]+\.?[0-9]*)`),
	}
	changePatterns = []*regexp.Regexp{
		regexp.MustCompile(`data-test="instrument-price-change"[^>]*>([^<]+)<`),
		regexp.MustCompile(`change[^>]*>([+-]?[0-9.]+)`),
		regexp.MustCompile(`"change":"([^"]+)"`),
	}
	nonNumeric       = regexp.MustCompile(`[^0-9.]`)
	nonNumericSigned = regexp.MustCompile(`[^0-9.\-]`)
)

// Price 從商品頁 HTML 取出最新成交價。min 是合理性下限，用來
// 排除選到錯誤 DOM 節點的情況（黃金 > 1000、小麥 > 100）。
func Price(html string, min float64) (float64, bool) {
	// 結構化選擇器優先
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text := strings.TrimSpace(doc.Find(`[data-test="instrument-price-last"]`).First().Text())
		if v, ok := parsePrice(text, min); ok {
			return v, true
		}
	}
	for _, re := range pricePatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if v, ok := parsePrice(m[1], min); ok {
				return v, true
			}
		}
	}
	return 0, false
}

// Change 從商品頁 HTML 取出漲跌值
func Change(html string) (float64, bool) {
	if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
		text := strings.TrimSpace(doc.Find(`[data-test="instrument-price-change"]`).First().Text())
		if v, ok := parseChange(text); ok {
			return v, true
		}
	}
	for _, re := range changePatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if v, ok := parseChange(m[1]); ok {
				return v, true
			}
		}
	}
	return 0, false
}

func parsePrice(raw string, min float64) (float64, bool) {
	cleaned := nonNumeric.ReplaceAllString(raw, "")
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || v <= min {
		return 0, false
	}
	return v, true
}

func parseChange(raw string) (float64, bool) {
	cleaned := nonNumericSigned.ReplaceAllString(raw, "")
	if cleaned == "" || cleaned == "-" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
