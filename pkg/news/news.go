// Package news 從 Google News (zh-TW) 抓取台海相關新聞標題。
// 來源依序為直接抓取、公開 CORS 代理，最後落到靜態精選清單；
// 呼叫端永遠拿得到可顯示的資料，出處以 isMock 旗標回報。
package news

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-shiori/go-readability"
	"golang.org/x/time/rate"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/extract"
	"github.com/straitwatch/strait_radar/pkg/fallback"
	"github.com/straitwatch/strait_radar/pkg/logger"
	"github.com/straitwatch/strait_radar/pkg/model"
)

const (
	googleNewsBase = "https://news.google.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	acceptLanguage = "zh-TW,zh;q=0.9,en-US;q=0.8,en;q=0.7"

	maxPerFetch    = 10
	maxConcurrency = 2 // 尊重上游流量限制
	briefMaxRunes  = 500
)

// curatedNews 全來源失敗時的靜態精選清單
var curatedNews = []string{
	"台海軍事演習持續進行，國際關注度提升",
	"美軍印太司令部加強區域部署",
	"兩岸關係發展受到國際社會密切關注",
	"南海局勢對台海安全影響分析",
	"國防部公布最新軍事準備狀況",
	"國際軍事專家評估台海情勢",
	"地緣政治變化對區域安全的影響",
	"盟友國家在印太地區的軍事合作",
	"經濟制裁對軍事決策的潛在影響",
	"歷史軍事衝突案例的比較分析",
	"國際法在台海問題上的適用性",
	"區域軍事平衡的最新發展",
}

// Client 新聞抓取客戶端
type Client struct {
	cfg     config.NewsConfig
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient 建立新聞客戶端
func NewClient(cfg config.NewsConfig) *Client {
	politeness := time.Duration(cfg.PolitenessMS) * time.Millisecond
	return &Client{
		cfg:     cfg,
		baseURL: googleNewsBase,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(politeness), 1),
	}
}

// Curated 回傳前 n 則靜態精選新聞
func Curated(n int) []string {
	if n <= 0 || n > len(curatedNews) {
		n = len(curatedNews)
	}
	out := make([]string, n)
	copy(out, curatedNews[:n])
	return out
}

// Search 以遞補鏈抓取單一查詢的新聞標題。回傳的 bool 表示結果
// 是否為備援資料。此函式絕不回傳錯誤。
func (c *Client) Search(ctx context.Context, query string) ([]string, bool) {
	perQuery := time.Duration(c.cfg.PerQueryTimeout) * time.Second

	steps := []fallback.Step[[]string]{
		{
			Name:    "google-news",
			Timeout: perQuery,
			Produce: func(ctx context.Context) ([]string, error) {
				return c.fetchTitles(ctx, query, "")
			},
			Accept: c.qualityCheck,
		},
	}
	for _, proxy := range c.cfg.Proxies {
		proxy := proxy
		steps = append(steps, fallback.Step[[]string]{
			Name:    "proxy:" + proxy,
			Timeout: 3 * time.Second,
			Produce: func(ctx context.Context) ([]string, error) {
				return c.fetchTitles(ctx, query, proxy)
			},
			Accept: c.qualityCheck,
		})
	}
	steps = append(steps, fallback.Step[[]string]{
		Name:      "curated",
		Synthetic: true,
		Produce: func(ctx context.Context) ([]string, error) {
			return Curated(c.cfg.MaxTotal), nil
		},
	})

	outcome := fallback.Run(ctx, steps)
	if outcome.Synthetic {
		logger.Log.Warnf("查詢 [%s] 所有來源均失敗，改用精選清單", query)
	} else {
		logger.Log.Infof("查詢 [%s] 取得 %d 則新聞，來源 %s", query, len(outcome.Value), outcome.Source)
	}
	return outcome.Value, outcome.Synthetic
}

// qualityCheck 技術上成功但則數不足時視為品質不足
func (c *Client) qualityCheck(titles []string) bool {
	return len(titles) >= c.cfg.QualityMin
}

// Aggregate 並行發出多個主題查詢並彙整結果。每個查詢各自有逾時
// 與錯誤邊界，單一查詢失敗不影響其他查詢。合併時保留查詢提交
// 順序（重複標題以先出現的查詢為準），再截斷至 maxTotal。
// 全部失敗時回傳空序列，由呼叫端決定是否套用精選清單。
func (c *Client) Aggregate(ctx context.Context, queries []string, maxTotal int) []string {
	perQuery := time.Duration(c.cfg.PerQueryTimeout) * time.Second
	results := make([][]string, len(queries))

	sem := make(chan struct{}, maxConcurrency)
	var wg sync.WaitGroup
	for i, query := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			// 禮貌延遲，避免連續打同一站被限流
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}

			queryCtx, cancel := context.WithTimeout(ctx, perQuery)
			defer cancel()

			titles, err := c.fetchTitles(queryCtx, query, "")
			if err != nil {
				logger.Log.Warnf("查詢 [%s] 失敗：%v", query, err)
				return
			}
			results[i] = titles
		}(i, query)
	}
	wg.Wait()

	merged := make([]string, 0, maxTotal)
	seen := make(map[string]struct{})
	for _, titles := range results {
		for _, title := range titles {
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			merged = append(merged, title)
			if len(merged) >= maxTotal {
				return merged
			}
		}
	}
	return merged
}

// fetchTitles 抓取單一查詢頁並抽出標題
func (c *Client) fetchTitles(ctx context.Context, query, proxy string) ([]string, error) {
	html, err := c.fetchPage(ctx, query, proxy)
	if err != nil {
		return nil, err
	}
	return extract.TitlesMin(html, c.cfg.MinTitleLen, maxPerFetch, c.cfg.QualityMin), nil
}

func (c *Client) searchURL(query string) string {
	return fmt.Sprintf("%s/search?q=%s&hl=zh-TW&gl=TW&ceid=TW:zh-Hant", c.baseURL, url.QueryEscape(query))
}

func (c *Client) fetchPage(ctx context.Context, query, proxy string) (string, error) {
	target := c.searchURL(query)
	if proxy != "" {
		target = proxy + url.QueryEscape(target)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google news error (status %d)", res.StatusCode)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response failed: %w", err)
	}
	return string(body), nil
}

// Briefs 加強模式：從查詢結果頁解析文章連結，抓取前 max 篇的
// 正文摘要補充給提示詞。任何一篇失敗都直接略過。
func (c *Client) Briefs(ctx context.Context, query string, max int) []model.Brief {
	html, err := c.fetchPage(ctx, query, "")
	if err != nil {
		return nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var briefs []model.Brief
	doc.Find(`a[href^="./articles/"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		title := extract.Clean(s.Text())
		if title == "" {
			return true
		}

		articleURL := c.baseURL + strings.TrimPrefix(href, ".")
		article, err := readability.FromURL(articleURL, 10*time.Second)
		if err != nil {
			return true
		}

		content := strings.TrimSpace(article.TextContent)
		runes := []rune(content)
		if len(runes) > briefMaxRunes {
			content = string(runes[:briefMaxRunes])
		}
		if len(content) == 0 {
			return true
		}

		briefs = append(briefs, model.Brief{Title: title, Content: content})
		return len(briefs) < max
	})
	return briefs
}
