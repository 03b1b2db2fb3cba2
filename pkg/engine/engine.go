// Package engine 串起整條分析管線：並行蒐集市場指標與新聞、
// 組裝提示詞、呼叫 LLM、解析回覆並視設定持久化紀錄。資料蒐集
// 失敗一律降級為備援資料；只有 LLM 層的認證／額度問題會以
// 警示旗標浮出，而且仍回傳可顯示的結果。
package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/llm"
	"github.com/straitwatch/strait_radar/pkg/logger"
	"github.com/straitwatch/strait_radar/pkg/model"
	"github.com/straitwatch/strait_radar/pkg/news"
	"github.com/straitwatch/strait_radar/pkg/price"
	"github.com/straitwatch/strait_radar/pkg/prompt"
	"github.com/straitwatch/strait_radar/pkg/storage"
)

// ErrUnknownModel 請求了不在清單中的模型
var ErrUnknownModel = errors.New("engine: unknown model")

const (
	priceTimeout = 3 * time.Second
	newsTimeout  = 2 * time.Second
	briefCount   = 2
	snapshotTTL  = 30 * time.Minute
)

// AnalyzeRequest 一次分析請求
type AnalyzeRequest struct {
	ModelID  string
	FastMode bool // 直接使用快照／靜態資料，跳過即時抓取
	Enhanced bool // 另抓文章正文摘要補充提示詞
}

// AnalyzeResponse 分析結果，永遠可直接渲染
type AnalyzeResponse struct {
	Analysis       *model.AnalysisResult `json:"analysis"`
	DetailedReport string                `json:"detailedReport"`
	Model          string                `json:"model"`
	Cost           float64               `json:"cost"`
	MarketData     *model.Quotes         `json:"marketData,omitempty"`
	NewsData       []string              `json:"newsData,omitempty"`
	Enhanced       bool                  `json:"enhanced,omitempty"`
	Warning        string                `json:"warning,omitempty"`
	RunID          string                `json:"runId,omitempty"`
}

type snapshot struct {
	quotes model.Quotes
	news   []string
	mock   bool
	taken  time.Time
}

// Engine 分析引擎
type Engine struct {
	cfg    *config.Config
	news   *news.Client
	prices *price.Service
	llm    llm.Completer
	store  *storage.Storage // 可為 nil

	mu   sync.RWMutex
	snap *snapshot
}

// New 建立引擎。store 傳 nil 表示不持久化。
func New(cfg *config.Config, newsClient *news.Client, priceSvc *price.Service, completer llm.Completer, store *storage.Storage) *Engine {
	return &Engine{
		cfg:    cfg,
		news:   newsClient,
		prices: priceSvc,
		llm:    completer,
		store:  store,
	}
}

// Analyze 執行一次完整分析
func (e *Engine) Analyze(ctx context.Context, req AnalyzeRequest) (*AnalyzeResponse, error) {
	spec, ok := llm.Lookup(req.ModelID)
	if !ok {
		return nil, ErrUnknownModel
	}

	var (
		quotes model.Quotes
		items  []string
		briefs []model.Brief
		mock   bool
	)

	if req.FastMode {
		quotes, items, mock = e.fastData()
	} else {
		quotes, items, briefs, mock = e.gather(ctx, req.Enhanced)
	}

	userPrompt := prompt.Build(quotes, items, briefs)

	resp := &AnalyzeResponse{
		Model:      spec.DisplayName,
		Cost:       spec.Cost,
		MarketData: &quotes,
		NewsData:   items,
		Enhanced:   !req.FastMode && !mock,
	}

	content, err := e.llm.Complete(ctx, spec, prompt.SystemPrompt, userPrompt)
	if err != nil {
		// 認證／額度類錯誤在這個呼叫點選擇吞掉：回傳固定的
		// 「服務不可用」評估與警示，維持 HTTP 200 的契約
		logger.Log.Errorf("LLM 呼叫失敗（模型 %s）：%v", spec.ID, err)
		resp.Analysis, resp.DetailedReport = llm.UnavailableAnalysis(err)
		resp.Warning = "AI service temporarily unavailable"
		return resp, nil
	}

	resp.Analysis, resp.DetailedReport = llm.ParseAnalysis(content)
	resp.RunID = e.persist(ctx, spec, resp)
	return resp, nil
}

// gather 並行蒐集報價與新聞，各分支有獨立逾時與錯誤邊界
func (e *Engine) gather(ctx context.Context, enhanced bool) (model.Quotes, []string, []model.Brief, bool) {
	var (
		wg     sync.WaitGroup
		quotes model.Quotes
		items  []string
		briefs []model.Brief
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		priceCtx, cancel := context.WithTimeout(ctx, priceTimeout)
		defer cancel()
		quotes = e.prices.Fetch(priceCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		newsCtx, cancel := context.WithTimeout(ctx, newsTimeout)
		defer cancel()
		items = e.news.Aggregate(newsCtx, e.cfg.News.Queries, e.cfg.News.MaxTotal)
	}()

	if enhanced && len(e.cfg.News.Queries) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			briefCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			briefs = e.news.Briefs(briefCtx, e.cfg.News.Queries[0], briefCount)
		}()
	}

	wg.Wait()

	mock := false
	if len(items) == 0 {
		items = news.Curated(e.cfg.News.MaxTotal)
		mock = true
	}
	return quotes, items, briefs, mock
}

// fastData 快速模式資料：快照還新鮮就用快照，否則用靜態值
func (e *Engine) fastData() (model.Quotes, []string, bool) {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()

	if snap != nil && time.Since(snap.taken) < snapshotTTL {
		return snap.quotes, snap.news, snap.mock
	}

	now := time.Now().UTC().Format(time.RFC3339)
	quotes := model.Quotes{
		Gold: model.PriceQuote{
			Price: "2650.00", Change: "-0.5", Currency: "USD", Unit: "盎司",
			LastUpdate: now, Source: "fast_mode",
		},
		Wheat: model.PriceQuote{
			Price: "550.00", Change: "0.2", Currency: "USD", Unit: "蒲式耳",
			LastUpdate: now, Source: "fast_mode",
		},
	}
	items := []string{
		"台海軍事演習活動持續進行",
		"美軍維持印太地區部署",
		"兩岸經貿關係穩定發展",
		"國際關注台海和平穩定",
		"地區安全情勢總體可控",
		"各方呼籲理性對話",
	}
	return quotes, items, true
}

// RefreshSnapshot 背景更新快照，供快速模式與排程預熱使用
func (e *Engine) RefreshSnapshot(ctx context.Context) {
	quotes := e.prices.Fetch(ctx)
	items := e.news.Aggregate(ctx, e.cfg.News.Queries, e.cfg.News.MaxTotal)

	mock := false
	if len(items) == 0 {
		items = news.Curated(e.cfg.News.MaxTotal)
		mock = true
	}

	e.mu.Lock()
	e.snap = &snapshot{quotes: quotes, news: items, mock: mock, taken: time.Now()}
	e.mu.Unlock()
	logger.Log.Infof("快照已更新：%d 則新聞，mock=%v", len(items), mock)
}

func (e *Engine) persist(ctx context.Context, spec llm.ModelSpec, resp *AnalyzeResponse) string {
	if e.store == nil {
		return ""
	}

	run := model.AnalysisRun{
		ID:          uuid.NewString(),
		Model:       spec.ID,
		Probability: resp.Analysis.OverallAssessment.Probability,
		Confidence:  resp.Analysis.OverallAssessment.ConfidenceLevel,
		Enhanced:    resp.Enhanced,
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		logger.Log.Errorf("無法保存分析紀錄：%v", err)
		return ""
	}
	return run.ID
}
