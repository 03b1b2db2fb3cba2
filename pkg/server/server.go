// Package server 對外的 HTTP 介面。路由以 HandleFunc 直接註冊
// JSON 處理器；OAuth／session 屬外部協作者，這裡只認
// X-User-ID 標頭。
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	nethttp "net/http"
	"time"

	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/credits"
	"github.com/straitwatch/strait_radar/pkg/engine"
	"github.com/straitwatch/strait_radar/pkg/llm"
	"github.com/straitwatch/strait_radar/pkg/logger"
	"github.com/straitwatch/strait_radar/pkg/news"
	"github.com/straitwatch/strait_radar/pkg/price"
	"github.com/straitwatch/strait_radar/pkg/storage"
)

//go:embed assets/*
var assets embed.FS

// Server HTTP 服務
type Server struct {
	cfg    *config.Config
	engine *engine.Engine
	news   *news.Client
	prices *price.Service
	ledger credits.Ledger
	store  *storage.Storage // 可為 nil
}

// New 建立服務
func New(cfg *config.Config, eng *engine.Engine, newsClient *news.Client, priceSvc *price.Service, ledger credits.Ledger, store *storage.Storage) *Server {
	return &Server{
		cfg:    cfg,
		engine: eng,
		news:   newsClient,
		prices: priceSvc,
		ledger: ledger,
		store:  store,
	}
}

// HTTPServer 建立 kratos HTTP 伺服器並註冊全部路由
func (s *Server) HTTPServer() *http.Server {
	opts := []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
		),
	}
	if s.cfg.Server.Addr != "" {
		opts = append(opts, http.Address(s.cfg.Server.Addr))
	}
	if d := s.cfg.ServerTimeout(); d > 0 {
		opts = append(opts, http.Timeout(d))
	}

	srv := http.NewServer(opts...)

	srv.HandleFunc("/", func(w nethttp.ResponseWriter, r *nethttp.Request) {
		if r.URL.Path != "/" {
			nethttp.NotFound(w, r)
			return
		}
		content, _ := assets.ReadFile("assets/index.html")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(content)
	})

	srv.HandleFunc("/api/news", s.HandleNews)
	srv.HandleFunc("/api/prices", s.HandlePrices)
	srv.HandleFunc("/api/analysis", s.HandleAnalysis)
	srv.HandleFunc("/api/user/credits", s.HandleCredits)
	srv.HandleFunc("/api/runs", s.HandleRuns)

	return srv
}

func writeJSON(w nethttp.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("寫入回應失敗：%v", err)
	}
}

func writeError(w nethttp.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// newsReply GET /api/news 的回應格式
type newsReply struct {
	News       []string `json:"news"`
	IsMockData bool     `json:"isMockData"`
	Message    string   `json:"message,omitempty"`
}

// HandleNews GET /api/news?query=<string>
func (s *Server) HandleNews(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		writeError(w, nethttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		writeError(w, nethttp.StatusBadRequest, "Query parameter is required")
		return
	}

	items, mock := s.news.Search(r.Context(), query)
	reply := newsReply{News: items, IsMockData: mock}
	if mock {
		reply.Message = "新聞來源暫時無法使用，顯示精選內容"
	}
	writeJSON(w, nethttp.StatusOK, reply)
}

// HandlePrices GET /api/prices。錯誤一律降級為備援資料，永遠 200。
func (s *Server) HandlePrices(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		writeError(w, nethttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, nethttp.StatusOK, s.prices.Fetch(r.Context()))
}

// analysisRequest POST /api/analysis 的請求格式
type analysisRequest struct {
	Model     string `json:"model"`
	IsDevMode bool   `json:"isDevMode"`
	FastMode  bool   `json:"fastMode"`
	Enhanced  bool   `json:"enhanced"`
}

// HandleAnalysis POST /api/analysis
func (s *Server) HandleAnalysis(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodPost {
		writeError(w, nethttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req analysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, nethttp.StatusBadRequest, "Invalid request body")
		return
	}

	spec, ok := llm.Lookup(req.Model)
	if !ok {
		writeError(w, nethttp.StatusBadRequest, "Invalid model")
		return
	}

	userID := r.Header.Get("X-User-ID")
	if !req.IsDevMode {
		if userID == "" {
			writeError(w, nethttp.StatusUnauthorized, "Unauthorized")
			return
		}
		if _, err := s.ledger.Debit(r.Context(), userID, spec.Cost); err != nil {
			if errors.Is(err, credits.ErrInsufficient) {
				writeError(w, nethttp.StatusBadRequest, "Insufficient credits")
				return
			}
			logger.Log.Errorf("扣點失敗：%v", err)
			writeError(w, nethttp.StatusInternalServerError, "Internal server error")
			return
		}
	}

	resp, err := s.engine.Analyze(r.Context(), engine.AnalyzeRequest{
		ModelID:  req.Model,
		FastMode: req.FastMode,
		Enhanced: req.Enhanced,
	})
	if err != nil {
		if errors.Is(err, engine.ErrUnknownModel) {
			writeError(w, nethttp.StatusBadRequest, "Invalid model")
			return
		}
		logger.Log.Errorf("分析失敗：%v", err)
		writeError(w, nethttp.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, nethttp.StatusOK, resp)
}

// creditsRequest POST /api/user/credits 的請求格式
type creditsRequest struct {
	Amount float64 `json:"amount"`
}

// HandleCredits GET/POST /api/user/credits
func (s *Server) HandleCredits(w nethttp.ResponseWriter, r *nethttp.Request) {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		writeError(w, nethttp.StatusUnauthorized, "Unauthorized")
		return
	}

	switch r.Method {
	case nethttp.MethodGet:
		account, err := s.ledger.Balance(r.Context(), userID)
		if err != nil {
			logger.Log.Errorf("查詢餘額失敗：%v", err)
			writeError(w, nethttp.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, nethttp.StatusOK, account)
	case nethttp.MethodPost:
		var req creditsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
			writeError(w, nethttp.StatusBadRequest, "Invalid amount")
			return
		}
		account, err := s.ledger.Debit(r.Context(), userID, req.Amount)
		if err != nil {
			if errors.Is(err, credits.ErrInsufficient) {
				writeError(w, nethttp.StatusBadRequest, "Insufficient credits")
				return
			}
			logger.Log.Errorf("扣點失敗：%v", err)
			writeError(w, nethttp.StatusInternalServerError, "Internal server error")
			return
		}
		writeJSON(w, nethttp.StatusOK, account)
	default:
		writeError(w, nethttp.StatusMethodNotAllowed, "Method not allowed")
	}
}

// HandleRuns GET /api/runs 最近的分析紀錄；未設資料庫時回空清單
func (s *Server) HandleRuns(w nethttp.ResponseWriter, r *nethttp.Request) {
	if r.Method != nethttp.MethodGet {
		writeError(w, nethttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		writeJSON(w, nethttp.StatusOK, map[string]any{"runs": []any{}})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	runs, err := s.store.ListRuns(ctx, 20)
	if err != nil {
		logger.Log.Errorf("查詢分析紀錄失敗：%v", err)
		writeJSON(w, nethttp.StatusOK, map[string]any{"runs": []any{}})
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]any{"runs": runs})
}
