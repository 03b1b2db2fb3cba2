package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-kratos/kratos/v2"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/credits"
	"github.com/straitwatch/strait_radar/pkg/engine"
	"github.com/straitwatch/strait_radar/pkg/llm"
	"github.com/straitwatch/strait_radar/pkg/logger"
	"github.com/straitwatch/strait_radar/pkg/news"
	"github.com/straitwatch/strait_radar/pkg/price"
	"github.com/straitwatch/strait_radar/pkg/server"
	"github.com/straitwatch/strait_radar/pkg/storage"
)

// Name 服務名稱
const Name = "strait_radar"

var flagconf string

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

func main() {
	flag.Parse()

	// .env 可選，僅開發環境使用
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(flagconf)
	if err != nil {
		panic(err)
	}

	if err := logger.InitLogger(cfg.Log.Level, cfg.Log.File); err != nil {
		panic(err)
	}

	// 資料庫可選：Host 留空則以記憶體帳本運作、不持久化
	var store *storage.Storage
	var ledger credits.Ledger
	if cfg.DB.Host != "" {
		s, cleanup, err := storage.New(cfg.DB)
		if err != nil {
			logger.Log.Errorf("資料庫連線失敗，改用記憶體模式：%v", err)
		} else {
			defer cleanup()
			store = s
		}
	}
	if store != nil {
		ledger = credits.NewPostgresLedger(store, cfg.Credits.MonthlyQuota)
	} else {
		ledger = credits.NewMemoryLedger(cfg.Credits.MonthlyQuota)
	}

	newsClient := news.NewClient(cfg.News)
	priceSvc := price.NewService(cfg.Price)
	llmClient := llm.NewClient(cfg.LLM, cfg.Concurrency)
	eng := engine.New(cfg, newsClient, priceSvc, llmClient, store)

	if cfg.Refresh.Enabled {
		c := cron.New()
		if _, err := c.AddFunc(cfg.Refresh.Spec, func() {
			eng.RefreshSnapshot(context.Background())
		}); err != nil {
			logger.Log.Errorf("排程註冊失敗：%v", err)
		} else {
			c.Start()
			defer c.Stop()
			go eng.RefreshSnapshot(context.Background()) // 啟動即預熱
		}
	}

	srv := server.New(cfg, eng, newsClient, priceSvc, ledger, store)
	app := kratos.New(
		kratos.Name(Name),
		kratos.Server(srv.HTTPServer()),
	)

	logger.Log.Infof("%s 啟動於 %s", Name, cfg.Server.Addr)
	if err := app.Run(); err != nil {
		logger.Log.Errorf("服務結束：%v", err)
		os.Exit(1)
	}
}
