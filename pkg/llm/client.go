// Package llm 呼叫 OpenAI 相容端點並解析回覆。端點格式依
// ModelSpec.Kind 派發：對話模型走 chat/completions（eino），
// 深度研究類模型走 responses 端點。
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"github.com/straitwatch/strait_radar/pkg/config"
	"github.com/straitwatch/strait_radar/pkg/logger"
)

const defaultBaseURL = "https://api.openai.com/v1"

// ErrNotConfigured API 金鑰未設定。這是唯一允許往 HTTP 層傳的
// 錯誤類別（認證／額度），抓取類失敗一律在下層吸收。
var ErrNotConfigured = errors.New("llm: api key not configured")

// Completer 供 engine 依賴的最小介面，測試時以假實作替換
type Completer interface {
	Complete(ctx context.Context, spec ModelSpec, system, user string) (string, error)
}

// Client LLM 客戶端
type Client struct {
	cfg     config.LLMConfig
	client  *http.Client
	limiter *rate.Limiter
}

// NewClient 建立客戶端並依設定初始化限流器
func NewClient(cfg config.LLMConfig, conc config.ConcurrencyConfig) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	limit := rate.Limit(float64(conc.RPM) / 60.0)
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: 120 * time.Second},
		limiter: rate.NewLimiter(limit, conc.QPS),
	}
}

// Complete 發送一次補全請求。429 以指數退避重試，最多三次。
func (c *Client) Complete(ctx context.Context, spec ModelSpec, system, user string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrNotConfigured
	}

	const maxRetries = 3
	baseDelay := 2 * time.Second
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", err
		}

		var content string
		var err error
		switch spec.Kind {
		case KindResponses:
			content, err = c.response(ctx, spec, system, user)
		default:
			content, err = c.chatCompletion(ctx, spec, system, user)
		}
		if err != nil {
			if isRateLimited(err) && i < maxRetries {
				lastErr = err
				time.Sleep(baseDelay * time.Duration(1<<i))
				continue
			}
			return "", err
		}
		return content, nil
	}
	return "", lastErr
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") || strings.Contains(msg, "too many requests")
}

func (c *Client) chatCompletion(ctx context.Context, spec ModelSpec, system, user string) (string, error) {
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL: c.cfg.BaseURL,
		APIKey:  c.cfg.APIKey,
		Model:   spec.ID,
	})
	if err != nil {
		return "", fmt.Errorf("llm init failed: %w", err)
	}

	messages := []*schema.Message{
		{Role: schema.System, Content: system},
		{Role: schema.User, Content: user},
	}

	resp, err := chatModel.Generate(ctx, messages)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// responsesRequest responses 端點的單一指令／輸入格式
type responsesRequest struct {
	Model           string `json:"model"`
	Instructions    string `json:"instructions"`
	Input           string `json:"input"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

type responsesReply struct {
	Output []struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

func (c *Client) response(ctx context.Context, spec ModelSpec, system, user string) (string, error) {
	reqBody := responsesRequest{
		Model:           spec.ID,
		Instructions:    system,
		Input:           user,
		MaxOutputTokens: 4000,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimSuffix(c.cfg.BaseURL, "/")+"/responses", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	res, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("read response failed: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llm api error (status %d): %s", res.StatusCode, string(body))
	}

	var reply responsesReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return "", fmt.Errorf("decode response failed: %w", err)
	}

	var sb strings.Builder
	for _, out := range reply.Output {
		for _, part := range out.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("llm api returned empty output")
	}

	logger.Log.Debugf("responses 端點回覆長度 %d", sb.Len())
	return sb.String(), nil
}
