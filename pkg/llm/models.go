package llm

// EndpointKind 模型呼叫端點種類，派發邏輯只看這個欄位
type EndpointKind string

const (
	// KindChatCompletions 走 /chat/completions 的訊息陣列格式
	KindChatCompletions EndpointKind = "chat_completions"
	// KindResponses 走 /responses 的單一指令／輸入格式
	KindResponses EndpointKind = "responses"
)

// ModelSpec 單一模型的設定紀錄
type ModelSpec struct {
	ID          string       `json:"id"`
	DisplayName string       `json:"name"`
	Kind        EndpointKind `json:"endpoint_kind"`
	Cost        float64      `json:"cost"` // 每次分析扣除的點數
}

// registry 可用模型清單
var registry = map[string]ModelSpec{
	"gpt-4.1-nano-2025-04-14": {
		ID: "gpt-4.1-nano-2025-04-14", DisplayName: "GPT-4.1 Nano",
		Kind: KindChatCompletions, Cost: 2.5,
	},
	"o4-mini-2025-04-16": {
		ID: "o4-mini-2025-04-16", DisplayName: "O4 Mini",
		Kind: KindChatCompletions, Cost: 27.5,
	},
	"o3-2025-04-16": {
		ID: "o3-2025-04-16", DisplayName: "O3",
		Kind: KindChatCompletions, Cost: 50,
	},
	"o3-pro-2025-06-10": {
		ID: "o3-pro-2025-06-10", DisplayName: "O3 Pro",
		Kind: KindResponses, Cost: 500,
	},
	"o3-deep-research-2025-06-26": {
		ID: "o3-deep-research-2025-06-26", DisplayName: "O3 Deep Research",
		Kind: KindResponses, Cost: 250,
	},
	"o4-mini-deep-research-2025-06-26": {
		ID: "o4-mini-deep-research-2025-06-26", DisplayName: "O4 Mini Deep Research",
		Kind: KindResponses, Cost: 50,
	},
}

// Lookup 查詢模型設定
func Lookup(id string) (ModelSpec, bool) {
	spec, ok := registry[id]
	return spec, ok
}
