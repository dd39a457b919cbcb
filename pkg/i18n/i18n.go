package i18n

import (
	"reflect"
	"sync"
)

// Language type
type Language string

const (
	LangEN Language = "en"
	LangZH Language = "zh"
)

// Messages holds all translatable strings
type Messages struct {
	// System
	Starting         string
	ConfigLoaded     string
	ConfigLoadFailed string
	ShuttingDown     string
	ShutdownComplete string
	APIServerError   string
	GRPCServerError  string
	ServerListening  string
	MockFeedStarted  string

	// Event bus
	BusStarted        string
	BusStopped        string
	BusConfigured     string
	HandlerPanic      string
	TimerTickSkipped  string
	PublishRejected   string
	EventsEvicted     string
	IntentUnsupported string

	// Gateway
	GatewayConnected    string
	GatewayDisconnected string
	OrderSent           string
	OrderSendFailed     string
	OrderCanceled       string
	OrderCancelFailed   string
	OrderRateLimited    string
	SymbolsPruned       string

	// Strategy
	StrategyAdded       string
	StrategyPaused      string
	StrategyResumed     string
	StrategyIntentError string

	// Risk
	RiskLimitBreached string
	RiskLimitCleared  string
	RiskDailyReset    string
	RiskConfigUpdated string

	// Positions
	PositionOpened string
	FillIgnored    string
	PositionClosed string
	RealizedPnL    string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages = &messagesEN
)

// English messages
var messagesEN = Messages{
	// System
	Starting:         "Starting trading engine...",
	ConfigLoaded:     "Config loaded (Port: %s, gRPC: %s)",
	ConfigLoadFailed: "Failed to load config: %v",
	ShuttingDown:     "Shutting down gracefully...",
	ShutdownComplete: "Shutdown complete",
	APIServerError:   "API server error: %v",
	GRPCServerError:  "gRPC server error: %v",
	ServerListening:  "Server listening on :%s",
	MockFeedStarted:  "Mock price feed started for %v",

	// Event bus
	BusStarted:        "Event bus started (timer=%v queue=%d overflow=%s)",
	BusStopped:        "Event bus stopped",
	BusConfigured:     "Event bus routes: %v",
	HandlerPanic:      "Consumer %s panicked on %s: %v",
	TimerTickSkipped:  "Timer tick %d skipped: %v",
	PublishRejected:   "Publish %s rejected: %v",
	EventsEvicted:     "Queue full, evicted %d oldest event(s)",
	IntentUnsupported: "Unsupported intent: %s",

	// Gateway
	GatewayConnected:    "Gateway connected to %s",
	GatewayDisconnected: "Gateway disconnected from %s",
	OrderSent:           "Order sent: %s %s %.4f %s @ %.2f -> %s",
	OrderSendFailed:     "Order send failed (%s %s): %v",
	OrderCanceled:       "Order canceled: %s",
	OrderCancelFailed:   "Order cancel failed (%s): %v",
	OrderRateLimited:    "Order rate limit hit for %s",
	SymbolsPruned:       "Pruned %d stale symbols",

	// Strategy
	StrategyAdded:       "Strategy added: %s",
	StrategyPaused:      "Strategy paused: %s",
	StrategyResumed:     "Strategy resumed: %s",
	StrategyIntentError: "Strategy %s intent %s failed: %v",

	// Risk
	RiskLimitBreached: "Risk limit breached: %s",
	RiskLimitCleared:  "Risk limit cleared: %s",
	RiskDailyReset:    "Daily risk counters reset. Prev: trades=%d notional=%.2f",
	RiskConfigUpdated: "Risk config updated: %+v",

	// Positions
	PositionOpened: "Position opened/added: %s %s %.4f @ %.2f",
	FillIgnored:    "Fill ignored for %s: %v",
	PositionClosed: "Position closed: %s",
	RealizedPnL:    "Realized PnL: %.2f (%s %s %.4f @ %.2f)",
}

// Chinese messages
var messagesZH = Messages{
	// System
	Starting:         "正在啟動交易引擎...",
	ConfigLoaded:     "配置已載入 (端口: %s, gRPC: %s)",
	ConfigLoadFailed: "載入配置失敗: %v",
	ShuttingDown:     "正在優雅關閉...",
	ShutdownComplete: "關閉完成",
	APIServerError:   "API 伺服器錯誤: %v",
	GRPCServerError:  "gRPC 伺服器錯誤: %v",
	ServerListening:  "伺服器監聽於 :%s",
	MockFeedStarted:  "模擬行情已啟動: %v",

	// Event bus
	BusStarted:        "事件總線已啟動 (計時器=%v 佇列=%d 溢出策略=%s)",
	BusStopped:        "事件總線已停止",
	BusConfigured:     "事件總線路由: %v",
	HandlerPanic:      "消費者 %s 處理 %s 時發生 panic: %v",
	TimerTickSkipped:  "計時事件 %d 已略過: %v",
	PublishRejected:   "發布 %s 被拒絕: %v",
	EventsEvicted:     "佇列已滿, 已丟棄 %d 個最舊事件",
	IntentUnsupported: "不支援的意圖: %s",

	// Gateway
	GatewayConnected:    "網關已連接至 %s",
	GatewayDisconnected: "網關已斷開 %s",
	OrderSent:           "訂單已送出: %s %s %.4f %s @ %.2f -> %s",
	OrderSendFailed:     "訂單送出失敗 (%s %s): %v",
	OrderCanceled:       "訂單已取消: %s",
	OrderCancelFailed:   "訂單取消失敗 (%s): %v",
	OrderRateLimited:    "%s 觸發下單頻率限制",
	SymbolsPruned:       "已清理 %d 個過期交易對",

	// Strategy
	StrategyAdded:       "已加入策略: %s",
	StrategyPaused:      "策略已暫停: %s",
	StrategyResumed:     "策略已恢復: %s",
	StrategyIntentError: "策略 %s 意圖 %s 執行失敗: %v",

	// Risk
	RiskLimitBreached: "風控限制觸發: %s",
	RiskLimitCleared:  "風控限制解除: %s",
	RiskDailyReset:    "每日風控計數已重置. 前值: 交易=%d 名義價值=%.2f",
	RiskConfigUpdated: "風控配置已更新: %+v",

	// Positions
	PositionOpened: "開倉/加倉: %s %s %.4f @ %.2f",
	FillIgnored:    "忽略成交 %s: %v",
	PositionClosed: "倉位已平: %s",
	RealizedPnL:    "已實現盈虧: %.2f (%s %s %.4f @ %.2f)",
}

// SetLanguage sets the current language
func SetLanguage(lang Language) {
	mu.Lock()
	defer mu.Unlock()

	currentLang = lang
	switch lang {
	case LangZH:
		messages = &messagesZH
	default:
		messages = &messagesEN
	}
}

// GetLanguage returns the current language
func GetLanguage() Language {
	mu.RLock()
	defer mu.RUnlock()
	return currentLang
}

// M returns the current messages
func M() *Messages {
	mu.RLock()
	defer mu.RUnlock()
	return messages
}

// Get returns specific message by key dynamically using reflection
func Get(key string) string {
	msg := M()
	v := reflect.ValueOf(msg).Elem()
	f := v.FieldByName(key)
	if f.IsValid() && f.Kind() == reflect.String {
		return f.String()
	}
	return key
}
