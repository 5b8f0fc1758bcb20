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
	Starting           string
	ConfigLoaded       string
	UsingDBPath        string
	ServerListening    string
	GRPCListening      string
	ShuttingDown       string
	ShutdownComplete   string
	ConfigLoadFailed   string
	DBInitFailed       string
	DBMigrationsFailed string
	APIServerError     string
	GRPCServerError    string

	// Broker
	BrokerOpened     string
	BrokerOpenFailed string
	BrokerCloseError string

	// Webhook
	SignalPublished string
	SignalRejected  string
	PublishFailed   string

	// HTTP reasons
	InternalError     string
	RateLimited       string
	RequestTimeout    string
	InvalidPayload    string
	MissingToken      string
	InvalidToken      string
	InvalidCredential string
	EmailTaken        string
}

var (
	currentLang Language = LangEN
	mu          sync.RWMutex
	messages    *Messages
)

// English messages
var messagesEN = Messages{
	Starting:           "Starting signal gateway...",
	ConfigLoaded:       "Config loaded (Port: %s, Broker: %s)",
	UsingDBPath:        "Using DB path: %s",
	ServerListening:    "Server listening on :%s",
	GRPCListening:      "gRPC health listening on :%s",
	ShuttingDown:       "Shutting down gracefully...",
	ShutdownComplete:   "Shutdown complete",
	ConfigLoadFailed:   "Failed to load config",
	DBInitFailed:       "Failed to init database",
	DBMigrationsFailed: "Failed to apply migrations",
	APIServerError:     "API server error",
	GRPCServerError:    "gRPC server error",

	BrokerOpened:     "Publish sink ready (%s)",
	BrokerOpenFailed: "Failed to open publish sink",
	BrokerCloseError: "Failed to close publish sink",

	SignalPublished: "Signal published",
	SignalRejected:  "Signal rejected",
	PublishFailed:   "Failed to publish signal",

	InternalError:     "An unexpected error occurred.",
	RateLimited:       "too many requests, please slow down",
	RequestTimeout:    "request took too long to process",
	InvalidPayload:    "invalid request payload",
	MissingToken:      "missing Authorization header",
	InvalidToken:      "invalid or expired token",
	InvalidCredential: "invalid credentials",
	EmailTaken:        "email already registered",
}

// Chinese messages
var messagesZH = Messages{
	Starting:           "啟動訊號閘道...",
	ConfigLoaded:       "設定已載入（埠號：%s，佇列：%s）",
	UsingDBPath:        "使用資料庫路徑：%s",
	ServerListening:    "服務監聽於 :%s",
	GRPCListening:      "gRPC 健康檢查監聽於 :%s",
	ShuttingDown:       "正在優雅關閉...",
	ShutdownComplete:   "關閉完成",
	ConfigLoadFailed:   "讀取設定失敗",
	DBInitFailed:       "初始化資料庫失敗",
	DBMigrationsFailed: "套用資料庫遷移失敗",
	APIServerError:     "API 伺服器錯誤",
	GRPCServerError:    "gRPC 伺服器錯誤",

	BrokerOpened:     "發佈通道就緒（%s）",
	BrokerOpenFailed: "開啟發佈通道失敗",
	BrokerCloseError: "關閉發佈通道失敗",

	SignalPublished: "訊號已發佈",
	SignalRejected:  "訊號被拒絕",
	PublishFailed:   "發佈訊號失敗",

	InternalError:     "發生未預期的錯誤。",
	RateLimited:       "請求過於頻繁，請稍後再試",
	RequestTimeout:    "請求處理逾時",
	InvalidPayload:    "請求內容格式錯誤",
	MissingToken:      "缺少 Authorization 標頭",
	InvalidToken:      "權杖無效或已過期",
	InvalidCredential: "帳號或密碼錯誤",
	EmailTaken:        "此電子郵件已註冊",
}

func init() {
	messages = &messagesEN
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
		currentLang = LangEN
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
