package mcp

// Method name constants for the MCP methods this runtime understands.
// Keeping them centralized avoids typo-divergence between the registry,
// the dispatcher, and the bidirectional API facade.
const (
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
	MethodPing        = "ping"

	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"

	MethodResourcesList          = "resources/list"
	MethodResourcesRead          = "resources/read"
	MethodResourcesTemplatesList = "resources/templates/list"
	MethodResourcesSubscribe     = "resources/subscribe"
	MethodResourcesUnsubscribe   = "resources/unsubscribe"

	MethodPromptsList = "prompts/list"
	MethodPromptsGet  = "prompts/get"

	MethodCompletionComplete = "completion/complete"

	MethodLoggingSetLevel = "logging/setLevel"

	MethodSamplingCreateMessage = "sampling/createMessage"
	MethodElicitationCreate     = "elicitation/create"
	MethodRootsList             = "roots/list"

	MethodNotificationsProgress             = "notifications/progress"
	MethodNotificationsCancelled            = "notifications/cancelled"
	MethodNotificationsMessage              = "notifications/message"
	MethodNotificationsResourcesUpdated     = "notifications/resources/updated"
	MethodNotificationsResourcesListChanged = "notifications/resources/list_changed"
	MethodNotificationsToolsListChanged     = "notifications/tools/list_changed"
	MethodNotificationsPromptsListChanged   = "notifications/prompts/list_changed"
	MethodNotificationsRootsListChanged     = "notifications/roots/list_changed"
)

// ProtocolVersion is the MCP wire protocol version this runtime speaks
// for the Streamable HTTP and WebSocket transports.
const ProtocolVersion = "2025-06-18"

// SupportedProtocolVersions lists every version this server accepts
// during negotiation, newest first.
var SupportedProtocolVersions = []string{
	"2025-06-18",
	"2025-03-26",
	"2024-11-05",
}

// Role identifies which side of a session originated a message, used in
// sampling/createMessage content and logging.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// LogLevel mirrors RFC 5424 severity levels as used by logging/setLevel
// and notifications/message.
type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)
