package models

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn represents a single message in a conversation.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ChatKind distinguishes private conversations from group chats.
type ChatKind int

const (
	ChatPrivate ChatKind = iota
	ChatGroup
)

// IncomingMessage carries the chat context the intent gate and the
// resolver need, decoupled from the Telegram update type.
type IncomingMessage struct {
	ChatID      int64
	UserID      int64
	Text        string
	Kind        ChatKind
	ReplyToSelf bool
	SenderName  string
}
