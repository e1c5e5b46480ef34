package model

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ParseRole maps a string to a known role.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return Role(s), true
	}
	return "", false
}

// ChatMessage represents a chat message with role and content.
type ChatMessage struct {
	Role    Role    `json:"role"`
	Content Content `json:"content"`
}

// SystemMessage creates a system message with plain-text content.
func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: TextContent(content)}
}

// UserMessage creates a user message with plain-text content.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: TextContent(content)}
}

// AssistantMessage creates an assistant message with plain-text content.
func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: TextContent(content)}
}
