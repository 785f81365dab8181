package constant

import "time"

const (
	MessageRoleUser = "user"
	MessageRoleBot  = "bot"

	ProvisionalConversationPrefix = "conversation_"

	CacheKeyActiveConversation = "chatbot_conversation"
	CacheKeyConversationIndex  = "chatbot_conversations"
	CacheSchemaVersion         = 1
	CacheTTL                   = time.Hour

	DefaultMaxQueryLength = 500

	// DailyLimitMarker is the exact error string the chat backend returns with a 401 once the quota is spent.
	DailyLimitMarker = "Daily query limit reached. Try again tomorrow."

	StatusDailyLimit     = "Daily query limit reached. Try again tomorrow."
	StatusChatFailed     = "Chatbot has encountered an error. Please try again."
	StatusQueryTooLong   = "Query uses %d/%d characters. Please shorten your query."
	StatusHistoryFailed  = "Failed to fetch conversations"
	StatusDeleteFailed   = "Failed to delete conversation"
	StatusSignInRequired = "Please sign in to continue."

	UntitledConversation = "No messages"
)

const (
	CrudActionGetConversations   = "getConversations"
	CrudActionDeleteConversation = "deleteConversation"
	CrudActionCreateUser         = "createUser"
)
