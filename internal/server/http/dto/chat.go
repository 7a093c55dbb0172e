package dto

// ChatMessageRequest describes an inbound chat message payload.
type ChatMessageRequest struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// ChatReplyResponse carries the bot reply back to the chat gateway.
type ChatReplyResponse struct {
	Reply string `json:"reply"`
}
