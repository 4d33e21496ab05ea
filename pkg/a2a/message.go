package a2a

import "strings"

// Role identifies which side of a conversation produced a Message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

/*
Message represents all non-artifact communication between client and
agent. It is immutable once stored in the Message Store. TaskID/ContextID
are nil for a message that stands on its own (not yet bound to a task).
*/
type Message struct {
	MessageID      string         `json:"messageId"`
	Role           Role           `json:"role"`
	Parts          []Part         `json:"parts"`
	TaskID         *string        `json:"taskId,omitempty"`
	ContextID      *string        `json:"contextId,omitempty"`
	ReferenceTasks []string       `json:"referenceTaskIds,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func NewTextMessage(role Role, text string) *Message {
	return &Message{
		MessageID: NewMessageID(),
		Role:      role,
		Parts:     []Part{NewTextPart(text)},
	}
}

func NewFileMessage(role Role, file *FilePart) *Message {
	return &Message{
		MessageID: NewMessageID(),
		Role:      role,
		Parts:     []Part{{Type: PartTypeFile, File: file}},
	}
}

func NewDataMessage(role Role, data map[string]any) *Message {
	return &Message{
		MessageID: NewMessageID(),
		Role:      role,
		Parts:     []Part{NewDataPart(data)},
	}
}

// Validate reports whether every part of the message is well-formed.
func (msg *Message) Validate() bool {
	if msg.MessageID == "" || len(msg.Parts) == 0 {
		return false
	}
	for _, part := range msg.Parts {
		if !part.Validate() {
			return false
		}
	}
	return true
}

// TaskInfo satisfies the TaskInfoProvider contract used by interceptors
// that need to correlate a message with its task/context.
func (msg *Message) TaskInfo() TaskInfo {
	info := TaskInfo{}
	if msg.TaskID != nil {
		info.TaskID = *msg.TaskID
	}
	if msg.ContextID != nil {
		info.ContextID = *msg.ContextID
	}
	return info
}

func (msg *Message) String() string {
	var sb strings.Builder

	for _, part := range msg.Parts {
		sb.WriteString(part.Text)
	}

	return sb.String()
}
