package a2a

import "github.com/google/uuid"

/*
NewTaskID generates a random 128-bit task identifier. Callers may supply
their own instead; a client-supplied id that collides with an existing one
refers to the existing entity.
*/
func NewTaskID() string {
	return uuid.NewString()
}

// NewContextID generates a random 128-bit context identifier.
func NewContextID() string {
	return uuid.NewString()
}

// NewMessageID generates a random 128-bit message identifier.
func NewMessageID() string {
	return uuid.NewString()
}

// NewArtifactID generates a random 128-bit artifact identifier.
func NewArtifactID() string {
	return uuid.NewString()
}

// NewPushConfigID generates a random id for a push notification config
// whose caller omitted one on tasks/pushNotificationConfig/set.
func NewPushConfigID() string {
	return uuid.NewString()
}
