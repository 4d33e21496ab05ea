package a2a

// AgentAuthentication describes how a push endpoint (or the agent itself)
// expects to be authenticated.
type AgentAuthentication struct {
	Schemes     []string `json:"schemes"`
	Credentials *string  `json:"credentials,omitempty"`
}

/*
PushNotificationConfig is one subscription registered against a task. A
task may have multiple configs, keyed by ID; an empty ID on set means the
store should generate one.
*/
type PushNotificationConfig struct {
	ID             string               `json:"id,omitempty"`
	URL            string               `json:"url"`
	Token          *string              `json:"token,omitempty"`
	Authentication *AgentAuthentication `json:"authentication,omitempty"`
}

// TaskPushNotificationConfig is the wire shape for
// tasks/pushNotificationConfig/set: a PushNotificationConfig bound to a
// task id.
type TaskPushNotificationConfig struct {
	TaskID                 string                 `json:"taskId"`
	PushNotificationConfig PushNotificationConfig `json:"pushNotificationConfig"`
}
