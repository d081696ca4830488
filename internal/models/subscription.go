package models

// SubscribeHub carries the subscription parameters of a handshake attempt.
type SubscribeHub struct {
	Callback string `json:"callback" validate:"required,url"`
	Mode     string `json:"mode"     validate:"required"`
	Topic    string `json:"topic"    validate:"required"`
	Secret   string `json:"secret"   validate:"required"`
}

// SubscribeWebhookRequest is the subscribe endpoint body.
type SubscribeWebhookRequest struct {
	Hub SubscribeHub `json:"hub" validate:"required"`
}

// DeniedHub is the hub envelope of a denial response. Mode is always
// "denied".
type DeniedHub struct {
	Mode   string `json:"mode"`
	Topic  string `json:"topic"`
	Reason string `json:"reason"`
}

// DeniedResponse is the body returned when a handshake fails validation.
type DeniedResponse struct {
	Hub DeniedHub `json:"hub"`
}

// DeleteByClientIDRequest is the bulk delete endpoint body.
type DeleteByClientIDRequest struct {
	ClientID string `json:"clientId" validate:"required"`
}

// TriggerQuery carries the action query parameter of a trigger call.
type TriggerQuery struct {
	Action string `form:"action" validate:"required,record_action"`
}

// TriggerResponse acknowledges a trigger call. Delivery happens
// asynchronously; success only means the dispatch loop ran.
type TriggerResponse struct {
	Success bool `json:"success"`
}
