package dto

type CheckoutCreateRequest struct {
	UserID   int64  `json:"user_id"`
	PlanType string `json:"plan_type"`
	Mode     string `json:"mode"`
}

type CheckAccessRequest struct {
	UserID int64 `json:"user_id"`
}

type CheckAccessResponse struct {
	Active          bool   `json:"active"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	CancelRequested bool   `json:"cancel_requested,omitempty"`
}

type CancelSubscriptionRequest struct {
	UserID int64 `json:"user_id"`
}

type CancelSubscriptionResponse struct {
	Cancelled       bool   `json:"cancelled"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	TokenRemoved    bool   `json:"token_removed"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
