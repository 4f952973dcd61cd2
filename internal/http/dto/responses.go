package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type PaymentStatusResponse struct {
	RequestID     string `json:"request_id"`
	PaymentStatus string `json:"payment_status"`
	AmountKES     int64  `json:"amount_kes"`
}
