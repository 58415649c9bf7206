package models

// CaptureRequest asks the payment provider to charge a business's stored
// instrument. IntentRef is the provider-side idempotency key.
type CaptureRequest struct {
	IntentRef   string `json:"externalId"`
	AmountCents int64  `json:"amountCents"`
	Currency    string `json:"currency"`
	CustomerRef string `json:"customerRef"`
	Invoice     string `json:"invoice,omitempty"`
}

// CaptureResult is the provider's answer to a capture request.
type CaptureResult struct {
	Approved   bool   `json:"approved"`
	CaptureRef string `json:"captureRef"`
	Detail     string `json:"detail,omitempty"`
}

// GatewayResponse is the provider's standard response envelope.
type GatewayResponse struct {
	Status bool                   `json:"status"`
	Code   interface{}            `json:"code"`   // string or null
	Dialog interface{}            `json:"dialog"` // string, object, or null
	Data   map[string]interface{} `json:"data"`
}

// OpsAlert is an operational alert surfaced to humans (websocket dashboard
// and best-effort email), used for settlement faults that must never be
// dropped silently.
type OpsAlert struct {
	Kind    string      `json:"kind"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const (
	AlertSettlementPendingFunds = "settlement_pending_funds"
	AlertSettlementFailed       = "settlement_failed"
	AlertConsistencyFault       = "consistency_fault"
)
