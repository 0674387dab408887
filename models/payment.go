package models

import "time"

// PaymentIntent records that a redirect-based payment was started for an
// order, so the return leg can be reconciled even when the callback carries
// no usable parameters.
type PaymentIntent struct {
	OrderID      string    `json:"order_id"`
	InitiatedAt  time.Time `json:"initiated_at"`
	AuthSnapshot string    `json:"auth_snapshot,omitempty"`
}

// CallbackPayload is the parsed form of the gateway's redirect query
// parameters. Amounts stay decimal strings end to end; converting to a
// float would lose precision across the serialization boundary.
type CallbackPayload struct {
	ProductCode      string `json:"product_code"`
	TotalAmount      string `json:"total_amount"`
	TransactionUUID  string `json:"transaction_uuid"`
	Status           string `json:"status"`
	SignedFieldNames string `json:"signed_field_names"`
	Signature        string `json:"signature"`
	RefID            string `json:"ref_id,omitempty"`
}

// Verifiable reports whether the payload carries enough signed fields to be
// checked against the gateway.
func (p *CallbackPayload) Verifiable() bool {
	return p != nil && p.TransactionUUID != "" && p.Signature != ""
}

// Informative distinguishes a malformed callback from no callback at all.
func (p *CallbackPayload) Informative() bool {
	return p != nil && (p.ProductCode != "" || p.TransactionUUID != "" || p.Signature != "")
}

// GatewayForm holds everything the client needs to redirect the shopper to
// the gateway: the form action URL and the signed field set to POST.
type GatewayForm struct {
	PaymentURL string            `json:"payment_url"`
	Fields     map[string]string `json:"fields"`
}

type OutcomeKind string

const (
	OutcomeVerified       OutcomeKind = "verified"
	OutcomeUncertain      OutcomeKind = "uncertain"
	OutcomeGenericSuccess OutcomeKind = "generic_success"
)

type PaymentDetails struct {
	TransactionUUID string `json:"transaction_uuid"`
	RefID           string `json:"ref_id,omitempty"`
	TotalAmount     string `json:"total_amount"`
}

// Outcome is the single reconciled result handed back to the UI layer.
type Outcome struct {
	Kind         OutcomeKind     `json:"outcome"`
	Redirect     string          `json:"redirect"`
	Details      *PaymentDetails `json:"payment_details,omitempty"`
	RestoredAuth string          `json:"restored_auth,omitempty"`
	Message      string          `json:"message,omitempty"`
}

type PaymentEvent struct {
	OrderID         string      `json:"order_id"`
	SessionKey      string      `json:"session_key"`
	Outcome         OutcomeKind `json:"outcome"`
	TransactionUUID string      `json:"transaction_uuid,omitempty"`
	RefID           string      `json:"ref_id,omitempty"`
	TotalAmount     string      `json:"total_amount,omitempty"`
	EventType       string      `json:"event_type"` // payment_verified, payment_uncertain, payment_unverified
}
