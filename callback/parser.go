// Package callback parses the gateway's redirect query parameters. Absence
// of data is normal here (back-button, bookmarked return URL); the parser
// never errors on garbage, it just yields an empty payload.
package callback

import (
	"encoding/base64"
	"encoding/json"
	"net/url"

	"checkout-svc/models"
)

// Parse extracts the known gateway fields from a raw query string. Returns
// nil only when the query string is empty, meaning no callback arrived at
// all. A query that is present but unparsable yields an empty payload
// instead: a malformed callback is still a callback, and must not be
// mistaken for the no-callback case that permits intent polling. The
// gateway sends either plain query parameters or a single base64-encoded
// JSON blob in "data"; both are handled.
func Parse(rawQuery string) *models.CallbackPayload {
	if rawQuery == "" {
		return nil
	}
	values, err := url.ParseQuery(rawQuery)
	if err != nil && len(values) == 0 {
		return &models.CallbackPayload{}
	}
	if len(values) == 0 {
		return &models.CallbackPayload{}
	}

	if data := values.Get("data"); data != "" && len(values) == 1 {
		if p := parseEncoded(data); p != nil {
			return p
		}
	}

	return &models.CallbackPayload{
		ProductCode:      values.Get("product_code"),
		TotalAmount:      values.Get("total_amount"),
		TransactionUUID:  values.Get("transaction_uuid"),
		Status:           values.Get("status"),
		SignedFieldNames: values.Get("signed_field_names"),
		Signature:        values.Get("signature"),
		RefID:            values.Get("ref_id"),
	}
}

// decimalString keeps an amount in its literal decimal form whether the
// gateway sends it as a JSON string (possibly with grouping commas, like
// "1,000.0") or as a bare number. It must never pass through a float.
type decimalString string

func (d *decimalString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*d = decimalString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*d = decimalString(n.String())
	return nil
}

func parseEncoded(data string) *models.CallbackPayload {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(data); err != nil {
			return nil
		}
	}

	var fields struct {
		ProductCode      string        `json:"product_code"`
		TotalAmount      decimalString `json:"total_amount"`
		TransactionUUID  string        `json:"transaction_uuid"`
		Status           string        `json:"status"`
		SignedFieldNames string        `json:"signed_field_names"`
		Signature        string        `json:"signature"`
		RefID            string        `json:"transaction_code"`
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil
	}

	return &models.CallbackPayload{
		ProductCode:      fields.ProductCode,
		TotalAmount:      string(fields.TotalAmount),
		TransactionUUID:  fields.TransactionUUID,
		Status:           fields.Status,
		SignedFieldNames: fields.SignedFieldNames,
		Signature:        fields.Signature,
		RefID:            fields.RefID,
	}
}
