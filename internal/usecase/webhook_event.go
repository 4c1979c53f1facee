package usecase

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"bigdaytimer-premium/internal/domain"
	"bigdaytimer-premium/internal/domain/model"
)

// ParseWebhookEvent reads an authenticated delivery. JSON objects are
// accepted when the content type says so or the body starts with '{';
// everything else is parsed as a form. Unreadable bodies are permanent
// no-ops.
func ParseWebhookEvent(raw []byte, contentType string) (model.PaymentEvent, error) {
	var fields map[string]string
	var err error
	if isJSON(raw, contentType) {
		fields, err = jsonFields(raw)
	} else {
		fields, err = formFields(raw)
	}
	if err != nil {
		return model.PaymentEvent{}, fmt.Errorf("%w: %v", domain.ErrPermanentNoOp, err)
	}
	return model.PaymentEvent{
		Type:        model.EventType(strings.TrimSpace(fields["alert_name"])),
		OrderID:     strings.TrimSpace(fields["order_id"]),
		Passthrough: fields["passthrough"],
		Email:       fields["email"],
		Amount:      fields["sale_gross"],
	}, nil
}

func isJSON(raw []byte, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil && mt == "application/json" {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{"))
}

func jsonFields(raw []byte) (map[string]string, error) {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("body is not a json object: %w", err)
	}
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		case nil:
		default:
			// nested values (e.g. an object passthrough) are kept as json text
			b, err := json.Marshal(t)
			if err != nil {
				return nil, err
			}
			out[k] = string(b)
		}
	}
	return out, nil
}

func formFields(raw []byte) (map[string]string, error) {
	vals, err := url.ParseQuery(string(raw))
	if err != nil {
		return nil, fmt.Errorf("body is not form encoded: %w", err)
	}
	out := make(map[string]string, len(vals))
	for k := range vals {
		out[k] = vals.Get(k)
	}
	return out, nil
}
