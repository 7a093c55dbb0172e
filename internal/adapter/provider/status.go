package provider

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/codeskytz/smmbot/internal/domain/model"
)

// NormalizeStatus maps a provider response of any common shape onto a
// RemoteStatus. Reseller panels disagree on field names and casing, so the
// parser probes status, result, resultcode, nested data entries, and bare
// arrays in that order before giving up with UNKNOWN.
func NormalizeStatus(raw json.RawMessage) model.RemoteStatus {
	if len(raw) == 0 {
		return model.RemoteStatusUnknown
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err == nil {
		return normalizeObject(fields)
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err == nil && len(entries) > 0 {
		return NormalizeStatus(entries[0])
	}

	return model.RemoteStatusUnknown
}

func normalizeObject(fields map[string]any) model.RemoteStatus {
	if s, ok := fields["status"].(string); ok {
		if status, decided := classifyStatus(s); decided {
			return status
		}
	}

	if s, ok := fields["result"].(string); ok {
		upper := strings.ToUpper(s)
		switch {
		case strings.Contains(upper, "SUCCESS") || strings.Contains(upper, "COMPLETED"):
			return model.RemoteStatusCompleted
		case strings.Contains(upper, "PENDING"):
			return model.RemoteStatusProcessing
		case strings.Contains(upper, "FAILED") || strings.Contains(upper, "ERROR"):
			return model.RemoteStatusFailed
		}
	}

	if code := stringify(fields["resultcode"]); code == "000" {
		return model.RemoteStatusCompleted
	}

	if data, ok := fields["data"].([]any); ok && len(data) > 0 {
		if item, ok := data[0].(map[string]any); ok {
			for _, key := range []string{"status", "order_status", "payment_status"} {
				if s, ok := item[key].(string); ok {
					if status, decided := classifyStatus(s); decided {
						return status
					}
				}
			}
		}
	}

	return model.RemoteStatusUnknown
}

func classifyStatus(s string) (model.RemoteStatus, bool) {
	upper := strings.ToUpper(s)
	switch {
	case strings.Contains(upper, "COMPLETE") || strings.Contains(upper, "SUCCESS"):
		return model.RemoteStatusCompleted, true
	case strings.Contains(upper, "PROCESS") || strings.Contains(upper, "PENDING"):
		return model.RemoteStatusProcessing, true
	case strings.Contains(upper, "FAIL") || strings.Contains(upper, "ERROR") || strings.Contains(upper, "CANCEL"):
		return model.RemoteStatusFailed, true
	}
	return model.RemoteStatusUnknown, false
}

// ExtractRemoteID pulls the provider order identifier from a submission
// response, trying the field names resellers actually use.
func ExtractRemoteID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err == nil && len(entries) > 0 {
			return ExtractRemoteID(entries[0])
		}
		return ""
	}

	for _, key := range []string{"order", "id", "reference", "transid"} {
		if v := stringify(fields[key]); v != "" {
			return v
		}
	}
	return ""
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	return ""
}
