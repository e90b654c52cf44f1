package report

import (
	"encoding/json"
	"fmt"
	"strings"
)

// invalidFormatMessage is the error recorded when the model's output cannot
// be validated. The parse failure itself is logged; the row carries only
// this stable message.
const invalidFormatMessage = "Invalid response format from AI"

// payload is the validated shape of the model's report JSON. Validation
// fails closed: a missing or wrong-typed field rejects the whole response
// rather than defaulting it, so a completed report never contains silently
// empty sections.
type payload struct {
	PatientDemographics json.RawMessage
	ChiefComplaint      string
	HPIDetails          string
	MedicalHistory      json.RawMessage
	SOAPNote            json.RawMessage
	RedFlags            []string
	PatientSummary      string
}

// parsePayload extracts and validates the report JSON from raw model
// output. Models occasionally wrap JSON in a markdown fence; the fence is
// stripped before parsing.
func parsePayload(raw string) (*payload, error) {
	trimmed := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &fields); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	var p payload
	var err error

	if p.PatientDemographics, err = requireObject(fields, "patient_demographics"); err != nil {
		return nil, err
	}
	if p.ChiefComplaint, err = requireString(fields, "chief_complaint"); err != nil {
		return nil, err
	}
	if p.HPIDetails, err = requireString(fields, "hpi_details"); err != nil {
		return nil, err
	}
	if p.MedicalHistory, err = requireObject(fields, "medical_history"); err != nil {
		return nil, err
	}
	if p.SOAPNote, err = requireObject(fields, "soap_note"); err != nil {
		return nil, err
	}
	if p.RedFlags, err = requireStringArray(fields, "red_flags"); err != nil {
		return nil, err
	}
	if p.PatientSummary, err = requireString(fields, "patient_summary"); err != nil {
		return nil, err
	}

	return &p, nil
}

func requireObject(fields map[string]json.RawMessage, key string) (json.RawMessage, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("field %q is not an object", key)
	}
	return raw, nil
}

func requireString(fields map[string]json.RawMessage, key string) (string, error) {
	raw, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("missing field %q", key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("field %q is not a string", key)
	}
	return s, nil
}

func requireStringArray(fields map[string]json.RawMessage, key string) ([]string, error) {
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("missing field %q", key)
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, fmt.Errorf("field %q is not an array of strings", key)
	}
	if arr == nil {
		arr = []string{}
	}
	return arr, nil
}

func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
