package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

// emailData is the flattened view of a report handed to the email
// templates. JSON sections are pretty-printed for readability.
type emailData struct {
	Title               string
	ChiefComplaint      string
	HPIDetails          string
	PatientSummary      string
	PatientDemographics string
	MedicalHistory      string
	SOAPNote            string
	RedFlags            []string
}

var emailHTMLTemplate = htmltemplate.Must(htmltemplate.New("report").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; max-width: 640px; margin: 0 auto;">
  <h1>{{.Title}}</h1>
  <h2>Chief Complaint</h2>
  <p>{{.ChiefComplaint}}</p>
  <h2>History of Present Illness</h2>
  <p>{{.HPIDetails}}</p>
  {{if .RedFlags}}<h2>Red Flags</h2>
  <ul>{{range .RedFlags}}<li>{{.}}</li>{{end}}</ul>{{end}}
  <h2>Patient Summary</h2>
  <p>{{.PatientSummary}}</p>
  <h2>Demographics</h2>
  <pre>{{.PatientDemographics}}</pre>
  <h2>Medical History</h2>
  <pre>{{.MedicalHistory}}</pre>
  <h2>SOAP Note</h2>
  <pre>{{.SOAPNote}}</pre>
  <hr>
  <p style="color: #666; font-size: 12px;">This report was generated automatically from a visit recording and shared with you by the patient.</p>
</body>
</html>`))

var emailTextTemplate = texttemplate.Must(texttemplate.New("report").Parse(`{{.Title}}

CHIEF COMPLAINT
{{.ChiefComplaint}}

HISTORY OF PRESENT ILLNESS
{{.HPIDetails}}
{{if .RedFlags}}
RED FLAGS{{range .RedFlags}}
- {{.}}{{end}}
{{end}}
PATIENT SUMMARY
{{.PatientSummary}}

DEMOGRAPHICS
{{.PatientDemographics}}

MEDICAL HISTORY
{{.MedicalHistory}}

SOAP NOTE
{{.SOAPNote}}

This report was generated automatically from a visit recording and shared with you by the patient.`))

// renderEmail produces the HTML and plain-text bodies for a completed
// report.
func renderEmail(rep *MedicalReport) (html, text string, err error) {
	data := emailData{
		Title:               "Medical Visit Report",
		ChiefComplaint:      deref(rep.ChiefComplaint),
		HPIDetails:          deref(rep.HPIDetails),
		PatientSummary:      deref(rep.PatientSummary),
		PatientDemographics: prettyJSON(rep.PatientDemographics),
		MedicalHistory:      prettyJSON(rep.MedicalHistory),
		SOAPNote:            prettyJSON(rep.SOAPNote),
		RedFlags:            rep.RedFlags,
	}

	var htmlBuf bytes.Buffer
	if err := emailHTMLTemplate.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("rendering html body: %w", err)
	}
	var textBuf bytes.Buffer
	if err := emailTextTemplate.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("rendering text body: %w", err)
	}
	return htmlBuf.String(), textBuf.String(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func prettyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
