package report

// reportPrompt asks the model for the report as a single JSON object. The
// field list must stay in sync with parsePayload; any deviation in the
// model's output is rejected, not defaulted.
const reportPrompt = `You are a clinical documentation assistant. From the following medical visit
transcript, produce a medical report as a single JSON object with exactly these fields:

{
  "patient_demographics": { "name": "...", "age": "...", "gender": "..." },
  "chief_complaint": "one sentence",
  "hpi_details": "history of present illness, narrative",
  "medical_history": { "conditions": [], "medications": [], "allergies": [] },
  "soap_note": { "subjective": "...", "objective": "...", "assessment": "...", "plan": "..." },
  "red_flags": ["any concerning findings that warrant urgent follow-up"],
  "patient_summary": "plain-language summary for the patient"
}

Use "Not mentioned" for information absent from the transcript. Respond with the
JSON object only, no surrounding text or markdown.`
