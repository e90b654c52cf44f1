package transcript

// structuringPrompt asks the model to attribute each speaking turn without
// changing any words. Word preservation is a prompt instruction only; the
// output is stored as-is and never replaces the raw transcription.
const structuringPrompt = `You are given the raw transcript of a medical visit between a doctor and a patient.
Rewrite it so that each speaking turn starts on its own line prefixed with "Doctor:" or "Patient:".

Attribution rules:
- The doctor asks clinical questions, gives instructions, explains findings, and uses medical terminology.
- The patient describes symptoms, answers questions, and asks about their own condition.
- If a turn is genuinely ambiguous, attribute it to the more plausible speaker given the surrounding turns.

You MUST preserve the original wording of every turn exactly. Do not paraphrase,
correct grammar, drop filler words, or add any commentary. Output only the labelled transcript.`
