package consultation

import (
	"encoding/json"
	"fmt"
	"strings"

	"cardiovision/internal/risk"
)

// Purpose selects the prompt template and persona.
type Purpose string

const (
	PurposeHeart      Purpose = "heart"
	PurposeStroke     Purpose = "stroke"
	PurposeMedication Purpose = "medication"
	PurposeChat       Purpose = "chat"
)

func purposeForKind(kind risk.Kind) Purpose {
	if kind == risk.KindStroke {
		return PurposeStroke
	}
	return PurposeHeart
}

// PromptInput carries whatever the chosen Purpose needs; other fields are ignored.
type PromptInput struct {
	Result      risk.Result
	Answers     risk.Answers
	Medications string
	Message     string
	DisplayName string
}

// Prompt is the user prompt and the system instruction sent with it.
type Prompt struct {
	Text   string
	System string
}

const consultReminder = "always remind users to consult healthcare professionals for medical decisions."

const (
	heartSystem = "You are a medical AI assistant specializing in cardiovascular health. " +
		"Provide helpful, accurate medical information but " + consultReminder

	strokeSystem = "You are a medical AI assistant specializing in stroke prevention and neurological health. " +
		"Provide helpful, accurate medical information but " + consultReminder

	medicationSystem = "You are a clinical pharmacist AI assistant. Provide detailed medication interaction " +
		"analysis while emphasizing the importance of consulting healthcare professionals for medication management."
)

const heartTemplate = `A patient has completed a heart attack risk assessment with a score of %d/100 (%s risk).

Their responses indicate:
%s

Please provide:
1. A detailed analysis of their risk factors
2. Specific recommendations for lifestyle changes
3. When they should see a doctor
4. Emergency signs to watch for

Keep the response professional but accessible to a general audience.`

const strokeTemplate = `A patient has completed a stroke risk assessment with a score of %d/100 (%s risk).

Their responses indicate:
%s

Please provide:
1. A detailed analysis of their stroke risk factors
2. Specific recommendations for prevention
3. When they should seek medical attention
4. Warning signs of stroke (BE-FAST protocol)

Keep the response professional but accessible to a general audience.`

const medicationTemplate = `Please analyze the following list of medications for potential interactions, side effects, and safety concerns:

Medications: %s

Please provide:
1. Potential drug interactions between these medications
2. Common side effects for each medication
3. Any serious warnings or contraindications
4. Recommendations for monitoring or precautions
5. Suggestions for timing of doses if relevant

Important: This is for educational purposes only and should not replace professional medical advice.`

const chatSystemTemplate = `You are CardioVision AI, a helpful medical assistant specializing in cardiovascular health, stroke prevention, and general health guidance.

You are speaking with %s, a registered patient.

You can help with:
- Heart health questions
- Stroke prevention
- General health and wellness
- Medication questions (general information only)
- Lifestyle recommendations

Always remind users that your advice is for educational purposes and they should consult healthcare professionals for medical decisions.`

// BuildPrompt renders the prompt for p. Output depends only on the input, so
// identical input yields identical bytes. Medication and chat input that is
// empty after trimming is rejected with a ValidationError.
func BuildPrompt(p Purpose, in PromptInput) (Prompt, error) {
	switch p {
	case PurposeHeart:
		return Prompt{
			Text:   fmt.Sprintf(heartTemplate, in.Result.Score, in.Result.Tier, dumpAnswers(in.Answers)),
			System: heartSystem,
		}, nil
	case PurposeStroke:
		return Prompt{
			Text:   fmt.Sprintf(strokeTemplate, in.Result.Score, in.Result.Tier, dumpAnswers(in.Answers)),
			System: strokeSystem,
		}, nil
	case PurposeMedication:
		meds := strings.TrimSpace(in.Medications)
		if meds == "" {
			return Prompt{}, invalid(msgEmptyMedications)
		}
		return Prompt{
			Text:   fmt.Sprintf(medicationTemplate, meds),
			System: medicationSystem,
		}, nil
	case PurposeChat:
		msg := strings.TrimSpace(in.Message)
		if msg == "" {
			return Prompt{}, invalid(msgEmptyChat)
		}
		name := strings.TrimSpace(in.DisplayName)
		if name == "" {
			name = "a patient"
		}
		return Prompt{
			Text:   msg,
			System: fmt.Sprintf(chatSystemTemplate, name),
		}, nil
	default:
		return Prompt{}, fmt.Errorf("consultation: unknown prompt purpose %q", p)
	}
}

// dumpAnswers renders answers as indented JSON. encoding/json sorts map keys.
func dumpAnswers(answers risk.Answers) string {
	if answers == nil {
		answers = risk.Answers{}
	}
	out, err := json.MarshalIndent(answers, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}
