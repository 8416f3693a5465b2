package voice

import "strings"

// QuestionsVariable is the template variable holding the formatted question list.
const QuestionsVariable = "questions"

// Assistant is an inline interviewer configuration sent to the gateway.
type Assistant struct {
	Name         string      `json:"name"`
	FirstMessage string      `json:"firstMessage"`
	Transcriber  Transcriber `json:"transcriber"`
	Voice        VoiceConfig `json:"voice"`
	Model        Model       `json:"model"`
}

// Transcriber configures speech-to-text.
type Transcriber struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Language string `json:"language"`
}

// VoiceConfig configures text-to-speech.
type VoiceConfig struct {
	Provider        string  `json:"provider"`
	VoiceID         string  `json:"voiceId"`
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarityBoost"`
	Speed           float64 `json:"speed"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"useSpeakerBoost"`
}

// Model configures the conversational model.
type Model struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Messages []ModelMessage `json:"messages"`
}

// ModelMessage is one prompt message of the model configuration.
type ModelMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const interviewerPrompt = `You are a professional job interviewer conducting a real-time voice interview with a candidate. Your goal is to assess their qualifications, motivation, and fit for the role.

Interview Guidelines:
Follow the structured question flow:
{{questions}}

Engage naturally and react appropriately:
Listen actively to responses and acknowledge them before moving forward.
Ask brief follow-up questions if a response is vague or requires more detail.
Keep the conversation flowing smoothly while maintaining control.

Be professional, yet warm and welcoming:
Use official yet friendly language.
Keep responses concise and to the point, like in a real voice interview.
Avoid robotic phrasing and sound natural and conversational.

Answer the candidate's questions professionally:
If asked about the role, company, or expectations, provide a clear and relevant answer.
If unsure, redirect the candidate to HR for more details.

Conclude the interview properly:
Thank the candidate for their time.
Inform them that the company will reach out soon with feedback.
End the conversation on a polite and positive note.

Keep all your responses short and simple. This is a voice conversation, so keep your responses short, like in a real conversation.`

// Interviewer returns the default interviewer assistant. The system prompt
// contains the {{questions}} placeholder filled from the call variables.
func Interviewer() *Assistant {
	return &Assistant{
		Name:         "Interviewer",
		FirstMessage: "Hello! Thank you for taking the time to speak with me today. I'm excited to learn more about you and your experience.",
		Transcriber: Transcriber{
			Provider: "deepgram",
			Model:    "nova-2",
			Language: "en",
		},
		Voice: VoiceConfig{
			Provider:        "11labs",
			VoiceID:         "sarah",
			Stability:       0.4,
			SimilarityBoost: 0.8,
			Speed:           0.9,
			Style:           0.5,
			UseSpeakerBoost: true,
		},
		Model: Model{
			Provider: "openai",
			Model:    "gpt-4",
			Messages: []ModelMessage{{Role: "system", Content: interviewerPrompt}},
		},
	}
}

// FormatQuestions renders questions as "- q" lines joined by newlines.
func FormatQuestions(questions []string) string {
	lines := make([]string, len(questions))
	for i, q := range questions {
		lines[i] = "- " + q
	}
	return strings.Join(lines, "\n")
}
