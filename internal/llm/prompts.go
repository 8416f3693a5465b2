package llm

import (
	"fmt"
	"strings"

	"github.com/ashureev/interviewprep/internal/interview"
	"google.golang.org/genai"
)

// Categories are the assessment areas every feedback must score.
var Categories = []string{
	"Communication Skills",
	"Technical Knowledge",
	"Problem Solving",
	"Cultural Fit",
	"Confidence and Clarity",
}

const scoringSystemPrompt = "You are a professional interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories."

func scoringPrompt(transcript string) string {
	return fmt.Sprintf(`You are an AI interviewer analyzing a mock interview. Your task is to evaluate the candidate based on structured categories. Be thorough and detailed in your analysis. Don't be lenient with the candidate. If there are mistakes or areas for improvement, point them out.
Transcript:
%s

Please score the candidate from 0 to 100 in the following areas. Do not add categories other than the ones provided:
- Communication Skills: Clarity, articulation, structured responses.
- Technical Knowledge: Understanding of key concepts for the role.
- Problem Solving: Ability to analyze problems and propose solutions.
- Cultural Fit: Alignment with company values and job role.
- Confidence and Clarity: Confidence in responses, engagement, and clarity.`, transcript)
}

func questionsPrompt(req interview.QuestionRequest) string {
	return fmt.Sprintf(`Prepare questions for a job interview.
The job role is %s.
The job experience level is %s.
The tech stack used in the job is: %s.
The focus between behavioural and technical questions should lean towards: %s.
The amount of questions required is: %d.
Please return only the questions, without any additional text.
The questions are going to be read by a voice assistant so do not use "/" or "*" or any other special characters which might break the voice assistant.
Return the questions formatted like this:
["Question 1", "Question 2", "Question 3"]`,
		req.Role, req.Level, strings.Join(req.TechStack, ", "), req.Type, req.Amount)
}

func assessmentSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"totalScore": {Type: genai.TypeInteger},
			"categoryScores": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"name":    {Type: genai.TypeString, Enum: Categories},
						"score":   {Type: genai.TypeInteger},
						"comment": {Type: genai.TypeString},
					},
					Required: []string{"name", "score", "comment"},
				},
			},
			"strengths":           {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"areasForImprovement": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"finalAssessment":     {Type: genai.TypeString},
		},
		Required: []string{"totalScore", "categoryScores", "strengths", "areasForImprovement", "finalAssessment"},
	}
}

func questionsSchema() *genai.Schema {
	return &genai.Schema{
		Type:  genai.TypeArray,
		Items: &genai.Schema{Type: genai.TypeString},
	}
}
