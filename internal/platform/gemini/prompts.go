package gemini

import (
	"fmt"
	"strings"
)

// Prompt builders for each artifact kind. The response-shape contract in
// each prompt is load-bearing: the parsers in generator.go expect exactly
// these record shapes.

func notesPrompt(topicName, subjectName string) string {
	return fmt.Sprintf(`You are a professor teaching %s to undergraduate students.
Topic: %q

Explain this topic in simple language. Return your response as JSON with this exact structure:
{
    "summary": "A 150-word summary explaining the topic clearly",
    "detailed_content": "A detailed 300-word explanation with key points",
    "analogies": ["analogy 1", "analogy 2", "analogy 3"],
    "diagram_description": "A text description of a diagram that would help understand this topic"
}

Make the content easy to understand for students. Use simple language and practical examples.
Return ONLY the JSON, no other text.`, subjectName, topicName)
}

func mindmapPrompt(topicName, subjectName string) string {
	return fmt.Sprintf(`Create a mindmap structure IN ENGLISH ONLY for the topic %q in %s for undergraduate students.

Return ONLY a JSON object in this exact format:
{
    "central_idea": %q,
    "branches": [
        {"title": "Main Branch 1", "subpoints": ["subpoint 1", "subpoint 2", "subpoint 3"]},
        {"title": "Main Branch 2", "subpoints": ["subpoint 1", "subpoint 2"]}
    ]
}

Include 4-6 main branches with 2-4 subpoints each. Make it comprehensive but organized.
Return ONLY the JSON, no other text. Write everything in English.`, topicName, subjectName, topicName)
}

func flashcardsPrompt(topicName, notesContext string, count int) string {
	context := ""
	if notesContext != "" {
		context = "\nContext from notes:\n" + notesContext
	}

	return fmt.Sprintf(`Create %d flashcards IN ENGLISH for undergraduate students for the topic %q.%s

Return ONLY a JSON array in this exact format:
[
    {"front": "Question or term", "back": "Answer or definition", "difficulty": "medium"}
]

Make flashcards that:
- Cover key concepts, definitions, and important facts
- Use clear, concise English language
- Help students memorize and understand the topic

Return ONLY the JSON array, no other text.`, count, topicName, context)
}

func mcqsPrompt(topicName, notesContext string, count int) string {
	context := ""
	if notesContext != "" {
		context = "\nBased on these notes:\n" + notesContext
	}

	return fmt.Sprintf(`Generate %d undergraduate-level MCQs IN ENGLISH for the topic %q.%s

Return ONLY a JSON array in this exact format:
[
    {
        "question": "The question text here?",
        "options": {"a": "Option A text", "b": "Option B text", "c": "Option C text", "d": "Option D text"},
        "correct": "a",
        "explanation": "Brief explanation of why this answer is correct",
        "difficulty": "medium"
    }
]

Requirements:
- Mix of easy, medium, and hard questions
- Clear, unambiguous English questions
- Plausible distractors for wrong options
- Helpful explanations in English

Return ONLY the JSON array, no other text.`, count, topicName, context)
}

func tagTopicPrompt(questionText string, candidates []string) string {
	var topics strings.Builder
	for _, t := range candidates {
		topics.WriteString("- ")
		topics.WriteString(t)
		topics.WriteString("\n")
	}

	return fmt.Sprintf(`Given the following topics:
%s
Question: %q

Which ONE topic does this question best belong to?
Reply with EXACTLY the topic text only, nothing else.`, topics.String(), questionText)
}

func answerDoubtPrompt(question, topicName, notesContext string) string {
	return fmt.Sprintf(`You are a helpful tutor for undergraduate students.
The student is asking about the topic: %q

Here are the notes for this topic:
"""
%s
"""

Student's question: %q

Instructions:
- Answer the question clearly and concisely.
- You may use the provided notes as context, but if the information is missing, use your general knowledge to explain the concept.
- Keep the explanation brief and easy to understand.

Your answer:`, topicName, notesContext, question)
}
