package openai

import "fmt"

// captionPrompt asks the vision model for a dense one-paragraph
// description suitable for indexing and downstream comparison.
const captionPrompt = "Describe this image in one detailed paragraph. " +
	"Mention the main subjects, their arrangement, and any notable " +
	"objects, text, or activity. Do not speculate about anything not " +
	"visible in the image."

// buildQuestionPrompt frames a user question about a single image.
func buildQuestionPrompt(question string) string {
	return fmt.Sprintf("Answer the following question about this image "+
		"based only on what is visible. Question: %s", question)
}

// buildComparisonCaptionPrompt frames the per-image description request
// used during a two-image comparison. When a question is given, the
// description is steered toward the aspect being compared.
func buildComparisonCaptionPrompt(question string) string {
	if question == "" {
		return captionPrompt
	}
	return fmt.Sprintf("Describe this image in one detailed paragraph, "+
		"paying particular attention to anything relevant to the "+
		"following question: %s", question)
}

// buildComparisonSummary composes the two descriptions into the summary
// returned to callers.
func buildComparisonSummary(desc1, desc2 string) string {
	return fmt.Sprintf("Image 1: %s. Image 2: %s.", desc1, desc2)
}
