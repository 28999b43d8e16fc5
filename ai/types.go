package ai

// Comparison holds the vision-language model's view of two images.
type Comparison struct {
	// Description1 is the model's caption for the first image.
	Description1 string

	// Description2 is the model's caption for the second image.
	Description2 string

	// Summary combines both descriptions into a single comparison
	// statement.
	Summary string
}
