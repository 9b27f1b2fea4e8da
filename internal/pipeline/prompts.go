package pipeline

import (
	"fmt"
	"strings"

	"github.com/hpungsan/aireach/internal/work"
)

// transcribePrompt asks for the image text only.
const transcribePrompt = "Read the text in this image exactly as written and output only that text. " +
	"Do not comment and do not add anything."

// shelfPrompt asks for a recommendation from a bookshelf photo.
const shelfPrompt = "Analyze the bookshelf in this image and recommend one book to the user. " +
	`Output format: "Book name: [concise analysis]". Do not use markdown.`

// identifyPrompt builds the identification request. The model may correct
// OCR noise in the excerpt from context.
func identifyPrompt(excerpt string) string {
	return fmt.Sprintf(`Analyze the following text and determine which literary work it belongs to.
TEXT: "%s"

INSTRUCTIONS:
1. Answer ONLY with JSON in the format below. Do not use markdown blocks.
{
    "title": "Book title",
    "author": "Author name"
}
2. If the text does not belong to a book, write "Unknown" for both values.`, excerpt)
}

// analysisPrompt builds the literary-critic request for an identified work.
func analysisPrompt(id work.Identity, excerpt string) string {
	return fmt.Sprintf("You are an expert literary critic. Write an in-depth analysis of this book (maximum 3 sentences): "+
		"Work: %s, Author: %s. Include this quotation in your analysis: \"%s\"", id.Title, id.Author, excerpt)
}

// recommendPrompt builds the recommendation request from history entries.
func recommendPrompt(entries []string) string {
	return fmt.Sprintf("Books read: [%s]. "+
		"Based on this list, recommend 3 books that suit the user's taste and are NOT in the list. "+
		"Format: 'Book Title - Author Name' followed by a short, spoiler-free description. Do not use markdown.",
		strings.Join(entries, ", "))
}
