package gemini

// Wire types for the generateContent endpoint. Only the fields this client
// reads or writes are declared.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []Part `json:"parts"`
}

// Part is one element of a request: text or inline image data.
type Part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateResponse struct {
	Candidates []candidate `json:"candidates"`
	Error      *apiError   `json:"error,omitempty"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Text: text}
}
