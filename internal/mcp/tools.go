package mcp

import "github.com/mark3labs/mcp-go/mcp"

var extractTextToolDef = mcp.NewTool("work_extract_text",
	mcp.WithDescription("Transcribe the text in a photographed page. Returns the text verbatim, or an \"ERROR: ...\" string if the model could not be reached."),
	mcp.WithString("image_base64", mcp.Required(), mcp.Description("JPEG image, base64 encoded")),
)

var identifyToolDef = mcp.NewTool("work_identify",
	mcp.WithDescription("Identify which literary work an excerpt comes from. Unresolvable input yields title \"Unknown title\" and author \"Unassigned author\"."),
	mcp.WithString("text", mcp.Required(), mcp.Description("Excerpt to identify")),
)

var analyzeToolDef = mcp.NewTool("work_analyze",
	mcp.WithDescription("Identify an excerpt, write a short critical analysis and save it to history. Provide exactly one of text or image_base64."),
	mcp.WithString("text", mcp.Description("Excerpt to analyze")),
	mcp.WithString("image_base64", mcp.Description("JPEG photo of a page, base64 encoded; transcribed first")),
)

var recommendToolDef = mcp.NewTool("work_recommend",
	mcp.WithDescription("Recommend three works the reader has not read. Uses the saved history unless entries are given. Needs at least two distinct works."),
	mcp.WithArray("entries", mcp.WithStringItems(), mcp.Description("Optional \"Title (Author)\" entries to use instead of history")),
)

var shelfToolDef = mcp.NewTool("shelf_analyze",
	mcp.WithDescription("Recommend a book from a photo of a bookshelf."),
	mcp.WithString("image_base64", mcp.Required(), mcp.Description("JPEG image, base64 encoded")),
)

var historyListToolDef = mcp.NewTool("history_list",
	mcp.WithDescription("List saved analyses, newest first."),
	mcp.WithNumber("limit", mcp.Description("Page size (default 50, max 500)")),
	mcp.WithNumber("offset", mcp.Description("Records to skip")),
)

var historyAddToolDef = mcp.NewTool("history_add",
	mcp.WithDescription("Record a work as read without analysing it."),
	mcp.WithString("title", mcp.Required(), mcp.Description("Work title")),
	mcp.WithString("author", mcp.Required(), mcp.Description("Work author")),
)

var historyClearToolDef = mcp.NewTool("history_clear",
	mcp.WithDescription("Irreversibly delete the whole reading history."),
	mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
)

var historyExportToolDef = mcp.NewTool("history_export",
	mcp.WithDescription("Export the reading history to a .jsonl or .html file in the exports directory."),
	mcp.WithString("path", mcp.Description("Destination file; defaults to the exports directory")),
	mcp.WithString("format", mcp.Description("jsonl or html; inferred from path when omitted")),
	mcp.WithString("name", mcp.Description("File name prefix for the default path")),
)
