package chat

const (
	rewriteInstruction = "Given the above conversation, generate a search query to look up in order to get information relevant to the conversation"

	answerSystemPrompt = `Answer the user's questions based on the below context.
If the context does not contain the answer, say that you cannot find it in the document. Do not answer from outside knowledge.

Context:
{context}`

	contextSeparator = "\n\n"
)
