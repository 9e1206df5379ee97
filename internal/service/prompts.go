package service

import "fmt"

const documentOnlyPrompt = `You are a document assistant. Answer the question using only the document context below.
Cite the source numbers you rely on, for example (Source 2).
If the context does not contain the answer, say that the documents do not cover it. Do not use outside knowledge.

Document context:
%s

Question: %s

Answer:`

const escalationPrompt = `You are a document assistant. Answer the question using the document context below.
Cite the source numbers you rely on, for example (Source 2).
If the context is missing, empty, or not sufficient to answer fully, reply with exactly ` + Sentinel + ` on its own line,
followed by whatever partial answer the context supports.

Document context:
%s

Question: %s

Answer:`

const enhancedPrompt = `You are a research assistant. Answer the question by combining the document context with the external search results.
Prefer the documents when the two disagree, and say so. Cite document sources as (Source N) and external results by their URL.

Document context:
%s

External search results:
%s

Question: %s

Answer:`

func firstPassPrompt(escalation bool, context, query string) string {
	if escalation {
		return fmt.Sprintf(escalationPrompt, context, query)
	}
	return fmt.Sprintf(documentOnlyPrompt, context, query)
}

func combinedPrompt(context, external, query string) string {
	return fmt.Sprintf(enhancedPrompt, context, external, query)
}
