// Package generator provides the generation port: turning a question and the
// retrieved passages into an answer.
//
// LangChainGenerator sends a grounded prompt to any langchaingo model;
// NewOpenAI builds one for OpenAI or for Gemini through Google's
// OpenAI-compatible endpoint. ExtractiveGenerator needs no model and answers
// with the top passage.
//
// The prompt instructs the model to reply with InsufficientInformation when
// the context does not contain the answer.
package generator
