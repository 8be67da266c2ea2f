// Package embedder maps text to vector embeddings through swappable providers.
//
// All providers implement Embedder. EmbedMany returns exactly one vector per
// input text, in input order, and every vector of a provider has the same length.
//
// # Basic Usage
//
//	// Create embedder (auto-detects provider from environment)
//	emb, err := embedder.NewFromEnv()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	vectors, err := emb.EmbedMany(ctx, []string{"Paris is the capital of France."})
//
// # Provider Selection
//
//  1. If RAGCORE_EMBEDDING_PROVIDER is set → use specified provider
//  2. Else if OPENAI_API_KEY, JINA_API_KEY or GEMINI_API_KEY is set → use that API
//  3. Else → fallback to local provider (offline mode)
//
// # Providers
//
// OpenAI, Jina and Gemini share APIProvider, which speaks the OpenAI
// /embeddings wire format. Requests are batched (at most MaxBatchSize texts),
// rate limited and retried with exponential backoff on 429 and 5xx.
//
// LangChainProvider goes through langchaingo and serves self-hosted
// OpenAI-compatible servers such as Text Embeddings Inference.
//
// LocalProvider needs no network: it hashes word tokens into a fixed number of
// buckets. It is deterministic and is what the tests use.
//
// # Errors
//
// Remote failures are returned as *types.ProviderError and match
// types.ErrProvider with errors.Is. Empty input texts are rejected with
// types.ErrInvalidArgument before any call is made.
package embedder
