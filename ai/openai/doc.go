// Package openai talks to OpenAI-compatible embedding and chat endpoints
// through langchaingo. Ollama, LocalAI and vLLM all work; a host without a
// /v1 suffix gets one during ai.Config validation.
//
//	provider, err := openai.NewProvider(ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"),
//	    ai.WithEmbeddingModel("nomic-embed-text"),
//	    ai.WithCompletionModel("llama3.2"),
//	))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, question)
package openai
