// Package openai provides AI service implementations using OpenAI-compatible APIs.
//
// The package implements ai.Provider with the langchaingo library and works
// against OpenAI or compatible servers such as Ollama, LocalAI or vLLM.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithChatModel("medgemma:1.5-4b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vec, err := provider.Embedder().EmbedText(ctx, "sample text")
//	analysis, err := provider.Analyzer().AnalyzeCase(ctx, medicalCase)
package openai
