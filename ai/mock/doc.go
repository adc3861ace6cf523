// Package mock provides test double implementations of AI service interfaces.
//
// The mocks allow tests to run without external AI services and give
// controlled, deterministic behavior.
//
// # Usage in Tests
//
//	mockProvider := mock.NewMockProvider()
//	vec, err := mockProvider.Embedder().EmbedText(ctx, "chest pain")
//
//	gen := mock.NewMockGenerator()
//	gen.GenerateFunc = func(ctx context.Context, system, prompt string) (string, error) {
//	    return "", errors.New("status code: 503")
//	}
//	count := gen.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: unit vectors derived from a hash of the text
//   - MockGenerator: echoes the prompt
//   - MockAnalyzer: empty analysis
package mock
