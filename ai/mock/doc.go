// Package mock provides test doubles for the ai interfaces.
//
// # Usage in Tests
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	count := embedder.CallCount()
//
// # Default Behavior
//
// Without injected funcs the embedder returns deterministic unit vectors
// derived from an FNV hash of the text, DefaultDimensions long.
package mock
