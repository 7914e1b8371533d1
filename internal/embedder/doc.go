// Package embedder generates vector embeddings for artifact titles and
// descriptions.
//
// Three providers are supported: a local ONNX model (bge-small-en-v1.5 by
// default, cgo builds only), and the Jina AI and OpenAI HTTP APIs. Providers
// cache embeddings by content hash and retry transient API failures with
// exponential backoff.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    // semantic search stays disabled
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "Kafka ingestion\nConsumer group rebalancing",
//	})
//
// Queries should set IsQuery so models with asymmetric encoders use the
// query side:
//
//	q, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text:    "event streaming",
//	    IsQuery: true,
//	})
//
// # Deferred Loading
//
// The index loads its model while initializing, not at construction. Pass a
// Loader instead of an Embedder:
//
//	loader := embedder.NewLoader(cfg)
//
// A loader error is not fatal to the index: it logs the failure and answers
// vector searches with empty results.
//
// # Provider Selection
//
// With no explicit provider, DetectProvider picks Jina when JINA_API_KEY is
// set, then OpenAI when OPENAI_API_KEY is set, and the local model
// otherwise. The "none" provider disables embeddings on purpose.
package embedder
