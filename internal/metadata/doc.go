// Package metadata reads canonical artifact metadata files.
//
// A metadata file is a YAML document carrying the fields of
// types.ArtifactMetadata plus the artifact's title and description, which
// the index stores for keyword and semantic search.
//
// Example file:
//
//	id: md-123
//	artifactId: payment-gateway
//	vaultId: main
//	type: design
//	tags: [api, payments]
//	relatedCodePaths: [internal/payments/gateway.go]
//	title: Payment Gateway
//	description: Card checkout flow
package metadata
