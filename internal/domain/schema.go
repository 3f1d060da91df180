package domain

import (
	"fmt"
	"strings"
)

// SchemaFormat defines the format of the source API description.
type SchemaFormat string

const (
	FormatSmithy     SchemaFormat = "smithy"     // AWS Smithy JSON AST
	FormatOpenAPI    SchemaFormat = "openapi"    // OpenAPI 3.x
	FormatDiscovery  SchemaFormat = "discovery"  // Google API discovery document
	FormatProto      SchemaFormat = "proto"      // protobuf descriptors (.proto, .protoset, gRPC reflection)
	FormatReflection SchemaFormat = "reflection" // reflect.Type snapshot of a compiled Go client
)

// Formats lists every supported format in a stable order.
var Formats = []SchemaFormat{FormatSmithy, FormatOpenAPI, FormatDiscovery, FormatProto, FormatReflection}

// ParseSchemaFormat maps a configured format name to a SchemaFormat.
func ParseSchemaFormat(s string) (SchemaFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "smithy", "aws":
		return FormatSmithy, nil
	case "openapi", "swagger", "oas":
		return FormatOpenAPI, nil
	case "discovery", "gcp-discovery":
		return FormatDiscovery, nil
	case "proto", "protobuf", "grpc", "protoset":
		return FormatProto, nil
	case "reflection", "reflect":
		return FormatReflection, nil
	}
	return "", fmt.Errorf("unknown schema format %q", s)
}

// APISchema represents a loaded API description before conversion.
// It holds the raw bytes and metadata about its origin and format.
type APISchema struct {
	// Source indicates the origin of the document (URL, file path, gRPC endpoint).
	Source string
	// Format specifies the kind of description (Smithy, OpenAPI, ...).
	Format SchemaFormat
	// RawData holds the unprocessed document content, when there is one.
	// It is used to key the conversion cache.
	RawData []byte
	// ParsedData holds the document already deserialized into the format's
	// library representation, e.g. *openapi3.T for OpenAPI. Converters
	// type-assert it.
	ParsedData any
}
