package snippets

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed snippet-file.schema.json
var snippetFileSchema string

const snippetFileSchemaURL = "snippet-file.schema.json"

// compileFileSchema compiles the embedded snippet file schema. Files that
// fail it are skipped as a whole, one malformed entry invalidates the file.
func compileFileSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(snippetFileSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedded snippet schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(snippetFileSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to register embedded snippet schema: %w", err)
	}

	schema, err := compiler.Compile(snippetFileSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile embedded snippet schema: %w", err)
	}
	return schema, nil
}
