package persist

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed plan.schema.json
var planSchemaText string

const planSchemaURL = "plan.schema.json"

var (
	planSchemaOnce sync.Once
	planSchema     *jsonschema.Schema
	planSchemaErr  error
)

func compiledPlanSchema() (*jsonschema.Schema, error) {
	planSchemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(planSchemaURL, strings.NewReader(planSchemaText)); err != nil {
			planSchemaErr = err
			return
		}
		planSchema, planSchemaErr = c.Compile(planSchemaURL)
	})
	return planSchema, planSchemaErr
}

// Lint checks the structure of a plan document: required header fields, the
// modules/model/entry nesting and entry window shapes. It does not know about
// catalogs; Codec.Decode reports semantic problems.
//
// Lint is for authoring tools. The loader never rejects a document Lint would flag;
// it degrades per field instead.
func Lint(data []byte) error {
	s, err := compiledPlanSchema()
	if err != nil {
		return fmt.Errorf("persist.Lint: compiling schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("persist.Lint: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("persist.Lint: %w", err)
	}
	return nil
}
