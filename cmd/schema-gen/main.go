// Schema Generator
//
// Generates JSON Schema files for the tariff document, the authored
// schedule format and the internal API types, for clients and editors.
//
// Usage:
//
//	go run cmd/schema-gen/main.go
//
// Output:
//
//	schemas/tariff.json
//	schemas/schedule.json
//	schemas/api.json
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/shopspring/decimal"

	"github.com/tariffsync/tariff-service/internal/database"
	"github.com/tariffsync/tariff-service/internal/handlers"
	"github.com/tariffsync/tariff-service/internal/parsers/schedule"
	"github.com/tariffsync/tariff-service/internal/tariff"
)

// SchemaGroup represents a group of related schemas
type SchemaGroup struct {
	Name   string
	Types  []any
	Output string
}

func main() {
	outputDir := "schemas"
	if len(os.Args) > 1 {
		outputDir = os.Args[1]
	}

	// Ensure output directory exists
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output directory: %v\n", err)
		os.Exit(1)
	}

	groups := []SchemaGroup{
		{
			Name: "tariff",
			Types: []any{
				tariff.TariffDocument{},
			},
			Output: "tariff.json",
		},
		{
			Name: "schedule",
			Types: []any{
				schedule.File{},
			},
			Output: "schedule.json",
		},
		{
			Name: "api",
			Types: []any{
				// Request types
				handlers.DynamicRequest{},
				handlers.OverrideRequest{},
				// Response types
				handlers.CompileResponse{},
				handlers.ValidateResponse{},
				handlers.DynamicResponse{},
				handlers.ViolationsResponse{},
				handlers.ListSchedulesResponse{},
				handlers.SyncResponse{},
				handlers.ArchiveResponse{},
				handlers.ListSyncRunsResponse{},
				handlers.HealthResponse{},
				tariff.SchedulePreview{},
				database.Override{},
			},
			Output: "api.json",
		},
	}

	// Generate schemas for each group
	for _, group := range groups {
		schema := generateGroupSchema(group)
		outputPath := filepath.Join(outputDir, group.Output)

		if err := writeSchema(schema, outputPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", group.Output, err)
			os.Exit(1)
		}

		fmt.Printf("Generated %s\n", outputPath)
	}

	fmt.Println("Schema generation complete!")
}

var (
	moneyType   = reflect.TypeOf(schedule.Money{})
	amountType  = reflect.TypeOf(tariff.Amount{})
	decimalType = reflect.TypeOf(decimal.Decimal{})
)

// mapDecimals describes the decimal wrappers by their wire form
func mapDecimals(t reflect.Type) *jsonschema.Schema {
	switch t {
	case amountType:
		return &jsonschema.Schema{Type: "number"}
	case moneyType, decimalType:
		return &jsonschema.Schema{OneOf: []*jsonschema.Schema{
			{Type: "number"},
			{Type: "string", Pattern: `^-?[0-9]+(\.[0-9]+)?$`},
		}}
	}
	return nil
}

// generateGroupSchema creates a combined schema with all types in a group
func generateGroupSchema(group SchemaGroup) map[string]any {
	reflector := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
		Mapper:         mapDecimals,
	}

	// Create combined definitions
	definitions := make(map[string]any)

	for _, t := range group.Types {
		schema := reflector.Reflect(t)

		// Get the type name from the schema
		typeName := ""
		if schema.Ref != "" {
			// Extract type name from $ref like "#/$defs/BasketItem"
			typeName = filepath.Base(schema.Ref)
		}

		// Add all definitions from this type's schema
		for name, def := range schema.Definitions {
			definitions[name] = def
		}

		// If there's a main type, add it to definitions too
		if typeName != "" && schema.Definitions[typeName] != nil {
			definitions[typeName] = schema.Definitions[typeName]
		}
	}

	return map[string]any{
		"$schema":     "https://json-schema.org/draft/2020-12/schema",
		"$id":         fmt.Sprintf("https://tariffsync.dev/schemas/%s.json", group.Name),
		"title":       fmt.Sprintf("%s API Types", capitalize(group.Name)),
		"description": fmt.Sprintf("JSON Schema for %s API types generated from Go structs", group.Name),
		"$defs":       definitions,
	}
}

// writeSchema writes a schema to a JSON file
func writeSchema(schema map[string]any, path string) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal schema: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}

func capitalize(s string) string {
	if len(s) == 0 {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
