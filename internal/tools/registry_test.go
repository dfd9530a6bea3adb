package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(ThinkTool()))

	out, err := r.Execute(context.Background(), "think_tool", json.RawMessage(`{"thought":"compare sources"}`))
	require.NoError(t, err)
	assert.Equal(t, "Thought noted: compare sources", out)

	assert.Error(t, r.Register(ThinkTool()), "duplicate names are rejected")
	assert.Error(t, r.Register(Tool{Name: "x"}), "executor is required")

	_, err = r.Execute(context.Background(), "missing", nil)
	assert.Error(t, err)
}

func TestRegistryRejectsMalformedArguments(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ThinkTool())

	_, err := r.Execute(context.Background(), "think_tool", json.RawMessage(`{"thought":`))
	assert.Error(t, err)
}

func TestRegistryListKeepsOrder(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(ThinkTool())
	r.MustRegister(AnalyzePDFTool())
	r.MustRegister(AnalyzeDocumentTool())

	all := r.List()
	require.Len(t, all, 3)
	assert.Equal(t, "think_tool", all[0].Name)

	subset := r.List("analyze_document", "nope", "think_tool")
	require.Len(t, subset, 2)
	assert.Equal(t, "analyze_document", subset[0].Name)
	assert.Equal(t, "think_tool", subset[1].Name)
}

func TestSchemaReflection(t *testing.T) {
	schema := (&Searcher{}).Tool().Parameters

	assert.Equal(t, "object", schema["type"])
	assert.Equal(t, []any{"query"}, schema["required"])
	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "query")
	maxResults, ok := props["max_results"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "integer", maxResults["type"])
	assert.NotContains(t, schema, "$schema")
}
