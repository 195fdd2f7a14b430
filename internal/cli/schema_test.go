package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTree() *cobra.Command {
	root := &cobra.Command{Use: "coverdraft"}
	root.PersistentFlags().String("api-url", "", "API base URL")
	AddHelpJSONFlag(root)

	add := &cobra.Command{Use: "add <file>", Aliases: []string{"upload"}, Short: "Upload a document", Run: func(*cobra.Command, []string) {}}
	add.Flags().StringP("type", "t", "", "Document type")
	SetDocumentTypeEnum(add, "type")
	add.Flags().Float64("weight", 1, "Manual weight")
	_ = add.MarkFlagRequired("weight")

	hidden := &cobra.Command{Use: "debug", Hidden: true, Run: func(*cobra.Command, []string) {}}
	root.AddCommand(add, hidden)
	return root
}

func TestGenerateSchema(t *testing.T) {
	root := testTree()
	schema := GenerateSchema(root)

	require.Len(t, schema.Subcommands, 1)
	add := schema.Subcommands[0]
	assert.Equal(t, "coverdraft add", add.Path)
	assert.Equal(t, []string{"upload"}, add.Aliases)

	require.Len(t, add.Flags, 2)
	assert.Equal(t, "type", add.Flags[0].Name)
	assert.Equal(t, []string{"cv", "cover_letter", "linkedin", "other"}, add.Flags[0].Enum)
	assert.False(t, add.Flags[0].Required)
	assert.Equal(t, "weight", add.Flags[1].Name)
	assert.True(t, add.Flags[1].Required)

	require.Len(t, add.Inherited, 1)
	assert.Equal(t, "api-url", add.Inherited[0].Name)
}

func TestHelpJSONTarget(t *testing.T) {
	root := testTree()

	target, ok := helpJSONTarget(root, []string{"upload", "--help-json"})
	require.True(t, ok)
	assert.Equal(t, "add", target.Name())

	target, ok = helpJSONTarget(root, []string{"--help-json"})
	require.True(t, ok)
	assert.Equal(t, root, target)

	_, ok = helpJSONTarget(root, []string{"add", "cv.txt"})
	assert.False(t, ok)
}

func TestWriteSchema(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSchema(&buf, testTree()))

	var decoded CommandSchema
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "coverdraft", decoded.Name)
}
