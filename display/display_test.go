package display

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCommands() (*cobra.Command, *cobra.Command) {
	root := &cobra.Command{Use: "finq"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "records", Run: func(*cobra.Command, []string) {}}
	root.AddCommand(child)
	return root, child
}

func TestShouldOutputJSON(t *testing.T) {
	t.Setenv(OutputEnv, "")

	t.Run("default is human output", func(t *testing.T) {
		_, child := newCommands()
		assert.False(t, ShouldOutputJSON(child))
	})

	t.Run("persistent flag", func(t *testing.T) {
		root, child := newCommands()
		root.SetArgs([]string{"records", "--json"})
		require.NoError(t, root.Execute())
		assert.True(t, ShouldOutputJSON(child))
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv(OutputEnv, "JSON")
		_, child := newCommands()
		assert.True(t, ShouldOutputJSON(child))
		assert.True(t, ShouldOutputJSON(nil))
	})

	t.Run("explicit false beats environment", func(t *testing.T) {
		t.Setenv(OutputEnv, "json")
		root, child := newCommands()
		root.SetArgs([]string{"records", "--json=false"})
		require.NoError(t, root.Execute())
		assert.False(t, ShouldOutputJSON(child))
	})
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"added": 2}))
	assert.Equal(t, "{\n  \"added\": 2\n}\n", buf.String())

	t.Setenv(CompactEnv, "1")
	buf.Reset()
	require.NoError(t, WriteJSON(&buf, map[string]int{"added": 2}))
	assert.Equal(t, "{\"added\":2}\n", buf.String())
}
