package yml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNode_Lookup(t *testing.T) {
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte("Office:\n  name: demo\nother: 1\n"), &node))
	root := (*Node)(&node).Root()

	office := root.Lookup("office")
	require.NotNil(t, office)
	assert.Equal(t, "demo", office.Lookup("NAME").Value)
	assert.Nil(t, root.Lookup("missing"))

	var keys []string
	require.NoError(t, root.Pairs(func(key string, _ *Node) error {
		keys = append(keys, key)
		return nil
	}))
	assert.Equal(t, []string{"Office", "other"}, keys)
}
