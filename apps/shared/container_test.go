package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/pathways/core"
)

func TestNewContainer_InMemory(t *testing.T) {
	conf := &core.Config{
		Env:      "TEST",
		TestMode: true,
		AppName:  "Pathways",
		Database: core.DatabaseConfig{Engine: EngineInMemory},
		Import:   core.ImportConfig{DefaultMaterialType: "video", LoginDomain: "training.local"},
	}
	c, err := NewContainer(context.Background(), conf, NewLogger(conf, "TEST"))
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB())
	assert.NotNil(t, c.ImportSvc)
	assert.NotNil(t, c.ProgressSvc)

	tree, err := c.CatalogSvc.Tree(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tree)
}

func TestNewContainer_UnknownEngine(t *testing.T) {
	conf := &core.Config{Database: core.DatabaseConfig{Engine: "mysql"}}
	_, err := NewContainer(context.Background(), conf, NewLogger(conf, "TEST"))
	assert.EqualError(t, err, `unknown database engine "mysql"`)
}
