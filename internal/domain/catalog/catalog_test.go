package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Order(t *testing.T) {
	c := Default()

	products := c.Products()
	require.Len(t, products, 3)
	assert.Equal(t, "shirt", products[0].Key)
	assert.Equal(t, "pants", products[1].Key)
	assert.Equal(t, "socks", products[2].Key)
}

func TestDefault_Prices(t *testing.T) {
	c := Default()

	shirt, err := c.Get("shirt")
	require.NoError(t, err)
	assert.True(t, shirt.UnitPrice.Equal(decimal.NewFromInt(2000)))

	pants, err := c.Get("pants")
	require.NoError(t, err)
	assert.True(t, pants.UnitPrice.Equal(decimal.NewFromInt(3000)))

	socks, err := c.Get("socks")
	require.NoError(t, err)
	assert.True(t, socks.UnitPrice.Equal(decimal.NewFromInt(500)))
}

func TestDefault_Variants(t *testing.T) {
	c := Default()

	shirt, err := c.Get("shirt")
	require.NoError(t, err)
	assert.Equal(t, KindSimple, shirt.Kind)
	assert.Equal(t, []string{"S", "M", "L", "XL"}, shirt.Sizes)

	pants, err := c.Get("pants")
	require.NoError(t, err)
	assert.Equal(t, KindTrousers, pants.Kind)
	require.NotEmpty(t, pants.WaistOptions)
	assert.Equal(t, 61, pants.WaistOptions[0])
	assert.Equal(t, 109, pants.WaistOptions[len(pants.WaistOptions)-1])
	for i := 1; i < len(pants.WaistOptions); i++ {
		assert.Equal(t, 3, pants.WaistOptions[i]-pants.WaistOptions[i-1])
	}

	socks, err := c.Get("socks")
	require.NoError(t, err)
	assert.Equal(t, KindSimple, socks.Kind)
	assert.Empty(t, socks.Sizes, "socks size is free text")
}

func TestGet_Unknown(t *testing.T) {
	c := Default()

	_, err := c.Get("hat")
	require.ErrorIs(t, err, ErrUnknownProduct)
	assert.False(t, c.Has("hat"))
}
