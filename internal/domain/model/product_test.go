package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProductPatch_Apply(t *testing.T) {
	img := "https://cdn.example.com/old.png"
	p := &Product{Name: "Ladoo", Description: "Tasty", Price: 50, Quantity: 10, Image: &img}

	name := "Motichoor Ladoo"
	qty := 4
	patch := ProductPatch{Name: &name, Quantity: &qty}
	assert.False(t, patch.IsEmpty())

	patch.Apply(p)

	assert.Equal(t, "Motichoor Ladoo", p.Name)
	assert.Equal(t, 4, p.Quantity)
	assert.Equal(t, "Tasty", p.Description)
	assert.Equal(t, 50.0, p.Price)
	assert.Equal(t, img, *p.Image)
}

func TestProductPatch_IsEmpty(t *testing.T) {
	assert.True(t, ProductPatch{}.IsEmpty())
}
