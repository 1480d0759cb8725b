package class

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "SQUARE", Square.String())
	assert.Equal(t, "CIRCLE", Circle.String())
	assert.Equal(t, "Class(7)", Class(7).String())
	assert.Equal(t, []Class{Square, Circle}, All)
}
