// Package class names the kinds of shapes being counted. It has no image-processing dependencies.
package class

import "fmt"

// Class is a kind of shape the classifier accepts
type Class uint8

const (
	Square Class = iota
	Circle
)

// All lists every class in display order
var All = []Class{Square, Circle}

func (c Class) String() string {
	switch c {
	case Square:
		return "SQUARE"
	case Circle:
		return "CIRCLE"
	default:
		return fmt.Sprintf("Class(%d)", uint8(c))
	}
}
