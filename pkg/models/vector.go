package models

import (
	"strconv"
	"strings"
)

// VectorLiteral renders an embedding as the `[x,y,...]` text literal. The
// same literal is accepted by pgvector's VECTOR input function and, being a
// JSON array, by the JSONB placeholder columns used when vector support is
// off. Repositories pass it as a plain string parameter and let the server
// coerce it to the live column type.
func VectorLiteral(vec []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, v := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(v), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
