package intake

import (
	"strings"

	"github.com/hadlocna/operations/internal/domain/entity"
)

// IsQualifyingPart reports whether a part is a named PDF attachment
func IsQualifyingPart(p *entity.MessagePart) bool {
	return strings.EqualFold(strings.TrimSpace(p.MimeType), entity.MimeTypePDF) &&
		strings.TrimSpace(p.Filename) != ""
}

// FindPDFPart walks the payload tree depth-first in declared part order and
// returns the first qualifying part
func FindPDFPart(root *entity.MessagePart) (*entity.MessagePart, bool) {
	if root == nil {
		return nil, false
	}

	stack := []*entity.MessagePart{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		node := stack[n]
		stack = stack[:n]

		if IsQualifyingPart(node) {
			return node, true
		}

		// Push children in reverse so the first declared child is visited next
		for i := len(node.Parts) - 1; i >= 0; i-- {
			stack = append(stack, &node.Parts[i])
		}
	}
	return nil, false
}
