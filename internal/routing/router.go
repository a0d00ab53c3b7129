package routing

import (
	"strings"

	"github.com/hadlocna/operations/internal/domain/entity"
)

type compiledEntry struct {
	category   entity.Category
	folderName string
	aliases    []string
}

// Router maps extracted party names to a canonical archival folder.
// It performs no I/O and is safe for concurrent use.
type Router struct {
	normalizer *Normalizer
	entries    []compiledEntry
}

// NewRouter compiles the registry, normalizing every alias with the same
// function used for targets
func NewRouter(reg *Registry) (*Router, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}

	normalizer := NewNormalizer(reg.LegalSuffixes)
	entries := make([]compiledEntry, 0, len(reg.Entries))
	for _, e := range reg.Entries {
		compiled := compiledEntry{category: e.Category, folderName: e.FolderName}
		for _, alias := range e.Aliases {
			// An empty alias would be a substring of every target
			if a := normalizer.Normalize(alias); a != "" {
				compiled.aliases = append(compiled.aliases, a)
			}
		}
		entries = append(entries, compiled)
	}

	return &Router{normalizer: normalizer, entries: entries}, nil
}

// Route prefers the customer name and falls back to the supplier name.
// The first registry entry with an alias contained in the target wins.
func (r *Router) Route(customerName, supplierName string) entity.RoutingResult {
	target := r.normalizer.Normalize(customerName)
	if target == "" {
		target = r.normalizer.Normalize(supplierName)
	}

	if target != "" {
		for _, e := range r.entries {
			for _, alias := range e.aliases {
				if strings.Contains(target, alias) {
					return entity.RoutingResult{Category: e.category, EntityFolderName: e.folderName}
				}
			}
		}
	}

	folder := target
	if folder == "" {
		folder = entity.UnknownEntity
	}
	return entity.RoutingResult{Category: entity.CategoryUnsorted, EntityFolderName: folder}
}

// Normalize exposes the router's normalization for callers that compare names
func (r *Router) Normalize(name string) string {
	return r.normalizer.Normalize(name)
}
