package entity

// Category is an archival category such as "SPVs_AgriOps"
type Category string

const (
	// CategoryUnsorted receives invoices that match no registry entry
	CategoryUnsorted Category = "Unsorted"

	// UnknownEntity names the entity folder when no party name was extracted
	UnknownEntity = "UNKNOWN"
)

// RoutingResult is the canonical (category, entity folder) pair for an invoice
type RoutingResult struct {
	Category         Category `json:"category"`
	EntityFolderName string   `json:"entity_folder_name"`
}

// IsUnsorted reports whether the router fell back to the unsorted category
func (r RoutingResult) IsUnsorted() bool {
	return r.Category == CategoryUnsorted
}

// RegistryEntry maps match aliases to a canonical entity folder
type RegistryEntry struct {
	Category   Category `yaml:"category" json:"category"`
	FolderName string   `yaml:"folder_name" json:"folder_name"`
	Aliases    []string `yaml:"aliases" json:"aliases"`
}
