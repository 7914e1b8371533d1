package types

import "fmt"

// Filter selects index rows. All set fields must match.
type Filter struct {
	VaultID   string   `json:"vaultId,omitempty"`
	VaultName string   `json:"vaultName,omitempty"`
	Type      string   `json:"type,omitempty"`
	Category  string   `json:"category,omitempty"`
	Tags      []string `json:"tags,omitempty"` // row tags must contain every one
	Limit     int      `json:"limit,omitempty"`

	// OrderBy is one of OrderableColumns; empty leaves order unspecified
	OrderBy   string `json:"orderBy,omitempty"`
	OrderDesc bool   `json:"orderDesc,omitempty"`
}

// OrderableColumns lists the columns a Filter may sort on
var OrderableColumns = []string{"created_at", "updated_at", "title", "id"}

// Validate checks limit and ordering
func (f Filter) Validate() error {
	if f.Limit < 0 {
		return fmt.Errorf("%w: limit cannot be negative", ErrInvalidFilter)
	}
	if f.OrderBy == "" {
		return nil
	}
	for _, c := range OrderableColumns {
		if c == f.OrderBy {
			return nil
		}
	}
	return fmt.Errorf("%w: cannot order by %q", ErrInvalidFilter, f.OrderBy)
}
