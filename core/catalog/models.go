package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/pathways/core"
)

type MaterialType string

// Material types
const (
	MaterialDocument MaterialType = "document"
	MaterialVideo    MaterialType = "video"
	MaterialLink     MaterialType = "link"
)

// MaterialTypes is the full set of allowed material types.
var MaterialTypes = []MaterialType{MaterialDocument, MaterialVideo, MaterialLink}

// ParseMaterialType returns the MaterialType matching s (case-insensitive).
func ParseMaterialType(s string) (MaterialType, bool) {
	s = core.CleanString(s, true /* lower */)
	for _, mt := range MaterialTypes {
		if string(mt) == s {
			return mt, true
		}
	}
	return "", false
}

// MaterialTypeOr returns the MaterialType matching s, or fallback when s is not recognized.
func MaterialTypeOr(s string, fallback MaterialType) MaterialType {
	if mt, ok := ParseMaterialType(s); ok {
		return mt
	}
	return fallback
}

type Path struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Categories []Category `json:"categories"`
	CreatedAt  time.Time  `json:"created_at"` // UTC
	UpdatedAt  time.Time  `json:"updated_at"` // UTC
}

type Category struct {
	ID        string     `json:"id"`
	PathID    string     `json:"path_id"`
	Name      string     `json:"name"`
	Materials []Material `json:"materials"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

type Material struct {
	ID         string       `json:"id"`
	CategoryID string       `json:"category_id"`
	Name       string       `json:"name"`
	Type       MaterialType `json:"type"`
	URL        string       `json:"url"`
	CreatedAt  time.Time    `json:"created_at"` // UTC
	UpdatedAt  time.Time    `json:"updated_at"` // UTC
}

// NumCategories counts the categories of all paths.
func NumCategories(paths []Path) int {
	var n int
	for _, p := range paths {
		n += len(p.Categories)
	}
	return n
}

type PathFilter struct {
	ID   string
	Name string
}

type CategoryFilter struct {
	ID     string
	PathID string
	Name   string // only used along with PathID
}

// NewPath contains information needed to create a new Path.
type NewPath struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (np *NewPath) Validate(validate *validator.Validate) error {
	np.Name = core.CleanString(np.Name)
	return validate.Struct(np)
}

// NewCategory contains information needed to create or rename a Category.
type NewCategory struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (nc *NewCategory) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// NewMaterial contains information needed to create or update a Material.
type NewMaterial struct {
	Name string `json:"name" validate:"required,max=200"`
	Type string `json:"type" validate:"required,oneof=document video link"`
	URL  string `json:"url" validate:"omitempty,url"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Type = core.CleanString(nm.Type, true /* lower */)
	nm.URL = core.CleanString(nm.URL)
	return validate.Struct(nm)
}
