// Package domain holds the view catalog types shared by repo, service and http
package domain

import (
	"regexp"
	"time"

	perr "researchflow/internal/platform/errors"
)

// viewNameRE also guards the derived table identifier, keep it strict
var viewNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

var fieldNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

// FieldSpec declares one extracted column of a view
type FieldSpec struct {
	// Name is the column name in the derived table
	Name string `json:"name" validate:"required"`

	// Path is the extraction expression into the source document
	Path string `json:"path" validate:"required"`

	// Ref marks the value as a source reference ("Patient/123"),
	// stored as both the full reference and the extracted local id
	Ref bool `json:"ref,omitempty"`

	// Text marks the value as a free-text clinical term,
	// matched by normalized core-term substring instead of equality
	Text bool `json:"text,omitempty"`
}

// Predicate is a fixed filter baked into a view definition
type Predicate struct {
	Field string `json:"field" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// ViewSpec is an immutable view declaration.
// Changing a definition means registering a new name.
type ViewSpec struct {
	Name       string      `json:"name" validate:"required"`
	EntityType string      `json:"entity_type" validate:"required"`
	Fields     []FieldSpec `json:"fields" validate:"required,min=1,dive"`
	Where      []Predicate `json:"where,omitempty" validate:"omitempty,dive"`

	// Primary names the Ref field whose local id is the primary entity id
	// for this view. Empty means the extracted entity is the primary itself.
	Primary string `json:"primary,omitempty"`
}

// ViewInfo is ViewSpec plus catalog lifecycle metadata
type ViewInfo struct {
	ViewSpec
	CreatedAt     time.Time  `json:"created_at"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
}

// TableName returns the derived table identifier for a view
func (v ViewSpec) TableName() string { return "mv_" + v.Name }

// Columns returns the derived table column list served to readers,
// id first. Ref fields occupy two columns: the full source reference
// and the extracted local id the table joins on.
func (v ViewSpec) Columns() []string {
	cols := []string{"id"}
	for _, f := range v.Fields {
		if f.Ref {
			cols = append(cols, f.Name+"_ref", f.Name+"_id")
		} else {
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// TableColumns returns every stored column, including the normalized
// shadow column text fields are filtered on
func (v ViewSpec) TableColumns() []string {
	cols := []string{"id"}
	for _, f := range v.Fields {
		switch {
		case f.Ref:
			cols = append(cols, f.Name+"_ref", f.Name+"_id")
		case f.Text:
			cols = append(cols, f.Name, f.Name+"_norm")
		default:
			cols = append(cols, f.Name)
		}
	}
	return cols
}

// FilterColumn returns the table column a filter on field compares against.
// Ref fields filter on the local id column, text fields on the
// normalized shadow column.
func (f FieldSpec) FilterColumn() string {
	if f.Ref {
		return f.Name + "_id"
	}
	if f.Text {
		return f.Name + "_norm"
	}
	return f.Name
}

// Field returns the field named name
func (v ViewSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate checks the structural invariants a spec must hold before it can
// be registered. Validation failures are terminal, never retried.
func (v ViewSpec) Validate() error {
	if !viewNameRE.MatchString(v.Name) {
		return perr.Validationf("view name %q must match %s", v.Name, viewNameRE.String())
	}
	if v.EntityType == "" {
		return perr.Validationf("view %q needs an entity type", v.Name)
	}
	if len(v.Fields) == 0 {
		return perr.Validationf("view %q needs at least one field", v.Name)
	}

	seen := map[string]bool{}
	for _, f := range v.Fields {
		if !fieldNameRE.MatchString(f.Name) {
			return perr.Validationf("field name %q must match %s", f.Name, fieldNameRE.String())
		}
		if seen[f.Name] {
			return perr.Validationf("duplicate field name %q", f.Name)
		}
		seen[f.Name] = true
		if f.Path == "" {
			return perr.Validationf("field %q needs an extraction path", f.Name)
		}
		if f.Ref && f.Text {
			return perr.Validationf("field %q cannot be both ref and text", f.Name)
		}
	}

	if v.Primary != "" {
		f, ok := v.Field(v.Primary)
		if !ok {
			return perr.Validationf("primary %q is not a declared field", v.Primary)
		}
		if !f.Ref {
			return perr.Validationf("primary %q must be a ref field", v.Primary)
		}
	}

	for _, p := range v.Where {
		if _, ok := v.Field(p.Field); !ok {
			return perr.Validationf("where predicate on unknown field %q", p.Field)
		}
	}
	return nil
}
