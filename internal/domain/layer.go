package domain

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// Style is the visual style of one rendered feature
type Style struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillColor   string  `json:"fillColor"`
	FillOpacity float64 `json:"fillOpacity"`
}

// StyleFunc derives a feature's style from its properties
type StyleFunc func(f *geojson.Feature) Style

// StyleMode selects between the base outline and the choropleth
type StyleMode int

const (
	StyleBase StyleMode = iota
	StyleResult
)

// Role identifies one of the two overlays the map can carry
type Role int

const (
	RoleBase Role = iota
	RoleResult
)

func (r Role) String() string {
	switch r {
	case RoleBase:
		return "base"
	case RoleResult:
		return "result"
	default:
		return fmt.Sprintf("role(%d)", int(r))
	}
}

// Mode is the style mode a role is always rendered with
func (r Role) Mode() StyleMode {
	if r == RoleResult {
		return StyleResult
	}
	return StyleBase
}

// ParseRole parses "base" or "result"
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "base":
		return RoleBase, nil
	case "result":
		return RoleResult, nil
	default:
		return 0, fmt.Errorf("unknown layer role %q", s)
	}
}

// OpKind is the kind of a layer operation
type OpKind int

const (
	OpRemove OpKind = iota
	OpCreate
)

func (k OpKind) String() string {
	if k == OpCreate {
		return "create"
	}
	return "remove"
}

// LayerOp is one step of a layer reconciliation
type LayerOp struct {
	Kind     OpKind
	Role     Role
	Document *Document
	Mode     StyleMode
}

// Remove builds a removal op
func Remove(role Role) LayerOp {
	return LayerOp{Kind: OpRemove, Role: role}
}

// Create builds a creation op styled for the role
func Create(role Role, doc *Document) LayerOp {
	return LayerOp{Kind: OpCreate, Role: role, Document: doc, Mode: role.Mode()}
}

func (op LayerOp) String() string {
	if op.Kind == OpCreate {
		return fmt.Sprintf("create(%s, %d features)", op.Role, op.Document.Len())
	}
	return fmt.Sprintf("remove(%s)", op.Role)
}
