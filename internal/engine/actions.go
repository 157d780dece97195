package engine

import "github.com/micahchoo/biiif-web-studio-sub000/internal/ir"

// Action is a sealed interface for the edits Dispatch accepts.
//
// Every variant is a plain record: it serializes to JSON or YAML through
// MarshalAction and back through UnmarshalAction.
type Action interface {
	Type() string
	action() // Sealed
}

// Action type names, as written in the "type" field of the envelope.
const (
	TypeUpdateLabel            = "UpdateLabel"
	TypeUpdateSummary          = "UpdateSummary"
	TypeUpdateMetadata         = "UpdateMetadata"
	TypeUpdateBehavior         = "UpdateBehavior"
	TypeUpdateRights           = "UpdateRights"
	TypeUpdateNavDate          = "UpdateNavDate"
	TypeUpdateCanvasDimensions = "UpdateCanvasDimensions"
	TypeAddCanvas              = "AddCanvas"
	TypeAddChild               = "AddChild"
	TypeRemoveEntity           = "RemoveEntity"
	TypeReorderChildren        = "ReorderChildren"
	TypeMoveEntity             = "MoveEntity"
	TypeLinkReference          = "LinkReference"
	TypeUnlinkReference        = "UnlinkReference"
	TypeBatchUpdate            = "BatchUpdate"
	TypeMoveToTrash            = "MoveToTrash"
	TypeRestoreFromTrash       = "RestoreFromTrash"
	TypeHealEntity             = "HealEntity"
)

// UpdateLabel replaces an entity's label. A nil label removes it.
type UpdateLabel struct {
	ID    string         `json:"id"`
	Label ir.LanguageMap `json:"label"`
}

// UpdateSummary replaces an entity's summary. A nil summary removes it.
type UpdateSummary struct {
	ID      string         `json:"id"`
	Summary ir.LanguageMap `json:"summary"`
}

// UpdateMetadata replaces an entity's metadata list.
type UpdateMetadata struct {
	ID       string             `json:"id"`
	Metadata []ir.MetadataEntry `json:"metadata"`
}

// UpdateBehavior replaces an entity's behavior tokens.
type UpdateBehavior struct {
	ID       string   `json:"id"`
	Behavior []string `json:"behavior"`
}

// UpdateRights sets the rights URI. An empty value clears it.
type UpdateRights struct {
	ID     string `json:"id"`
	Rights string `json:"rights"`
}

// UpdateNavDate sets the navigation date. An empty value clears it.
type UpdateNavDate struct {
	ID      string `json:"id"`
	NavDate string `json:"navDate"`
}

// UpdateCanvasDimensions sets a canvas's extent.
type UpdateCanvasDimensions struct {
	ID       string  `json:"id"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Duration float64 `json:"duration,omitempty"`
}

// AddCanvas inserts a new canvas into a manifest's items. A nil Index
// appends.
type AddCanvas struct {
	ManifestID string   `json:"manifestId"`
	Canvas     *ir.Node `json:"canvas"`
	Index      *int     `json:"index,omitempty"`
}

// AddChild inserts a new owned subtree under any parent. Slot defaults to
// items; a nil Index appends.
type AddChild struct {
	ParentID string   `json:"parentId"`
	Slot     ir.Slot  `json:"slot,omitempty"`
	Index    *int     `json:"index,omitempty"`
	Child    *ir.Node `json:"child"`
}

// RemoveEntity permanently deletes an entity and everything it owns.
// References to the removed entities are stripped.
type RemoveEntity struct {
	ID string `json:"id"`
}

// ReorderChildren replaces a child list with a permutation of itself.
type ReorderChildren struct {
	ParentID string   `json:"parentId"`
	Slot     ir.Slot  `json:"slot,omitempty"`
	Order    []string `json:"order"`
}

// MoveEntity re-parents an owned entity.
type MoveEntity struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId"`
	Slot     ir.Slot `json:"slot,omitempty"`
	Index    *int    `json:"index,omitempty"`
}

// LinkReference adds a non-owning reference, such as a canvas to a range.
type LinkReference struct {
	ParentID string  `json:"parentId"`
	Slot     ir.Slot `json:"slot,omitempty"`
	ChildID  string  `json:"childId"`
	Index    *int    `json:"index,omitempty"`
}

// UnlinkReference removes a non-owning reference.
type UnlinkReference struct {
	ParentID string  `json:"parentId"`
	Slot     ir.Slot `json:"slot,omitempty"`
	ChildID  string  `json:"childId"`
}

// BatchUpdate applies several property edits atomically. Updates run in
// order and each sees the effect of the previous ones.
type BatchUpdate struct {
	Updates []EntityUpdate `json:"updates"`
}

// EntityUpdate is one entry of a BatchUpdate.
type EntityUpdate struct {
	ID      string  `json:"id"`
	Changes Changes `json:"changes"`
}

// Changes lists the properties an EntityUpdate sets. Nil fields are left
// alone; a pointer to an empty value clears the property.
type Changes struct {
	Label    *ir.LanguageMap     `json:"label,omitempty"`
	Summary  *ir.LanguageMap     `json:"summary,omitempty"`
	Metadata *[]ir.MetadataEntry `json:"metadata,omitempty"`
	Behavior *[]string           `json:"behavior,omitempty"`
	Rights   *string             `json:"rights,omitempty"`
	NavDate  *string             `json:"navDate,omitempty"`
}

// IsEmpty reports whether no property is set.
func (c Changes) IsEmpty() bool {
	return c.Label == nil && c.Summary == nil && c.Metadata == nil &&
		c.Behavior == nil && c.Rights == nil && c.NavDate == nil
}

func (c Changes) apply(b *ir.Base) {
	if c.Label != nil {
		b.Label = emptyAsNil(*c.Label)
	}
	if c.Summary != nil {
		b.Summary = emptyAsNil(*c.Summary)
	}
	if c.Metadata != nil {
		b.Metadata = ir.CloneMetadata(*c.Metadata)
	}
	if c.Behavior != nil {
		b.Behavior = cloneStrings(*c.Behavior)
	}
	if c.Rights != nil {
		b.Rights = *c.Rights
	}
	if c.NavDate != nil {
		b.NavDate = *c.NavDate
	}
}

// MoveToTrash soft-deletes an entity and its subtree.
type MoveToTrash struct {
	ID string `json:"id"`
}

// RestoreFromTrash brings a trashed entity back. Without ParentID it returns
// to its original parent and position.
type RestoreFromTrash struct {
	ID       string  `json:"id"`
	ParentID string  `json:"parentId,omitempty"`
	Slot     ir.Slot `json:"slot,omitempty"`
}

// HealEntity applies every automatic fix for an entity's fixable issues.
type HealEntity struct {
	ID string `json:"id"`
}

func (UpdateLabel) Type() string            { return TypeUpdateLabel }
func (UpdateSummary) Type() string          { return TypeUpdateSummary }
func (UpdateMetadata) Type() string         { return TypeUpdateMetadata }
func (UpdateBehavior) Type() string         { return TypeUpdateBehavior }
func (UpdateRights) Type() string           { return TypeUpdateRights }
func (UpdateNavDate) Type() string          { return TypeUpdateNavDate }
func (UpdateCanvasDimensions) Type() string { return TypeUpdateCanvasDimensions }
func (AddCanvas) Type() string              { return TypeAddCanvas }
func (AddChild) Type() string               { return TypeAddChild }
func (RemoveEntity) Type() string           { return TypeRemoveEntity }
func (ReorderChildren) Type() string        { return TypeReorderChildren }
func (MoveEntity) Type() string             { return TypeMoveEntity }
func (LinkReference) Type() string          { return TypeLinkReference }
func (UnlinkReference) Type() string        { return TypeUnlinkReference }
func (BatchUpdate) Type() string            { return TypeBatchUpdate }
func (MoveToTrash) Type() string            { return TypeMoveToTrash }
func (RestoreFromTrash) Type() string       { return TypeRestoreFromTrash }
func (HealEntity) Type() string             { return TypeHealEntity }

func (UpdateLabel) action()            {}
func (UpdateSummary) action()          {}
func (UpdateMetadata) action()         {}
func (UpdateBehavior) action()         {}
func (UpdateRights) action()           {}
func (UpdateNavDate) action()          {}
func (UpdateCanvasDimensions) action() {}
func (AddCanvas) action()              {}
func (AddChild) action()               {}
func (RemoveEntity) action()           {}
func (ReorderChildren) action()        {}
func (MoveEntity) action()             {}
func (LinkReference) action()          {}
func (UnlinkReference) action()        {}
func (BatchUpdate) action()            {}
func (MoveToTrash) action()            {}
func (RestoreFromTrash) action()       {}
func (HealEntity) action()             {}

func emptyAsNil(m ir.LanguageMap) ir.LanguageMap {
	if len(m) == 0 {
		return nil
	}
	return m.Clone()
}

func cloneStrings(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	return append([]string(nil), list...)
}

func indexOrAppend(index *int) int {
	if index == nil {
		return -1
	}
	return *index
}
