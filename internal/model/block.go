package model

// BlockType tags a content block before tree assembly.
type BlockType string

const (
	BlockHeading1 BlockType = "heading1"
	BlockHeading2 BlockType = "heading2"
	BlockHeading3 BlockType = "heading3"
	BlockText     BlockType = "text"
	BlockForm     BlockType = "form"
)

// IsHeading reports whether the block type is one of the heading levels.
func (t BlockType) IsHeading() bool {
	return t == BlockHeading1 || t == BlockHeading2 || t == BlockHeading3
}

// FieldType tags a form field's input kind.
type FieldType string

const (
	FieldText      FieldType = "text"
	FieldEmail     FieldType = "email"
	FieldPhone     FieldType = "phone"
	FieldDate      FieldType = "date"
	FieldMultiline FieldType = "textarea"
	FieldSelect    FieldType = "select"
)

// ContentBlock is a single unit of generated content in the flat, pre-tree
// form produced by the document-writing stage.
type ContentBlock struct {
	ID       string      `json:"id"`
	Type     BlockType   `json:"type" validate:"required,oneof=heading1 heading2 heading3 text form"`
	Content  string      `json:"content"`
	Order    int         `json:"order"`
	Editable bool        `json:"editable"`
	Fields   []FormField `json:"fields,omitempty" validate:"dive"`
}

// FormField is one input on a form block. Value may be pre-filled by the
// enrichment collaborator; a human editor owns it afterwards.
type FormField struct {
	ID          string    `json:"id"`
	Label       string    `json:"label" validate:"required"`
	Type        FieldType `json:"type" validate:"required,oneof=text email phone date textarea select"`
	Value       string    `json:"value"`
	Required    bool      `json:"required"`
	Options     []string  `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}
