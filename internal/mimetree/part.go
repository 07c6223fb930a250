package mimetree

import (
	"strings"

	gmailapi "google.golang.org/api/gmail/v1"
)

// Part is one node of a message tree: *Inline, *AttachmentRef or *Container.
type Part interface {
	MimeType() string
	Filename() string
	part()
}

// Inline is a leaf whose body is carried in the payload as base64url data.
type Inline struct {
	Type string
	Name string
	Data string
}

// AttachmentRef is a leaf whose body must be fetched by attachment id.
type AttachmentRef struct {
	Type         string
	Name         string
	AttachmentID string
	Size         int64
}

// Container is a multipart node.
type Container struct {
	Type     string
	Name     string
	Children []Part
}

func (p *Inline) MimeType() string        { return p.Type }
func (p *Inline) Filename() string        { return p.Name }
func (p *AttachmentRef) MimeType() string { return p.Type }
func (p *AttachmentRef) Filename() string { return p.Name }
func (p *Container) MimeType() string     { return p.Type }
func (p *Container) Filename() string     { return p.Name }

func (*Inline) part()        {}
func (*AttachmentRef) part() {}
func (*Container) part()     {}

// FromGmail converts a Gmail payload into a Part tree. A part with children
// is a Container even if it also carries body data. Returns nil for nil.
func FromGmail(p *gmailapi.MessagePart) Part {
	if p == nil {
		return nil
	}
	mimeType := strings.ToLower(p.MimeType)

	if len(p.Parts) > 0 {
		c := &Container{Type: mimeType, Name: p.Filename, Children: make([]Part, 0, len(p.Parts))}
		for _, child := range p.Parts {
			if node := FromGmail(child); node != nil {
				c.Children = append(c.Children, node)
			}
		}
		return c
	}

	if p.Body != nil && p.Body.AttachmentId != "" {
		return &AttachmentRef{Type: mimeType, Name: p.Filename, AttachmentID: p.Body.AttachmentId, Size: p.Body.Size}
	}

	in := &Inline{Type: mimeType, Name: p.Filename}
	if p.Body != nil {
		in.Data = p.Body.Data
	}
	return in
}

// Children returns the children of a Container, or nil for leaves.
func Children(p Part) []Part {
	if c, ok := p.(*Container); ok {
		return c.Children
	}
	return nil
}
