package domain

// DefaultLabelIcon is stored alongside every label created through the API.
const DefaultLabelIcon = "default"

// Label is a user-defined tag. Identity is the title string; there is no
// stable label id, so renaming means delete plus add and a sweep over tasks.
type Label struct {
	Title string `json:"title"`
	Icon  string `json:"icon"`
}

// Profile is the per-user document owning the label registry.
type Profile struct {
	Email     string  `json:"email,omitempty"`
	Labels    []Label `json:"labels"`
	CreatedAt int64   `json:"createdAt"`
	Theme     string  `json:"theme"`
}

// DefaultTheme is assigned when a profile is first provisioned.
const DefaultTheme = "system"

// NewProfile builds the profile document created on first login.
func NewProfile(email string, createdAt int64) Profile {
	return Profile{
		Email:     email,
		Labels:    []Label{},
		CreatedAt: createdAt,
		Theme:     DefaultTheme,
	}
}

// AddLabel appends a label with the default icon. Duplicate titles are
// rejected; the registry has no other identity to go by.
func (p *Profile) AddLabel(title string) error {
	if title == "" {
		return ErrTitleRequired
	}
	for _, l := range p.Labels {
		if l.Title == title {
			return ErrDuplicateLabel
		}
	}
	p.Labels = append(p.Labels, Label{Title: title, Icon: DefaultLabelIcon})
	return nil
}

// RemoveLabel deletes the label with the given title from the registry and
// reports whether it was present. Task references are cleaned up separately
// by the sweep; the two steps are not transactional as a pair.
func (p *Profile) RemoveLabel(title string) bool {
	for i, l := range p.Labels {
		if l.Title == title {
			p.Labels = append(p.Labels[:i], p.Labels[i+1:]...)
			return true
		}
	}
	return false
}

// HasLabelTitle reports whether the registry contains the given title.
func (p Profile) HasLabelTitle(title string) bool {
	for _, l := range p.Labels {
		if l.Title == title {
			return true
		}
	}
	return false
}
