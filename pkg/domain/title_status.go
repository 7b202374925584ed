package domain

import dErrors "dealdesk/pkg/domain-errors"

// TitleStatus describes the state of a property's title document.
// A non-clean title does not block inspection math, but it routes the
// property into title review before the deal can proceed.
type TitleStatus string

const (
	TitleClean   TitleStatus = "clean"
	TitleMissing TitleStatus = "missing"
	TitleLien    TitleStatus = "lien"
	TitleOther   TitleStatus = "other"
)

// ParseTitleStatus constructs a TitleStatus from external input.
func ParseTitleStatus(s string) (TitleStatus, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "title_status cannot be empty")
	}
	t := TitleStatus(s)
	if !t.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "invalid title_status %q", s)
	}
	return t, nil
}

// IsValid checks the status against the supported enum values.
func (t TitleStatus) IsValid() bool {
	switch t {
	case TitleClean, TitleMissing, TitleLien, TitleOther:
		return true
	}
	return false
}

// IsClean reports whether the title carries no encumbrance.
func (t TitleStatus) IsClean() bool { return t == TitleClean }

func (t TitleStatus) String() string { return string(t) }
