package models

// CardIdentifier is the decomposition of a catalog identifier string. Every
// field is optional; parsing the same Raw string always yields the same fields.
type CardIdentifier struct {
	Raw          string `json:"raw"`
	Year         string `json:"year,omitempty"`
	SetName      string `json:"set_name,omitempty"`
	Subset       string `json:"subset,omitempty"`
	Variant      string `json:"variant,omitempty"`
	CardNumber   string `json:"card_number,omitempty"`
	Player       string `json:"player,omitempty"`
	SerialNumber int    `json:"serial_number,omitempty"`
	SerialRun    int    `json:"serial_run,omitempty"`
	GradeLabel   string `json:"grade_label,omitempty"`
	GradeNumber  int    `json:"grade_number,omitempty"`
	Freeform     bool   `json:"freeform,omitempty"`
}

// IsGraded reports whether the identifier names a PSA grade
func (c CardIdentifier) IsGraded() bool {
	return c.GradeLabel != ""
}

// IsSerial reports whether the card is serial-numbered
func (c CardIdentifier) IsSerial() bool {
	return c.SerialRun > 0
}
