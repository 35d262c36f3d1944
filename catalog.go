package partcrawl

import (
	"regexp"
	"strings"
)

// ApplianceType identifies a top-level catalog category that a crawl is rooted at.
type ApplianceType string

// Supported appliance types.
const (
	Refrigerator ApplianceType = "Refrigerator"
	Dishwasher   ApplianceType = "Dishwasher"
)

// ApplianceTypes lists every supported appliance type in crawl order.
var ApplianceTypes = []ApplianceType{Refrigerator, Dishwasher}

// ParseApplianceTypes converts an operator-facing selector into the ordered
// list of appliance types to crawl. "all" expands to every supported type.
func ParseApplianceTypes(s string) ([]ApplianceType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "refrigerator":
		return []ApplianceType{Refrigerator}, nil
	case "dishwasher":
		return []ApplianceType{Dishwasher}, nil
	case "all":
		return append([]ApplianceType(nil), ApplianceTypes...), nil
	}
	return nil, Errorf(EINVALID, "unknown appliance type %q (want refrigerator, dishwasher or all)", s)
}

// Slug returns the lower-case form used in file names.
func (t ApplianceType) Slug() string {
	return strings.ToLower(string(t))
}

// Valid reports whether t is a supported appliance type.
func (t ApplianceType) Valid() bool {
	for _, v := range ApplianceTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Model represents a specific appliance product identified by its model number.
type Model struct {
	ModelNumber   string        `json:"model_number"`
	Name          string        `json:"name"`
	Brand         string        `json:"brand,omitempty"`
	ApplianceType ApplianceType `json:"appliance_type"`
	SourceURL     string        `json:"source_url,omitempty"`
}

// Validate returns an error if the model contains invalid fields.
func (m *Model) Validate() error {
	if m.ModelNumber == "" {
		return Errorf(EINVALID, "model number required")
	}
	if !m.ApplianceType.Valid() {
		return Errorf(EINVALID, "model %s: invalid appliance type %q", m.ModelNumber, m.ApplianceType)
	}
	return nil
}

// Part represents a replacement component identified by a vendor part number.
// Price is nil when the catalog does not list one.
type Part struct {
	PartNumber             string        `json:"part_number"`
	ManufacturerPartNumber string        `json:"manufacturer_part_number"`
	Name                   string        `json:"name"`
	Description            string        `json:"description"`
	Price                  *float64      `json:"price"`
	Manufacturer           string        `json:"manufacturer,omitempty"`
	ApplianceType          ApplianceType `json:"appliance_type"`
	SourceURL              string        `json:"source_url,omitempty"`
}

// Validate returns an error if the part contains invalid fields.
func (p *Part) Validate() error {
	if !partNumberRe.MatchString(p.PartNumber) {
		return Errorf(EINVALID, "invalid part number %q", p.PartNumber)
	}
	if p.Name == "" {
		return Errorf(EINVALID, "part %s: name required", p.PartNumber)
	}
	if p.Price != nil && *p.Price < 0 {
		return Errorf(EINVALID, "part %s: negative price %v", p.PartNumber, *p.Price)
	}
	if !p.ApplianceType.Valid() {
		return Errorf(EINVALID, "part %s: invalid appliance type %q", p.PartNumber, p.ApplianceType)
	}
	return nil
}

// Merge fills empty fields of p from other. Fields already set on p win.
func (p *Part) Merge(other *Part) {
	if other == nil {
		return
	}
	if p.ManufacturerPartNumber == "" {
		p.ManufacturerPartNumber = other.ManufacturerPartNumber
	}
	if p.Name == "" {
		p.Name = other.Name
	}
	if p.Description == "" {
		p.Description = other.Description
	}
	if p.Price == nil && other.Price != nil {
		price := *other.Price
		p.Price = &price
	}
	if p.Manufacturer == "" {
		p.Manufacturer = other.Manufacturer
	}
	if p.ApplianceType == "" {
		p.ApplianceType = other.ApplianceType
	}
	if p.SourceURL == "" {
		p.SourceURL = other.SourceURL
	}
}

// ModelPartLink records that a part is compatible with a model.
type ModelPartLink struct {
	ModelNumber string `json:"model_number"`
	PartNumber  string `json:"part_number"`
}

// Validate returns an error if either side of the link is missing.
func (l ModelPartLink) Validate() error {
	if l.ModelNumber == "" || l.PartNumber == "" {
		return Errorf(EINVALID, "link requires model and part numbers")
	}
	return nil
}

var partNumberRe = regexp.MustCompile(`^PS\d+$`)

// CanonicalModelNumber normalizes a model number so the same model reached
// through different pages resolves to one identity.
func CanonicalModelNumber(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// CanonicalPartNumber normalizes a part number to the "PS<digits>" form.
// Bare digits are prefixed. Returns "" if s is not a part number.
func CanonicalPartNumber(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if !strings.HasPrefix(s, "PS") {
		s = "PS" + s
	}
	if !partNumberRe.MatchString(s) {
		return ""
	}
	return s
}
