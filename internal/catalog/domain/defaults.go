package domain

// DefaultService is one entry of the catalog installed on an empty database
type DefaultService struct {
	Title       string
	Description string
	IconPath    string
	Documents   []DocumentSlotDescriptor
}

// DefaultCatalog is the starter catalog of a fresh portal
var DefaultCatalog = []DefaultService{
	{
		Title:       "Labour Card",
		Description: "Apply New Labour Card, Renewal Labour Card",
		IconPath:    "fa-solid fa-helmet-safety",
	},
	{
		Title:       "Voter ID Services",
		Description: "New Registration, Correction, EPIC Download",
		IconPath:    "fa-solid fa-id-card",
		Documents:   []DocumentSlotDescriptor{{Label: "Photo ID Proof", Required: true}},
	},
	{
		Title:       "PAN Card Service",
		Description: "New PAN, Correction or Reprint",
		IconPath:    "fa-solid fa-address-card",
		Documents:   []DocumentSlotDescriptor{{Label: "ID Proof", Required: true}},
	},
	{
		Title:       "Aadhaar Card Services",
		Description: "Aadhaar Address Update, Aadhaar Download, Find Lost Aadhaar, Get Aadhaar without OTP",
		IconPath:    "fa-solid fa-fingerprint",
		Documents: []DocumentSlotDescriptor{
			{Label: "Aadhaar Card Copy", Required: true},
			{Label: "Address Proof", Required: false},
		},
	},
	{
		Title:       "eDistrict Services",
		Description: "Income, Caste, Domicile, Birth & Death Certificate",
		IconPath:    "fa-solid fa-building-columns",
		Documents:   []DocumentSlotDescriptor{{Label: "Supporting Documents", Required: true}},
	},
	{
		Title:       "Passport",
		Description: "New Passport, Police Clearance, Correction",
		IconPath:    "fa-solid fa-passport",
	},
	{
		Title:       "Ration Card",
		Description: "New Ration Card, Name Add/Delete, Download",
		IconPath:    "fa-solid fa-utensils",
	},
	{
		Title:       "Color Photo and More",
		Description: "Passport Photos, Photostat, Lamination",
		IconPath:    "fa-solid fa-camera-retro",
	},
}
