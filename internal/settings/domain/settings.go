package domain

// Setting keys shown on the public site
const (
	KeyShopName    = "shop_name"
	KeyShopTagline = "shop_tagline"
	KeyShopAddress = "shop_address"
	KeyShopPhone   = "shop_phone"
	KeyShopEmail   = "shop_email"
	KeyShopTimings = "shop_timings"
	KeyShopMapURL  = "shop_map_url"
)

// Keys lists every accepted setting key in display order
var Keys = []string{
	KeyShopName, KeyShopTagline, KeyShopAddress, KeyShopPhone,
	KeyShopEmail, KeyShopTimings, KeyShopMapURL,
}

// Defaults are used for keys with no stored value and seeded into an empty table
var Defaults = map[string]string{
	KeyShopName:    "Faiz Internet",
	KeyShopTagline: "Common Service Centre",
	KeyShopAddress: "Maiz Bazar, Asara, Uttar Pradesh, India",
	KeyShopPhone:   "+91 9837957711",
	KeyShopEmail:   "contact@faizinternet.com",
	KeyShopTimings: "Mon - Sat: 9AM - 8PM",
	KeyShopMapURL:  "",
}

// Allowed reports whether key is a known setting
func Allowed(key string) bool {
	_, ok := Defaults[key]
	return ok
}

// Settings is the full key/value view of the site settings
type Settings map[string]string
