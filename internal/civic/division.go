package civic

import "regexp"

// usHouseDistrict matches OCD ids of US congressional districts, the
// divisions represented by members of the House of Representatives.
var usHouseDistrict = regexp.MustCompile(`ocd-division/country:us/state:[a-z]{2}/cd:\d+`)

// IsUSHouseDistrict reports whether ocdID names a congressional district.
func IsUSHouseDistrict(ocdID string) bool {
	return usHouseDistrict.MatchString(ocdID)
}
