package model

// OfficeProfile describes the barangay office running this instance. It
// prefills new-household address fields.
type OfficeProfile struct {
	Barangay         string `json:"barangay"`
	CityMunicipality string `json:"city_municipality"`
	Province         string `json:"province"`
	Region           string `json:"region"`
}
