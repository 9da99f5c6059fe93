package model

import "time"

// HouseholdFields are the columns an operator fills in for a household.
type HouseholdFields struct {
	HouseholdNo      string `json:"household_no"`
	Region           string `json:"region"`
	Province         string `json:"province"`
	CityMunicipality string `json:"city_municipality"`
	Barangay         string `json:"barangay"`
	Purok            string `json:"purok"`
}

type Household struct {
	ID int64 `json:"id"`
	HouseholdFields
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}
