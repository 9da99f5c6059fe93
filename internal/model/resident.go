package model

import "time"

const DateLayout = "2006-01-02"

// ResidentFields holds the personal data shared by confirmed residents and
// pending submissions. Optional text fields are empty when absent.
type ResidentFields struct {
	LastName      string     `json:"last_name"`
	FirstName     string     `json:"first_name"`
	MiddleName    string     `json:"middle_name"`
	Gender        string     `json:"gender"`
	Age           int        `json:"age"`
	Purok         string     `json:"purok"`
	VoterStatus   string     `json:"voter_status"`
	SeniorCitizen string     `json:"senior_citizen"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	PlaceOfBirth  string     `json:"place_of_birth"`
	CivilStatus   string     `json:"civil_status"`
	Citizenship   string     `json:"citizenship"`
	Occupation    string     `json:"occupation"`
}

// FullName renders "Last, First Middle".
func (f ResidentFields) FullName() string {
	name := f.LastName + ", " + f.FirstName
	if f.MiddleName != "" {
		name += " " + f.MiddleName
	}
	return name
}

// DateOfBirthString formats the date of birth for forms, or "" when unset.
func (f ResidentFields) DateOfBirthString() string {
	if f.DateOfBirth == nil {
		return ""
	}
	return f.DateOfBirth.Format(DateLayout)
}

type Resident struct {
	ID int64 `json:"id"`
	ResidentFields
	HouseholdID *int64    `json:"household_id"`
	HouseholdNo string    `json:"household_no,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ResidentStats backs the dashboard counters.
type ResidentStats struct {
	Total          int          `json:"total_population"`
	Males          int          `json:"total_males"`
	Females        int          `json:"total_females"`
	Voters         int          `json:"total_voters"`
	NonVoters      int          `json:"total_non_voters"`
	SeniorCitizens int          `json:"total_senior_citizens"`
	ByPurok        []PurokCount `json:"by_purok"`
}

type PurokCount struct {
	Purok string `json:"purok"`
	Count int    `json:"count"`
}
