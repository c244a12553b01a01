package models

import (
	"encoding/json"
	"strings"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ParseRole normalises role names the backend and legacy clients use.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "admin", "administrator":
		return RoleAdmin, true
	case "doctor", "physician":
		return RoleDoctor, true
	case "patient", "user":
		return RolePatient, true
	}
	return "", false
}

// Profile is the identity the backend returns at login.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  Role   `json:"role,omitempty"`
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	// Login responses nest the identity under patient/doctor/user.
	for _, nested := range []string{"profile", "patient", "doctor", "admin", "user"} {
		if raw := f.raw(nested); raw != nil {
			if inner, err := decodeFields(raw); err == nil {
				if role, ok := ParseRole(nested); ok && inner.str("role") == "" {
					p.Role = role
				}
				f = inner
				break
			}
		}
	}
	p.ID = f.str("id", "_id", "patientId", "doctorId", "adminId", "userId")
	p.Email = f.str("email", "emailId")
	p.Phone = f.str("phone", "phoneNumber", "mobileNo", "mobile")
	p.Name = f.str("name", "fullName", "patientName", "doctorName", "username")
	if p.Name == "" {
		p.Name = strings.TrimSpace(f.str("firstName", "first_name") + " " + f.str("lastName", "last_name"))
	}
	if role, ok := ParseRole(f.str("role", "userType", "type")); ok {
		p.Role = role
	}
	return nil
}

// LoginResult is a successful backend login.
type LoginResult struct {
	Token   string  `json:"token"`
	Profile Profile `json:"profile"`
}

func (l *LoginResult) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	l.Token = f.str("token", "accessToken", "access_token", "jwt", "data.token", "data.accessToken")
	source := data
	if raw := f.raw("data"); raw != nil && !isNull(raw) {
		source = raw
	}
	return json.Unmarshal(source, &l.Profile)
}

// Doctor is an entry in the doctor directory.
type Doctor struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email,omitempty"`
	Specialty       string  `json:"specialty"`
	Shift           string  `json:"shift"`
	ExperienceYears int     `json:"experienceYears"`
	Fee             float64 `json:"fee"`
	Available       bool    `json:"available"`
}

func (d *Doctor) UnmarshalJSON(data []byte) error {
	f, err := decodeFields(data)
	if err != nil {
		return err
	}
	d.ID = f.str("id", "_id", "doctorId")
	d.Name = f.str("name", "doctorName", "fullName")
	d.Email = f.str("email", "emailId")
	d.Specialty = f.str("specialty", "speciality", "specialization", "department")
	d.Shift = f.str("shift", "shiftTime", "availability")
	d.ExperienceYears = f.integer("experienceYears", "experience", "yearsOfExperience")
	d.Fee = f.float("fee", "consultationFee", "fees")
	d.Available = true
	if raw := f.raw("available", "isAvailable", "active"); raw != nil {
		d.Available = f.boolean("available", "isAvailable", "active")
	}
	return nil
}
