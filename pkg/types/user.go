package types

import "time"

type Role string

const (
	RoleDonor     Role = "donor"
	RoleRecipient Role = "recipient"
	RoleAdmin     Role = "admin"
	RoleHospital  Role = "hospital"
)

func (r Role) Valid() bool {
	switch r {
	case RoleDonor, RoleRecipient, RoleAdmin, RoleHospital:
		return true
	}
	return false
}

type Gender string

const (
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
	GenderUnspecified Gender = ""
)

type NotificationPreferences struct {
	Email bool `db:"notify_email" json:"email"`
	Push  bool `db:"notify_push" json:"push"`
	SMS   bool `db:"notify_sms" json:"sms"`
}

var DefaultNotificationPreferences = NotificationPreferences{Email: true, Push: true, SMS: false}

type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	FullName         string     `db:"full_name" json:"fullName"`
	PhoneNumber      string     `db:"phone_number" json:"phoneNumber"`
	BloodType        BloodType  `db:"blood_type" json:"bloodType,omitempty"`
	Gender           Gender     `db:"gender" json:"gender,omitempty"`
	DateOfBirth      *time.Time `db:"date_of_birth" json:"dateOfBirth,omitempty"`
	WeightKg         *float64   `db:"weight_kg" json:"weightKg,omitempty"`
	Role             Role       `db:"role" json:"role"`
	LastDonationDate *time.Time `db:"last_donation_date" json:"lastDonationDate,omitempty"`
	AvatarKey        string     `db:"avatar_key" json:"-"`
	Active           bool       `db:"active" json:"active"`

	Address                 `json:"address"`
	Coordinates             `json:"location"`
	NotificationPreferences `json:"notificationPreferences"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.DateOfBirth = cloneTime(u.DateOfBirth)
	c.WeightKg = cloneFloat(u.WeightKg)
	c.LastDonationDate = cloneTime(u.LastDonationDate)
	c.Coordinates = u.Coordinates.clone()
	return &c
}

// Registration is the profile created alongside an identity account.
type Registration struct {
	Email       string    `json:"email"`
	Password    string    `json:"password"`
	FullName    string    `json:"fullName"`
	PhoneNumber string    `json:"phoneNumber"`
	BloodType   BloodType `json:"bloodType"`
	Role        Role      `json:"role"`
}

// ProfileUpdate carries the user-editable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	FullName         *string    `json:"fullName"`
	PhoneNumber      *string    `json:"phoneNumber"`
	BloodType        *BloodType `json:"bloodType"`
	Gender           *Gender    `json:"gender"`
	DateOfBirth      *time.Time `json:"dateOfBirth"`
	WeightKg         *float64   `json:"weightKg"`
	LastDonationDate *time.Time `json:"lastDonationDate"`
	Address          *Address   `json:"address"`
	Location         *GeoPoint  `json:"location"`
}

type UserFilter struct {
	Role       Role
	BloodTypes []BloodType
	Active     *bool
	PushOnly   bool
}
