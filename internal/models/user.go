package models

import "time"

// User represents an application user stored in the users table.
//
// RememberToken and RememberTokenExpires are always both set or both null;
// the repository writes them in a single statement to keep that invariant.
type User struct {
	ID                   string     `db:"id" json:"id"`
	Name                 string     `db:"name" json:"name"`
	Email                string     `db:"email" json:"email"`
	PasswordHash         string     `db:"password_hash" json:"-"`
	NIM                  *string    `db:"nim" json:"nim,omitempty"`
	Jurusan              *string    `db:"jurusan" json:"jurusan,omitempty"`
	Fakultas             *string    `db:"fakultas" json:"fakultas,omitempty"`
	Angkatan             *string    `db:"angkatan" json:"angkatan,omitempty"`
	ProfileImage         *string    `db:"profile_image" json:"profile_image,omitempty"`
	IsEmailVerified      bool       `db:"is_email_verified" json:"is_email_verified"`
	VerificationToken    *string    `db:"verification_token" json:"-"`
	RememberToken        *string    `db:"remember_token" json:"-"`
	RememberTokenExpires *time.Time `db:"remember_token_expires" json:"-"`
	LastLoginAt          *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// PublicUser is the projection returned to clients. It never carries the
// password hash or any token material.
type PublicUser struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	NIM             *string    `json:"nim,omitempty"`
	Jurusan         *string    `json:"jurusan,omitempty"`
	Fakultas        *string    `json:"fakultas,omitempty"`
	Angkatan        *string    `json:"angkatan,omitempty"`
	ProfileImage    *string    `json:"profile_image,omitempty"`
	IsEmailVerified bool       `json:"is_email_verified"`
	LastLoginAt     *time.Time `json:"last_login_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Public returns the client-safe projection of the user.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		NIM:             u.NIM,
		Jurusan:         u.Jurusan,
		Fakultas:        u.Fakultas,
		Angkatan:        u.Angkatan,
		ProfileImage:    u.ProfileImage,
		IsEmailVerified: u.IsEmailVerified,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
	}
}
