package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/themobileprof/telecare-be/pkg/auth"
)

// User is an account of any role. Doctor-only columns stay nil for patients.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	Role              auth.Role  `json:"role"`
	FirstName         string     `json:"firstName"`
	LastName          string     `json:"lastName"`
	Phone             *string    `json:"phone,omitempty"`
	Gender            *string    `json:"gender,omitempty"`
	DateOfBirth       *time.Time `json:"dateOfBirth,omitempty"`
	Specialization    *string    `json:"specialization,omitempty"`
	LicenseNumber     *string    `json:"licenseNumber,omitempty"`
	YearsOfExperience *int       `json:"yearsOfExperience,omitempty"`
	Bio               *string    `json:"bio,omitempty"`
	ConsultationFee   *float64   `json:"consultationFee,omitempty"`
	IsVerified        bool       `json:"isVerified"`
	IsActive          bool       `json:"isActive"`
	LastLogin         *time.Time `json:"lastLogin,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// FullName joins first and last name
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// ProfileUpdate holds the editable profile fields. Nil leaves a column unchanged.
type ProfileUpdate struct {
	FirstName         *string
	LastName          *string
	Phone             *string
	Gender            *string
	DateOfBirth       *time.Time
	Specialization    *string
	LicenseNumber     *string
	YearsOfExperience *int
	Bio               *string
	ConsultationFee   *float64
}

// UserStats feeds the admin dashboard
type UserStats struct {
	Users struct {
		Total    int `json:"total"`
		Patients int `json:"patients"`
		Doctors  int `json:"doctors"`
	} `json:"users"`
	Appointments struct {
		Total     int `json:"total"`
		Pending   int `json:"pending"`
		Completed int `json:"completed"`
	} `json:"appointments"`
	Triages struct {
		Total int `json:"total"`
	} `json:"triages"`
}

const userColumns = `id, email, password_hash, role, first_name, last_name, phone, gender, date_of_birth,
	specialization, license_number, years_of_experience, bio, consultation_fee,
	is_verified, is_active, last_login, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName,
		&u.Phone, &u.Gender, &u.DateOfBirth,
		&u.Specialization, &u.LicenseNumber, &u.YearsOfExperience, &u.Bio, &u.ConsultationFee,
		&u.IsVerified, &u.IsActive, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// CreateUser inserts a new account
func (db *DB) CreateUser(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (email, password_hash, role, first_name, last_name, phone, specialization, license_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, is_verified, is_active, created_at, updated_at
	`

	err := db.QueryRowContext(ctx, query,
		user.Email, user.PasswordHash, user.Role, user.FirstName, user.LastName,
		user.Phone, user.Specialization, user.LicenseNumber,
	).Scan(&user.ID, &user.IsVerified, &user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// GetUserByEmail retrieves a user by email
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdateLastLogin stamps a successful login
func (db *DB) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `UPDATE users SET last_login = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// UpdateProfile applies the non-nil fields of p
func (db *DB) UpdateProfile(ctx context.Context, id string, p ProfileUpdate) (*User, error) {
	query := `
		UPDATE users
		SET first_name = COALESCE($2, first_name),
		    last_name = COALESCE($3, last_name),
		    phone = COALESCE($4, phone),
		    gender = COALESCE($5, gender),
		    date_of_birth = COALESCE($6, date_of_birth),
		    specialization = COALESCE($7, specialization),
		    license_number = COALESCE($8, license_number),
		    years_of_experience = COALESCE($9, years_of_experience),
		    bio = COALESCE($10, bio),
		    consultation_fee = COALESCE($11, consultation_fee),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, id,
		p.FirstName, p.LastName, p.Phone, p.Gender, p.DateOfBirth,
		p.Specialization, p.LicenseNumber, p.YearsOfExperience, p.Bio, p.ConsultationFee,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}

// UpdatePassword replaces the stored bcrypt hash
func (db *DB) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	result, err := db.ExecContext(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return checkAffected(result, ErrNotFound)
}

// ListUsers pages through accounts, newest first. An empty role lists all.
func (db *DB) ListUsers(ctx context.Context, role auth.Role, limit, offset int) ([]User, int, error) {
	var total int
	if err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE ($1 = '' OR role = $1)`, role,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + `
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := db.QueryContext(ctx, query, role, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

// ListVerifiedDoctors returns active, verified doctors by last name
func (db *DB) ListVerifiedDoctors(ctx context.Context) ([]User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE role = 'doctor' AND is_verified = TRUE AND is_active = TRUE
		ORDER BY last_name, first_name`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list doctors: %w", err)
	}
	defer rows.Close()

	doctors := make([]User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan doctor: %w", err)
		}
		doctors = append(doctors, *u)
	}
	return doctors, rows.Err()
}

// ToggleUserActive flips is_active and returns the updated user
func (db *DB) ToggleUserActive(ctx context.Context, id string) (*User, error) {
	query := `UPDATE users SET is_active = NOT is_active, updated_at = NOW() WHERE id = $1 RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to toggle user status: %w", err)
	}
	return user, nil
}

// VerifyDoctor marks a doctor account verified. Non-doctors are ErrNotFound.
func (db *DB) VerifyDoctor(ctx context.Context, id string) (*User, error) {
	query := `UPDATE users SET is_verified = TRUE, updated_at = NOW()
		WHERE id = $1 AND role = 'doctor'
		RETURNING ` + userColumns

	user, err := scanUser(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify doctor: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account and cascades to its rows
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	result, err := db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return checkAffected(result, ErrNotFound)
}

// GetUserStats returns the admin dashboard counts
func (db *DB) GetUserStats(ctx context.Context) (*UserStats, error) {
	stats := &UserStats{}

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE role = 'patient'),
		       COUNT(*) FILTER (WHERE role = 'doctor')
		FROM users WHERE is_active = TRUE
	`).Scan(&stats.Users.Total, &stats.Users.Patients, &stats.Users.Doctors); err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}

	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'completed')
		FROM appointments
	`).Scan(&stats.Appointments.Total, &stats.Appointments.Pending, &stats.Appointments.Completed); err != nil {
		return nil, fmt.Errorf("failed to count appointments: %w", err)
	}

	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM triages`).Scan(&stats.Triages.Total); err != nil {
		return nil, fmt.Errorf("failed to count triages: %w", err)
	}

	return stats, nil
}
