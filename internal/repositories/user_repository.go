package repositories

import (
	"database/sql"
	"strings"

	"medrisk/internal/authz"
	"medrisk/internal/models"
)

type UserRepository interface {
	Create(user *models.User) error
	GetByID(id int) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByPhone(phone string) (*models.User, error)
	Update(user *models.User) error
	UpdatePassword(userID int, passwordHash string) error
	UpdateRole(userID int, role authz.Role) error
	MarkEmailVerified(userID int) error
	MarkPhoneVerified(userID int) error
	Delete(id int) error
	List(limit, offset int) ([]*models.User, error)
	GetCount() (int, error)
}

type userRepository struct {
	DB *sql.DB
}

func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepository{DB: db}
}

const userColumns = `
	id, email, name, COALESCE(phone,''), password_hash, role,
	email_verified, phone_verified, created_at
`

func scanUser(row *sql.Row) (*models.User, error) {
	u := &models.User{}
	var role string
	err := row.Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &role,
		&u.EmailVerified, &u.PhoneVerified, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.Role = authz.Role(role)
	return u, nil
}

func (r *userRepository) Create(user *models.User) error {
	const q = `
		INSERT INTO users (email, name, phone, password_hash, role, email_verified, phone_verified)
		VALUES (LOWER($1), $2, NULLIF($3,''), $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return r.DB.QueryRow(q,
		user.Email,
		user.Name,
		user.Phone,
		user.PasswordHash,
		string(user.Role),
		user.EmailVerified,
		user.PhoneVerified,
	).Scan(&user.ID, &user.CreatedAt)
}

func (r *userRepository) GetByID(id int) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	u, err := scanUser(r.DB.QueryRow(q, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetByEmail — email уникален и хранится в нижнем регистре, поиск
// регистронезависимый.
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	u, err := scanUser(r.DB.QueryRow(q, strings.TrimSpace(email)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) GetByPhone(phone string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	u, err := scanUser(r.DB.QueryRow(q, strings.TrimSpace(phone)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

func (r *userRepository) Update(user *models.User) error {
	const q = `
		UPDATE users
		SET email=LOWER($1), name=$2, phone=NULLIF($3,''),
		    email_verified=$4, phone_verified=$5
		WHERE id=$6
	`
	_, err := r.DB.Exec(q,
		user.Email, user.Name, user.Phone,
		user.EmailVerified, user.PhoneVerified,
		user.ID,
	)
	return err
}

func (r *userRepository) UpdatePassword(userID int, passwordHash string) error {
	_, err := r.DB.Exec(`UPDATE users SET password_hash=$1 WHERE id=$2`, passwordHash, userID)
	return err
}

func (r *userRepository) UpdateRole(userID int, role authz.Role) error {
	_, err := r.DB.Exec(`UPDATE users SET role=$1 WHERE id=$2`, string(role), userID)
	return err
}

func (r *userRepository) MarkEmailVerified(userID int) error {
	_, err := r.DB.Exec(`UPDATE users SET email_verified=TRUE WHERE id=$1`, userID)
	return err
}

func (r *userRepository) MarkPhoneVerified(userID int) error {
	_, err := r.DB.Exec(`UPDATE users SET phone_verified=TRUE WHERE id=$1`, userID)
	return err
}

// Delete — каскад по sessions/password_resets/verification_codes/
// federated_identities через FK ON DELETE CASCADE (см. schema.sql).
func (r *userRepository) Delete(id int) error {
	_, err := r.DB.Exec(`DELETE FROM users WHERE id=$1`, id)
	return err
}

func (r *userRepository) List(limit, offset int) ([]*models.User, error) {
	const q = `
		SELECT ` + userColumns + `
		FROM users
		ORDER BY id
		LIMIT $1 OFFSET $2
	`
	rows, err := r.DB.Query(q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*models.User
	for rows.Next() {
		u := &models.User{}
		var role string
		if err := rows.Scan(
			&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash, &role,
			&u.EmailVerified, &u.PhoneVerified, &u.CreatedAt,
		); err != nil {
			return nil, err
		}
		u.Role = authz.Role(role)
		res = append(res, u)
	}
	return res, rows.Err()
}

func (r *userRepository) GetCount() (int, error) {
	var c int
	err := r.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&c)
	return c, err
}
