package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"medrisk/internal/models"
)

type VerificationCodeRepository interface {
	Create(v *models.VerificationCode) error
	// GetLatestActiveByDestination — последняя неиспользованная отправка
	// на указанный email или телефон.
	GetLatestActiveByDestination(destination string) (*models.VerificationCode, error)
	GetLatestActiveByUser(userID int, vType models.VerificationType) (*models.VerificationCode, error)
	CountRecentSends(destination string, since time.Time) (int, error)
	IncrementAttempts(id int64) (int, error)
	// MarkUsed — условный UPDATE: из двух конкурентных погашений одного
	// кода пройдёт ровно одно.
	MarkUsed(id int64) (bool, error)
	ExpireNow(id int64) error
	DeleteExpired() (int64, error)
}

type verificationCodeRepository struct {
	DB *sql.DB
}

func NewVerificationCodeRepository(db *sql.DB) VerificationCodeRepository {
	return &verificationCodeRepository{DB: db}
}

func (r *verificationCodeRepository) Create(v *models.VerificationCode) error {
	const q = `
		INSERT INTO verification_codes (user_id, email, phone, code_hash, type, expires_at)
		VALUES ($1, NULLIF($2,''), NULLIF($3,''), $4, $5, $6)
		RETURNING id, created_at
	`
	var userID sql.NullInt64
	if v.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*v.UserID), Valid: true}
	}
	if err := r.DB.QueryRow(q, userID, v.Email, v.Phone, v.CodeHash, string(v.Type), v.ExpiresAt).
		Scan(&v.ID, &v.CreatedAt); err != nil {
		return fmt.Errorf("verification_code create: %w", err)
	}
	return nil
}

const verificationColumns = `
	id, user_id, COALESCE(email,''), COALESCE(phone,''), code_hash, type,
	expires_at, used, attempts, created_at
`

func (r *verificationCodeRepository) scanOne(row *sql.Row) (*models.VerificationCode, error) {
	v := &models.VerificationCode{}
	var userID sql.NullInt64
	var vType string
	err := row.Scan(
		&v.ID, &userID, &v.Email, &v.Phone, &v.CodeHash, &vType,
		&v.ExpiresAt, &v.Used, &v.Attempts, &v.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verification_code scan: %w", err)
	}
	if userID.Valid {
		id := int(userID.Int64)
		v.UserID = &id
	}
	v.Type = models.VerificationType(vType)
	return v, nil
}

func (r *verificationCodeRepository) GetLatestActiveByDestination(destination string) (*models.VerificationCode, error) {
	const q = `
		SELECT ` + verificationColumns + `
		FROM verification_codes
		WHERE (email = LOWER($1) OR phone = $1) AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.DB.QueryRow(q, destination))
}

func (r *verificationCodeRepository) GetLatestActiveByUser(userID int, vType models.VerificationType) (*models.VerificationCode, error) {
	const q = `
		SELECT ` + verificationColumns + `
		FROM verification_codes
		WHERE user_id = $1 AND type = $2 AND used = FALSE
		ORDER BY created_at DESC
		LIMIT 1
	`
	return r.scanOne(r.DB.QueryRow(q, userID, string(vType)))
}

// CountRecentSends — сколько раз отправляли за последнее окно (для троттлинга).
func (r *verificationCodeRepository) CountRecentSends(destination string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM verification_codes
		WHERE (email = LOWER($1) OR phone = $1) AND created_at >= $2
	`
	var c int
	if err := r.DB.QueryRow(q, destination, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("verification_code count recent: %w", err)
	}
	return c, nil
}

// IncrementAttempts — +1 попытка, возвращает новое значение attempts.
func (r *verificationCodeRepository) IncrementAttempts(id int64) (int, error) {
	const q = `
		UPDATE verification_codes
		SET attempts = attempts + 1
		WHERE id = $1
		RETURNING attempts
	`
	var attempts int
	if err := r.DB.QueryRow(q, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("verification_code increment attempts: %w", err)
	}
	return attempts, nil
}

func (r *verificationCodeRepository) MarkUsed(id int64) (bool, error) {
	res, err := r.DB.Exec(`
		UPDATE verification_codes
		SET used = TRUE
		WHERE id = $1 AND used = FALSE AND expires_at > NOW()
	`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ExpireNow — моментально "протухаем" код (используем при превышении попыток).
func (r *verificationCodeRepository) ExpireNow(id int64) error {
	_, err := r.DB.Exec(`UPDATE verification_codes SET expires_at = NOW() WHERE id=$1`, id)
	return err
}

func (r *verificationCodeRepository) DeleteExpired() (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM verification_codes WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
