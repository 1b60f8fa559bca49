package repositories

import (
	"database/sql"
	"time"

	"medrisk/internal/models"
)

type PasswordResetRepository interface {
	Create(userID int, token string, expiresAt time.Time) (*models.PasswordReset, error)
	GetByToken(token string) (*models.PasswordReset, error)
	// RedeemAndSetPassword — условный UPDATE "used=FALSE -> used=TRUE" и
	// смена пароля в одной транзакции: нет окна, где токен погашен, а
	// пароль не сменён (и наоборот). Из двух конкурентных вызовов с одним
	// токеном пройдёт ровно один, второй получит sql.ErrNoRows.
	RedeemAndSetPassword(token, passwordHash string) (userID int, err error)
	DeleteExpired() (int64, error)
}

type passwordResetRepository struct {
	DB *sql.DB
}

func NewPasswordResetRepository(db *sql.DB) PasswordResetRepository {
	return &passwordResetRepository{DB: db}
}

func (r *passwordResetRepository) Create(userID int, token string, expiresAt time.Time) (*models.PasswordReset, error) {
	const q = `
		INSERT INTO password_resets (user_id, token, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`
	pr := &models.PasswordReset{UserID: userID, Token: token, ExpiresAt: expiresAt}
	if err := r.DB.QueryRow(q, userID, token, expiresAt).Scan(&pr.ID, &pr.CreatedAt); err != nil {
		return nil, err
	}
	return pr, nil
}

func (r *passwordResetRepository) GetByToken(token string) (*models.PasswordReset, error) {
	const q = `
		SELECT id, user_id, token, expires_at, used, created_at
		FROM password_resets
		WHERE token = $1
	`
	pr := &models.PasswordReset{}
	err := r.DB.QueryRow(q, token).Scan(&pr.ID, &pr.UserID, &pr.Token, &pr.ExpiresAt, &pr.Used, &pr.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pr, nil
}

func (r *passwordResetRepository) RedeemAndSetPassword(token, passwordHash string) (int, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var userID int
	err = tx.QueryRow(`
		UPDATE password_resets
		SET used = TRUE
		WHERE token = $1 AND used = FALSE AND expires_at > NOW()
		RETURNING user_id
	`, token).Scan(&userID)
	if err != nil {
		return 0, err
	}

	if _, err := tx.Exec(`UPDATE users SET password_hash=$1 WHERE id=$2`, passwordHash, userID); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return userID, nil
}

func (r *passwordResetRepository) DeleteExpired() (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM password_resets WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
