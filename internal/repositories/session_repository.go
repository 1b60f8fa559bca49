package repositories

import (
	"database/sql"
	"fmt"

	"medrisk/internal/models"
)

type SessionRepository interface {
	Create(s *models.Session) error
	GetByToken(token string) (*models.Session, error)
	// Rotate — атомарная замена токена: старая строка удаляется, новая
	// вставляется в одной транзакции. Возвращает sql.ErrNoRows, если
	// старого токена уже нет (ротация его не "воскрешает").
	Rotate(oldToken string, ns *models.Session) error
	Delete(token string) error
	DeleteAllForUser(userID int) error
	DeleteExpired() (int64, error)
}

type sessionRepository struct {
	DB *sql.DB
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sessionRepository{DB: db}
}

func (r *sessionRepository) Create(s *models.Session) error {
	const q = `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	return r.DB.QueryRow(q, s.Token, s.UserID, s.ExpiresAt).Scan(&s.CreatedAt)
}

func (r *sessionRepository) GetByToken(token string) (*models.Session, error) {
	const q = `
		SELECT token, user_id, created_at, expires_at
		FROM sessions
		WHERE token = $1
	`
	s := &models.Session{}
	err := r.DB.QueryRow(q, token).Scan(&s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepository) Rotate(oldToken string, ns *models.Session) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var userID int
	err = tx.QueryRow(
		`DELETE FROM sessions WHERE token=$1 RETURNING user_id`, oldToken,
	).Scan(&userID)
	if err != nil {
		return err // включая sql.ErrNoRows — старого токена нет
	}
	if userID != ns.UserID {
		return fmt.Errorf("session rotate: user mismatch")
	}

	err = tx.QueryRow(
		`INSERT INTO sessions (token, user_id, expires_at) VALUES ($1,$2,$3) RETURNING created_at`,
		ns.Token, ns.UserID, ns.ExpiresAt,
	).Scan(&ns.CreatedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// Delete идемпотентен: удаление отсутствующего токена — не ошибка.
func (r *sessionRepository) Delete(token string) error {
	_, err := r.DB.Exec(`DELETE FROM sessions WHERE token=$1`, token)
	return err
}

func (r *sessionRepository) DeleteAllForUser(userID int) error {
	_, err := r.DB.Exec(`DELETE FROM sessions WHERE user_id=$1`, userID)
	return err
}

// DeleteExpired — housekeeping, вызывается фоновым свипером из app.
func (r *sessionRepository) DeleteExpired() (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
