package repositories

import (
	"database/sql"
	"time"
)

type OAuthStateRepository interface {
	Create(state, provider string, expiresAt time.Time) error
	// Consume — одноразовое погашение state: условный DELETE, второй
	// callback с тем же state ничего не удалит и будет отвергнут.
	Consume(state, provider string) (bool, error)
	DeleteExpired() (int64, error)
}

type oauthStateRepository struct {
	DB *sql.DB
}

func NewOAuthStateRepository(db *sql.DB) OAuthStateRepository {
	return &oauthStateRepository{DB: db}
}

func (r *oauthStateRepository) Create(state, provider string, expiresAt time.Time) error {
	const q = `
		INSERT INTO oauth_states (state, provider, expires_at)
		VALUES ($1, $2, $3)
	`
	_, err := r.DB.Exec(q, state, provider, expiresAt)
	return err
}

func (r *oauthStateRepository) Consume(state, provider string) (bool, error) {
	res, err := r.DB.Exec(`
		DELETE FROM oauth_states
		WHERE state = $1 AND provider = $2 AND expires_at > NOW()
	`, state, provider)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *oauthStateRepository) DeleteExpired() (int64, error) {
	res, err := r.DB.Exec(`DELETE FROM oauth_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
