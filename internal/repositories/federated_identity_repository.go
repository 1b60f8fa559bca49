package repositories

import (
	"database/sql"

	"medrisk/internal/models"
)

type FederatedIdentityRepository interface {
	GetByProviderID(provider, providerUserID string) (*models.FederatedIdentity, error)
	// Link идемпотентен: повторная привязка той же пары (provider,
	// provider_user_id) не создаёт дубликата.
	Link(provider, providerUserID string, userID int) error
	ListByUser(userID int) ([]*models.FederatedIdentity, error)
}

type federatedIdentityRepository struct {
	DB *sql.DB
}

func NewFederatedIdentityRepository(db *sql.DB) FederatedIdentityRepository {
	return &federatedIdentityRepository{DB: db}
}

func (r *federatedIdentityRepository) GetByProviderID(provider, providerUserID string) (*models.FederatedIdentity, error) {
	const q = `
		SELECT id, provider, provider_user_id, user_id, created_at
		FROM federated_identities
		WHERE provider = $1 AND provider_user_id = $2
	`
	fi := &models.FederatedIdentity{}
	err := r.DB.QueryRow(q, provider, providerUserID).
		Scan(&fi.ID, &fi.Provider, &fi.ProviderUserID, &fi.UserID, &fi.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fi, nil
}

func (r *federatedIdentityRepository) Link(provider, providerUserID string, userID int) error {
	const q = `
		INSERT INTO federated_identities (provider, provider_user_id, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider, provider_user_id) DO NOTHING
	`
	_, err := r.DB.Exec(q, provider, providerUserID, userID)
	return err
}

func (r *federatedIdentityRepository) ListByUser(userID int) ([]*models.FederatedIdentity, error) {
	const q = `
		SELECT id, provider, provider_user_id, user_id, created_at
		FROM federated_identities
		WHERE user_id = $1
		ORDER BY id
	`
	rows, err := r.DB.Query(q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*models.FederatedIdentity
	for rows.Next() {
		fi := &models.FederatedIdentity{}
		if err := rows.Scan(&fi.ID, &fi.Provider, &fi.ProviderUserID, &fi.UserID, &fi.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, fi)
	}
	return res, rows.Err()
}
