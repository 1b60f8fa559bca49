package services

import (
	"log"
	"strings"

	"medrisk/internal/authz"
	"medrisk/internal/models"
	"medrisk/internal/repositories"
)

type UserService interface {
	// Signup создаёт аккаунт и сразу выдаёт сессию (роль всегда user:
	// повышенные роли назначает админ отдельной операцией).
	Signup(req *models.SignupRequest) (*models.User, *models.Session, error)
	Login(email, password string) (*models.User, *models.Session, error)
	// AdminLogin требует role=admin; верный пароль не-админа — Forbidden,
	// расширенный TTL даётся только этому пути входа.
	AdminLogin(email, password string) (*models.User, *models.Session, error)

	GetUserByID(id int) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	ListUsers(limit, offset int) ([]*models.User, error)
	UpdateRole(userID int, role authz.Role) error
	GetUserCount() (int, error)
}

type userService struct {
	repo         repositories.UserRepository
	sessions     SessionService
	emailService EmailService
	authService  AuthService
}

func NewUserService(repo repositories.UserRepository, sessions SessionService, emailService EmailService, authService AuthService) UserService {
	return &userService{
		repo:         repo,
		sessions:     sessions,
		emailService: emailService,
		authService:  authService,
	}
}

func (s *userService) Signup(req *models.SignupRequest) (*models.User, *models.Session, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if len(strings.TrimSpace(req.Password)) < 8 {
		return nil, nil, ErrWeakPassword
	}

	existing, err := s.repo.GetByEmail(email)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	hash, err := s.authService.HashPassword(req.Password)
	if err != nil {
		return nil, nil, err
	}
	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		Phone:        strings.TrimSpace(req.Phone),
		PasswordHash: hash,
		Role:         authz.RoleUser,
	}
	if err := s.repo.Create(user); err != nil {
		return nil, nil, err
	}

	if s.emailService != nil {
		if err := s.emailService.SendWelcomeEmail(user.Email, user.Name); err != nil {
			// warn but do not fail creation
			log.Printf("[user][signup] warning: failed to send welcome email to %s: %v", user.Email, err)
		}
	}

	sess, err := s.sessions.CreateFor(user, LoginPathUser)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[user][signup] success userID=%d", user.ID)
	return user, sess, nil
}

// login — общая проверка учётных данных. Все промахи сведены к одной
// ошибке: не раскрываем, существует ли аккаунт.
func (s *userService) login(email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	user, err := s.repo.GetByEmail(email)
	if err != nil {
		log.Printf("[user][login] store error for email=%q: %v", email, err)
		return nil, ErrInvalidCredentials
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !s.authService.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) Login(email, password string) (*models.User, *models.Session, error) {
	user, err := s.login(email, password)
	if err != nil {
		return nil, nil, err
	}
	sess, err := s.sessions.CreateFor(user, LoginPathUser)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[user][login] success userID=%d role=%s", user.ID, user.Role)
	return user, sess, nil
}

func (s *userService) AdminLogin(email, password string) (*models.User, *models.Session, error) {
	user, err := s.login(email, password)
	if err != nil {
		return nil, nil, err
	}
	if err := authz.RequireRole(user.Role, authz.RoleAdmin); err != nil {
		log.Printf("[user][admin-login] not an admin: userID=%d role=%s", user.ID, user.Role)
		return nil, nil, err
	}
	sess, err := s.sessions.CreateFor(user, LoginPathAdmin)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("[user][admin-login] success userID=%d", user.ID)
	return user, sess, nil
}

func (s *userService) GetUserByID(id int) (*models.User, error) {
	return s.repo.GetByID(id)
}

func (s *userService) GetUserByEmail(email string) (*models.User, error) {
	return s.repo.GetByEmail(email)
}

func (s *userService) ListUsers(limit, offset int) ([]*models.User, error) {
	return s.repo.List(limit, offset)
}

func (s *userService) UpdateRole(userID int, role authz.Role) error {
	if _, ok := authz.ParseRole(string(role)); !ok {
		return authz.ErrForbidden
	}
	return s.repo.UpdateRole(userID, role)
}

func (s *userService) GetUserCount() (int, error) {
	return s.repo.GetCount()
}
