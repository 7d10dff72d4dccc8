package services

import (
	"fmt"

	"courier/auth"
	"courier/domain"
	"courier/errors"
	"courier/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, displayLabel, password string) (Token, error)
}

type AuthService struct {
	userRepository repositories.IUserRepository
	minter         auth.Minter
}

type Token string

func NewAuthService(repo repositories.IUserRepository, minter auth.Minter) *AuthService {
	return &AuthService{userRepository: repo, minter: minter}
}

func (s *AuthService) Register(email, displayLabel, password string) (Token, error) {
	valReq := auth.RegisterRequest{
		Email:        email,
		DisplayLabel: displayLabel,
		Password:     password,
	}

	// Validate business rules before any expensive cryptographic work.
	if err := auth.ValidateRegister(valReq); err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrInvalidPassword, err)
	}

	// Hashing in the service layer keeps the repository unaware of
	// plain passwords.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	userID, err := s.userRepository.CreateUser(email, displayLabel, hashedPassword)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if email is taken
	}

	token, err := s.minter.Mint(domain.Identity{UserID: userID, DisplayLabel: displayLabel})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.minter.Mint(domain.Identity{UserID: user.ID, DisplayLabel: user.DisplayLabel})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
