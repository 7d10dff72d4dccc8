package repositories

import (
	"testing"

	"courier/errors"

	"github.com/stretchr/testify/require"
)

func Test_Create_And_Fetch_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(newTestDB(t))

	id, err := repository.CreateUser("alice@example.com", "Alice", "$argon2id$...")
	req.NoError(err)
	req.NotEmpty(id)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("Alice", byEmail.DisplayLabel)

	byID, err := repository.GetUserByID(id)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func Test_Duplicate_Email_Is_Rejected(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(newTestDB(t))

	_, err := repository.CreateUser("alice@example.com", "Alice", "hash")
	req.NoError(err)

	_, err = repository.CreateUser("alice@example.com", "Imposter", "hash")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}
