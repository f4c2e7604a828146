package service

import (
	"testing"

	"kb-assist-go/internal/model"
	"kb-assist-go/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeUserRepository 是 UserRepository 的内存实现。
type fakeUserRepository struct {
	users  map[uint]*model.User
	nextID uint
}

func newFakeUserRepository() *fakeUserRepository {
	return &fakeUserRepository{users: make(map[uint]*model.User)}
}

func (r *fakeUserRepository) Create(user *model.User) error {
	r.nextID++
	user.ID = r.nextID
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepository) FindByUsername(username string) (*model.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepository) FindByID(userID uint) (*model.User, error) {
	user, ok := r.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

func newTestUserService(repo *fakeUserRepository) UserService {
	return NewUserService(repo, token.NewJWTManager("test-secret", 1, 7))
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestUserService(newFakeUserRepository())

	user, err := svc.Register("alice", "s3cret")
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.NotEqual(t, "s3cret", user.Password) // 只存哈希

	accessToken, refreshToken, err := svc.Login("alice", "s3cret")
	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)
	assert.NotEmpty(t, refreshToken)

	_, _, err = svc.Login("alice", "wrong")
	assert.Error(t, err)
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc := newTestUserService(newFakeUserRepository())

	_, err := svc.Register("alice", "s3cret")
	require.NoError(t, err)
	_, err = svc.Register("alice", "other")
	assert.Error(t, err)
}

func TestRefreshToken_ResolvesUserByID(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice", "s3cret")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login("alice", "s3cret")
	require.NoError(t, err)

	// 用户改名后旧 token 中的用户名已过期，按 ID 仍能找到用户
	repo.users[1].Username = "alice-renamed"

	newAccess, newRefresh, err := svc.RefreshToken(refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
}

func TestRefreshToken_DeletedUser(t *testing.T) {
	repo := newFakeUserRepository()
	svc := newTestUserService(repo)

	_, err := svc.Register("alice", "s3cret")
	require.NoError(t, err)
	_, refreshToken, err := svc.Login("alice", "s3cret")
	require.NoError(t, err)

	delete(repo.users, 1)

	_, _, err = svc.RefreshToken(refreshToken)
	assert.Error(t, err)
}

func TestRefreshToken_Garbage(t *testing.T) {
	svc := newTestUserService(newFakeUserRepository())

	_, _, err := svc.RefreshToken("not-a-token")
	assert.Error(t, err)
}
