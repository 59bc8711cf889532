package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/coffee-backoffice/internal/model"
	"github.com/iliyamo/coffee-backoffice/internal/queue"
	"github.com/iliyamo/coffee-backoffice/internal/repository"
	"github.com/iliyamo/coffee-backoffice/internal/utils"
)

// memTokens mirrors TokenRepo: one live token per user.
type memTokens struct{ db *memDB }

func (f memTokens) Issue(_ context.Context, userID uint64, hash string, exp time.Time) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.dropUser(userID)
	f.db.tokens[hash] = tokenRow{userID: userID, exp: exp}
	return nil
}

func (f memTokens) Consume(_ context.Context, hash string) (uint64, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	row, ok := f.db.tokens[hash]
	delete(f.db.tokens, hash)
	if !ok || time.Now().After(row.exp) {
		return 0, repository.ErrNotFound
	}
	return row.userID, nil
}

func (f memTokens) RevokeUser(_ context.Context, userID uint64) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.dropUser(userID)
	return nil
}

func (f memTokens) dropUser(userID uint64) {
	for h, row := range f.db.tokens {
		if row.userID == userID {
			delete(f.db.tokens, h)
		}
	}
}

type AuthServiceSuite struct {
	suite.Suite
	ctx    context.Context
	db     *memDB
	events *recordingPublisher
	svc    *AuthService
}

func TestAuthServiceSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceSuite))
}

func (s *AuthServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.db = newMemDB()
	s.events = &recordingPublisher{}
	cfg := AuthConfig{JWTSecret: "test-secret", AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}
	s.svc = NewAuthService(cfg, memUsers{s.db}, memTokens{s.db}, s.events, nopLog())
}

func (s *AuthServiceSuite) register(email, phone string) Session {
	sess, err := s.svc.Register(s.ctx, RegisterInput{Email: email, Password: "s3cret-pass", FullName: "Minh", Phone: phone})
	s.Require().NoError(err)
	return sess
}

func (s *AuthServiceSuite) TestRegisterIssuesTokens() {
	sess := s.register(" Minh@Example.com ", "")
	s.Equal("minh@example.com", sess.User.Email)
	s.Equal(model.RoleCustomer, sess.User.Role)
	s.Nil(sess.Merge)
	s.Len(s.db.tokens, 1)

	uid, role, err := utils.ParseAccessToken("test-secret", sess.Access.Token)
	s.Require().NoError(err)
	s.Equal(sess.User.ID, uid)
	s.Equal(model.RoleCustomer, role)
}

func (s *AuthServiceSuite) TestRegisterMergesGuestCustomer() {
	c := s.db.addCustomer("Minh", "0901", 60)
	s.db.ledger = append(s.db.ledger, model.RewardTransaction{ID: 99, Owner: model.CustomerOwner(c.ID), Type: model.RewardEarn, Points: 60})

	sess := s.register("minh@example.com", "0901")
	s.Require().NotNil(sess.Merge)
	s.True(sess.Merge.Merged)
	s.Equal(c.ID, sess.Merge.CustomerID)
	s.EqualValues(60, sess.Merge.PointsMoved)
	s.EqualValues(60, s.db.users[sess.User.ID].RewardPoints)
	s.NotNil(s.db.customers[c.ID].DeletedAt)
	s.Equal([]string{queue.CustomerMerged}, s.events.keys())

	ev := s.events.events[0].payload.(queue.CustomerMergedEvent)
	s.Equal(c.ID, ev.CustomerID)
	s.Equal("register", ev.Source)
}

func (s *AuthServiceSuite) TestRegisterConflicts() {
	s.register("minh@example.com", "0901")

	_, err := s.svc.Register(s.ctx, RegisterInput{Email: "MINH@example.com", Password: "s3cret-pass"})
	s.ErrorIs(err, ErrConflict)
	_, err = s.svc.Register(s.ctx, RegisterInput{Email: "other@example.com", Password: "s3cret-pass", Phone: "0901"})
	s.ErrorIs(err, ErrConflict)
	_, err = s.svc.Register(s.ctx, RegisterInput{Email: "short@example.com", Password: "short"})
	s.ErrorIs(err, ErrValidation)
	_, err = s.svc.Register(s.ctx, RegisterInput{Email: "", Password: "s3cret-pass"})
	s.ErrorIs(err, ErrValidation)
}

func (s *AuthServiceSuite) TestLogin() {
	s.register("minh@example.com", "")

	_, err := s.svc.Login(s.ctx, "minh@example.com", "wrong-pass")
	s.ErrorIs(err, ErrUnauthorized)
	_, err = s.svc.Login(s.ctx, "nobody@example.com", "s3cret-pass")
	s.ErrorIs(err, ErrUnauthorized)

	sess, err := s.svc.Login(s.ctx, "MINH@example.com", "s3cret-pass")
	s.Require().NoError(err)
	s.NotEmpty(sess.Refresh.Raw)
}

func (s *AuthServiceSuite) TestRefreshRotates() {
	first := s.register("minh@example.com", "")

	next, err := s.svc.Refresh(s.ctx, first.Refresh.Raw)
	s.Require().NoError(err)
	s.NotEqual(first.Refresh.Raw, next.Refresh.Raw)

	_, err = s.svc.Refresh(s.ctx, first.Refresh.Raw)
	s.ErrorIs(err, ErrUnauthorized, "rotated token is single use")
	_, err = s.svc.Refresh(s.ctx, "")
	s.ErrorIs(err, ErrValidation)
}

func (s *AuthServiceSuite) TestLogout() {
	first := s.register("minh@example.com", "")
	sess, err := s.svc.Login(s.ctx, "minh@example.com", "s3cret-pass")
	s.Require().NoError(err)
	s.Len(s.db.tokens, 1)
	s.ErrorIs(s.svc.Logout(s.ctx, 0, first.Refresh.Raw), ErrUnauthorized, "login rotated the first token out")

	s.Require().NoError(s.svc.Logout(s.ctx, 0, sess.Refresh.Raw))
	s.Empty(s.db.tokens)
	s.ErrorIs(s.svc.Logout(s.ctx, 0, sess.Refresh.Raw), ErrUnauthorized)

	again, err := s.svc.Login(s.ctx, "minh@example.com", "s3cret-pass")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Logout(s.ctx, again.User.ID, ""))
	s.Empty(s.db.tokens)
	s.ErrorIs(s.svc.Logout(s.ctx, 0, ""), ErrValidation)
}

func (s *AuthServiceSuite) TestUpdateProfilePassword() {
	sess := s.register("minh@example.com", "")
	uid := sess.User.ID

	_, err := s.svc.UpdateProfile(s.ctx, uid, ProfileUpdate{NewPassword: "another-pass"})
	s.ErrorIs(err, ErrValidation)
	_, err = s.svc.UpdateProfile(s.ctx, uid, ProfileUpdate{CurrentPassword: "wrong-pass", NewPassword: "another-pass"})
	s.ErrorIs(err, ErrValidation)

	u, err := s.svc.UpdateProfile(s.ctx, uid, ProfileUpdate{FullName: strPtr(" Minh Le "), CurrentPassword: "s3cret-pass", NewPassword: "another-pass"})
	s.Require().NoError(err)
	s.Equal("Minh Le", u.FullName)

	_, err = s.svc.Login(s.ctx, "minh@example.com", "another-pass")
	s.NoError(err)
}

func (s *AuthServiceSuite) TestUpdateProfilePhoneConflict() {
	s.db.addCustomer("Lan", "0901", 0)
	sess := s.register("minh@example.com", "")

	_, err := s.svc.UpdateProfile(s.ctx, sess.User.ID, ProfileUpdate{Phone: strPtr("0901")})
	s.ErrorIs(err, ErrConflict)

	_, err = s.svc.Profile(s.ctx, 999)
	s.ErrorIs(err, ErrNotFound)
}
