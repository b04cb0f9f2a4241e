package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/abhishek00112233/LMS-Backend/internal/mail"
	"github.com/abhishek00112233/LMS-Backend/internal/models"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/apperror"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/clock"
	"github.com/abhishek00112233/LMS-Backend/internal/pkg/hash"
	"github.com/abhishek00112233/LMS-Backend/internal/repository"
)

var baseTime = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

// sequenceCodes hands out predefined codes in order.
type sequenceCodes struct {
	mu    sync.Mutex
	codes []string
}

func (s *sequenceCodes) next() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.codes) == 0 {
		return "", errors.New("no more codes")
	}
	code := s.codes[0]
	s.codes = s.codes[1:]
	return code, nil
}

type authFixture struct {
	svc   *AuthService
	store *repository.MemoryStore
	clock *clock.Fake
	codes *hash.HMAC
}

func newAuthFixture(t *testing.T, codes ...string) *authFixture {
	t.Helper()

	store := repository.NewMemoryStore()
	fake := clock.NewFake(baseTime)
	hmac := hash.NewHMAC("test-otp-secret")
	gen := &sequenceCodes{codes: codes}

	svc := NewAuthService(
		store,
		hash.NewBcrypt(bcrypt.MinCost),
		hmac,
		mail.NewOTPTemplate(DefaultOTPTTL),
		WithClock(fake),
		WithCodeGenerator(gen.next),
	)

	return &authFixture{svc: svc, store: store, clock: fake, codes: hmac}
}

func annRegistration() SendOTPInput {
	return SendOTPInput{Role: "student", Name: "Ann", Email: "ann@x.com", Password: "secret1"}
}

func (f *authFixture) account(t *testing.T, email string) *models.Account {
	t.Helper()
	acc, err := f.store.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return acc
}

func TestGenerateOTP_SixDigitsInRange(t *testing.T) {
	re := regexp.MustCompile(`^[1-9][0-9]{5}$`)
	for i := 0; i < 1000; i++ {
		code, err := GenerateOTP()
		require.NoError(t, err)
		require.Regexp(t, re, code)

		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestAuthService_SendOTP_CreatesUnverifiedAccount(t *testing.T) {
	f := newAuthFixture(t, "123456")

	require.NoError(t, f.svc.SendOTP(context.Background(), annRegistration()))

	acc := f.account(t, "ann@x.com")
	assert.False(t, acc.IsVerified())
	assert.Equal(t, models.RoleStudent, acc.Role)
	assert.Equal(t, "Ann", acc.Name)
	assert.NotEqual(t, "secret1", acc.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("secret1")))

	otp, ok := acc.PendingOTP()
	require.True(t, ok)
	assert.True(t, f.codes.Equal(otp.CodeHash, "123456"))
	assert.NotEqual(t, "123456", otp.CodeHash, "code is not stored in plaintext")
	assert.Equal(t, baseTime.Add(5*time.Minute), otp.ExpiresAt)

	outbox := f.store.Outbox()
	require.Len(t, outbox, 1)
	assert.Equal(t, "ann@x.com", outbox[0].Recipient)
	assert.Equal(t, "Your EduPlatform OTP Code", outbox[0].Subject)
	assert.Contains(t, outbox[0].HTMLBody, "<b>123456</b>")
	assert.Equal(t, baseTime, outbox[0].NextAttemptAt)
}

func TestAuthService_SendOTP_NormalizesEmail(t *testing.T) {
	f := newAuthFixture(t, "123456")

	in := annRegistration()
	in.Email = "  Ann@X.com "
	in.Name = "  Ann  "
	require.NoError(t, f.svc.SendOTP(context.Background(), in))

	acc := f.account(t, "ann@x.com")
	assert.Equal(t, "ann@x.com", acc.Email)
	assert.Equal(t, "Ann", acc.Name)
}

func TestAuthService_SendOTP_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*SendOTPInput)
		message string
	}{
		{name: "missing role", mutate: func(in *SendOTPInput) { in.Role = "" }, message: "All fields are required"},
		{name: "missing name", mutate: func(in *SendOTPInput) { in.Name = "   " }, message: "All fields are required"},
		{name: "missing email", mutate: func(in *SendOTPInput) { in.Email = "" }, message: "All fields are required"},
		{name: "missing password", mutate: func(in *SendOTPInput) { in.Password = "" }, message: "All fields are required"},
		{name: "unknown role", mutate: func(in *SendOTPInput) { in.Role = "tutor" }},
		{name: "bad email", mutate: func(in *SendOTPInput) { in.Email = "ann-at-x.com" }},
		{name: "password too long", mutate: func(in *SendOTPInput) { in.Password = string(make([]byte, 73)) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAuthFixture(t, "123456")
			in := annRegistration()
			tt.mutate(&in)

			err := f.svc.SendOTP(context.Background(), in)
			require.Error(t, err)
			assert.ErrorIs(t, err, apperror.New(apperror.ErrCodeInvalidInput, ""))
			if tt.message != "" {
				var appErr *apperror.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.message, appErr.Message)
			}
			assert.Empty(t, f.store.Outbox())
		})
	}
}

func TestAuthService_SendOTP_ReissueOverwritesPreviousCode(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "111111", "222222")

	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))
	f.clock.Advance(time.Minute)

	again := annRegistration()
	again.Role = "instructor"
	again.Name = "Annie"
	again.Password = "secret2"
	require.NoError(t, f.svc.SendOTP(ctx, again))

	acc := f.account(t, "ann@x.com")
	assert.Equal(t, models.RoleInstructor, acc.Role)
	assert.Equal(t, "Annie", acc.Name)
	otp, ok := acc.PendingOTP()
	require.True(t, ok)
	assert.Equal(t, baseTime.Add(6*time.Minute), otp.ExpiresAt)

	err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "111111"})
	assert.ErrorIs(t, err, apperror.ErrCodeMismatch, "old code is invalid immediately")

	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "222222"}))

	outbox := f.store.Outbox()
	require.Len(t, outbox, 1, "only the latest code stays queued")
	assert.Contains(t, outbox[0].TextBody, "222222")
	assert.NotContains(t, outbox[0].TextBody, "111111")
}

func TestAuthService_SendOTP_AlreadyVerifiedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456", "654321", "999999")

	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))
	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"}))
	before := f.account(t, "ann@x.com")

	for i := 0; i < 2; i++ {
		in := annRegistration()
		in.Name = "Mallory"
		in.Password = "hijack"
		err := f.svc.SendOTP(ctx, in)
		require.Error(t, err)
		assert.ErrorIs(t, err, apperror.ErrAlreadyVerified)
	}

	after := f.account(t, "ann@x.com")
	assert.Equal(t, before, after, "verified account is not mutated")
	assert.Len(t, f.store.Outbox(), 1)
}

func TestAuthService_VerifyOTP_Success(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	f.clock.Advance(4*time.Minute + 59*time.Second)
	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ANN@x.com", OTP: "123456"}))

	acc := f.account(t, "ann@x.com")
	assert.True(t, acc.IsVerified())
	_, pending := acc.PendingOTP()
	assert.False(t, pending)

	err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestAuthService_VerifyOTP_AtExactExpiryStillValid(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	f.clock.Advance(5 * time.Minute)
	assert.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"}))
}

func TestAuthService_VerifyOTP_Expired(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	f.clock.Advance(5*time.Minute + time.Second)
	err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrOTPExpired)
	assert.False(t, f.account(t, "ann@x.com").IsVerified())
}

func TestAuthService_VerifyOTP_MismatchReportedBeforeExpiry(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "000000"})
	assert.ErrorIs(t, err, apperror.ErrCodeMismatch)

	f.clock.Advance(10 * time.Minute)
	err = f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "000000"})
	assert.ErrorIs(t, err, apperror.ErrCodeMismatch)
	assert.NotErrorIs(t, err, apperror.ErrOTPExpired)
}

func TestAuthService_VerifyOTP_NoNormalizationOfCode(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	for _, code := range []string{" 123456", "123456 ", "0123456"} {
		err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: code})
		assert.ErrorIs(t, err, apperror.ErrCodeMismatch, code)
	}
}

func TestAuthService_VerifyOTP_Failures(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t)

	err := f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrMissingOTPFields)
	err = f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: ""})
	assert.ErrorIs(t, err, apperror.ErrMissingOTPFields)

	err = f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "nobody@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrUnknownUser)

	require.NoError(t, f.store.SavePending(ctx, &models.Account{
		Role:  models.RoleStudent,
		Name:  "Bob",
		Email: "bob@x.com",
		State: models.Unverified{},
	}, nil))
	err = f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "bob@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
}

func TestAuthService_VerifyOTP_ConcurrentHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	const workers = 8
	results := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"})
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
	}
	assert.Equal(t, 1, wins)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "123456")
	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))

	_, err := f.svc.Login(ctx, LoginInput{Role: "student", Email: "ann@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, apperror.ErrUnverified, "correct password but unverified")

	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"}))

	tests := []struct {
		name    string
		in      LoginInput
		want    error
		message string
	}{
		{name: "wrong password", in: LoginInput{Role: "student", Email: "ann@x.com", Password: "nope"}, want: apperror.ErrWrongPassword, message: "Invalid password"},
		{name: "wrong role", in: LoginInput{Role: "admin", Email: "ann@x.com", Password: "secret1"}, want: apperror.ErrInvalidCredentials, message: "Invalid email or role"},
		{name: "unknown role", in: LoginInput{Role: "tutor", Email: "ann@x.com", Password: "secret1"}, want: apperror.ErrInvalidCredentials, message: "Invalid email or role"},
		{name: "wrong email", in: LoginInput{Role: "student", Email: "bob@x.com", Password: "secret1"}, want: apperror.ErrInvalidCredentials, message: "Invalid email or role"},
		{name: "missing password", in: LoginInput{Role: "student", Email: "ann@x.com"}, want: apperror.ErrMissingFields, message: "All fields are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			summary, err := f.svc.Login(ctx, tt.in)
			assert.Nil(t, summary)
			require.ErrorIs(t, err, tt.want)

			var appErr *apperror.AppError
			require.ErrorAs(t, err, &appErr)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}

	summary, err := f.svc.Login(ctx, LoginInput{Role: "student", Email: " Ann@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "Ann", summary.Name)
	assert.Equal(t, "ann@x.com", summary.Email)
	assert.Equal(t, models.RoleStudent, summary.Role)
	assert.NotEqual(t, uuid.Nil, summary.ID)
}

func TestAuthService_RegisterVerifyLoginScenario(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture(t, "481516")

	require.NoError(t, f.svc.SendOTP(ctx, annRegistration()))
	f.clock.Advance(2 * time.Minute)
	require.NoError(t, f.svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "481516"}))

	summary, err := f.svc.Login(ctx, LoginInput{Role: "student", Email: "ann@x.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, models.AccountSummary{
		ID:    f.account(t, "ann@x.com").ID,
		Name:  "Ann",
		Email: "ann@x.com",
		Role:  models.RoleStudent,
	}, *summary)
}

// mockAccountRepository lets tests inject store failures.
type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	args := m.Called(ctx, email)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *mockAccountRepository) GetByEmailAndRole(ctx context.Context, email string, role models.Role) (*models.Account, error) {
	args := m.Called(ctx, email, role)
	acc, _ := args.Get(0).(*models.Account)
	return acc, args.Error(1)
}

func (m *mockAccountRepository) SavePending(ctx context.Context, acc *models.Account, msg *models.OutboxMessage) error {
	return m.Called(ctx, acc, msg).Error(0)
}

func (m *mockAccountRepository) MarkVerified(ctx context.Context, id uuid.UUID, codeHash string) error {
	return m.Called(ctx, id, codeHash).Error(0)
}

func newMockedAuthService(repo AccountRepository) *AuthService {
	return NewAuthService(
		repo,
		hash.NewBcrypt(bcrypt.MinCost),
		hash.NewHMAC("k"),
		mail.NewOTPTemplate(DefaultOTPTTL),
		WithClock(clock.NewFake(baseTime)),
		WithCodeGenerator(func() (string, error) { return "123456", nil }),
	)
}

func TestAuthService_StoreFailuresAreInternal(t *testing.T) {
	ctx := context.Background()
	dbErr := errors.New("connection refused")

	repo := &mockAccountRepository{}
	repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(nil, dbErr)
	repo.On("GetByEmailAndRole", mock.Anything, "ann@x.com", models.RoleStudent).Return(nil, dbErr)
	svc := newMockedAuthService(repo)

	err := svc.SendOTP(ctx, annRegistration())
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, apperror.IsInternal(err))

	err = svc.VerifyOTP(ctx, VerifyOTPInput{Email: "ann@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, apperror.IsInternal(err))

	_, err = svc.Login(ctx, LoginInput{Role: "student", Email: "ann@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, dbErr)
	assert.True(t, apperror.IsInternal(err))

	repo.AssertExpectations(t)
}

func TestAuthService_SendOTP_LostRaceToVerification(t *testing.T) {
	repo := &mockAccountRepository{}
	repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(nil, repository.ErrAccountNotFound)
	repo.On("SavePending", mock.Anything, mock.AnythingOfType("*models.Account"), mock.AnythingOfType("*models.OutboxMessage")).
		Return(repository.ErrAccountVerified)

	err := newMockedAuthService(repo).SendOTP(context.Background(), annRegistration())
	assert.ErrorIs(t, err, apperror.ErrAlreadyVerified)
	repo.AssertExpectations(t)
}

func TestAuthService_VerifyOTP_LostRaceIsNoPendingOTP(t *testing.T) {
	codes := hash.NewHMAC("k")
	acc := &models.Account{
		ID:    uuid.New(),
		Email: "ann@x.com",
		State: models.Unverified{OTP: &models.PendingOTP{CodeHash: codes.Hash("123456"), ExpiresAt: baseTime.Add(time.Minute)}},
	}

	repo := &mockAccountRepository{}
	repo.On("GetByEmail", mock.Anything, "ann@x.com").Return(acc, nil)
	repo.On("MarkVerified", mock.Anything, acc.ID, codes.Hash("123456")).Return(repository.ErrStateConflict)

	err := newMockedAuthService(repo).VerifyOTP(context.Background(), VerifyOTPInput{Email: "ann@x.com", OTP: "123456"})
	assert.ErrorIs(t, err, apperror.ErrNoPendingOTP)
	repo.AssertExpectations(t)
}
