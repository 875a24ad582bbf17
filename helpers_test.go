package iam_test

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	iam "github.com/goliatone/go-iam"
	"github.com/stretchr/testify/mock"
)

const testSecret = "test-signing-secret-0123456789"

func testTokenConfig() iam.TokenConfig {
	return iam.TokenConfig{
		Secret:          testSecret,
		Audience:        "iam-tests",
		Issuer:          "iam-test-issuer",
		AccessTokenTTL:  3600,
		RefreshTokenTTL: 86400,
	}
}

// captureLogger records messages by level
type captureLogger struct {
	mu       sync.Mutex
	messages map[string][]string
}

func newCaptureLogger() *captureLogger {
	return &captureLogger{messages: map[string][]string{}}
}

func (l *captureLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages[level] = append(l.messages[level], msg)
}

func (l *captureLogger) Debug(msg string, _ ...any) { l.record("debug", msg) }
func (l *captureLogger) Info(msg string, _ ...any)  { l.record("info", msg) }
func (l *captureLogger) Warn(msg string, _ ...any)  { l.record("warn", msg) }
func (l *captureLogger) Error(msg string, _ ...any) { l.record("error", msg) }

func (l *captureLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages[level])
}

// memoryStore is an in memory iam.AccountStore
type memoryStore struct {
	mu          sync.Mutex
	accounts    map[int64]*iam.Account
	nextID      int64
	updateIPErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{accounts: map[int64]*iam.Account{}}
}

func (s *memoryStore) add(draft iam.AccountDraft) *iam.Account {
	account, err := s.Create(context.Background(), draft)
	if err != nil {
		panic(err)
	}
	return account
}

func (s *memoryStore) set(id int64, fn func(*iam.Account)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.accounts[id])
}

func (s *memoryStore) FindBySub(_ context.Context, sub int64) (*iam.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if account, ok := s.accounts[sub]; ok {
		clone := *account
		return &clone, nil
	}
	return nil, iam.NewAccountNotFound(nil, map[string]any{"id": sub})
}

func (s *memoryStore) FindByEmail(_ context.Context, email string) (*iam.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, email) {
			clone := *account
			return &clone, nil
		}
	}
	return nil, iam.NewAccountNotFound(nil, map[string]any{"email": email})
}

func (s *memoryStore) FindByID(ctx context.Context, id string) (*iam.Account, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, iam.NewAccountNotFound(err, nil)
	}
	return s.FindBySub(ctx, n)
}

func (s *memoryStore) Create(_ context.Context, draft iam.AccountDraft) (*iam.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, account := range s.accounts {
		if strings.EqualFold(account.Email, draft.Email) {
			return nil, iam.NewAccountExists(nil, map[string]any{"email": draft.Email})
		}
	}
	s.nextID++
	account := draft.Account()
	account.ID = s.nextID
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	s.accounts[account.ID] = account
	clone := *account
	return &clone, nil
}

func (s *memoryStore) UpdateLastLoginIP(_ context.Context, id int64, ip string) (*iam.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateIPErr != nil {
		return nil, s.updateIPErr
	}
	account, ok := s.accounts[id]
	if !ok {
		return nil, iam.NewAccountNotFound(nil, nil)
	}
	account.LastLoginIP = ip
	clone := *account
	return &clone, nil
}

func (s *memoryStore) List(context.Context) ([]*iam.Account, error) {
	return s.snapshot(), nil
}

func (s *memoryStore) snapshot() []*iam.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*iam.Account, 0, len(s.accounts))
	for id := int64(1); id <= s.nextID; id++ {
		if account, ok := s.accounts[id]; ok {
			clone := *account
			out = append(out, &clone)
		}
	}
	return out
}

// MockAccountFinder implements iam.AccountFinder
type MockAccountFinder struct {
	mock.Mock
}

func (m *MockAccountFinder) FindBySub(ctx context.Context, sub int64) (*iam.Account, error) {
	args := m.Called(ctx, sub)
	account, _ := args.Get(0).(*iam.Account)
	return account, args.Error(1)
}

func jwtSubject(sub string) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{Subject: sub}
}
