package service

import (
	"context"
	"sync"
	"time"

	"betboard/events"
	"betboard/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockUserRepository is a mock implementation of UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) GetByUsernameForUpdate(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateBalance(ctx context.Context, username string, newBalance decimal.Decimal) error {
	args := m.Called(ctx, username, newBalance)
	return args.Error(0)
}

func (m *MockUserRepository) FindVerifiedByName(ctx context.Context, firstName, lastName string) (*models.User, error) {
	args := m.Called(ctx, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUserRepository) SaveVerification(ctx context.Context, verification *models.Verification) error {
	args := m.Called(ctx, verification)
	return args.Error(0)
}

// MockEventRepository is a mock implementation of EventRepository
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Create(ctx context.Context, event *models.Event, actions []*models.Action) error {
	args := m.Called(ctx, event, actions)
	return args.Error(0)
}

func (m *MockEventRepository) GetByID(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Event), args.Error(1)
}

func (m *MockEventRepository) GetDetail(ctx context.Context, id int64) (*models.EventDetail, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EventDetail), args.Error(1)
}

func (m *MockEventRepository) ListDetails(ctx context.Context) ([]*models.EventDetail, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.EventDetail), args.Error(1)
}

func (m *MockEventRepository) GetByCreator(ctx context.Context, username string) ([]*models.Event, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Event), args.Error(1)
}

func (m *MockEventRepository) GetAction(ctx context.Context, actionID int64) (*models.Action, error) {
	args := m.Called(ctx, actionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Action), args.Error(1)
}

func (m *MockEventRepository) UpdateBudget(ctx context.Context, eventID int64, budget decimal.Decimal) error {
	args := m.Called(ctx, eventID, budget)
	return args.Error(0)
}

func (m *MockEventRepository) SetOpen(ctx context.Context, eventID int64, open bool) error {
	args := m.Called(ctx, eventID, open)
	return args.Error(0)
}

func (m *MockEventRepository) SetVisibility(ctx context.Context, eventID int64, public bool, password string) error {
	args := m.Called(ctx, eventID, public, password)
	return args.Error(0)
}

func (m *MockEventRepository) MarkFinished(ctx context.Context, eventID int64, finishedAt time.Time) error {
	args := m.Called(ctx, eventID, finishedAt)
	return args.Error(0)
}

func (m *MockEventRepository) UpdateCoefficient(ctx context.Context, actionID int64, coefficient float64) error {
	args := m.Called(ctx, actionID, coefficient)
	return args.Error(0)
}

// MockParticipationRepository is a mock implementation of ParticipationRepository
type MockParticipationRepository struct {
	mock.Mock
}

func (m *MockParticipationRepository) Create(ctx context.Context, participation *models.Participation) error {
	args := m.Called(ctx, participation)
	return args.Error(0)
}

func (m *MockParticipationRepository) GetByEvent(ctx context.Context, eventID int64) ([]*models.Participation, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participation), args.Error(1)
}

func (m *MockParticipationRepository) GetByUser(ctx context.Context, username string) ([]*models.Participation, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Participation), args.Error(1)
}

func (m *MockParticipationRepository) StakeTotals(ctx context.Context, eventID int64) (map[int64]decimal.Decimal, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]decimal.Decimal), args.Error(1)
}

func (m *MockParticipationRepository) CountPlayers(ctx context.Context, eventID int64) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func (m *MockParticipationRepository) HasParticipated(ctx context.Context, eventID int64, username string) (bool, error) {
	args := m.Called(ctx, eventID, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockParticipationRepository) SetOutcomes(ctx context.Context, eventID int64, winningActionID int64) error {
	args := m.Called(ctx, eventID, winningActionID)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

func (m *MockBalanceHistoryRepository) GetByUser(ctx context.Context, username string, limit int) ([]*models.BalanceHistory, error) {
	args := m.Called(ctx, username, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BalanceHistory), args.Error(1)
}

// MockBankTransactionRepository is a mock implementation of BankTransactionRepository
type MockBankTransactionRepository struct {
	mock.Mock
}

func (m *MockBankTransactionRepository) Exists(ctx context.Context, externalID string) (bool, error) {
	args := m.Called(ctx, externalID)
	return args.Bool(0), args.Error(1)
}

func (m *MockBankTransactionRepository) Create(ctx context.Context, tx *models.BankTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu        sync.Mutex
	published []events.Event
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, event)
}

// Published returns the events published so far
func (m *MockEventPublisher) Published() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]events.Event, len(m.published))
	copy(out, m.published)
	return out
}

// OfType returns the published events with the given type
func (m *MockEventPublisher) OfType(eventType events.EventType) []events.Event {
	var out []events.Event
	for _, e := range m.Published() {
		if e.Type() == eventType {
			out = append(out, e)
		}
	}
	return out
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock

	userRepo            UserRepository
	eventRepo           EventRepository
	participationRepo   ParticipationRepository
	balanceHistoryRepo  BalanceHistoryRepository
	bankTransactionRepo BankTransactionRepository
	eventBus            *MockEventPublisher
}

// NewMockUnitOfWork creates a unit of work wired to the given repositories
func NewMockUnitOfWork(users UserRepository, eventRepo EventRepository, participations ParticipationRepository, history BalanceHistoryRepository, bank BankTransactionRepository) *MockUnitOfWork {
	return &MockUnitOfWork{
		userRepo:            users,
		eventRepo:           eventRepo,
		participationRepo:   participations,
		balanceHistoryRepo:  history,
		bankTransactionRepo: bank,
		eventBus:            &MockEventPublisher{},
	}
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) UserRepository() UserRepository                       { return m.userRepo }
func (m *MockUnitOfWork) EventRepository() EventRepository                     { return m.eventRepo }
func (m *MockUnitOfWork) ParticipationRepository() ParticipationRepository     { return m.participationRepo }
func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository   { return m.balanceHistoryRepo }
func (m *MockUnitOfWork) BankTransactionRepository() BankTransactionRepository { return m.bankTransactionRepo }
func (m *MockUnitOfWork) EventBus() EventPublisher                             { return m.eventBus }

// Publisher exposes the recording event bus for assertions
func (m *MockUnitOfWork) Publisher() *MockEventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) Create() UnitOfWork {
	args := m.Called()
	return args.Get(0).(UnitOfWork)
}

// MockOddsCache is a mock implementation of OddsCache
type MockOddsCache struct {
	mock.Mock
}

func (m *MockOddsCache) Get(ctx context.Context, eventID int64) ([]models.SuggestedCoefficient, bool, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]models.SuggestedCoefficient), args.Bool(1), args.Error(2)
}

func (m *MockOddsCache) Set(ctx context.Context, eventID int64, suggestions []models.SuggestedCoefficient) error {
	args := m.Called(ctx, eventID, suggestions)
	return args.Error(0)
}

func (m *MockOddsCache) Invalidate(ctx context.Context, eventID int64) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

// MockBankFeed is a mock implementation of BankFeed
type MockBankFeed struct {
	mock.Mock
}

func (m *MockBankFeed) Statement(ctx context.Context, from, to time.Time) ([]*models.BankTransaction, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BankTransaction), args.Error(1)
}
