package bills

import (
	"context"
	"log/slog"

	"github.com/billtrack/billtrack/internal/rbac"
	"github.com/billtrack/billtrack/internal/shared"
)

// RepositoryPort describes the persistence operations used by Service.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (Bill, error)
	GetByNumber(ctx context.Context, number string) (Bill, error)
	List(ctx context.Context, limit, offset int) ([]Bill, error)
	Count(ctx context.Context) (int, error)
	Register(ctx context.Context, in RegisterInput) (Bill, bool, error)
}

// Service exposes the bill registry. Stage changes never go through here;
// they happen only inside an approval transaction via AdvanceStage.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
}

// NewService constructs the registry service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Get returns a bill by id.
func (s *Service) Get(ctx context.Context, id int64) (Bill, error) {
	if id <= 0 {
		return Bill{}, shared.ErrInvalidInput
	}
	return s.repo.Get(ctx, id)
}

// GetByNumber returns a bill by bill number.
func (s *Service) GetByNumber(ctx context.Context, number string) (Bill, error) {
	in := RegisterInput{BillNumber: number}.Normalize()
	if in.BillNumber == "" {
		return Bill{}, shared.ErrInvalidInput
	}
	return s.repo.GetByNumber(ctx, in.BillNumber)
}

// List returns a page of bills.
func (s *Service) List(ctx context.Context, page, perPage int) (ListResult, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	total, err := s.repo.Count(ctx)
	if err != nil {
		return ListResult{}, err
	}
	pagination := shared.NewPagination(page, perPage, total)
	items, err := s.repo.List(ctx, pagination.PerPage, pagination.Offset())
	if err != nil {
		return ListResult{}, err
	}
	if items == nil {
		items = []Bill{}
	}
	return ListResult{Bills: items, Pagination: pagination}, nil
}

// Register adds a bill to the registry. Registering an existing bill number
// returns the stored bill unchanged.
func (s *Service) Register(ctx context.Context, actor shared.Actor, in RegisterInput) (Bill, error) {
	if err := rbac.Check(actor, rbac.CapRegisterBill); err != nil {
		return Bill{}, err
	}
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return Bill{}, err
	}
	bill, created, err := s.repo.Register(ctx, in)
	if err != nil {
		return Bill{}, err
	}
	if created {
		s.logger.Info("bill registered", slog.Int64("bill_id", bill.ID), slog.String("bill_number", bill.BillNumber), slog.String("stage", string(bill.CurrentStage)))
	}
	return bill, nil
}

// Stages returns the stage catalog.
func (s *Service) Stages() []StageInfo {
	return Stages()
}
