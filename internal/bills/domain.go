package bills

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/billtrack/billtrack/internal/shared"
)

const (
	maxBillNumberLen = 32
	maxBillTitleLen  = 500
)

// Bill is the canonical record of a bill and its pipeline position.
type Bill struct {
	ID           int64     `json:"id"`
	BillNumber   string    `json:"bill_number"`
	BillTitle    string    `json:"bill_title"`
	CurrentStage Stage     `json:"current_stage"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RegisterInput describes a newly discovered bill.
type RegisterInput struct {
	BillNumber string
	BillTitle  string
	Stage      Stage
}

// Normalize trims input and applies the default stage.
func (in RegisterInput) Normalize() RegisterInput {
	in.BillNumber = strings.ToUpper(strings.TrimSpace(in.BillNumber))
	in.BillTitle = strings.TrimSpace(in.BillTitle)
	if in.Stage == "" {
		in.Stage = StageIntroduced
	}
	return in
}

// Validate ensures the register input is coherent.
func (in RegisterInput) Validate() error {
	if in.BillNumber == "" {
		return fmt.Errorf("bills: bill number required: %w", shared.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.BillNumber) > maxBillNumberLen {
		return fmt.Errorf("bills: bill number too long: %w", shared.ErrInvalidInput)
	}
	if utf8.RuneCountInString(in.BillTitle) > maxBillTitleLen {
		return fmt.Errorf("bills: bill title too long: %w", shared.ErrInvalidInput)
	}
	if !in.Stage.Valid() {
		return fmt.Errorf("bills: stage %q: %w", in.Stage, shared.ErrInvalidInput)
	}
	return nil
}

// ListResult is a page of bills.
type ListResult struct {
	Bills      []Bill            `json:"bills"`
	Pagination shared.Pagination `json:"pagination"`
}
