package loanctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/loan-engine/internal/arrears"
	"github.com/josh-kwaku/loan-engine/internal/domain"
)

func parse(args ...string) (Config, error) {
	fs := flag.NewFlagSet("loanctl", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return ParseConfig(fs, args)
}

func TestParseConfig(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{name: "no command", wantErr: true},
		{name: "unknown command", args: []string{"delete", "-loan-id", id.String()}, wantErr: true},
		{name: "bad loan id", args: []string{"show", "-loan-id", "nope"}, wantErr: true},
		{name: "unknown event", args: []string{"transition", "-loan-id", id.String(), "-event", "LOAN_EXPLODED"}, wantErr: true},
		{name: "bad date", args: []string{"disburse", "-loan-id", id.String(), "-date", "15/06/2024"}, wantErr: true},
		{
			name: "transition normalizes event case",
			args: []string{"transition", "-loan-id", id.String(), "-event", "loan_approved", "-actor", "ops"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, CommandTransition, cfg.Command)
				assert.Equal(t, id, cfg.LoanID)
				assert.Equal(t, domain.LoanEventApproved, cfg.Event)
				assert.Equal(t, "ops", cfg.Actor)
			},
		},
		{
			name: "disburse with date",
			args: []string{"disburse", "-loan-id", id.String(), "-date", "2024-01-15"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, domain.Date(2024, time.January, 15), cfg.Date)
				assert.Equal(t, "loanctl", cfg.Actor)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := parse(tc.args...)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

type fakeService struct {
	loan         *domain.Loan
	installments []domain.Installment
	event        domain.LoanEvent
	disbursedOn  time.Time
	err          error
}

func (f *fakeService) Get(context.Context, uuid.UUID) (*domain.Loan, error) { return f.loan, f.err }

func (f *fakeService) Installments(context.Context, uuid.UUID) ([]domain.Installment, error) {
	return f.installments, f.err
}

func (f *fakeService) Transition(_ context.Context, _ uuid.UUID, event domain.LoanEvent, _ string) (*domain.Loan, error) {
	f.event = event
	return f.loan, f.err
}

func (f *fakeService) Disburse(_ context.Context, _ uuid.UUID, date time.Time, _ string) (*domain.Loan, error) {
	f.disbursedOn = date
	return f.loan, f.err
}

type fakeAging struct{ ids []uuid.UUID }

func (f *fakeAging) RunForLoans(_ context.Context, ids []uuid.UUID) (*arrears.Result, error) {
	f.ids = ids
	return &arrears.Result{BusinessDate: domain.Date(2024, time.June, 15), RowsWritten: 1}, nil
}

func sampleLoan() *domain.Loan {
	return &domain.Loan{
		ID:                       uuid.New(),
		CurrencyCode:             "USD",
		Principal:                decimal.RequireFromString("1200"),
		Status:                   domain.LoanStatusApproved,
		ExpectedDisbursementDate: domain.Date(2024, time.January, 1),
		Version:                  2,
	}
}

func TestRun_TransitionPrintsJSON(t *testing.T) {
	l := sampleLoan()
	svc := &fakeService{loan: l}
	var out bytes.Buffer

	err := Run(context.Background(), Config{Command: CommandTransition, LoanID: l.ID, Event: domain.LoanEventApproved, JSON: true}, svc, nil, &out)
	require.NoError(t, err)

	assert.Equal(t, domain.LoanEventApproved, svc.event)
	var v loanView
	require.NoError(t, json.Unmarshal(out.Bytes(), &v))
	assert.Equal(t, "APPROVED", v.Status)
	assert.Equal(t, "1200", v.Principal)
	assert.Equal(t, "2024-01-01", v.ExpectedDisbursement)
	assert.Empty(t, v.ActualDisbursement)
}

func TestRun_DisburseDefaultsToToday(t *testing.T) {
	svc := &fakeService{loan: sampleLoan()}

	require.NoError(t, Run(context.Background(), Config{Command: CommandDisburse}, svc, nil, nil))
	assert.Equal(t, domain.Day(time.Now()), svc.disbursedOn)
}

func TestRun_Schedule(t *testing.T) {
	svc := &fakeService{installments: []domain.Installment{{
		Number:       1,
		DueDate:      domain.Date(2024, time.February, 1),
		PrincipalDue: decimal.RequireFromString("100"),
		InterestDue:  decimal.RequireFromString("12"),
	}}}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), Config{Command: CommandSchedule}, svc, nil, &out))
	assert.Contains(t, out.String(), "2024-02-01")
	assert.Contains(t, out.String(), "100")
}

func TestRun_Age(t *testing.T) {
	id := uuid.New()
	aging := &fakeAging{}
	var out bytes.Buffer

	require.NoError(t, Run(context.Background(), Config{Command: CommandAge, LoanID: id}, &fakeService{}, aging, &out))
	assert.Equal(t, []uuid.UUID{id}, aging.ids)
	assert.Contains(t, out.String(), "business date 2024-06-15: 1 written, 0 deleted")

	assert.Error(t, Run(context.Background(), Config{Command: CommandAge, LoanID: id}, &fakeService{}, nil, &out))
}

func TestRun_PropagatesServiceErrors(t *testing.T) {
	svc := &fakeService{err: domain.ErrLoanNotFound}
	err := Run(context.Background(), Config{Command: CommandShow}, svc, nil, nil)
	assert.ErrorIs(t, err, domain.ErrLoanNotFound)
}
