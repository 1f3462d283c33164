// Package loanctl implements the operator command line for inspecting loans
// and moving them through their lifecycle.
package loanctl

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/loan-engine/internal/arrears"
	"github.com/josh-kwaku/loan-engine/internal/domain"
)

const (
	CommandShow       = "show"
	CommandSchedule   = "schedule"
	CommandTransition = "transition"
	CommandDisburse   = "disburse"
	CommandAge        = "age"
)

var commands = []string{CommandShow, CommandSchedule, CommandTransition, CommandDisburse, CommandAge}

var ErrUsage = errors.New("usage: loanctl <show|schedule|transition|disburse|age> -loan-id <id> [flags]")

type Config struct {
	Command string
	LoanID  uuid.UUID
	Event   domain.LoanEvent
	Date    time.Time
	Actor   string
	JSON    bool
	Timeout time.Duration
}

type loanService interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Loan, error)
	Installments(ctx context.Context, id uuid.UUID) ([]domain.Installment, error)
	Transition(ctx context.Context, loanID uuid.UUID, event domain.LoanEvent, actor string) (*domain.Loan, error)
	Disburse(ctx context.Context, loanID uuid.UUID, date time.Time, actor string) (*domain.Loan, error)
}

type agingRunner interface {
	RunForLoans(ctx context.Context, ids []uuid.UUID) (*arrears.Result, error)
}

// ParseConfig reads the command name from args[0] and its flags from the rest.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	if len(args) == 0 || !slices.Contains(commands, args[0]) {
		return Config{}, ErrUsage
	}
	cfg := Config{Command: args[0]}

	var loanID, event, date string
	fs.StringVar(&loanID, "loan-id", "", "loan to operate on")
	fs.StringVar(&event, "event", "", "lifecycle event for the transition command, e.g. LOAN_APPROVED")
	fs.StringVar(&date, "date", "", "disbursement date (YYYY-MM-DD, default today)")
	fs.StringVar(&cfg.Actor, "actor", "loanctl", "actor recorded on business events")
	fs.BoolVar(&cfg.JSON, "json", false, "print JSON instead of a table")
	fs.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "overall timeout")
	if err := fs.Parse(args[1:]); err != nil {
		return Config{}, err
	}

	id, err := uuid.Parse(loanID)
	if err != nil {
		return Config{}, fmt.Errorf("-loan-id: %w", err)
	}
	cfg.LoanID = id

	if cfg.Command == CommandTransition {
		cfg.Event = domain.LoanEvent(strings.ToUpper(event))
		if !slices.Contains(domain.LoanEvents, cfg.Event) {
			return Config{}, fmt.Errorf("-event: unknown loan event %q", event)
		}
	}

	if date != "" {
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return Config{}, fmt.Errorf("-date: %w", err)
		}
		cfg.Date = d
	}
	return cfg, nil
}

type loanView struct {
	ID                   uuid.UUID `json:"id"`
	Status               string    `json:"status"`
	Currency             string    `json:"currency"`
	Principal            string    `json:"principal"`
	ExpectedDisbursement string    `json:"expected_disbursement_date"`
	ActualDisbursement   string    `json:"actual_disbursement_date,omitempty"`
	Version              int64     `json:"version"`
}

type installmentView struct {
	Number    int    `json:"number"`
	DueDate   string `json:"due_date"`
	Principal string `json:"principal_due"`
	Interest  string `json:"interest_due"`
	Fee       string `json:"fee_due"`
	Penalty   string `json:"penalty_due"`
	Complete  bool   `json:"complete"`
}

// Run executes cfg.Command. aging may be nil, in which case the age command
// is unavailable.
func Run(ctx context.Context, cfg Config, loans loanService, aging agingRunner, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	switch cfg.Command {
	case CommandShow:
		l, err := loans.Get(ctx, cfg.LoanID)
		if err != nil {
			return err
		}
		return printLoan(out, cfg.JSON, l)

	case CommandSchedule:
		installments, err := loans.Installments(ctx, cfg.LoanID)
		if err != nil {
			return err
		}
		return printSchedule(out, cfg.JSON, installments)

	case CommandTransition:
		l, err := loans.Transition(ctx, cfg.LoanID, cfg.Event, cfg.Actor)
		if err != nil {
			return err
		}
		return printLoan(out, cfg.JSON, l)

	case CommandDisburse:
		date := cfg.Date
		if date.IsZero() {
			date = domain.Day(time.Now())
		}
		l, err := loans.Disburse(ctx, cfg.LoanID, date, cfg.Actor)
		if err != nil {
			return err
		}
		return printLoan(out, cfg.JSON, l)

	case CommandAge:
		if aging == nil {
			return fmt.Errorf("age: aging job not configured")
		}
		res, err := aging.RunForLoans(ctx, []uuid.UUID{cfg.LoanID})
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "business date %s: %d written, %d deleted\n",
			res.BusinessDate.Format(time.DateOnly), res.RowsWritten, res.RowsDeleted)
		return err
	}
	return ErrUsage
}

func printLoan(out io.Writer, asJSON bool, l *domain.Loan) error {
	v := loanView{
		ID:                   l.ID,
		Status:               l.Status.String(),
		Currency:             l.CurrencyCode,
		Principal:            l.Principal.String(),
		ExpectedDisbursement: l.ExpectedDisbursementDate.Format(time.DateOnly),
		Version:              l.Version,
	}
	if l.ActualDisbursementDate != nil {
		v.ActualDisbursement = l.ActualDisbursementDate.Format(time.DateOnly)
	}
	if asJSON {
		return json.NewEncoder(out).Encode(v)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", v.ID)
	fmt.Fprintf(tw, "status\t%s\n", v.Status)
	fmt.Fprintf(tw, "principal\t%s %s\n", v.Principal, v.Currency)
	fmt.Fprintf(tw, "expected disbursement\t%s\n", v.ExpectedDisbursement)
	if v.ActualDisbursement != "" {
		fmt.Fprintf(tw, "actual disbursement\t%s\n", v.ActualDisbursement)
	}
	fmt.Fprintf(tw, "version\t%d\n", v.Version)
	return tw.Flush()
}

func printSchedule(out io.Writer, asJSON bool, installments []domain.Installment) error {
	views := make([]installmentView, 0, len(installments))
	for i := range installments {
		inst := &installments[i]
		views = append(views, installmentView{
			Number:    inst.Number,
			DueDate:   inst.DueDate.Format(time.DateOnly),
			Principal: inst.PrincipalDue.String(),
			Interest:  inst.InterestDue.String(),
			Fee:       inst.FeeDue.String(),
			Penalty:   inst.PenaltyDue.String(),
			Complete:  inst.IsComplete(),
		})
	}
	if asJSON {
		return json.NewEncoder(out).Encode(views)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tdue\tprincipal\tinterest\tfee\tpenalty\tcomplete\t")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%t\t\n", v.Number, v.DueDate, v.Principal, v.Interest, v.Fee, v.Penalty, v.Complete)
	}
	return tw.Flush()
}
