package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/josh-kwaku/loan-engine/internal/domain"
	"github.com/josh-kwaku/loan-engine/internal/money"
)

// Terms is the input of a schedule generation: the loan's repayment terms
// bound to a principal amount and a disbursement date.
type Terms struct {
	Principal        money.Money
	DisbursementDate time.Time
	domain.LoanTerms
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "invalid loan terms: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return domain.ErrValidation }

func (t Terms) withDefaults() Terms {
	if t.RateFrequency == "" {
		t.RateFrequency = domain.RateFrequencyPerYear
	}
	if t.InterestCalculationPeriod == "" {
		t.InterestCalculationPeriod = domain.InterestCalculationSameAsRepayment
	}
	if t.AmortizationMethod == "" {
		t.AmortizationMethod = domain.AmortizationEqualInstallments
	}
	if t.DaysInYear == 0 {
		t.DaysInYear = domain.DaysInYearActual
	}
	if t.DaysInMonth == 0 {
		t.DaysInMonth = domain.DaysInMonthActual
	}
	if t.LoanTermFrequencyType == "" {
		t.LoanTermFrequencyType = t.RepaymentFrequency
	}
	t.DisbursementDate = domain.Day(t.DisbursementDate)
	return t
}

// Validate checks terms before any schedule is built.
func (t Terms) Validate() error {
	var errs []FieldError
	add := func(field, format string, args ...any) {
		errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !t.Principal.IsGreaterThanZero() {
		add("principal", "must be greater than zero")
	}
	if t.DisbursementDate.IsZero() {
		add("disbursement_date", "required")
	}
	if t.InterestRatePerPeriod.IsNegative() {
		add("interest_rate_per_period", "must not be negative")
	}
	if t.NumberOfRepayments <= 0 {
		add("number_of_repayments", "must be greater than zero")
	}
	if t.RepaymentEvery <= 0 {
		add("repayment_every", "must be greater than zero")
	}
	if t.LoanTermFrequency <= 0 {
		add("loan_term_frequency", "must be greater than zero")
	}
	if !validFrequency(t.RepaymentFrequency) {
		add("repayment_frequency", "must be DAYS, WEEKS, MONTHS or YEARS")
	}
	if !validFrequency(t.LoanTermFrequencyType) {
		add("loan_term_frequency_type", "must be DAYS, WEEKS, MONTHS or YEARS")
	}

	switch t.RateFrequency {
	case domain.RateFrequencyPerMonth, domain.RateFrequencyPerYear:
	default:
		add("rate_frequency", "must be PER_MONTH or PER_YEAR")
	}
	switch t.AmortizationMethod {
	case domain.AmortizationEqualInstallments, domain.AmortizationEqualPrincipal:
	default:
		add("amortization_method", "must be EQUAL_INSTALLMENTS or EQUAL_PRINCIPAL")
	}
	switch t.InterestCalculationPeriod {
	case domain.InterestCalculationSameAsRepayment, domain.InterestCalculationDaily:
	default:
		add("interest_calculation_period", "must be SAME_AS_REPAYMENT_PERIOD or DAILY")
	}
	switch t.DaysInYear {
	case domain.DaysInYearActual, domain.DaysInYear360, domain.DaysInYear364, domain.DaysInYear365:
	default:
		add("days_in_year", "must be ACTUAL, 360, 364 or 365")
	}
	switch t.DaysInMonth {
	case domain.DaysInMonthActual, domain.DaysInMonth30:
	default:
		add("days_in_month", "must be ACTUAL or 30")
	}

	if t.GraceOnPrincipalPayment < 0 || t.GraceOnInterestPayment < 0 || t.GraceOnInterestCharged < 0 {
		add("grace", "grace periods must not be negative")
	}
	if t.NumberOfRepayments > 0 {
		if t.GraceOnPrincipalPayment >= t.NumberOfRepayments {
			add("grace_on_principal_payment", "must leave at least one principal repayment")
		}
		if t.GraceOnInterestPayment >= t.NumberOfRepayments {
			add("grace_on_interest_payment", "must leave at least one interest repayment")
		}
		if t.GraceOnInterestCharged > t.NumberOfRepayments {
			add("grace_on_interest_charged", "must not exceed number of repayments")
		}
	}
	if t.InstallmentAmountInMultiplesOf < 0 {
		add("installment_amount_in_multiples_of", "must not be negative")
	}

	if !t.DisbursementDate.IsZero() {
		if d := t.RepaymentsStartingFrom; d != nil && !domain.Day(*d).After(t.DisbursementDate) {
			add("repayments_starting_from", "must be after the disbursement date")
		}
		if d := t.InterestChargedFrom; d != nil && domain.Day(*d).Before(t.DisbursementDate) {
			add("interest_charged_from", "must not be before the disbursement date")
		}
	}

	if len(errs) == 0 {
		if msg := t.checkLoanTerm(); msg != "" {
			add("loan_term_frequency", "%s", msg)
		}
	}

	for i, c := range t.Charges {
		field := fmt.Sprintf("charges[%d]", i)
		if c.Amount.IsNegative() {
			add(field+".amount", "must not be negative")
		}
		switch c.Time {
		case domain.ChargeTimeDisbursement, domain.ChargeTimeInstallmentFee:
		case domain.ChargeTimeSpecifiedDueDate:
			if c.DueDate == nil {
				add(field+".due_date", "required for SPECIFIED_DUE_DATE charges")
			}
		default:
			add(field+".time", "unsupported charge time %q", c.Time)
		}
		switch c.Calculation {
		case domain.ChargeCalculationFlat, domain.ChargeCalculationPercentOfAmount, domain.ChargeCalculationPercentOfAmountAndInterest:
		default:
			add(field+".calculation", "unsupported charge calculation %q", c.Calculation)
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// checkLoanTerm requires the loan term to cover every repayment. With the same
// unit on both sides the term must equal RepaymentEvery * NumberOfRepayments.
func (t Terms) checkLoanTerm() string {
	span := t.RepaymentEvery * t.NumberOfRepayments
	if t.LoanTermFrequencyType == t.RepaymentFrequency {
		if t.LoanTermFrequency != span {
			return fmt.Sprintf("must equal repayment_every * number_of_repayments (%d)", span)
		}
		return ""
	}
	lastRepayment := addPeriod(t.DisbursementDate, span, t.RepaymentFrequency)
	termEnd := addPeriod(t.DisbursementDate, t.LoanTermFrequency, t.LoanTermFrequencyType)
	if lastRepayment.After(termEnd) {
		return "is shorter than the repayment period"
	}
	return ""
}

func validFrequency(f domain.PeriodFrequency) bool {
	switch f {
	case domain.PeriodFrequencyDays, domain.PeriodFrequencyWeeks, domain.PeriodFrequencyMonths, domain.PeriodFrequencyYears:
		return true
	}
	return false
}
