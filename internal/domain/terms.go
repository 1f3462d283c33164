package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type InterestMethod string

const (
	InterestMethodFlat             InterestMethod = "FLAT"
	InterestMethodDecliningBalance InterestMethod = "DECLINING_BALANCE"
)

type AmortizationMethod string

const (
	AmortizationEqualInstallments AmortizationMethod = "EQUAL_INSTALLMENTS"
	AmortizationEqualPrincipal    AmortizationMethod = "EQUAL_PRINCIPAL"
)

type InterestCalculationPeriod string

const (
	InterestCalculationSameAsRepayment InterestCalculationPeriod = "SAME_AS_REPAYMENT_PERIOD"
	InterestCalculationDaily           InterestCalculationPeriod = "DAILY"
)

type PeriodFrequency string

const (
	PeriodFrequencyDays   PeriodFrequency = "DAYS"
	PeriodFrequencyWeeks  PeriodFrequency = "WEEKS"
	PeriodFrequencyMonths PeriodFrequency = "MONTHS"
	PeriodFrequencyYears  PeriodFrequency = "YEARS"
)

type RateFrequency string

const (
	RateFrequencyPerMonth RateFrequency = "PER_MONTH"
	RateFrequencyPerYear  RateFrequency = "PER_YEAR"
)

// DaysInYear is the day-count basis for daily interest. DaysInYearActual uses
// the length of the calendar year the period falls in.
type DaysInYear int

const (
	DaysInYearActual DaysInYear = 1
	DaysInYear360    DaysInYear = 360
	DaysInYear364    DaysInYear = 364
	DaysInYear365    DaysInYear = 365
)

type DaysInMonth int

const (
	DaysInMonthActual DaysInMonth = 1
	DaysInMonth30     DaysInMonth = 30
)

type ChargeTime string

const (
	ChargeTimeDisbursement     ChargeTime = "DISBURSEMENT"
	ChargeTimeInstallmentFee   ChargeTime = "INSTALLMENT_FEE"
	ChargeTimeSpecifiedDueDate ChargeTime = "SPECIFIED_DUE_DATE"
)

type ChargeCalculation string

const (
	ChargeCalculationFlat                       ChargeCalculation = "FLAT"
	ChargeCalculationPercentOfAmount            ChargeCalculation = "PERCENT_OF_AMOUNT"
	ChargeCalculationPercentOfAmountAndInterest ChargeCalculation = "PERCENT_OF_AMOUNT_AND_INTEREST"
)

type Charge struct {
	Name        string            `json:"name"`
	Time        ChargeTime        `json:"time"`
	Calculation ChargeCalculation `json:"calculation"`
	Amount      decimal.Decimal   `json:"amount"`
	DueDate     *time.Time        `json:"due_date,omitempty"`
	Penalty     bool              `json:"penalty"`
}

// LoanTerms are the repayment terms a schedule is generated from. They are
// stored with the loan and defaulted from the product.
type LoanTerms struct {
	InterestRatePerPeriod          decimal.Decimal           `json:"interest_rate_per_period"`
	RateFrequency                  RateFrequency             `json:"rate_frequency"`
	InterestMethod                 InterestMethod            `json:"interest_method"`
	InterestCalculationPeriod      InterestCalculationPeriod `json:"interest_calculation_period"`
	AmortizationMethod             AmortizationMethod        `json:"amortization_method"`
	DaysInYear                     DaysInYear                `json:"days_in_year"`
	DaysInMonth                    DaysInMonth               `json:"days_in_month"`
	RepaymentEvery                 int                       `json:"repayment_every"`
	RepaymentFrequency             PeriodFrequency           `json:"repayment_frequency"`
	NumberOfRepayments             int                       `json:"number_of_repayments"`
	LoanTermFrequency              int                       `json:"loan_term_frequency"`
	LoanTermFrequencyType          PeriodFrequency           `json:"loan_term_frequency_type"`
	RepaymentsStartingFrom         *time.Time                `json:"repayments_starting_from,omitempty"`
	InterestChargedFrom            *time.Time                `json:"interest_charged_from,omitempty"`
	GraceOnPrincipalPayment        int                       `json:"grace_on_principal_payment"`
	GraceOnInterestPayment         int                       `json:"grace_on_interest_payment"`
	GraceOnInterestCharged         int                       `json:"grace_on_interest_charged"`
	InstallmentAmountInMultiplesOf int64                     `json:"installment_amount_in_multiples_of"`
	Charges                        []Charge                  `json:"charges,omitempty"`
}

// AnnualNominalRate returns the nominal yearly interest rate in percent.
func (t LoanTerms) AnnualNominalRate() decimal.Decimal {
	if t.RateFrequency == RateFrequencyPerMonth {
		return t.InterestRatePerPeriod.Mul(decimal.NewFromInt(12))
	}
	return t.InterestRatePerPeriod
}
