package core

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

const (
	CategoryFood          Category = "Food"
	CategoryEntertainment Category = "Entertainment"
	CategoryTransport     Category = "Transport"
	CategoryHealth        Category = "Health"
	CategoryEducation     Category = "Education"
	CategoryClothing      Category = "Clothing"
	CategoryPets          Category = "Pets"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

const (
	PeriodMonthly    Period = "monthly"
	PeriodSemesterly Period = "semesterly"
	PeriodYearly     Period = "yearly"
)

const maxDescriptionLen = 200

type (
	Category string

	Period string

	// Expense is a single spending record in its own currency.
	Expense struct {
		ID          string          `json:"id"`
		UserID      string          `json:"userId"`
		Amount      decimal.Decimal `json:"amount"`
		Currency    string          `json:"currency"`
		Category    Category        `json:"category"`
		Date        time.Time       `json:"date"`
		Description string          `json:"description"`
		CreatedAt   time.Time       `json:"createdAt"`
		UpdatedAt   time.Time       `json:"updatedAt"`
	}

	// Budget is a spending limit for one category, expressed in its own currency.
	// Expenses are linked to a budget at query time by user and category.
	Budget struct {
		ID        string          `json:"id"`
		UserID    string          `json:"userId"`
		Category  Category        `json:"category"`
		Currency  string          `json:"currency"`
		Amount    decimal.Decimal `json:"amount"`
		Period    Period          `json:"period"`
		CreatedAt time.Time       `json:"createdAt"`
		UpdatedAt time.Time       `json:"updatedAt"`
	}

	Currency struct {
		Code   string `json:"code"`
		Symbol string `json:"symbol"`
		Name   string `json:"name"`
	}
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryEntertainment,
	CategoryTransport,
	CategoryHealth,
	CategoryEducation,
	CategoryClothing,
	CategoryPets,
	CategoryTravel,
	CategoryOther,
}

// ParseCategory matches s against the known categories, ignoring case.
func ParseCategory(s string) (Category, error) {
	s = strings.TrimSpace(s)
	for _, c := range Categories {
		if strings.EqualFold(string(c), s) {
			return c, nil
		}
	}
	return "", NewValidationError("category", "unknown category %q", s)
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ParsePeriod accepts any casing ("Semesterly" is what older clients send).
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodMonthly, PeriodSemesterly, PeriodYearly:
		return p, nil
	default:
		return "", NewValidationError("period", "unknown period %q", s)
	}
}

// NormalizeCurrency upper-cases code and checks it is an ISO-4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", NewValidationError("currency", "currency is required")
	}
	if money.GetCurrency(code) == nil {
		return "", NewValidationError("currency", "unsupported currency %q", code)
	}
	return code, nil
}

func validateAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return NewValidationError("amount", "amount must be greater than zero")
	}
	return nil
}

func (e Expense) Validate() error {
	if err := validateAmount(e.Amount); err != nil {
		return err
	}
	if _, err := NormalizeCurrency(e.Currency); err != nil {
		return err
	}
	if !e.Category.Valid() {
		return NewValidationError("category", "unknown category %q", e.Category)
	}
	if e.Date.IsZero() {
		return NewValidationError("date", "date cannot be zero")
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return NewValidationError("description", "description cannot be empty")
	}
	if len(e.Description) > maxDescriptionLen {
		return NewValidationError("description", "description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

func (b Budget) Validate() error {
	if err := validateAmount(b.Amount); err != nil {
		return err
	}
	if _, err := NormalizeCurrency(b.Currency); err != nil {
		return err
	}
	if !b.Category.Valid() {
		return NewValidationError("category", "unknown category %q", b.Category)
	}
	if _, err := ParsePeriod(string(b.Period)); err != nil {
		return err
	}
	return nil
}
