package recurring

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryFood          Category = "Food"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryShopping      Category = "Shopping"
	CategoryBills         Category = "Bills"
	CategoryHealthcare    Category = "Healthcare"
	CategoryEducation     Category = "Education"
	CategoryTravel        Category = "Travel"
	CategoryOther         Category = "Other"
)

var categories = []Category{
	CategoryFood, CategoryTransport, CategoryEntertainment, CategoryShopping, CategoryBills,
	CategoryHealthcare, CategoryEducation, CategoryTravel, CategoryOther,
}

func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash          PaymentMethod = "Cash"
	PaymentCreditCard    PaymentMethod = "Credit Card"
	PaymentDebitCard     PaymentMethod = "Debit Card"
	PaymentBankTransfer  PaymentMethod = "Bank Transfer"
	PaymentDigitalWallet PaymentMethod = "Digital Wallet"
)

var paymentMethods = []PaymentMethod{
	PaymentCash, PaymentCreditCard, PaymentDebitCard, PaymentBankTransfer, PaymentDigitalWallet,
}

func (p PaymentMethod) Valid() bool {
	for _, known := range paymentMethods {
		if p == known {
			return true
		}
	}
	return false
}

const (
	maxTitleLength       = 100
	maxDescriptionLength = 500
	maxTags              = 20
	maxTagLength         = 30
)

// Obligation is a recurring payment owned by a single user.
type Obligation struct {
	Id            uuid.UUID
	OwnerId       int
	Title         string
	Amount        decimal.Decimal
	Category      Category
	Description   string
	Frequency     Frequency
	StartDate     time.Time
	EndDate       *time.Time
	NextDueDate   time.Time
	PaymentMethod PaymentMethod
	IsActive      bool
	Tags          []string
	// Version is incremented on every successful write and guards concurrent updates.
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOverdue reports whether the next due date lies strictly before asOf.
func (o Obligation) IsOverdue(asOf time.Time) bool {
	return o.NextDueDate.Before(asOf)
}

// DaysUntilDue returns the number of whole days from asOf to the next due date, negative when overdue.
func (o Obligation) DaysUntilDue(asOf time.Time) int {
	return int(math.Floor(o.NextDueDate.Sub(asOf).Hours() / 24))
}

// Ended reports whether the obligation has an end date before t.
func (o Obligation) Ended(t time.Time) bool {
	return o.EndDate != nil && t.After(*o.EndDate)
}

func (o Obligation) clone() Obligation {
	c := o
	if o.EndDate != nil {
		end := *o.EndDate
		c.EndDate = &end
	}
	c.Tags = append([]string(nil), o.Tags...)
	return c
}

// In returns a copy with every timestamp expressed in loc. The store hands back UTC
// instants; schedule arithmetic must run on the owner's calendar.
func (o Obligation) In(loc *time.Location) Obligation {
	c := o.clone()
	c.StartDate = o.StartDate.In(loc)
	c.NextDueDate = o.NextDueDate.In(loc)
	if o.EndDate != nil {
		end := o.EndDate.In(loc)
		c.EndDate = &end
	}
	c.CreatedAt = o.CreatedAt.In(loc)
	c.UpdatedAt = o.UpdatedAt.In(loc)
	return c
}

func (o Obligation) validate() error {
	title := strings.TrimSpace(o.Title)
	if title == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if len([]rune(title)) > maxTitleLength {
		return &ValidationError{Field: "title", Reason: "must be at most 100 characters"}
	}
	if o.Amount.IsNegative() {
		return &ValidationError{Field: "amount", Reason: "must not be negative"}
	}
	if !o.Category.Valid() {
		return &ValidationError{Field: "category", Reason: "unknown category " + string(o.Category)}
	}
	if len([]rune(o.Description)) > maxDescriptionLength {
		return &ValidationError{Field: "description", Reason: "must be at most 500 characters"}
	}
	if !o.Frequency.Valid() {
		return &ValidationError{Field: "frequency", Reason: "must be one of daily, weekly, monthly, yearly"}
	}
	if !o.PaymentMethod.Valid() {
		return &ValidationError{Field: "paymentMethod", Reason: "unknown payment method " + string(o.PaymentMethod)}
	}
	if o.StartDate.IsZero() {
		return &ValidationError{Field: "startDate", Reason: "is required"}
	}
	if o.EndDate != nil && o.EndDate.Before(o.StartDate) {
		return &ValidationError{Field: "endDate", Reason: "must not be before start date"}
	}
	if o.NextDueDate.Before(o.StartDate) {
		return &ValidationError{Field: "nextDueDate", Reason: "must not be before start date"}
	}
	if len(o.Tags) > maxTags {
		return &ValidationError{Field: "tags", Reason: "at most 20 tags are allowed"}
	}
	for _, tag := range o.Tags {
		if len([]rune(tag)) > maxTagLength {
			return &ValidationError{Field: "tags", Reason: "tag " + tag + " is longer than 30 characters"}
		}
	}
	return nil
}

// normalizeTags trims tags, drops empty ones and duplicates and keeps the first-seen order.
func normalizeTags(tags []string) []string {
	result := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		result = append(result, tag)
	}
	return result
}

// SortByNextDueDate orders obligations by next due date, then by id.
func SortByNextDueDate(obligations []Obligation) {
	sort.SliceStable(obligations, func(i, j int) bool {
		a, b := obligations[i], obligations[j]
		if !a.NextDueDate.Equal(b.NextDueDate) {
			return a.NextDueDate.Before(b.NextDueDate)
		}
		return a.Id.String() < b.Id.String()
	})
}
