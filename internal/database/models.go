package database

import "time"

// Profile represents a user's FinCard: the financial self-description used
// to personalize advisory responses. Every field except PreferredLanguage
// is optional; zero values mean "not provided" and are omitted when the
// profile is rendered into a prompt.
type Profile struct {
	ID        uint      `db:"id" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	ChatID            int64  `db:"chat_id" json:"chat_id"`
	FullName          string `db:"full_name" json:"full_name,omitempty"`
	Age               int    `db:"age" json:"age,omitempty"`
	Occupation        string `db:"occupation" json:"occupation,omitempty"`
	EmploymentType    string `db:"employment_type" json:"employment_type,omitempty"`
	Location          string `db:"location" json:"location,omitempty"`
	MonthlyIncome     int64  `db:"monthly_income" json:"monthly_income,omitempty"`
	CreditScore       int    `db:"credit_score" json:"credit_score,omitempty"`
	MonthlyExpenses   int64  `db:"monthly_expenses" json:"monthly_expenses,omitempty"`
	MonthlyEMI        int64  `db:"monthly_emi" json:"monthly_emi,omitempty"`
	AmountOutstanding int64  `db:"amount_outstanding" json:"amount_outstanding,omitempty"`
	CreditDues        int64  `db:"credit_dues" json:"credit_dues,omitempty"`

	PreferredLanguage string `db:"preferred_language" json:"preferred_language"`
}

// DefaultProfile returns an empty profile with the preferred language set.
// Used when no persisted record exists or the persisted record is corrupt.
func DefaultProfile(chatID int64, defaultLanguage string) *Profile {
	return &Profile{
		ChatID:            chatID,
		PreferredLanguage: defaultLanguage,
	}
}
