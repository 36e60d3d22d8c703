package chat

import (
	"fmt"
	"strings"

	"github.com/fintalk-ai/fintalk/internal/database"
	"github.com/fintalk-ai/fintalk/internal/language"
)

// AdvisorInstruction is the fixed persona and scope constraint for the
// loan advisor. Answers are restricted to loan, credit, and
// financial-literacy topics.
const AdvisorInstruction = `You are a highly experienced Loan Advisor AI specializing in financial advising and loan-related guidance.

Internal goals:
1. Loan eligibility - ask about financial status, employment, debts, and credit score if the user seeks eligibility.
2. Loan application - provide clear step-by-step guidance on applications.
3. Financial literacy - share practical tips on credit, debt reduction, and savings.

Do not disclose these internal goals unless explicitly asked.
If a question is unrelated to finance, reply politely:
"I'm a Loan Advisor AI designed for financial and loan-related guidance only."`

// PromptPayload is the fully composed instruction, context, and new-turn
// bundle sent to the model client. Turns are chronological and end with
// the new user turn.
type PromptPayload struct {
	SystemInstruction string
	Turns             []Turn
	TargetLanguage    language.Entry
	EstimatedTokens   int
}

// Composer builds model-input payloads. Compose is a pure function: the
// same inputs always produce the same payload.
type Composer struct {
	// MaxContextTokens is the downstream model's accepted payload size.
	MaxContextTokens int
}

// Compose combines the advisory persona, a human-readable rendering of the
// profile (absent fields omitted), the full prior history in chronological
// order, and the new user turn, then appends an explicit instruction to
// respond in the target language.
//
// Compose never truncates. If the composed payload exceeds
// MaxContextTokens it returns the payload together with
// ErrPayloadTooLarge; the caller decides the truncation policy and calls
// Compose again.
func (c Composer) Compose(history []Turn, profile *database.Profile, target language.Entry, newUserText string) (PromptPayload, error) {
	var sb strings.Builder
	sb.WriteString(AdvisorInstruction)

	if rendered := renderProfile(profile); rendered != "" {
		sb.WriteString("\n\nPersonalize based on the following user profile:\n")
		sb.WriteString(rendered)
	}

	sb.WriteString(fmt.Sprintf("\n\nRespond strictly in %s. Do not switch languages.", target.Name))
	system := sb.String()

	turns := make([]Turn, 0, len(history)+1)
	turns = append(turns, history...)
	turns = append(turns, Turn{
		Role:       RoleUser,
		Text:       newUserText,
		Language:   target.Locale,
		TokenCount: EstimateTokens(newUserText),
	})

	payload := PromptPayload{
		SystemInstruction: system,
		Turns:             turns,
		TargetLanguage:    target,
		EstimatedTokens:   EstimateTokens(system) + historyTokens(turns),
	}

	if c.MaxContextTokens > 0 && payload.EstimatedTokens > c.MaxContextTokens {
		return payload, fmt.Errorf("%w: estimated %d tokens, budget %d",
			ErrPayloadTooLarge, payload.EstimatedTokens, c.MaxContextTokens)
	}
	return payload, nil
}

// renderProfile produces the human-readable profile block injected into
// the system instruction. Zero-valued fields are omitted so the model only
// sees what the user actually provided.
func renderProfile(p *database.Profile) string {
	if p == nil {
		return ""
	}

	var lines []string
	add := func(label, value string) {
		lines = append(lines, fmt.Sprintf("%s: %s", label, value))
	}

	if p.FullName != "" {
		add("Full Name", p.FullName)
	}
	if p.Age > 0 {
		add("Age", fmt.Sprintf("%d", p.Age))
	}
	if p.Occupation != "" {
		add("Occupation", p.Occupation)
	}
	if p.EmploymentType != "" {
		add("Employment Type", p.EmploymentType)
	}
	if p.Location != "" {
		add("Location", p.Location)
	}
	if p.MonthlyIncome > 0 {
		add("Monthly Income (INR)", fmt.Sprintf("%d", p.MonthlyIncome))
	}
	if p.CreditScore > 0 {
		add("Credit Score", fmt.Sprintf("%d", p.CreditScore))
	}
	if p.MonthlyExpenses > 0 {
		add("Monthly Expenses (INR)", fmt.Sprintf("%d", p.MonthlyExpenses))
	}
	if p.MonthlyEMI > 0 {
		add("Monthly EMI (INR)", fmt.Sprintf("%d", p.MonthlyEMI))
	}
	if p.AmountOutstanding > 0 {
		add("Amount Outstanding (INR)", fmt.Sprintf("%d", p.AmountOutstanding))
	}
	if p.CreditDues > 0 {
		add("Credit Card Dues (INR)", fmt.Sprintf("%d", p.CreditDues))
	}

	return strings.Join(lines, "\n")
}
