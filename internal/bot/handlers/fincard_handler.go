package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/fintalk-ai/fintalk/internal/database"
)

const finCardUsage = `Usage: /fincard_set <field> <value>

Fields: full_name, age, occupation, employment_type, location,
monthly_income, credit_score, monthly_expenses, monthly_emi,
amount_outstanding, credit_dues

Example: /fincard_set monthly_income 45000`

// NewFinCardHandler creates a handler for the /fincard command that shows
// the chat's financial profile.
func NewFinCardHandler(deps HandlerDeps) bot.HandlerFunc {
	return finCardHandler{deps}.Handle
}

type finCardHandler struct {
	deps HandlerDeps
}

func (h finCardHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "fincard")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "FinCard handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	session := h.deps.Sessions.Session(ctx, chatID)

	profile, err := session.Profile(ctx)
	if err != nil {
		log.ErrorContext(ctx, "Failed to load profile", "error", err, "chat_id", chatID)
		text := "I couldn't read your financial profile. Please try again."
		if errors.Is(err, database.ErrProfileCorrupt) {
			text = "Your stored profile is unreadable. Use /fincard_set to rebuild it."
		}
		sendText(ctx, b, chatID, text, log)
		return
	}

	sendText(ctx, b, chatID, formatProfile(profile), log)
}

// NewFinCardSetHandler creates a handler for the /fincard_set command that
// updates one field of the chat's financial profile.
func NewFinCardSetHandler(deps HandlerDeps) bot.HandlerFunc {
	return finCardSetHandler{deps}.Handle
}

type finCardSetHandler struct {
	deps HandlerDeps
}

func (h finCardSetHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "fincard_set")

	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "FinCardSet handler called with nil Message or From", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	args := strings.Fields(update.Message.Text)
	if len(args) < 3 {
		sendText(ctx, b, chatID, finCardUsage, log)
		return
	}

	fieldName := strings.ToLower(args[1])
	newValue := strings.Join(args[2:], " ")

	session := h.deps.Sessions.Session(ctx, chatID)
	profile, err := session.Profile(ctx)
	if err != nil {
		if !errors.Is(err, database.ErrProfileCorrupt) {
			log.ErrorContext(ctx, "Failed to load profile for edit", "error", err, "chat_id", chatID)
			sendText(ctx, b, chatID, "I couldn't read your financial profile. Please try again.", log)
			return
		}
		// A corrupt profile is replaced by a fresh one on the next save.
		log.WarnContext(ctx, "Replacing corrupt profile", "chat_id", chatID)
		profile = database.DefaultProfile(chatID, session.Language().Name)
	}

	if err := applyProfileField(profile, fieldName, newValue); err != nil {
		sendText(ctx, b, chatID, err.Error()+"\n\n"+finCardUsage, log)
		return
	}

	if err := session.SetProfile(ctx, profile); err != nil {
		log.ErrorContext(ctx, "Failed to save profile", "error", err, "chat_id", chatID)
		sendText(ctx, b, chatID, "I couldn't save your profile. Please try again.", log)
		return
	}

	log.InfoContext(ctx, "Profile field updated", "chat_id", chatID, "field", fieldName)
	sendText(ctx, b, chatID, "Saved. Here is your updated FinCard:\n\n"+formatProfile(profile), log)
}

// applyProfileField sets one named field on the profile, parsing numeric
// values as needed.
func applyProfileField(p *database.Profile, field, value string) error {
	parseInt := func() (int64, error) {
		n, err := strconv.ParseInt(strings.ReplaceAll(value, ",", ""), 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%q is not a valid number for %s", value, field)
		}
		return n, nil
	}

	switch field {
	case "full_name":
		p.FullName = value
	case "age":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.Age = int(n)
	case "occupation":
		p.Occupation = value
	case "employment_type":
		p.EmploymentType = value
	case "location":
		p.Location = value
	case "monthly_income":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.MonthlyIncome = n
	case "credit_score":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.CreditScore = int(n)
	case "monthly_expenses":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.MonthlyExpenses = n
	case "monthly_emi":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.MonthlyEMI = n
	case "amount_outstanding":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.AmountOutstanding = n
	case "credit_dues":
		n, err := parseInt()
		if err != nil {
			return err
		}
		p.CreditDues = n
	default:
		return fmt.Errorf("unknown field %q", field)
	}
	return nil
}

// formatProfile renders the profile for display, showing "-" for fields
// the user has not filled in yet.
func formatProfile(p *database.Profile) string {
	str := func(s string) string {
		if s == "" {
			return "-"
		}
		return s
	}
	num := func(n int64) string {
		if n <= 0 {
			return "-"
		}
		return strconv.FormatInt(n, 10)
	}

	var sb strings.Builder
	sb.WriteString("Your FinCard:\n")
	fmt.Fprintf(&sb, "Full Name: %s\n", str(p.FullName))
	fmt.Fprintf(&sb, "Age: %s\n", num(int64(p.Age)))
	fmt.Fprintf(&sb, "Occupation: %s\n", str(p.Occupation))
	fmt.Fprintf(&sb, "Employment Type: %s\n", str(p.EmploymentType))
	fmt.Fprintf(&sb, "Location: %s\n", str(p.Location))
	fmt.Fprintf(&sb, "Monthly Income (INR): %s\n", num(p.MonthlyIncome))
	fmt.Fprintf(&sb, "Credit Score: %s\n", num(int64(p.CreditScore)))
	fmt.Fprintf(&sb, "Monthly Expenses (INR): %s\n", num(p.MonthlyExpenses))
	fmt.Fprintf(&sb, "Monthly EMI (INR): %s\n", num(p.MonthlyEMI))
	fmt.Fprintf(&sb, "Amount Outstanding (INR): %s\n", num(p.AmountOutstanding))
	fmt.Fprintf(&sb, "Credit Card Dues (INR): %s\n", num(p.CreditDues))
	fmt.Fprintf(&sb, "Preferred Language: %s", str(p.PreferredLanguage))
	return sb.String()
}
