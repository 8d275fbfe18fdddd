package service

import (
	"fmt"
	"strconv"
)

const (
	clickActionPayment = "com.jeff.kilekitabu.PAYMENT"
	clickActionDebt    = "com.jeff.kilekitabu.DEBT_NOTIFICATION"
)

// LowCreditThreshold is the balance at or below which users are reminded.
const LowCreditThreshold = 2

// LowCreditCopy returns the title and body for a low balance. Anything at or
// below zero gets the no-credits copy.
func LowCreditCopy(balance int64) (string, string) {
	switch {
	case balance <= 0:
		return "⚠️ No Credits Remaining",
			"Your account has no credits. Please add credits to continue using KileKitabu."
	case balance == 1:
		return "⚠️ Low Credits: 1 Day Remaining",
			"You have only 1 credit remaining. Add credits now to avoid service interruption."
	default:
		return "⚠️ Low Credits: 2 Days Remaining",
			"You have only 2 credits remaining. Add credits now to continue using KileKitabu."
	}
}

// DebtReminderCopy returns the title and body for debts due in days.
func DebtReminderCopy(days int, debts []dueDebt, total float64) (string, string) {
	if len(debts) == 1 {
		d := debts[0]
		switch days {
		case 1:
			return "⏰ Debt Due Tomorrow!",
				fmt.Sprintf("Debt from %s is due tomorrow. Amount: KSh %s", d.AccountName, formatAmount(d.Amount))
		default:
			return fmt.Sprintf("📅 Debt Reminder: %d Days Left", days),
				fmt.Sprintf("Debt from %s is due in %d days. Amount: KSh %s", d.AccountName, days, formatAmount(d.Amount))
		}
	}
	switch days {
	case 1:
		return fmt.Sprintf("⏰ %d Debts Due Tomorrow!", len(debts)),
			fmt.Sprintf("You have %d debts due tomorrow. Total: KSh %.2f", len(debts), total)
	default:
		return fmt.Sprintf("📅 %d Debts Due in %d Days", len(debts), days),
			fmt.Sprintf("You have %d debts due in %d days. Total: KSh %.2f", len(debts), days, total)
	}
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
