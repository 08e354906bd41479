package payments

import "fmt"

// renderSteps produces the human-readable settlement walkthrough shown to
// the curator for a manual fiat channel.
func renderSteps(method string, amount float64, recipient, missionID string) string {
	switch method {
	case MethodPayPal:
		return fmt.Sprintf(`1. Open PayPal and choose "Send & Request".
2. Enter the runner's PayPal handle: %s
3. Send $%.2f and select "For Goods and Services".
4. Put "Club Run mission %s" in the note.
5. Mark the payment as completed in Club Run with the PayPal transaction id.`, recipient, amount, missionID)
	case MethodCashApp:
		return fmt.Sprintf(`1. Open Cash App and tap the "$" pay tab.
2. Enter $%.2f and tap Pay.
3. Enter the runner's $Cashtag: %s
4. Add "Club Run mission %s" as the payment note.
5. Mark the payment as completed in Club Run with the Cash App receipt id.`, amount, recipient, missionID)
	case MethodZelle:
		return fmt.Sprintf(`1. Open your banking app and select Zelle.
2. Add the runner as a recipient: %s
3. Send $%.2f with memo "Club Run mission %s".
4. Mark the payment as completed in Club Run with the Zelle confirmation number.`, recipient, amount, missionID)
	case MethodVenmo:
		return fmt.Sprintf(`1. Open Venmo and tap Pay or Request.
2. Find the runner: %s
3. Pay $%.2f with note "Club Run mission %s" (set visibility to private).
4. Mark the payment as completed in Club Run with the Venmo transaction id.`, recipient, amount, missionID)
	default:
		return fmt.Sprintf("Send $%.2f to %s for mission %s and record the transaction id in Club Run.", amount, recipient, missionID)
	}
}
