package config

// SafetyKeywords signal off-platform payment requests or pressure tactics.
// Matching is case-insensitive on the message body. Keys are the flag names
// recorded on the message.
var SafetyKeywords = map[string][]string{
	"off_platform_payment": {
		"western union",
		"moneygram",
		"wire transfer",
		"gift card",
		"bitcoin",
		"crypto wallet",
		"paypal friends",
		"zelle",
		"venmo",
		"cashapp",
		"virement",         // fr
		"mandat cash",      // fr
		"transferencia",    // es
		"giro postal",      // es
		"überweisung",      // de
		"bonifico",         // it
		"перевод на карту", // ru
		"汇款",               // zh
	},
	"urgency": {
		"pay now",
		"deposit today",
		"send the deposit",
		"before someone else",
		"urgent",
		"right away",
		"dringend",      // de
		"urgente",       // es, it, pt
		"tout de suite", // fr
		"срочно",        // ru
		"马上",            // zh
	},
	"contact_off_platform": {
		"whatsapp me",
		"text me at",
		"telegram me",
		"my email is",
	},
}
