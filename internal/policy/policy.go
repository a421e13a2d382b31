// Package policy implements the lateness policy: detecting that a customer
// says they will arrive late, estimating how late, and producing the reply
// the shop policy mandates for that delay.
package policy

import "strings"

// Severity grades a reported delay.
type Severity string

const (
	SeverityMild          Severity = "mild"
	SeverityModerate      Severity = "moderate"
	SeveritySevere        Severity = "severe"
	SeveritySlotForfeited Severity = "slot_forfeited"
)

// Severity boundaries in minutes, inclusive.
const (
	mildMax     = 5
	moderateMax = 10
	severeMax   = 15
)

// Classify grades a delay by minutes. A nil estimate means the customer did
// not say how late they are; the policy treats that as a moderate delay.
func Classify(minutes *int) Severity {
	if minutes == nil {
		return SeverityModerate
	}
	switch m := *minutes; {
	case m <= mildMax:
		return SeverityMild
	case m <= moderateMax:
		return SeverityModerate
	case m <= severeMax:
		return SeveritySevere
	default:
		return SeveritySlotForfeited
	}
}

// delayPhrases screen messages cheaply before any extraction runs.
var delayPhrases = []string{
	"llego tarde",
	"llego en",
	"llego como en",
	"llegando",
	"voy a llegar",
	"voy a demorar",
	"voy con demora",
	"con demora",
	"me demoro",
	"me demoré",
	"me demore",
	"atrasado",
	"atrasada",
	"me atrasé",
	"me atrase",
	"vengo atrasado",
	"retraso",
	"unos minutos tarde",
	"minutos tarde",
}

// IsDelayMessage reports whether the text reads as a lateness notice.
func IsDelayMessage(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range delayPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// messages are the policy replies per severity. Severe and forfeited slots
// must carry the booking link so the customer can rebook immediately.
var messages = map[Severity]string{
	SeverityMild: "Bro, no pasa nada. Ya le avisamos al barbero con el cual agendaste tu turno.",
	SeverityModerate: "Bro, no pasa nada. Ya le avisamos al barbero con el cual agendaste tu turno. " +
		"Tratá de llegar lo antes posible así no se atrasa el resto de la agenda.",
	SeveritySevere: "Bro, con ese atraso se complica atenderte bien porque hay otros turnos detrás. " +
		"Lo mejor es que canceles ese turno desde la agenda y te agendes en el primer horario disponible. " +
		"Acá tenés el link:",
	SeveritySlotForfeited: "Bro, con más de 15 minutos de atraso el turno se pierde porque hay otros clientes agendados. " +
		"Cancelalo desde la agenda y agendate de nuevo en el horario que te quede bien. " +
		"Acá tenés el link:",
}

// appendsLink reports whether replies for this severity carry the booking link.
func appendsLink(sev Severity) bool {
	return sev == SeveritySevere || sev == SeveritySlotForfeited
}

// Message returns the policy reply for a severity, with the booking link
// appended when the policy requires it.
func Message(sev Severity, bookingLink string) string {
	msg := messages[sev]
	if appendsLink(sev) && bookingLink != "" {
		msg += "\n" + bookingLink
	}
	return msg
}
