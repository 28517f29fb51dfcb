package markers

import "strings"

// Intent is the priority class of a routing marker.
// P1 preempts everything; P2 is a normal reply; P3 extends a thread
// when nothing more urgent is pending.
type Intent string

const (
	IntentInterrupt Intent = "P1_INTERRUPT"
	IntentReply     Intent = "P2_REPLY"
	IntentExtend    Intent = "P3_EXTEND"
)

// Priority returns the numeric rank of the intent (lower = more urgent).
func (i Intent) Priority() int {
	switch i {
	case IntentInterrupt:
		return 1
	case IntentReply:
		return 2
	case IntentExtend:
		return 3
	default:
		return 2
	}
}

// ParseIntentSuffix maps a "!P1"-style suffix (without the bang) to an Intent.
// The suffix is case-insensitive. ok is false for anything that is not
// exactly p1/p2/p3 — callers treat the text as part of the addressee name.
func ParseIntentSuffix(s string) (Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "p1":
		return IntentInterrupt, true
	case "p2":
		return IntentReply, true
	case "p3":
		return IntentExtend, true
	}
	return IntentReply, false
}
