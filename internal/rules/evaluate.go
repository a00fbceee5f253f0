package rules

// Item holds the attributes extracted from one feed entry during a scan.
// Attributes are derived fresh on every scan and never cached.
type Item struct {
	// HasContentBlock is false for placeholders, spacers and ad shells.
	HasContentBlock bool
	// AuthorHandle is the account handle, empty when not found.
	AuthorHandle string
	// HasText reports whether the item carries a text block.
	HasText bool
	// Language is the text block's language tag. Meaningful only when
	// HasLanguage is true.
	Language string
	// HasLanguage is false when the text block has no language attribute.
	HasLanguage bool
}

// Reason names the rule that produced a decision.
type Reason string

// Decision reasons.
const (
	ReasonInvalid  Reason = "invalid"
	ReasonExcluded Reason = "excluded"
	ReasonNoText   Reason = "no-text"
	ReasonLanguage Reason = "language"
	ReasonKept     Reason = "kept"
)

// Decision is the outcome of evaluating one item.
type Decision struct {
	// Filter is true when the item must be hidden.
	Filter bool
	// Valid is false when the item is not a real post and must be left
	// untouched.
	Valid bool
	// Reason names the deciding rule.
	Reason Reason
}

// Evaluate applies rs to item. The author exclusion is checked first and
// overrides every other rule.
func Evaluate(item Item, rs RuleSet) Decision {
	if !item.HasContentBlock {
		return Decision{Valid: false, Reason: ReasonInvalid}
	}

	if rs.Excludes(item.AuthorHandle) {
		return Decision{Valid: true, Reason: ReasonExcluded}
	}

	if rs.hideWithoutText && !item.HasText {
		return Decision{Filter: true, Valid: true, Reason: ReasonNoText}
	}

	// A text block without a lang attribute has no tag, which is never a
	// member of a non-empty allow-list.
	if item.HasText && len(rs.languages) > 0 {
		if !item.HasLanguage || !rs.AllowsLanguage(item.Language) {
			return Decision{Filter: true, Valid: true, Reason: ReasonLanguage}
		}
	}

	return Decision{Valid: true, Reason: ReasonKept}
}
