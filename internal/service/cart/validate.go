package cart

import (
	"fmt"
	"regexp"
	"time"

	"github.com/pawcall/pawcall/internal/domain"
)

// Scheduling metadata is validated strictly: the shape check catches the
// wrong form, the parse check catches impossible dates like 2026-13-01.
var (
	dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
)

// ValidationResult is the outcome of a non-destructive cart check. Errors
// block checkout; warnings do not.
type ValidationResult struct {
	Valid      bool     `json:"valid"`
	Errors     []string `json:"errors"`
	Warnings   []string `json:"warnings"`
	TotalCents int64    `json:"total_cents"`
	Currency   string   `json:"currency"`
}

// validateItems applies the cart invariants to a full item set and computes
// the payable total. Unpriced service items are warnings, not errors: the
// catalog may genuinely have no rule yet and the front desk prices those
// manually.
func validateItems(items []domain.CartItem, currency string) ValidationResult {
	res := ValidationResult{Currency: currency}

	baseRefs := make(map[string]bool, 1)
	var bases int
	for _, it := range items {
		if it.Kind == domain.ItemServiceBase {
			bases++
			baseRefs[it.RefID] = true
		}
	}
	switch {
	case bases == 0:
		res.Errors = append(res.Errors, "cart must have at least one base service")
	case bases > 1:
		res.Errors = append(res.Errors, "cart cannot have multiple base services")
	}

	for i, it := range items {
		label := fmt.Sprintf("item %d (%s)", i+1, it.RefID)

		if it.Quantity < 1 {
			res.Errors = append(res.Errors, label+": quantity must be at least 1")
		}

		switch it.Kind {
		case domain.ItemServiceBase:
			if it.Meta[domain.MetaPetID] == "" {
				res.Errors = append(res.Errors, label+": base service requires pet_id")
			}
			res.Errors = append(res.Errors, checkSchedule(label, it.Meta)...)
		case domain.ItemServiceAddon:
			if ref := it.Meta[domain.MetaRequiresBase]; ref != "" && !baseRefs[ref] {
				res.Errors = append(res.Errors, label+": addon references base service "+ref+" that is not in the cart")
			}
		case domain.ItemProduct:
			// Products carry no scheduling metadata.
		default:
			res.Errors = append(res.Errors, label+": unknown item kind "+string(it.Kind))
		}

		if it.UnitPriceCents <= 0 && it.Kind != domain.ItemProduct {
			res.Warnings = append(res.Warnings, label+": no price configured, will be priced manually")
			continue
		}
		if it.UnitPriceCents > 0 && it.Quantity >= 1 {
			res.TotalCents += it.UnitPriceCents * int64(it.Quantity)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

func checkSchedule(label string, meta map[string]string) []string {
	var errs []string

	date := meta[domain.MetaScheduledDate]
	switch {
	case date == "":
		errs = append(errs, label+": base service requires scheduled_date")
	case !dateRe.MatchString(date):
		errs = append(errs, label+": scheduled_date must use YYYY-MM-DD")
	default:
		if t, err := time.Parse(time.DateOnly, date); err != nil || t.Format(time.DateOnly) != date {
			errs = append(errs, label+": scheduled_date "+date+" is not a real calendar date")
		}
	}

	tm := meta[domain.MetaScheduledTime]
	switch {
	case tm == "":
		errs = append(errs, label+": base service requires scheduled_time")
	case !timeRe.MatchString(tm):
		errs = append(errs, label+": scheduled_time must use 24h HH:MM")
	}

	return errs
}
