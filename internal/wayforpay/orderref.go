package wayforpay

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anatoliitkachenko/dreamcatcher-pay-backend/internal/domain/enums"
)

// Order-reference prefixes route a webhook back to the flow that created the
// attempt. The reference is also the fallback identity channel when the
// gateway drops clientAccountId.
const (
	PrefixSubscription       = "sub"
	PrefixSingle             = "single"
	PrefixWidgetSubscription = "widget_sub"
	PrefixWidgetSingle       = "widget_single"
	PrefixOrder              = "order"
)

var ErrMalformedReference = errors.New("malformed order reference")

var referenceUserID = regexp.MustCompile(`_([0-9]+)_`)

// NewOrderReference builds "{prefix}_{userID}_{unixTimestamp}".
func NewOrderReference(prefix string, userID int64, at time.Time) string {
	return fmt.Sprintf("%s_%d_%d", prefix, userID, at.Unix())
}

// ParseOrderReference extracts the embedded user id (first digit run between
// underscores) and the plan hint carried by the prefix. References without a
// digit run fail with ErrMalformedReference.
func ParseOrderReference(ref string) (int64, string, error) {
	m := referenceUserID.FindStringSubmatch(ref)
	if m == nil {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}
	userID, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || userID <= 0 {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedReference, ref)
	}

	return userID, planHint(ref), nil
}

func planHint(ref string) string {
	switch {
	case strings.HasPrefix(ref, PrefixWidgetSubscription+"_"),
		strings.HasPrefix(ref, PrefixSubscription+"_"):
		return enums.PlanSubscription
	case strings.HasPrefix(ref, PrefixWidgetSingle+"_"),
		strings.HasPrefix(ref, PrefixSingle+"_"):
		return enums.PlanSingle
	default:
		return ""
	}
}
