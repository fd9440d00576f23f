package rating

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/markdave123-py/guardian/internal/models"
)

// ErrMalformed is wrapped by every Parse failure.
var ErrMalformed = errors.New("malformed rating response")

// Each field sits on its own line; anything trailing a field is drift.
var (
	assessmentRe      = regexp.MustCompile(`(?m)^[ \t]*ASSESSMENT:[ \t]*([^\r\n]*)`)
	authenticityRe    = regexp.MustCompile(`(?m)^[ \t]*AUTHENTICITY:[ \t]*(\d+)/10[ \t]*\r?$`)
	emotionalImpactRe = regexp.MustCompile(`(?m)^[ \t]*EMOTIONAL IMPACT:[ \t]*(\d+)/10[ \t]*\r?$`)
	totalRe           = regexp.MustCompile(`(?m)^[ \t]*TOTAL:[ \t]*(\d+)/20[ \t]*\r?$`)
	worthyRe          = regexp.MustCompile(`(?m)^[ \t]*WORTHY:[ \t]*(YES|NO|MAYBE)[ \t]*\r?$`)
)

// Result holds the fields lifted from a completion's rating text.
type Result struct {
	Assessment      string
	Authenticity    int
	EmotionalImpact int
	Total           int
	Worthy          models.Worthy
}

// Parse extracts a Result from raw. Either every required field is present
// and in range, or the whole parse fails; there is no partial Result.
func Parse(raw string) (Result, error) {
	var (
		res     Result
		missing []string
		err     error
	)

	if res.Authenticity, err = score(authenticityRe, raw, models.MaxAxisScore); err != nil {
		missing = append(missing, "AUTHENTICITY: "+err.Error())
	}
	if res.EmotionalImpact, err = score(emotionalImpactRe, raw, models.MaxAxisScore); err != nil {
		missing = append(missing, "EMOTIONAL IMPACT: "+err.Error())
	}
	if res.Total, err = score(totalRe, raw, models.MaxTotalScore); err != nil {
		missing = append(missing, "TOTAL: "+err.Error())
	}
	if m := worthyRe.FindStringSubmatch(raw); m != nil {
		res.Worthy = models.Worthy(m[1])
	} else {
		missing = append(missing, "WORTHY: not found")
	}

	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(missing, "; "))
	}

	if m := assessmentRe.FindStringSubmatch(raw); m != nil {
		res.Assessment = strings.TrimSpace(m[1])
	}
	return res, nil
}

func score(re *regexp.Regexp, raw string, max int) (int, error) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return 0, errors.New("not found")
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, fmt.Errorf("not an integer: %q", m[1])
	}
	if n < 0 || n > max {
		return 0, fmt.Errorf("%d out of range [0,%d]", n, max)
	}
	return n, nil
}

// Verdict is the line shown to the storyteller for a worthiness bucket.
func Verdict(w models.Worthy) string {
	switch w {
	case models.WorthyYes:
		return "Your story is worthy of the prize."
	case models.WorthyMaybe:
		return "Your story has potential, but falls short of truly worthy."
	default:
		return "Your story is not worthy of the prize."
	}
}

// Summary renders a parsed rating the way the guardian reads it back.
func Summary(r Result) string {
	return fmt.Sprintf("%s\n\nAUTHENTICITY: %d/10\nEMOTIONAL IMPACT: %d/10\nTOTAL: %d/20\n\nVERDICT: %s",
		r.Assessment, r.Authenticity, r.EmotionalImpact, r.Total, Verdict(r.Worthy))
}
