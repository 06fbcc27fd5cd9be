package generate

import (
	"fmt"
	"strings"
)

// Policy decides what happens to a generated activity document that fails
// validation.
type Policy string

const (
	PolicyOff    Policy = "off"
	PolicyReport Policy = "report"
	PolicyRepair Policy = "repair"
	PolicyStrict Policy = "strict"
)

func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PolicyOff, nil
	case PolicyOff, PolicyReport, PolicyRepair, PolicyStrict:
		return p, nil
	}
	return "", fmt.Errorf("unknown validation policy %q (want off, report, repair or strict)", s)
}

func (p Policy) validates() bool { return p != PolicyOff && p != "" }

func (p Policy) repairs() bool { return p == PolicyRepair || p == PolicyStrict }
