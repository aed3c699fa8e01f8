package remediation

import (
	"strconv"
	"strings"
)

// RuleAction is the operator's choice for network rule findings.
type RuleAction string

const (
	RuleActionUpdate RuleAction = "update"
	RuleActionDelete RuleAction = "delete"
	RuleActionSkip   RuleAction = "skip"
)

// StorageAction is the operator's choice for public container findings.
type StorageAction string

const (
	StorageActionGenerateThenSecure StorageAction = "generate-then-secure"
	StorageActionSecureImmediately  StorageAction = "secure-immediately"
	StorageActionSkip               StorageAction = "skip"
)

// ExpiryChoices are the accepted delegated-token horizons in days.
var ExpiryChoices = []int{7, 30, 90}

// DefaultExpiryDays is used for any unrecognised horizon input.
const DefaultExpiryDays = 30

// DefaultConfirmToken is the literal an operator must type to approve
// destructive actions.
const DefaultConfirmToken = "CONFIRM"

// ParseRuleAction accepts u/d/s or the full action names, case-insensitively.
func ParseRuleAction(input string) (RuleAction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "u", "update":
		return RuleActionUpdate, nil
	case "d", "delete":
		return RuleActionDelete, nil
	case "s", "skip":
		return RuleActionSkip, nil
	}
	return "", &ValidationError{Input: input, Reason: "choose U, D or S"}
}

// ParseStorageAction accepts g/i/s or the full action names, case-insensitively.
func ParseStorageAction(input string) (StorageAction, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "g", "generate", string(StorageActionGenerateThenSecure):
		return StorageActionGenerateThenSecure, nil
	case "i", "immediate", string(StorageActionSecureImmediately):
		return StorageActionSecureImmediately, nil
	case "s", "skip":
		return StorageActionSkip, nil
	}
	return "", &ValidationError{Input: input, Reason: "choose G, I or S"}
}

// ParseExpiryDays maps input to one of ExpiryChoices. Anything else,
// including empty input, yields DefaultExpiryDays.
func ParseExpiryDays(input string) int {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return DefaultExpiryDays
	}
	for _, c := range ExpiryChoices {
		if n == c {
			return n
		}
	}
	return DefaultExpiryDays
}

// ParseYesNo accepts y/yes/n/no case-insensitively.
func ParseYesNo(input string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	}
	return false, &ValidationError{Input: input, Reason: "answer y or n"}
}

// ValidExpiryDays reports whether days is one of ExpiryChoices.
func ValidExpiryDays(days int) bool {
	for _, c := range ExpiryChoices {
		if days == c {
			return true
		}
	}
	return false
}
