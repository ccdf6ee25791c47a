package cli

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/AlecAivazis/survey/v2"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-]+$`)

// PromptForCompany prompts the user to enter a company ticker symbol
func PromptForCompany() (string, error) {
	var ticker string
	prompt := &survey.Input{
		Message: "Enter the company ticker (e.g., MSFT, AAPL, 700.HK):",
		Help:    "The ticker is used for the market and news collectors.",
	}

	err := survey.AskOne(prompt, &ticker, survey.WithValidator(func(val interface{}) error {
		str := strings.TrimSpace(strings.ToUpper(val.(string)))
		if len(str) == 0 {
			return fmt.Errorf("ticker symbol cannot be empty")
		}
		if len(str) > 12 {
			return fmt.Errorf("ticker symbol too long (max 12 characters)")
		}
		if !tickerPattern.MatchString(str) {
			return fmt.Errorf("invalid ticker format (use letters, numbers, dots, and hyphens only)")
		}
		return nil
	}))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(strings.ToUpper(ticker)), nil
}

// PromptForQuery prompts for the research question answered from the filings.
func PromptForQuery(company string) (string, error) {
	var query string
	prompt := &survey.Input{
		Message: fmt.Sprintf("What do you want to know about %s?", company),
		Default: fmt.Sprintf("What are the key risks and growth drivers for %s?", company),
	}
	if err := survey.AskOne(prompt, &query, survey.WithValidator(survey.Required)); err != nil {
		return "", err
	}
	return strings.TrimSpace(query), nil
}

// PromptForTopK asks how many filing excerpts to retrieve.
func PromptForTopK(def int) (int, error) {
	options := []string{"0", "2", "4", "8"}
	if d := strconv.Itoa(def); !slices.Contains(options, d) {
		options = append(options, d)
	}
	var choice string
	prompt := &survey.Select{
		Message: "How many filing excerpts should be retrieved?",
		Options: options,
		Default: strconv.Itoa(def),
	}
	if err := survey.AskOne(prompt, &choice); err != nil {
		return 0, err
	}
	return strconv.Atoi(choice)
}
