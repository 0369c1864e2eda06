package cli

import (
	"strings"

	"github.com/manifoldco/promptui"
)

// Select asks the user to pick one of choices. Typing "/" starts a
// case-insensitive prefix search.
func Select(label string, choices ...string) (string, error) {
	if len(choices) == 0 {
		return "", nil
	}

	sel := &promptui.Select{
		Label: label,
		Items: choices,
		Size:  min(len(choices), maxVisibleChoices),
		Searcher: func(input string, index int) bool {
			if len(input) == 0 {
				return true
			}

			return strings.HasPrefix(strings.ToLower(choices[index]), strings.ToLower(input))
		},
	}

	_, value, err := sel.Run()
	if err != nil {
		return "", err
	}

	return value, nil
}

const maxVisibleChoices = 12
