package cli

import (
	"os"

	"github.com/manifoldco/promptui"
)

// PromptString asks for one line of text. An empty answer is accepted.
func PromptString(label string) (string, error) {
	prompt := promptui.Prompt{
		Label:  label,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
	}

	return prompt.Run()
}
