package ai

import (
	"fmt"
	"regexp"
	"strings"
)

const MaxSuggestions = 5

func SuggestPrompt(task string) string {
	return fmt.Sprintf(`Break down the following to-do item into a list of smaller, actionable sub-tasks.
The main task is: %q.

Provide the response as a simple list of tasks, with each sub-task on a new line.
Do not include any introductory or concluding text, just the list of sub-tasks.
For example, if the task is "Plan a birthday party", the output should be:
- Send out invitations
- Buy decorations
- Order a cake
- Plan the menu
Limit the suggestion to %d steps.`, task, MaxSuggestions)
}

func PrioritizePrompt(todos []string) string {
	var b strings.Builder
	b.WriteString("Here is my todo list for today.\n")
	b.WriteString("Reorder it from most to least important.\n")
	b.WriteString("Consider urgency (words like 'urgent', 'asap'), dependencies, and effort.\n")
	b.WriteString("Provide a brief one-sentence reason for the top 3 items.\n\nMy List:\n")
	for _, t := range todos {
		b.WriteString("- ")
		b.WriteString(t)
		b.WriteString("\n")
	}
	b.WriteString("\nPrioritized List:")
	return b.String()
}

func PepTalkPrompt(task string) string {
	return fmt.Sprintf("Give me a short, highly encouraging and motivating pep talk for the following task. "+
		"Be positive, energetic, and supportive.\n\nTask: %q\n\nPep Talk:", task)
}

const ImagePrompt = "You are an AI assistant. Extract a list of todo items from the following image. " +
	"Only return the list of todos, one per line, no extra text."

var (
	markdownEmphasis = regexp.MustCompile(`\*+`)
	blankRuns        = regexp.MustCompile(`\n{2,}`)
	orderedItem      = regexp.MustCompile(`(?m)^\s*\d+\.\s*(.+)$`)
	newline          = regexp.MustCompile(`\r?\n`)
)

// Clean strips markdown emphasis and collapses runs of blank lines.
func Clean(text string) string {
	text = markdownEmphasis.ReplaceAllString(text, "")
	return blankRuns.ReplaceAllString(text, "\n\n")
}

// ParseLines returns the non-blank trimmed lines of text.
func ParseLines(text string) []string {
	lines := make([]string, 0)
	for _, line := range newline.Split(text, -1) {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ParseSuggestions turns a "- item" list into at most MaxSuggestions items.
func ParseSuggestions(text string) []string {
	out := make([]string, 0, MaxSuggestions)
	for _, line := range newline.Split(text, -1) {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "- "))
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == MaxSuggestions {
			break
		}
	}
	return out
}

// ExtractOrdered collects "N. item" lines, keeping only the first sentence.
func ExtractOrdered(text string) []string {
	ordered := make([]string, 0)
	for _, m := range orderedItem.FindAllStringSubmatch(text, -1) {
		item := m[1]
		if i := strings.IndexAny(item, ".!?"); i >= 0 {
			item = item[:i]
		}
		ordered = append(ordered, strings.TrimSpace(item))
	}
	return ordered
}
