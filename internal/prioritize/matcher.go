// Package prioritize maps free-text AI prioritization output back onto the
// todo records it was generated from.
package prioritize

import (
	"regexp"
	"strings"

	"github.com/BuzzLyutic/smart-todo/internal/model"
)

var (
	lineBreak     = regexp.MustCompile(`\r?\n`)
	ordinalMarker = regexp.MustCompile(`^\s*\d+\.\s*`)
)

// ExtractLines splits raw AI output into candidate task descriptions: an
// optional "N. " marker is stripped, anything after the first sentence
// terminator is dropped, and blank results are discarded.
func ExtractLines(raw string) []string {
	var lines []string
	for _, line := range lineBreak.Split(raw, -1) {
		line = ordinalMarker.ReplaceAllString(line, "")
		if i := strings.IndexAny(line, ".!?"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// Score counts the words of line that also occur in text.
func Score(line, text string) int {
	set := make(map[string]struct{})
	for _, w := range words(text) {
		set[w] = struct{}{}
	}
	return score(words(line), set)
}

func score(lineWords []string, set map[string]struct{}) int {
	n := 0
	for _, w := range lineWords {
		if _, ok := set[w]; ok {
			n++
		}
	}
	return n
}

// MatchOrder greedily assigns each extracted line to the remaining todo with
// the highest word overlap and returns matched todos in line order followed by
// the unmatched ones in their original order. The result is always a
// permutation of todos; equal scores resolve to the todo seen first.
func MatchOrder(raw string, todos []model.Todo) []model.Todo {
	type candidate struct {
		todo model.Todo
		set  map[string]struct{}
	}

	pool := make([]candidate, len(todos))
	for i, t := range todos {
		set := make(map[string]struct{})
		for _, w := range words(t.Text) {
			set[w] = struct{}{}
		}
		pool[i] = candidate{todo: t, set: set}
	}

	matched := make([]model.Todo, 0, len(todos))
	for _, line := range ExtractLines(raw) {
		lw := words(line)
		best, bestScore := -1, 0
		for i, c := range pool {
			// строго больше: при равенстве выигрывает первый
			if s := score(lw, c.set); s > bestScore {
				best, bestScore = i, s
			}
		}
		if best < 0 {
			continue
		}
		matched = append(matched, pool[best].todo)
		pool = append(pool[:best], pool[best+1:]...)
	}

	for _, c := range pool {
		matched = append(matched, c.todo)
	}
	return matched
}
